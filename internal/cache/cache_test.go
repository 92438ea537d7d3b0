package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RankRadar/internal/model"
)

func TestRedisCache_GetSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, "rr:")
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		mock.ExpectGet("rr:k").SetVal("v")
		val, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v", string(val))
	})

	t.Run("miss is not an error", func(t *testing.T) {
		mock.ExpectGet("rr:missing").RedisNil()
		val, ok, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("redis error", func(t *testing.T) {
		mock.ExpectGet("rr:broken").SetErr(redis.TxFailedErr)
		_, _, err := c.Get(ctx, "broken")
		assert.Error(t, err)
	})

	t.Run("set with ttl", func(t *testing.T) {
		mock.ExpectSet("rr:k", []byte("v"), time.Minute).SetVal("OK")
		require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_MarketContextRoundTrip(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, "rr:")
	ctx := context.Background()

	mc := &model.MarketContext{
		Timestamp:    time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		BTCDominance: 42.5,
		Trend:        model.TrendFalling,
	}
	raw, err := json.Marshal(mc)
	require.NoError(t, err)

	mock.ExpectSet("rr:market_context", raw, 10*time.Minute).SetVal("OK")
	require.NoError(t, c.SetMarketContext(ctx, mc, 10*time.Minute))

	mock.ExpectGet("rr:market_context").SetVal(string(raw))
	got, ok, err := c.MarketContext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, mc.BTCDominance, got.BTCDominance)
	assert.Equal(t, mc.Trend, got.Trend)
	assert.True(t, mc.Timestamp.Equal(got.Timestamp))

	mock.ExpectGet("rr:market_context").RedisNil()
	got, ok, err = c.MarketContext(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_InvalidateResponses(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewWithClient(db, "rr:")
	ctx := context.Background()

	// two SCAN pages
	mock.ExpectScan(0, "rr:api:*", 100).SetVal([]string{"rr:api:/api/dashboard"}, 42)
	mock.ExpectDel("rr:api:/api/dashboard").SetVal(1)
	mock.ExpectScan(42, "rr:api:*", 100).SetVal([]string{"rr:api:/api/watchlist", "rr:api:/api/trophies"}, 0)
	mock.ExpectDel("rr:api:/api/watchlist", "rr:api:/api/trophies").SetVal(2)
	n, err := c.InvalidateResponses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mock.ExpectScan(0, "rr:api:*", 100).SetVal([]string{}, 0)
	n, err = c.InvalidateResponses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	mock.ExpectScan(0, "rr:api:*", 100).SetErr(errors.New("connection reset"))
	_, err = c.InvalidateResponses(ctx)
	assert.Error(t, err)

	assert.Equal(t, "api:/api/trophies", ResponseKey("/api/trophies"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
