package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func manyExchanges() *ExchangeVolumeBreakdown {
	b := &ExchangeVolumeBreakdown{AssetID: "x", Volumes: map[string]float64{}}
	for i := 0; i < 12; i++ {
		b.Volumes[fmt.Sprintf("ex%02d", i)] = 0.1 + float64(i)*1234.5678901 + 1.0/float64(i+3)
	}
	return b
}

func TestExchangeVolumeBreakdown_TotalIsReproducible(t *testing.T) {
	b := manyExchanges()
	want := b.Total()
	for i := 0; i < 500; i++ {
		if got := b.Total(); got != want {
			t.Fatalf("iteration %d: total %v differs from %v", i, got, want)
		}
	}
}

func TestExchangeVolumeBreakdown_IgnoresNonPositive(t *testing.T) {
	b := &ExchangeVolumeBreakdown{Volumes: map[string]float64{
		"binance": 60, "okx": 40, "broken": -500, "idle": 0,
	}}
	assert.Equal(t, 100.0, b.Total())
	name, top := b.Top()
	assert.Equal(t, "binance", name)
	assert.Equal(t, 60.0, top)

	neg := &ExchangeVolumeBreakdown{Volumes: map[string]float64{"a": -1, "b": 0}}
	name, top = neg.Top()
	assert.Equal(t, "", name)
	assert.Equal(t, 0.0, top)
	assert.Equal(t, 0.0, neg.Total())
}

func TestExchangeVolumeBreakdown_TopTieBreaksByName(t *testing.T) {
	b := &ExchangeVolumeBreakdown{Volumes: map[string]float64{"okx": 50, "bybit": 50, "gate": 10}}
	name, _ := b.Top()
	assert.Equal(t, "bybit", name)
}
