package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Exposition(t *testing.T) {
	r := New()
	r.AssetsScored.Add(3)
	r.AssetsSkipped.WithLabelValues("storage").Inc()
	r.CacheResult("market_context", true)
	r.CacheResult("market_context", false)
	r.CacheResult("market_context", false)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.AssetsScored))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheRequests.WithLabelValues("market_context", "miss")))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rankradar_assets_skipped_total{reason="storage"} 1`)
	assert.Contains(t, string(body), "rankradar_assets_scored_total 3")
}

func TestNew_IsolatedRegistries(t *testing.T) {
	// two registries must not collide on registration
	a, b := New(), New()
	a.AssetsScored.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.AssetsScored))
}
