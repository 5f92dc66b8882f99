package metric

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndServe(t *testing.T) {
	r := NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "station_test_total", Help: "test"})
	require.NoError(t, r.Register("test", "station_test_total", c))
	c.Add(3)

	assert.Equal(t, 3.0, testutil.ToFloat64(c))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "station_test_total 3")
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	a := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup", Help: "a"})
	b := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup", Help: "a"})

	require.NoError(t, r.Register("svc", "dup", a))
	assert.ErrorIs(t, r.Register("svc", "dup", a), ErrDuplicate)
	assert.ErrorIs(t, r.Register("other", "dup", b), ErrDuplicate)
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "gone", Help: "g"})
	require.NoError(t, r.Register("svc", "gone", g))

	assert.True(t, r.Unregister("svc", "gone"))
	assert.False(t, r.Unregister("svc", "gone"))
	require.NoError(t, r.Register("svc", "gone", g))
}
