package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSync(t *testing.T) {
	before := testutil.ToFloat64(syncAttempts.WithLabelValues("google", "create", "success"))
	ObserveSync("google", "create", "success")
	assert.Equal(t, before+1, testutil.ToFloat64(syncAttempts.WithLabelValues("google", "create", "success")))

	ObserveSync("", "delete", "error")
	assert.Equal(t, float64(1), testutil.ToFloat64(syncAttempts.WithLabelValues("none", "delete", "error")))
}

func TestObserveRefresh(t *testing.T) {
	ObserveRefresh("outlook", false)
	assert.Equal(t, float64(1), testutil.ToFloat64(tokenRefreshes.WithLabelValues("outlook", "error")))
}

func TestInstrumentRecordsStatus(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/brew", "418")))
}

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}
