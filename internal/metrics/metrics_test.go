package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveReconciliation(t *testing.T) {
	before := testutil.ToFloat64(ReconciliationsTotal.WithLabelValues("subscription", "committed"))
	ObserveReconciliation("subscription", "committed")
	assert.Equal(t, before+1, testutil.ToFloat64(ReconciliationsTotal.WithLabelValues("subscription", "committed")))
}

func TestMiddlewareRecordsHandledStatus(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, errors.New("dup").Error())
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/fail", http.MethodGet, "409")))
}
