package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestObserveBillingCharge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBillingCharge("video", OutcomeCharged, 180)
	m.ObserveBillingCharge("video", OutcomeCharged, 60)
	m.ObserveBillingCharge("audio", OutcomeInsufficientFunds, 20)

	require.Equal(t, 2.0, testutil.ToFloat64(m.billingCharges.WithLabelValues("video", OutcomeCharged)))
	require.Equal(t, 240.0, testutil.ToFloat64(m.coinsCharged.WithLabelValues("video")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.coinsCharged.WithLabelValues("audio")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncBonus("milestone")
	m.ObserveEarning("audio", "recorded", 10)
	m.IncOutboxPublish("call.billed", errors.New("x"))
}

func TestClassifyDBError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{gorm.ErrRecordNotFound, "not_found"},
		{fmt.Errorf("wrap: %w", gorm.ErrDuplicatedKey), "unique_violation"},
		{&pgconn.PgError{Code: "23505"}, "unique_violation"},
		{&pgconn.PgError{Code: "40001"}, "serialization_failure"},
		{errors.New("boom"), "other"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ClassifyDBError(tc.err))
	}
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/v1/calls/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/calls/abc", nil))

	require.Equal(t, 1, testutil.CollectAndCount(m.httpDuration, "chatcall_http_request_duration_seconds"))
}
