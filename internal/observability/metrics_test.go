package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDispatchCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncCampaignCreated("EMAIL")
	metrics.IncQuotaRejected()
	metrics.IncRecordSent("email")
	metrics.IncRecordFailed("email", "provider_error")
	metrics.ObserveSendDuration("email", 120*time.Millisecond)
	metrics.IncDispatchInFlight("email")
	metrics.DecDispatchInFlight("email")
	metrics.AddRetryRequeued("email", 3)

	if got := testutil.ToFloat64(metrics.campaignsCreatedTotal.WithLabelValues("email")); got != 1 {
		t.Fatalf("campaigns_created_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.quotaRejectedTotal); got != 1 {
		t.Fatalf("quota_rejected_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.recordsSentTotal.WithLabelValues("email")); got != 1 {
		t.Fatalf("records_sent_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.recordsFailedTotal.WithLabelValues("email", "provider_error")); got != 1 {
		t.Fatalf("records_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.dispatchInflight.WithLabelValues("email")); got != 0 {
		t.Fatalf("dispatch_inflight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.retryRequeuedTotal.WithLabelValues("email")); got != 3 {
		t.Fatalf("retry_requeued_total = %v, want 3", got)
	}
}

func TestMetricsAddRetryRequeuedIgnoresNonPositive(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	metrics.AddRetryRequeued("email", 0)
	metrics.AddRetryRequeued("email", -2)

	if got := testutil.ToFloat64(metrics.retryRequeuedTotal.WithLabelValues("email")); got != 0 {
		t.Fatalf("retry_requeued_total = %v, want 0", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
