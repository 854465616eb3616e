package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue はレジストリから指定メトリクスのカウンタ値を合計して返す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
		return sum
	}
	t.Fatalf("%s metric not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordHTTPRequest_IncrementsCounter はHTTPリクエストカウンタが増加することを検証する。
func TestRecordHTTPRequest_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodGet, "/api/listings", 200, 5*time.Millisecond)
	c.RecordHTTPRequest(http.MethodGet, "/api/listings", 200, 7*time.Millisecond)
	c.RecordHTTPRequest(http.MethodPost, "/api/listings", 201, 12*time.Millisecond)

	if got := counterValue(t, reg, "marketd_http_requests_total"); got != 3 {
		t.Errorf("http_requests_total = %v, want 3", got)
	}
}

// TestRecordListingCreated_CountsByCategory はカテゴリ別に出品作成が記録されることを検証する。
func TestRecordListingCreated_CountsByCategory(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordListingCreated("electronics")
	c.RecordListingCreated("electronics")
	c.RecordListingCreated("vehicles")

	if got := counterValue(t, reg, "marketd_listings_created_total"); got != 3 {
		t.Errorf("listings_created_total = %v, want 3", got)
	}
}

// TestRecordListingReviewed_CountsByOutcome は審査結果別にカウントされることを検証する。
func TestRecordListingReviewed_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordListingReviewed("approved")
	c.RecordListingReviewed("rejected")
	c.RecordListingReviewed("approved")

	if got := counterValue(t, reg, "marketd_listings_reviewed_total"); got != 3 {
		t.Errorf("listings_reviewed_total = %v, want 3", got)
	}
}

// TestRecordListingsExpired_AddsCount は期限切れ件数が加算されることを検証する。
func TestRecordListingsExpired_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordListingsExpired(5)
	c.RecordListingsExpired(2)

	if got := counterValue(t, reg, "marketd_listings_expired_total"); got != 7 {
		t.Errorf("listings_expired_total = %v, want 7", got)
	}
}

// TestRecordMessageSent_IncrementsCounter はメッセージ送信カウンタが増加することを検証する。
func TestRecordMessageSent_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMessageSent()

	if got := counterValue(t, reg, "marketd_messages_sent_total"); got != 1 {
		t.Errorf("messages_sent_total = %v, want 1", got)
	}
}

// TestRecordSMSSent_CountsByResult はSMS送信が結果別に記録されることを検証する。
func TestRecordSMSSent_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSMSSent(true)
	c.RecordSMSSent(true)
	c.RecordSMSSent(false)

	if got := counterValue(t, reg, "marketd_sms_sent_total"); got != 3 {
		t.Errorf("sms_sent_total = %v, want 3", got)
	}
}

// TestHandler_ServesMetrics はPrometheusフォーマットでメトリクスが公開されることを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordListingCreated("electronics")

	handler := Handler(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "marketd_listings_created_total") {
		t.Error("expected marketd_listings_created_total in metrics output")
	}
}
