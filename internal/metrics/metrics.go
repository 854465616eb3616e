// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
	RecordListingCreated(category string)
	RecordListingReviewed(outcome string)
	RecordListingsExpired(count int)
	RecordMessageSent()
	RecordSMSSent(success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	listingsCreated *prometheus.CounterVec
	listingsReview  *prometheus.CounterVec
	listingsExpired prometheus.Counter
	messagesSent    prometheus.Counter
	smsSent         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketd_http_requests_total",
			Help: "HTTPリクエストの合計数（メソッド・パス・ステータスコード別）",
		}, []string{"method", "path", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketd_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		listingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketd_listings_created_total",
			Help: "作成された出品の合計数（カテゴリ別）",
		}, []string{"category"}),
		listingsReview: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketd_listings_reviewed_total",
			Help: "審査された出品の合計数（結果別）",
		}, []string{"outcome"}),
		listingsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_listings_expired_total",
			Help: "期限切れになった出品の合計数",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketd_messages_sent_total",
			Help: "送信されたメッセージの合計数",
		}),
		smsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketd_sms_sent_total",
			Help: "送信されたSMSの合計数（結果別）",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.listingsCreated,
		c.listingsReview,
		c.listingsExpired,
		c.messagesSent,
		c.smsSent,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordListingCreated は出品作成を記録する。
func (c *Collector) RecordListingCreated(category string) {
	c.listingsCreated.WithLabelValues(category).Inc()
}

// RecordListingReviewed は審査結果を記録する。outcomeはapproved/rejected。
func (c *Collector) RecordListingReviewed(outcome string) {
	c.listingsReview.WithLabelValues(outcome).Inc()
}

// RecordListingsExpired は期限切れになった出品数を記録する。
func (c *Collector) RecordListingsExpired(count int) {
	c.listingsExpired.Add(float64(count))
}

// RecordMessageSent はメッセージ送信を記録する。
func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

// RecordSMSSent はSMS送信の結果を記録する。
func (c *Collector) RecordSMSSent(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.smsSent.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
