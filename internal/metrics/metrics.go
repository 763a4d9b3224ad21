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
// ハンドラー、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordCallbackOutcome(outcome string)
	RecordAuthorizationCheck(status string)
	RecordRosterImport(status string, records int, duration time.Duration)
	RecordSessionsCleaned(count int64)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	callbackOutcomes *prometheus.CounterVec
	authzChecks      *prometheus.CounterVec
	rosterImports    *prometheus.CounterVec
	rosterRecords    prometheus.Counter
	rosterDuration   prometheus.Histogram
	sessionsCleaned  prometheus.Counter
	httpStatus       *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		callbackOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irisportal_oauth_callback_total",
			Help: "OAuthコールバックの結果別件数",
		}, []string{"outcome"}),
		authzChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irisportal_authorization_checks_total",
			Help: "ロスター照会の結果別件数",
		}, []string{"status"}),
		rosterImports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irisportal_roster_import_total",
			Help: "ロスター取り込みの結果別件数",
		}, []string{"status"}),
		rosterRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irisportal_roster_records_upserted_total",
			Help: "コミットされたロスターレコードの合計数",
		}),
		rosterDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "irisportal_roster_import_duration_seconds",
			Help:    "ロスター取り込みの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irisportal_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irisportal_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.callbackOutcomes,
		c.authzChecks,
		c.rosterImports,
		c.rosterRecords,
		c.rosterDuration,
		c.sessionsCleaned,
		c.httpStatus,
	)

	return c
}

// RecordCallbackOutcome はOAuthコールバックの結果を記録する。
func (c *Collector) RecordCallbackOutcome(outcome string) {
	c.callbackOutcomes.WithLabelValues(outcome).Inc()
}

// RecordAuthorizationCheck はロスター照会の結果を記録する。
func (c *Collector) RecordAuthorizationCheck(status string) {
	c.authzChecks.WithLabelValues(status).Inc()
}

// RecordRosterImport は取り込み結果と、失敗時を含むコミット済み件数を記録する。
func (c *Collector) RecordRosterImport(status string, records int, duration time.Duration) {
	c.rosterImports.WithLabelValues(status).Inc()
	c.rosterRecords.Add(float64(records))
	c.rosterDuration.Observe(duration.Seconds())
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
