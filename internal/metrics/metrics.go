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
// 認証サービス・ワーカー・ハンドラーから利用する。
type MetricsCollector interface {
	RecordLoginSuccess(method string)
	RecordLoginFailure(method string, code string)
	RecordReconciliation()
	RecordProfileSyncFailure()
	RecordAdvisoryIngestSuccess(sourceURL string)
	RecordAdvisoryIngestFailure(sourceURL string, reason string)
	RecordAdvisoriesUpserted(count int)
	RecordIngestLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess       *prometheus.CounterVec
	loginFail          *prometheus.CounterVec
	reconciliations    prometheus.Counter
	profileSyncFail    prometheus.Counter
	ingestSuccess      prometheus.Counter
	ingestFail         prometheus.Counter
	advisoriesUpserted prometheus.Counter
	ingestLatency      prometheus.Histogram
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadwatch_login_success_total",
			Help: "ログイン成功の合計数（認証方式別）",
		}, []string{"method"}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadwatch_login_fail_total",
			Help: "ログイン失敗の合計数（認証方式・エラーコード別）",
		}, []string{"method", "code"}),
		reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadwatch_profile_reconciliations_total",
			Help: "プロファイル照合完了の合計数",
		}),
		profileSyncFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadwatch_profile_sync_fail_total",
			Help: "プロファイル保存失敗の合計数",
		}),
		ingestSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadwatch_advisory_ingest_success_total",
			Help: "アドバイザリフィード取り込み成功の合計数",
		}),
		ingestFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadwatch_advisory_ingest_fail_total",
			Help: "アドバイザリフィード取り込み失敗の合計数",
		}),
		advisoriesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadwatch_advisories_upserted_total",
			Help: "アップサートされたアドバイザリの合計数",
		}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roadwatch_advisory_ingest_latency_seconds",
			Help:    "アドバイザリフィード取り込みのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadwatch_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.reconciliations,
		c.profileSyncFail,
		c.ingestSuccess,
		c.ingestFail,
		c.advisoriesUpserted,
		c.ingestLatency,
		c.httpStatus,
	)

	return c
}

// RecordLoginSuccess はログイン成功を認証方式別に記録する。
// methodは "password"、"google"、"signup" のいずれか。
func (c *Collector) RecordLoginSuccess(method string) {
	c.loginSuccess.WithLabelValues(method).Inc()
}

// RecordLoginFailure はログイン失敗を認証方式・エラーコード別に記録する。
func (c *Collector) RecordLoginFailure(method string, code string) {
	c.loginFail.WithLabelValues(method, code).Inc()
}

// RecordReconciliation はプロファイル照合完了を記録する。
func (c *Collector) RecordReconciliation() {
	c.reconciliations.Inc()
}

// RecordProfileSyncFailure はプロファイル保存失敗を記録する。
func (c *Collector) RecordProfileSyncFailure() {
	c.profileSyncFail.Inc()
}

// RecordAdvisoryIngestSuccess はアドバイザリ取り込み成功を記録する。
func (c *Collector) RecordAdvisoryIngestSuccess(sourceURL string) {
	c.ingestSuccess.Inc()
}

// RecordAdvisoryIngestFailure はアドバイザリ取り込み失敗を記録する。
func (c *Collector) RecordAdvisoryIngestFailure(sourceURL string, reason string) {
	c.ingestFail.Inc()
}

// RecordAdvisoriesUpserted はアップサートされたアドバイザリ数を記録する。
func (c *Collector) RecordAdvisoriesUpserted(count int) {
	c.advisoriesUpserted.Add(float64(count))
}

// RecordIngestLatency はアドバイザリ取り込みのレイテンシを記録する。
func (c *Collector) RecordIngestLatency(duration time.Duration) {
	c.ingestLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
