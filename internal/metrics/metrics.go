// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheError()
	RecordLogin(provider string)
	RecordVoteCreated()
	RecordPickCast()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheHit    prometheus.Counter
	cacheMiss   prometheus.Counter
	cacheError  prometheus.Counter
	login       *prometheus.CounterVec
	voteCreated prometheus.Counter
	pickCast    prometheus.Counter
	httpStatus  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pickvote_user_cache_hit_total",
			Help: "ユーザーキャッシュヒットの合計数",
		}),
		cacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pickvote_user_cache_miss_total",
			Help: "ユーザーキャッシュミスの合計数",
		}),
		cacheError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pickvote_user_cache_error_total",
			Help: "ユーザーキャッシュ障害（ソフト障害として吸収）の合計数",
		}),
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pickvote_login_total",
			Help: "プロバイダー別のログイン成功数",
		}, []string{"provider"}),
		voteCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pickvote_votes_created_total",
			Help: "作成された投票の合計数",
		}),
		pickCast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pickvote_picks_cast_total",
			Help: "登録されたピックの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pickvote_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.cacheHit,
		c.cacheMiss,
		c.cacheError,
		c.login,
		c.voteCreated,
		c.pickCast,
		c.httpStatus,
	)

	return c
}

// RecordCacheHit はユーザーキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHit.Inc()
}

// RecordCacheMiss はユーザーキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMiss.Inc()
}

// RecordCacheError はユーザーキャッシュ障害を記録する。
func (c *Collector) RecordCacheError() {
	c.cacheError.Inc()
}

// RecordLogin はプロバイダー別のログイン成功を記録する。
func (c *Collector) RecordLogin(provider string) {
	c.login.WithLabelValues(provider).Inc()
}

// RecordVoteCreated は投票の作成を記録する。
func (c *Collector) RecordVoteCreated() {
	c.voteCreated.Inc()
}

// RecordPickCast はピックの登録を記録する。
func (c *Collector) RecordPickCast() {
	c.pickCast.Inc()
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
