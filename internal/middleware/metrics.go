package middleware

import "net/http"

// HTTPMetrics はレスポンスのステータスコードを記録するフック。
type HTTPMetrics interface {
	RecordHTTPStatus(statusCode int)
}

// NewMetricsMiddleware はレスポンスのステータスコードをメトリクスに記録する
// ミドルウェアを返す。
func NewMetricsMiddleware(metrics HTTPMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			metrics.RecordHTTPStatus(rec.statusCode)
		})
	}
}
