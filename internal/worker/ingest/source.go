package ingest

import (
	"fmt"
	"time"
)

// Source はアドバイザリフィードの取り込み元を表す。
// URLは設定から与えられ、取り込み状態（条件付きGET用のETag/Last-Modified、
// 連続エラー回数、次回取り込み時刻）はワーカープロセスのメモリに保持する。
type Source struct {
	URL               string
	ETag              string
	LastModified      string
	ConsecutiveErrors int
	Stopped           bool
	StopReason        string
	NextFetchAt       time.Time
}

// NewSources は設定のURLリストからSourceのスライスを生成する。
// NextFetchAtはゼロ値のため、初回サイクルで即座に取り込み対象となる。
func NewSources(urls []string) []*Source {
	sources := make([]*Source, 0, len(urls))
	for _, u := range urls {
		sources = append(sources, &Source{URL: u})
	}
	return sources
}

// FetchResult はHTTPステータスコードに基づく取り込み結果の分類。
type FetchResult int

const (
	// FetchResultOK は取り込み成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultNotModified はコンテンツ未変更（304）。
	FetchResultNotModified
	// FetchResultStop は取り込み停止が必要なステータス（404/410/401/403）。
	FetchResultStop
	// FetchResultBackoff はバックオフが必要なステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は未知のステータスコード。
	FetchResultUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	// 交通アドバイザリは鮮度が重要なため短めに設定する。
	initialBackoff = 5 * time.Minute
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 6 * time.Hour
	// parseFailureThreshold はパース失敗による取り込み停止の閾値。
	parseFailureThreshold = 10
)

// ClassifyHTTPStatus はHTTPステータスコードを取り込み結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == 200:
		return FetchResultOK
	case statusCode == 304:
		return FetchResultNotModified
	case statusCode == 404 || statusCode == 410:
		return FetchResultStop
	case statusCode == 401 || statusCode == 403:
		return FetchResultStop
	case statusCode == 429:
		return FetchResultBackoff
	case statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回5分、2倍ずつ増加、最大6時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ApplyStopSource は取り込み元を停止状態にする。
// 設定変更かフィード提供元の復旧がない限り再開しない。
func ApplyStopSource(source *Source, reason string) {
	source.Stopped = true
	source.StopReason = reason
}

// ApplyBackoff は取り込み元にバックオフ戦略を適用する。
// 連続エラー回数をインクリメントし、指数バックオフでNextFetchAtを設定する。
func ApplyBackoff(source *Source, reason string) {
	source.ConsecutiveErrors++
	source.StopReason = reason
	delay := CalculateBackoff(source.ConsecutiveErrors - 1)
	source.NextFetchAt = time.Now().Add(delay)
}

// ApplySuccess は取り込み成功時に取り込み元の状態をリセットする。
// 連続エラー回数を0にリセットし、intervalに基づいてNextFetchAtを設定する。
func ApplySuccess(source *Source, interval time.Duration) {
	source.ConsecutiveErrors = 0
	source.StopReason = ""
	source.NextFetchAt = time.Now().Add(interval)
}

// ApplyParseFailure はパース失敗時に連続エラー回数をインクリメントする。
// 閾値に達した場合は取り込みを停止する。
func ApplyParseFailure(source *Source, reason string) {
	source.ConsecutiveErrors++
	source.StopReason = fmt.Sprintf("パース失敗 (%d回連続): %s", source.ConsecutiveErrors, reason)

	if source.ConsecutiveErrors >= parseFailureThreshold {
		source.Stopped = true
		source.StopReason = fmt.Sprintf("パース失敗が%d回連続したため取り込みを停止しました: %s", source.ConsecutiveErrors, reason)
	}
}
