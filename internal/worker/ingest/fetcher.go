package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/roadwatch/internal/model"
)

// AlertUpserter はアラートのUPSERT処理のインターフェース。
type AlertUpserter interface {
	UpsertBySourceGUID(ctx context.Context, alert *model.Alert) (bool, error)
}

// Sanitizer はフィード由来テキストのサニタイズのインターフェース。
type Sanitizer interface {
	SanitizeText(s string) string
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// IngestMetrics は取り込みメトリクス記録のインターフェース。
type IngestMetrics interface {
	RecordAdvisoryIngestSuccess(sourceURL string)
	RecordAdvisoryIngestFailure(sourceURL string, reason string)
	RecordAdvisoriesUpserted(count int)
	RecordIngestLatency(duration time.Duration)
}

// Fetcher は個別アドバイザリフィードのHTTPフェッチとパースを行う。
// ETag/Last-Modifiedを使用した条件付きGET、SSRF検証、
// gofeedによるパース、アラートのUPSERT保存を実行する。
type Fetcher struct {
	alertRepo   AlertUpserter
	sanitizer   Sanitizer
	ssrfGuard   SSRFValidator
	metrics     IngestMetrics
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	interval    time.Duration
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// metricsはnilを許容する（テストやメトリクス無効構成）。
func NewFetcher(
	alertRepo AlertUpserter,
	sanitizer Sanitizer,
	ssrfGuard SSRFValidator,
	metrics IngestMetrics,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	interval time.Duration,
) *Fetcher {
	return &Fetcher{
		alertRepo:   alertRepo,
		sanitizer:   sanitizer,
		ssrfGuard:   ssrfGuard,
		metrics:     metrics,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		interval:    interval,
	}
}

// Fetch はアドバイザリフィードをフェッチし、結果に応じて取り込み元の状態を更新する。
func (f *Fetcher) Fetch(ctx context.Context, source *Source) error {
	start := time.Now()

	// SSRF検証
	if err := f.ssrfGuard.ValidateURL(source.URL); err != nil {
		f.logger.Error("SSRF検証に失敗しました",
			slog.String("source_url", source.URL),
			slog.String("error", err.Error()),
		)
		ApplyStopSource(source, fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		f.recordFailure(source.URL, "ssrf")
		return fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	// HTTPリクエスト構築
	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", "Roadwatch/1.0 Advisory Collector")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	// 条件付きGET: ETag
	if source.ETag != "" {
		req.Header.Set("If-None-Match", source.ETag)
	}
	// 条件付きGET: Last-Modified
	if source.LastModified != "" {
		req.Header.Set("If-Modified-Since", source.LastModified)
	}

	// HTTPリクエスト実行
	resp, err := client.Do(req)
	if err != nil {
		f.logger.Error("HTTPリクエストに失敗しました",
			slog.String("source_url", source.URL),
			slog.String("error", err.Error()),
		)
		ApplyBackoff(source, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()))
		f.recordFailure(source.URL, "http")
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	// HTTPステータスに基づく処理分岐
	result := ClassifyHTTPStatus(resp.StatusCode)

	switch result {
	case FetchResultNotModified:
		// 304: コンテンツ未変更 - 次回取り込み時刻のみ更新
		f.logger.Info("アドバイザリフィードは未変更です（304）",
			slog.String("source_url", source.URL),
			slog.Int("http_status", resp.StatusCode),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		ApplySuccess(source, f.interval)
		f.recordSuccess(source.URL, duration)
		return nil

	case FetchResultStop:
		// 404/410/401/403: 取り込み停止
		reason := fmt.Sprintf("HTTPステータス %d により取り込みを停止しました", resp.StatusCode)
		f.logger.Warn("アドバイザリフィードの取り込みを停止します",
			slog.String("source_url", source.URL),
			slog.Int("http_status", resp.StatusCode),
			slog.String("reason", reason),
		)
		ApplyStopSource(source, reason)
		f.recordFailure(source.URL, "stopped")
		return nil

	case FetchResultBackoff:
		// 429/5xx: バックオフ
		reason := fmt.Sprintf("HTTPステータス %d によりバックオフを適用しました", resp.StatusCode)
		f.logger.Warn("アドバイザリフィードの取り込みにバックオフを適用します",
			slog.String("source_url", source.URL),
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_errors", source.ConsecutiveErrors+1),
		)
		ApplyBackoff(source, reason)
		f.recordFailure(source.URL, "backoff")
		return nil

	case FetchResultOK:
		// 200: 正常フェッチ - 以下で処理を続行
	default:
		// その他のステータスコード
		f.logger.Warn("予期しないHTTPステータスコード",
			slog.String("source_url", source.URL),
			slog.Int("http_status", resp.StatusCode),
		)
		ApplyBackoff(source, fmt.Sprintf("予期しないHTTPステータス: %d", resp.StatusCode))
		f.recordFailure(source.URL, "unexpected_status")
		return nil
	}

	// レスポンスボディを読み込み（最大サイズ制限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		f.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("source_url", source.URL),
			slog.String("error", err.Error()),
		)
		ApplyBackoff(source, fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()))
		f.recordFailure(source.URL, "read_body")
		return nil
	}

	// ETag/Last-Modifiedを保存
	if etag := resp.Header.Get("ETag"); etag != "" {
		source.ETag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		source.LastModified = lastMod
	}

	// gofeedでフィードをパース
	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		f.logger.Error("アドバイザリフィードのパースに失敗しました",
			slog.String("source_url", source.URL),
			slog.String("error", err.Error()),
		)
		ApplyParseFailure(source, err.Error())
		f.recordFailure(source.URL, "parse")
		return nil // パース失敗は取り込みエラーとしない（カウントして継続）
	}

	// フィードのエントリをアラートに変換してUPSERT
	alerts := f.convertItems(parsedFeed.Items)

	inserted := 0
	for _, alert := range alerts {
		created, err := f.alertRepo.UpsertBySourceGUID(ctx, alert)
		if err != nil {
			f.logger.Error("アラートのUPSERTに失敗しました",
				slog.String("source_url", source.URL),
				slog.String("source_guid", alert.SourceGUID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if created {
			inserted++
		}
	}

	ApplySuccess(source, f.interval)
	f.recordSuccess(source.URL, duration)
	if f.metrics != nil && inserted > 0 {
		f.metrics.RecordAdvisoriesUpserted(inserted)
	}

	f.logger.Info("アドバイザリフィードの取り込みが完了しました",
		slog.String("source_url", source.URL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("alerts_inserted", inserted),
		slog.Int("alerts_total", len(alerts)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// convertItems はgofeedのエントリをmodel.Alertに変換する。
// GUIDもLinkも持たないエントリは同一性判定ができないためスキップする。
func (f *Fetcher) convertItems(items []*gofeed.Item) []*model.Alert {
	alerts := make([]*model.Alert, 0, len(items))
	now := time.Now()

	for _, item := range items {
		if item == nil {
			continue
		}

		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		if guid == "" {
			continue
		}

		title := f.sanitizer.SanitizeText(item.Title)
		message := f.sanitizer.SanitizeText(item.Description)
		if message == "" {
			message = f.sanitizer.SanitizeText(item.Content)
		}
		if title == "" || message == "" {
			continue
		}

		alert := &model.Alert{
			ID:          uuid.New().String(),
			Type:        classifyAlertType(item.Categories, title),
			Title:       title,
			Message:     message,
			Location:    extractLocation(item.Categories),
			Severity:    classifySeverity(item.Categories, title),
			IsVerified:  true, // 公式アドバイザリ由来
			SourceGUID:  guid,
			PublishedAt: now,
			CreatedAt:   now,
		}

		if item.PublishedParsed != nil {
			alert.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			alert.PublishedAt = *item.UpdatedParsed
		}

		alerts = append(alerts, alert)
	}

	return alerts
}

// classifyAlertType はカテゴリとタイトルからアラート種別を判定する。
func classifyAlertType(categories []string, title string) model.AlertType {
	text := strings.ToLower(strings.Join(categories, " ") + " " + title)

	switch {
	case containsAny(text, "取締", "取り締まり", "enforcement", "speed trap"):
		return model.AlertTypeEnforcement
	case containsAny(text, "気象", "天候", "大雨", "大雪", "凍結", "weather", "storm", "snow"):
		return model.AlertTypeWeather
	case containsAny(text, "事故", "渋滞", "通行止", "規制", "traffic", "accident", "closure", "congestion"):
		return model.AlertTypeTraffic
	default:
		return model.AlertTypeSafety
	}
}

// classifySeverity はカテゴリとタイトルから深刻度を判定する。
func classifySeverity(categories []string, title string) model.AlertSeverity {
	text := strings.ToLower(strings.Join(categories, " ") + " " + title)

	switch {
	case containsAny(text, "警報", "重大", "緊急", "critical", "emergency", "severe"):
		return model.AlertSeverityCritical
	case containsAny(text, "注意", "警戒", "warning", "caution"):
		return model.AlertSeverityWarning
	default:
		return model.AlertSeverityInfo
	}
}

// extractLocation はカテゴリから地点情報を取り出す。
// location:プレフィックス付きカテゴリの値を優先し、なければ広域とする。
func extractLocation(categories []string) string {
	for _, c := range categories {
		if loc, ok := strings.CutPrefix(c, "location:"); ok && loc != "" {
			return loc
		}
	}
	return "広域"
}

// containsAny はテキストにいずれかのキーワードが含まれるかを返す。
func containsAny(text string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// recordSuccess は取り込み成功メトリクスを記録する。
func (f *Fetcher) recordSuccess(sourceURL string, duration time.Duration) {
	if f.metrics == nil {
		return
	}
	f.metrics.RecordAdvisoryIngestSuccess(sourceURL)
	f.metrics.RecordIngestLatency(duration)
}

// recordFailure は取り込み失敗メトリクスを記録する。
func (f *Fetcher) recordFailure(sourceURL string, reason string) {
	if f.metrics == nil {
		return
	}
	f.metrics.RecordAdvisoryIngestFailure(sourceURL, reason)
}
