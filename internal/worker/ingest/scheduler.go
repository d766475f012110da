// Package ingest は外部アドバイザリフィードのバックグラウンド取り込みを提供する。
// スケジューラ、フェッチャー、リトライ/バックオフ戦略を含む。
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AdvisoryFetcherService はアドバイザリ取り込みの実行インターフェース。
type AdvisoryFetcherService interface {
	// Fetch は指定取り込み元をフェッチし、結果に応じて状態を更新する。
	Fetch(ctx context.Context, source *Source) error
}

// Scheduler はアドバイザリ取り込みのスケジューリングと並列制御を行う。
// ティッカーで取り込み対象を確認し、semaphoreパターンで
// 最大並列数を制御しながらフェッチを実行する。
type Scheduler struct {
	sources        []*Source
	fetcher        AdvisoryFetcherService
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(
	sources []*Source,
	fetcher AdvisoryFetcherService,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Scheduler{
		sources:        sources,
		fetcher:        fetcher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("アドバイザリ取り込みスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("source_count", len(s.sources)),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("アドバイザリ取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は取り込み対象を1回抽出し、並列でフェッチを実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	due := s.dueSources(time.Now())
	if len(due) == 0 {
		s.logger.Info("取り込み対象のアドバイザリフィードはありません")
		return
	}

	s.logger.Info("取り込みサイクルを開始します",
		slog.Int("source_count", len(due)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, source := range due {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(src *Source) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.fetcher.Fetch(ctx, src); err != nil {
				s.logger.Error("アドバイザリフィードの取り込みに失敗しました",
					slog.String("source_url", src.URL),
					slog.String("error", err.Error()),
				)
			}
		}(source)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("取り込みサイクルが完了しました",
		slog.Int("source_count", len(due)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}

// dueSources は取り込み時刻を迎えた未停止の取り込み元を抽出する。
func (s *Scheduler) dueSources(now time.Time) []*Source {
	due := make([]*Source, 0, len(s.sources))
	for _, src := range s.sources {
		if src.Stopped {
			continue
		}
		if src.NextFetchAt.After(now) {
			continue
		}
		due = append(due, src)
	}
	return due
}
