// Package refresh はフィードのバックグラウンド再読み込みを提供する。
// 失敗が続いた場合は指数バックオフで間隔を広げる。
package refresh

import (
	"context"
	"log/slog"
	"time"
)

// maxBackoff はバックオフ時の最大待機時間。
// 再読み込み間隔がこれより長い場合は再読み込み間隔を上限とする。
const maxBackoff = 30 * time.Minute

// FeedLoader はフィードの再読み込みを行うインターフェース。card.Feedが実装する。
type FeedLoader interface {
	Load(ctx context.Context) error
}

// Scheduler は一定間隔でフィードを再読み込みする。
// 読み込み済みのカードのローカル状態は再読み込み後も維持される。
type Scheduler struct {
	feed     FeedLoader
	logger   *slog.Logger
	interval time.Duration

	consecutiveErrors int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(feed FeedLoader, logger *slog.Logger, interval time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		feed:     feed,
		logger:   logger,
		interval: interval,
	}
}

// Start はコンテキストがキャンセルされるまで再読み込みを繰り返す。
// 起動時の初回読み込みは呼び出し側で行う前提で、最初の再読み込みは1間隔後に実行する。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("フィード再読み込みスケジューラを開始しました",
		slog.Duration("interval", s.interval),
	)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("フィード再読み込みスケジューラを停止しました")
			return
		case <-timer.C:
			s.RunOnce(ctx)
			timer.Reset(NextDelay(s.interval, s.consecutiveErrors))
		}
	}
}

// RunOnce はフィードを1回再読み込みし、連続失敗回数を更新する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	if err := s.feed.Load(ctx); err != nil {
		s.consecutiveErrors++
		s.logger.Warn("フィードの再読み込みにバックオフを適用します",
			slog.Int("consecutive_errors", s.consecutiveErrors),
			slog.Duration("next_delay", NextDelay(s.interval, s.consecutiveErrors)),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.consecutiveErrors = 0
	s.logger.Debug("フィードの再読み込みが完了しました",
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// ConsecutiveErrors は現在の連続失敗回数を返す。
func (s *Scheduler) ConsecutiveErrors() int {
	return s.consecutiveErrors
}

// NextDelay は連続失敗回数に基づいて次の再読み込みまでの待機時間を計算する。
// 失敗がなければinterval、失敗ごとに2倍ずつ増加し、maxBackoffで頭打ちになる。
func NextDelay(interval time.Duration, consecutiveErrors int) time.Duration {
	limit := maxBackoff
	if interval > limit {
		limit = interval
	}

	delay := interval
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > limit {
			return limit
		}
	}
	return delay
}
