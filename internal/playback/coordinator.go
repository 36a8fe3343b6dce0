// Package playback はカードごとの音声再生状態と、プロセス全体で同時に1つしか
// 再生させないための調停を提供する。
package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/murmur/internal/model"
)

// Metrics は再生に関するメトリクスを記録するインターフェース。
type Metrics interface {
	RecordPlaybackStart()
	RecordPlaybackEviction()
	RecordMediaUnavailable()
}

// Coordinator はプロセス内で再生中のコントローラーを高々1つに保つ。
// 再生中への遷移はすべてadmitを通り、既存の再生を停止してから新しい再生を受け入れる。
// 全コントローラーの再生状態はこのミューテックスで保護される。
type Coordinator struct {
	metrics Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	current *Controller
}

var (
	defaultCoordinator *Coordinator
	defaultOnce        sync.Once
)

// Default はプロセス全体で共有するCoordinatorを返す。
func Default() *Coordinator {
	defaultOnce.Do(func() {
		defaultCoordinator = NewCoordinator(nil, slog.Default())
	})
	return defaultCoordinator
}

// NewCoordinator は独立したCoordinatorを生成する。テストや複数エンジンの分離に使う。
func NewCoordinator(metrics Metrics, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		metrics: metrics,
		logger:  logger,
	}
}

// SetMetrics はメトリクスの記録先を設定する。起動時の配線で使う。
func (co *Coordinator) SetMetrics(metrics Metrics) {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.metrics = metrics
}

// Current は再生中のコントローラーのIDを返す。再生中のものがなければ空文字列を返す。
func (co *Coordinator) Current() string {
	co.mu.Lock()
	defer co.mu.Unlock()
	if co.current == nil {
		return ""
	}
	return co.current.id
}

// NewController はこのCoordinatorに参加するコントローラーを生成する。
func (co *Coordinator) NewController(id, audioRef string, resolver MediaResolver, events model.EventSink) *Controller {
	if events == nil {
		events = model.DiscardEvents{}
	}
	return &Controller{
		id:          id,
		audioRef:    audioRef,
		coordinator: co,
		resolver:    resolver,
		events:      events,
		state:       StateStopped,
	}
}

// admit は既存の再生を停止してからcを再生中にする。
// 停止したコントローラーとcの両方に状態変化イベントを送る。
// requestがPlay開始後の停止・解放によって古くなっていれば何もしない。
func (co *Coordinator) admit(c *Controller, media Media, request uint64) error {
	co.mu.Lock()
	if c.released {
		co.mu.Unlock()
		return model.NewPreconditionViolationError("play", "released")
	}
	if c.state == StatePlaying {
		co.mu.Unlock()
		return nil
	}
	if request != c.requests {
		co.mu.Unlock()
		co.logger.Info("停止済みの再生要求を破棄しました",
			slog.String("card_id", c.id),
		)
		return nil
	}

	// 1. 既存の再生を停止する
	evicted := co.current
	if evicted != nil && evicted != c {
		evicted.state = StateStopped
		evicted.media = Media{}
	} else {
		evicted = nil
	}

	// 2. 新しい再生を受け入れる
	c.state = StatePlaying
	c.media = media
	co.current = c
	metrics := co.metrics
	co.mu.Unlock()

	if evicted != nil {
		evicted.emit(StateStopped, ReasonEvicted)
		co.logger.Info("他のカードの再生により停止しました",
			slog.String("card_id", evicted.id),
			slog.String("by_card_id", c.id),
		)
		if metrics != nil {
			metrics.RecordPlaybackEviction()
		}
	}
	c.emit(StatePlaying, ReasonPlayRequested)
	if metrics != nil {
		metrics.RecordPlaybackStart()
	}
	return nil
}

// release はcを停止し、再生中として記録されていれば解除する。
// 状態が変化した場合にtrueを返す。
func (co *Coordinator) release(c *Controller, final bool) bool {
	co.mu.Lock()
	defer co.mu.Unlock()

	if final {
		c.released = true
	}
	c.requests++
	changed := c.state == StatePlaying
	c.state = StateStopped
	c.media = Media{}
	if co.current == c {
		co.current = nil
	}
	return changed
}

func (co *Coordinator) recordMediaUnavailable() {
	co.mu.Lock()
	metrics := co.metrics
	co.mu.Unlock()
	if metrics != nil {
		metrics.RecordMediaUnavailable()
	}
}

func now() time.Time {
	return time.Now().UTC()
}
