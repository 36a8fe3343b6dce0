package capture

import (
	"sync"
	"time"
)

// TickSource は録音中の経過時間を進めるティックの発生源。
// Startで指定したコールバックを一定間隔で呼び出し、Stopで発生を停止する。
// Stopは呼び出し中のコールバックの完了を待たない。
type TickSource interface {
	Start(onTick func())
	Stop()
}

// IntervalTicker はtime.Tickerを使ったTickSourceの実装。
type IntervalTicker struct {
	interval time.Duration

	mu   sync.Mutex
	done chan struct{}
}

// NewIntervalTicker は指定間隔でティックを発生させるIntervalTickerを生成する。
func NewIntervalTicker(interval time.Duration) *IntervalTicker {
	return &IntervalTicker{interval: interval}
}

// NewSecondTicker は1秒間隔のIntervalTickerを生成する。
func NewSecondTicker() TickSource {
	return NewIntervalTicker(time.Second)
}

// Start はティックの発生を開始する。既に動作中の場合は古いループを停止してから開始する。
func (t *IntervalTicker) Start(onTick func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done != nil {
		close(t.done)
	}
	done := make(chan struct{})
	t.done = done

	go t.loop(done, onTick)
}

// Stop はティックの発生を停止する。停止済みの場合は何もしない。
func (t *IntervalTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done != nil {
		close(t.done)
		t.done = nil
	}
}

func (t *IntervalTicker) loop(done <-chan struct{}, onTick func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			// 停止とティックが同時に成立した場合は停止を優先する
			select {
			case <-done:
				return
			default:
			}
			onTick()
		}
	}
}
