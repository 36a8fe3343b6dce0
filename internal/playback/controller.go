package playback

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/murmur/internal/model"
)

// State はコントローラーの再生状態を表す。
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
)

// Reason は再生状態の変化理由。
type Reason string

const (
	ReasonPlayRequested Reason = "play_requested"
	ReasonStopRequested Reason = "stop_requested"
	// ReasonEvicted は他のカードの再生開始により停止されたことを示す。
	ReasonEvicted  Reason = "evicted"
	ReasonReleased Reason = "released"
)

// Media は解決済みの再生可能な音声を表す。
type Media struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// MediaResolver は音声の参照を再生可能なストリームに解決するコラボレーターのインターフェース。
type MediaResolver interface {
	Resolve(ctx context.Context, audioRef string) (Media, error)
}

// errNoAudioRef は音声参照が空の場合の内部エラー。
var errNoAudioRef = errors.New("no audio reference")

// Controller はカード1枚分の再生状態を管理する。
// 再生状態はCoordinatorのミューテックスで保護される。
type Controller struct {
	id          string
	audioRef    string
	coordinator *Coordinator
	resolver    MediaResolver
	events      model.EventSink

	// 以下はcoordinator.muで保護される
	state    State
	media    Media
	released bool
	// requests は停止・解放のたびに進む。解決中の再生要求はこの値で古さを判定する。
	requests uint64
}

// ID はコントローラーが属するカードのIDを返す。
func (c *Controller) ID() string {
	return c.id
}

// AudioRef は再生対象の音声参照を返す。
func (c *Controller) AudioRef() string {
	return c.audioRef
}

// State は現在の再生状態を返す。
func (c *Controller) State() State {
	c.coordinator.mu.Lock()
	defer c.coordinator.mu.Unlock()
	return c.state
}

// Media は再生中の音声を返す。停止中はゼロ値を返す。
func (c *Controller) Media() Media {
	c.coordinator.mu.Lock()
	defer c.coordinator.mu.Unlock()
	return c.media
}

// Play は再生を開始する。他のカードが再生中であれば先に停止させる。
// 既に再生中の場合は何もしない。
// 音声参照を解決できない場合はMEDIA_UNAVAILABLEを返し、停止状態のままにする。
// このとき他のカードの再生には影響しない。
// 解決中にStopまたはReleaseが呼ばれた場合、その再生要求は破棄される。
func (c *Controller) Play(ctx context.Context) error {
	co := c.coordinator

	co.mu.Lock()
	playing := c.state == StatePlaying
	released := c.released
	request := c.requests
	co.mu.Unlock()

	if released {
		return model.NewPreconditionViolationError("play", "released")
	}
	if playing {
		return nil
	}

	media, err := c.resolve(ctx)
	if err != nil {
		co.recordMediaUnavailable()
		co.logger.Warn("音声を解決できませんでした",
			slog.String("card_id", c.id),
			slog.String("audio_ref", c.audioRef),
			slog.String("error", err.Error()),
		)
		return model.NewMediaUnavailableError(c.audioRef, err)
	}

	return co.admit(c, media, request)
}

// Stop は再生を停止する。停止中に呼び出しても何もしない。
func (c *Controller) Stop() {
	if c.coordinator.release(c, false) {
		c.emit(StateStopped, ReasonStopRequested)
	}
}

// Release はカードが表示されなくなった際に呼び出す。再生を停止し、以後の再生を拒否する。
func (c *Controller) Release() {
	if c.coordinator.release(c, true) {
		c.emit(StateStopped, ReasonReleased)
	}
}

func (c *Controller) resolve(ctx context.Context) (Media, error) {
	if c.audioRef == "" {
		return Media{}, errNoAudioRef
	}
	if c.resolver == nil {
		return Media{URL: c.audioRef}, nil
	}
	return c.resolver.Resolve(ctx, c.audioRef)
}

func (c *Controller) emit(state State, reason Reason) {
	c.events.Publish(model.Event{
		Type:      model.EventPlaybackState,
		CardID:    c.id,
		State:     string(state),
		Reason:    string(reason),
		Timestamp: now(),
	})
}
