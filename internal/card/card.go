// Package card はフィード上のカード1枚ごとの再生・リアクション・通報・本文表示を束ねる。
package card

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/murmur/internal/disclosure"
	"github.com/hitoshi/murmur/internal/model"
	"github.com/hitoshi/murmur/internal/playback"
	"github.com/hitoshi/murmur/internal/reaction"
)

// Counts は表示用のリアクション件数。
type Counts struct {
	ThumbsUp   int `json:"thumbs_up"`
	Heart      int `json:"heart"`
	ThumbsDown int `json:"thumbs_down"`
}

// View はUIが描画するカードのスナップショット。
type View struct {
	ID             string             `json:"id"`
	Author         model.Author       `json:"author"`
	Text           string             `json:"text"`
	Truncated      bool               `json:"truncated"`
	TextControl    disclosure.Control `json:"text_control"`
	Location       string             `json:"location,omitempty"`
	Coordinates    *model.Coordinates `json:"coordinates,omitempty"`
	Category       model.Category     `json:"category,omitempty"`
	Sentiment      model.Sentiment    `json:"sentiment"`
	ImageRef       string             `json:"image_ref,omitempty"`
	ImageAvailable bool               `json:"image_available"`
	HasAudio       bool               `json:"has_audio"`
	Playback       playback.State     `json:"playback"`
	Media          *playback.Media    `json:"media,omitempty"`
	Verified       bool               `json:"verified"`
	Liked          bool               `json:"liked"`
	Hearted        bool               `json:"hearted"`
	Counts         Counts             `json:"counts"`
	Flag           reaction.FlagState `json:"flag"`
	PublishedAt    *time.Time         `json:"published_at,omitempty"`
}

// Card はフィード上のおすすめ1件。
// シード値は再読み込みのたびに置き換わり、ローカルの操作結果は各状態オブジェクトが保持する。
type Card struct {
	id        string
	reactions *reaction.State
	flag      *reaction.FlagWorkflow
	policy    disclosure.Policy
	events    model.EventSink
	metrics   Metrics

	mu               sync.Mutex
	seed             model.CardSeed
	player           *playback.Controller
	expanded         bool
	imageUnavailable bool
}

// ID はカードのIDを返す。
func (c *Card) ID() string {
	return c.id
}

// refresh はデータソースから再取得したシードで表示内容を置き換える。
// いいね・ハートのローカル状態は保持し、通報済みの報告はFlaggedへの遷移としてのみ反映する。
// 音声参照が変わった場合は新しいコントローラーに差し替え、古いコントローラーを返す。
// 返されたコントローラーは呼び出し側がReleaseする。
func (c *Card) refresh(seed model.CardSeed, newPlayer func(model.CardSeed) *playback.Controller) *playback.Controller {
	c.reactions.Reconcile(seed.Counts, seed.Liked, seed.Hearted)
	if seed.Flagged && c.flag.MarkFlagged() {
		c.emit(model.EventFlagChanged, string(reaction.FlagFlagged), "source")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var stale *playback.Controller
	if seed.AudioRef != c.seed.AudioRef {
		stale = c.player
		c.player = newPlayer(seed)
	}
	if seed.ImageRef != c.seed.ImageRef {
		c.imageUnavailable = false
	}
	c.seed = seed
	return stale
}

// current はシードと再生コントローラーの組を返す。
func (c *Card) current() (model.CardSeed, *playback.Controller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seed, c.player
}

// View は現在の状態から描画用のスナップショットを生成する。
func (c *Card) View() View {
	c.mu.Lock()
	seed := c.seed
	player := c.player
	expanded := c.expanded
	imageUnavailable := c.imageUnavailable
	c.mu.Unlock()

	rendered := c.policy.Render(seed.Text, expanded)
	base := c.reactions.Base()

	v := View{
		ID:          seed.ID,
		Author:      seed.Author,
		Text:        rendered.Text,
		Truncated:   rendered.Truncated,
		TextControl: rendered.Control,
		Location:    seed.Location,
		Coordinates: seed.Coordinates,
		Category:    seed.Category,
		Sentiment:   seed.Sentiment,
		HasAudio:    seed.AudioRef != "",
		Playback:    player.State(),
		Verified:    seed.Verified,
		Liked:       c.reactions.Liked(),
		Hearted:     c.reactions.Hearted(),
		Counts: Counts{
			ThumbsUp:   c.reactions.DisplayedCount(model.ReactionThumbsUp),
			Heart:      c.reactions.DisplayedCount(model.ReactionHeart),
			ThumbsDown: base.ThumbsDown,
		},
		Flag:        c.flag.State(),
		PublishedAt: seed.PublishedAt,
	}
	if v.Sentiment == "" {
		v.Sentiment = model.SentimentNeutral
	}
	if seed.ImageRef != "" && !imageUnavailable {
		v.ImageRef = seed.ImageRef
		v.ImageAvailable = true
	}
	if v.Playback == playback.StatePlaying {
		media := player.Media()
		v.Media = &media
	}
	return v
}

// Play はこのカードの音声を再生する。他のカードの再生は停止される。
func (c *Card) Play(ctx context.Context) (View, error) {
	_, player := c.current()
	if err := player.Play(ctx); err != nil {
		return c.View(), err
	}
	return c.View(), nil
}

// Stop はこのカードの再生を停止する。
func (c *Card) Stop() View {
	_, player := c.current()
	player.Stop()
	return c.View()
}

// ToggleLike はいいねを切り替える。
func (c *Card) ToggleLike() View {
	active := c.reactions.ToggleLiked()
	c.reacted(model.ReactionThumbsUp, active)
	return c.View()
}

// ToggleHeart はハートを切り替える。
func (c *Card) ToggleHeart() View {
	active := c.reactions.ToggleHearted()
	c.reacted(model.ReactionHeart, active)
	return c.View()
}

// OpenFlag は通報ダイアログを開く。
func (c *Card) OpenFlag() (View, error) {
	if err := c.flag.Open(); err != nil {
		return c.View(), err
	}
	c.emit(model.EventFlagChanged, string(reaction.FlagOpen), "opened")
	return c.View(), nil
}

// DismissFlag は通報ダイアログを閉じる。
func (c *Card) DismissFlag(outcome reaction.Outcome) (View, error) {
	state, err := c.flag.Dismiss(outcome)
	if err != nil {
		return c.View(), err
	}
	c.emit(model.EventFlagChanged, string(state), string(outcome))
	if c.metrics != nil {
		c.metrics.RecordFlagDismissal(string(outcome), state == reaction.FlagFlagged)
	}
	return c.View(), nil
}

// SetExpanded は本文の展開状態を設定する。
func (c *Card) SetExpanded(expanded bool) View {
	c.mu.Lock()
	c.expanded = expanded
	c.mu.Unlock()
	return c.View()
}

// MarkImageUnavailable は画像の読み込みに失敗したことを記録する。
// 以後のViewでは画像の代わりに「画像なし」の状態を返す。
func (c *Card) MarkImageUnavailable() View {
	c.mu.Lock()
	c.imageUnavailable = true
	c.mu.Unlock()
	return c.View()
}

func (c *Card) reacted(kind model.ReactionKind, active bool) {
	state := "off"
	if active {
		state = "on"
	}
	c.emit(model.EventReactionChanged, state, string(kind))
	if c.metrics != nil {
		c.metrics.RecordReaction(string(kind), active)
	}
}

func (c *Card) emit(typ model.EventType, state, reason string) {
	c.events.Publish(model.Event{
		Type:      typ,
		CardID:    c.id,
		State:     state,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
}
