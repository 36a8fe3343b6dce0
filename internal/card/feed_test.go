package card

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/murmur/internal/disclosure"
	"github.com/hitoshi/murmur/internal/model"
	"github.com/hitoshi/murmur/internal/playback"
	"github.com/hitoshi/murmur/internal/reaction"
)

// --- テスト用モック ---

// mockSource はFeedSourceのモック実装。
type mockSource struct {
	loadFn func(ctx context.Context) ([]model.CardSeed, error)
}

func (m *mockSource) LoadCards(ctx context.Context) ([]model.CardSeed, error) {
	return m.loadFn(ctx)
}

func staticSource(seeds ...model.CardSeed) *mockSource {
	return &mockSource{loadFn: func(ctx context.Context) ([]model.CardSeed, error) {
		return seeds, nil
	}}
}

// recordingSink は発行されたイベントを記録するEventSink。
type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recordingSink) Publish(e model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) ofType(typ model.EventType) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// mockMetrics はMetricsのモック実装。
type mockMetrics struct {
	reactions  []string
	dismissals []string
	loads      int
	loadErrs   int
}

func (m *mockMetrics) RecordReaction(kind string, active bool) {
	m.reactions = append(m.reactions, kind)
}

func (m *mockMetrics) RecordFlagDismissal(outcome string, flagged bool) {
	m.dismissals = append(m.dismissals, outcome)
}

func (m *mockMetrics) RecordFeedLoad(cards int, err error) {
	m.loads++
	if err != nil {
		m.loadErrs++
	}
}

func seed(id string) model.CardSeed {
	return model.CardSeed{
		ID:        id,
		Author:    model.Author{Name: "Aiko"},
		Text:      "Lovely ramen place near the station.",
		Category:  model.CategoryFood,
		Sentiment: model.SentimentPositive,
		ImageRef:  "https://img.example.com/" + id + ".jpg",
		AudioRef:  id + ".mp3",
		Counts:    model.ReactionCounts{ThumbsUp: 12, Heart: 3, ThumbsDown: 1},
	}
}

func newTestFeed(t *testing.T, source FeedSource) (*Feed, *recordingSink, *mockMetrics) {
	t.Helper()
	sink := &recordingSink{}
	metrics := &mockMetrics{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	f := NewFeed(source, Config{
		Coordinator:         playback.NewCoordinator(nil, logger),
		Events:              sink,
		ImplicitFlagConfirm: true,
		Metrics:             metrics,
		Logger:              logger,
	})
	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return f, sink, metrics
}

func mustCard(t *testing.T, f *Feed, id string) *Card {
	t.Helper()
	c, err := f.Card(id)
	if err != nil {
		t.Fatalf("Card(%q) error = %v", id, err)
	}
	return c
}

// --- Feed テスト ---

// TestFeed_Load_ViewsInOrder は読み込んだカードが順序どおりに描画されることを検証する。
func TestFeed_Load_ViewsInOrder(t *testing.T) {
	f, _, metrics := newTestFeed(t, staticSource(seed("a"), seed("b"), seed("a"), model.CardSeed{}))

	views := f.Views()
	if len(views) != 2 {
		t.Fatalf("len(Views()) = %d, want 2", len(views))
	}
	if views[0].ID != "a" || views[1].ID != "b" {
		t.Errorf("order = [%s %s], want [a b]", views[0].ID, views[1].ID)
	}

	v := views[0]
	if v.Counts.ThumbsUp != 12 || v.Counts.Heart != 3 || v.Counts.ThumbsDown != 1 {
		t.Errorf("Counts = %+v", v.Counts)
	}
	if v.Playback != playback.StateStopped {
		t.Errorf("Playback = %q, want stopped", v.Playback)
	}
	if !v.ImageAvailable || !v.HasAudio {
		t.Errorf("ImageAvailable = %v, HasAudio = %v, want both true", v.ImageAvailable, v.HasAudio)
	}
	if v.Flag != reaction.FlagClosed {
		t.Errorf("Flag = %q, want closed", v.Flag)
	}
	if metrics.loads != 1 {
		t.Errorf("loads = %d, want 1", metrics.loads)
	}
}

// TestFeed_Load_Error はデータソースの失敗がエラーとして返ることを検証する。
func TestFeed_Load_Error(t *testing.T) {
	metrics := &mockMetrics{}
	f := NewFeed(&mockSource{loadFn: func(ctx context.Context) ([]model.CardSeed, error) {
		return nil, errors.New("connection refused")
	}}, Config{Metrics: metrics, Logger: slog.New(slog.NewJSONHandler(io.Discard, nil))})

	if err := f.Load(context.Background()); !errors.Is(err, model.ErrFeedLoadFailed) {
		t.Fatalf("Load() error = %v, want FEED_LOAD_FAILED", err)
	}
	if metrics.loadErrs != 1 {
		t.Errorf("loadErrs = %d, want 1", metrics.loadErrs)
	}
	if f.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.Len())
	}
}

// TestFeed_Card_NotFound は存在しないカードでCARD_NOT_FOUNDが返ることを検証する。
func TestFeed_Card_NotFound(t *testing.T) {
	f, _, _ := newTestFeed(t, staticSource(seed("a")))
	if _, err := f.Card("missing"); !errors.Is(err, model.ErrCardNotFound) {
		t.Errorf("Card() error = %v, want CARD_NOT_FOUND", err)
	}
}

// reloadingSource は読み込みのたびに次のシード一覧を返すFeedSource。
// 最後の一覧を使い切った後は最後の一覧を返し続ける。
func reloadingSource(rounds ...[]model.CardSeed) *mockSource {
	n := 0
	return &mockSource{loadFn: func(ctx context.Context) ([]model.CardSeed, error) {
		seeds := rounds[min(n, len(rounds)-1)]
		n++
		return seeds, nil
	}}
}

// TestFeed_Reload_KeepsLocalStateAndReleasesRemoved は再読み込みでローカル状態を保持し、消えたカードを解放することを検証する。
func TestFeed_Reload_KeepsLocalStateAndReleasesRemoved(t *testing.T) {
	updated := seed("a")
	updated.Counts.ThumbsUp = 20
	f, _, _ := newTestFeed(t, reloadingSource(
		[]model.CardSeed{seed("a"), seed("b")},
		[]model.CardSeed{updated},
	))

	a := mustCard(t, f, "a")
	a.ToggleLike()
	b := mustCard(t, f, "b")
	if _, err := b.Play(context.Background()); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("reload error = %v", err)
	}

	v := mustCard(t, f, "a").View()
	if !v.Liked {
		t.Error("Liked = false after reload, want true")
	}
	// データソースは自分のいいねを知らないため、新しい件数に+1が重なる
	if v.Counts.ThumbsUp != 21 {
		t.Errorf("ThumbsUp = %d, want 21", v.Counts.ThumbsUp)
	}
	if _, err := f.Card("b"); err == nil {
		t.Error("card b should be removed")
	}
	if got := b.View().Playback; got != playback.StateStopped {
		t.Errorf("removed card Playback = %q, want stopped", got)
	}
}

// TestFeed_Reload_UnchangedCountsKeepsOverlay は件数が変わらない再読み込みでいいねの+1が失われないことを検証する。
func TestFeed_Reload_UnchangedCountsKeepsOverlay(t *testing.T) {
	f, _, _ := newTestFeed(t, staticSource(seed("a")))
	a := mustCard(t, f, "a")

	if v := a.ToggleLike(); v.Counts.ThumbsUp != 13 {
		t.Fatalf("ThumbsUp after like = %d, want 13", v.Counts.ThumbsUp)
	}
	for i := 0; i < 2; i++ {
		if err := f.Load(context.Background()); err != nil {
			t.Fatalf("reload error = %v", err)
		}
	}

	v := mustCard(t, f, "a").View()
	if !v.Liked || v.Counts.ThumbsUp != 13 {
		t.Errorf("after reload: Liked = %v, ThumbsUp = %d, want true, 13", v.Liked, v.Counts.ThumbsUp)
	}
	v = a.ToggleLike()
	if v.Liked || v.Counts.ThumbsUp != 12 {
		t.Errorf("after unlike: Liked = %v, ThumbsUp = %d, want false, 12", v.Liked, v.Counts.ThumbsUp)
	}
}

// TestFeed_Reload_SourceReportsReaction はデータソースが自分のいいねを反映した場合に二重に数えないことを検証する。
func TestFeed_Reload_SourceReportsReaction(t *testing.T) {
	synced := seed("a")
	synced.Counts.ThumbsUp = 13
	synced.Liked = true
	f, _, _ := newTestFeed(t, reloadingSource([]model.CardSeed{seed("a")}, []model.CardSeed{synced}))
	a := mustCard(t, f, "a")
	a.ToggleLike()

	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("reload error = %v", err)
	}

	v := a.View()
	if !v.Liked || v.Counts.ThumbsUp != 13 {
		t.Errorf("Liked = %v, ThumbsUp = %d, want true, 13", v.Liked, v.Counts.ThumbsUp)
	}
	if v = a.ToggleLike(); v.Counts.ThumbsUp != 12 {
		t.Errorf("ThumbsUp after unlike = %d, want 12", v.Counts.ThumbsUp)
	}
}

// TestFeed_Reload_AppliesSourceFlag はデータソースの通報済み状態が既存カードに反映されることを検証する。
func TestFeed_Reload_AppliesSourceFlag(t *testing.T) {
	flagged := seed("a")
	flagged.Flagged = true
	f, sink, _ := newTestFeed(t, reloadingSource(
		[]model.CardSeed{seed("a")},
		[]model.CardSeed{flagged},
		[]model.CardSeed{seed("a")},
	))
	a := mustCard(t, f, "a")
	if _, err := a.OpenFlag(); err != nil {
		t.Fatalf("OpenFlag() error = %v", err)
	}

	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if got := a.View().Flag; got != reaction.FlagFlagged {
		t.Errorf("Flag = %q, want flagged", got)
	}
	events := sink.ofType(model.EventFlagChanged)
	if last := events[len(events)-1]; last.State != string(reaction.FlagFlagged) || last.Reason != "source" {
		t.Errorf("last flag event = %+v", last)
	}

	// 通報済みは取り消されない
	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if got := a.View().Flag; got != reaction.FlagFlagged {
		t.Errorf("Flag after unflagged seed = %q, want flagged", got)
	}
}

// TestFeed_Reload_UpdatesContent は本文と画像の変更が既存カードに反映されることを検証する。
func TestFeed_Reload_UpdatesContent(t *testing.T) {
	edited := seed("a")
	edited.Text = "Edited: the ramen place moved across the street."
	edited.ImageRef = "https://img.example.com/a-v2.jpg"
	f, _, _ := newTestFeed(t, reloadingSource([]model.CardSeed{seed("a")}, []model.CardSeed{edited}))
	a := mustCard(t, f, "a")
	a.MarkImageUnavailable()

	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("reload error = %v", err)
	}

	v := a.View()
	if v.Text != edited.Text {
		t.Errorf("Text = %q, want %q", v.Text, edited.Text)
	}
	if !v.ImageAvailable || v.ImageRef != edited.ImageRef {
		t.Errorf("ImageAvailable = %v, ImageRef = %q, want true, %q", v.ImageAvailable, v.ImageRef, edited.ImageRef)
	}
}

// TestFeed_Reload_ReplacesPlayerOnAudioChange は音声参照の変更で旧コントローラーが解放され、新しい音声が再生されることを検証する。
func TestFeed_Reload_ReplacesPlayerOnAudioChange(t *testing.T) {
	rerecorded := seed("a")
	rerecorded.AudioRef = "a-v2.mp3"
	f, sink, _ := newTestFeed(t, reloadingSource([]model.CardSeed{seed("a")}, []model.CardSeed{rerecorded}))
	a := mustCard(t, f, "a")
	if _, err := a.Play(context.Background()); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("reload error = %v", err)
	}

	v := a.View()
	if v.Playback != playback.StateStopped {
		t.Errorf("Playback after audio change = %q, want stopped", v.Playback)
	}
	events := sink.ofType(model.EventPlaybackState)
	if last := events[len(events)-1]; last.CardID != "a" || last.State != string(playback.StateStopped) {
		t.Errorf("last playback event = %+v", last)
	}

	v, err := a.Play(context.Background())
	if err != nil {
		t.Fatalf("Play() after reload error = %v", err)
	}
	if v.Media == nil || v.Media.URL != "a-v2.mp3" {
		t.Errorf("Media = %+v, want a-v2.mp3", v.Media)
	}
}

// TestFeed_Reload_KeepsPlayerWhenAudioUnchanged は音声参照が同じなら再生が続くことを検証する。
func TestFeed_Reload_KeepsPlayerWhenAudioUnchanged(t *testing.T) {
	f, _, _ := newTestFeed(t, staticSource(seed("a")))
	a := mustCard(t, f, "a")
	if _, err := a.Play(context.Background()); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if got := a.View().Playback; got != playback.StatePlaying {
		t.Errorf("Playback = %q, want playing", got)
	}
}

// --- Card テスト ---

// TestCard_Play_EvictsOtherCard は別カードの再生で前のカードが停止することを検証する。
func TestCard_Play_EvictsOtherCard(t *testing.T) {
	f, sink, _ := newTestFeed(t, staticSource(seed("a"), seed("b")))
	a := mustCard(t, f, "a")
	b := mustCard(t, f, "b")

	if _, err := a.Play(context.Background()); err != nil {
		t.Fatalf("a.Play() error = %v", err)
	}
	vb, err := b.Play(context.Background())
	if err != nil {
		t.Fatalf("b.Play() error = %v", err)
	}

	if vb.Playback != playback.StatePlaying {
		t.Errorf("b Playback = %q, want playing", vb.Playback)
	}
	if vb.Media == nil || vb.Media.URL == "" {
		t.Errorf("b Media = %+v, want resolved media", vb.Media)
	}
	if got := a.View(); got.Playback != playback.StateStopped || got.Media != nil {
		t.Errorf("a Playback = %q, Media = %+v, want stopped without media", got.Playback, got.Media)
	}
	if got := len(sink.ofType(model.EventPlaybackState)); got != 3 {
		t.Errorf("playback events = %d, want 3", got)
	}

	if v := b.Stop(); v.Playback != playback.StateStopped {
		t.Errorf("b Playback after Stop = %q, want stopped", v.Playback)
	}
}

// TestCard_Play_NoAudio は音声のないカードでMEDIA_UNAVAILABLEになることを検証する。
func TestCard_Play_NoAudio(t *testing.T) {
	s := seed("a")
	s.AudioRef = ""
	f, _, _ := newTestFeed(t, staticSource(s))

	v, err := mustCard(t, f, "a").Play(context.Background())
	if !errors.Is(err, model.ErrMediaUnavailable) {
		t.Errorf("Play() error = %v, want MEDIA_UNAVAILABLE", err)
	}
	if v.Playback != playback.StateStopped || v.HasAudio {
		t.Errorf("view = %+v", v)
	}
}

// TestCard_ToggleReactions はリアクションの切り替えが件数に反映されることを検証する。
func TestCard_ToggleReactions(t *testing.T) {
	f, sink, metrics := newTestFeed(t, staticSource(seed("a")))
	c := mustCard(t, f, "a")

	v := c.ToggleLike()
	if !v.Liked || v.Counts.ThumbsUp != 13 {
		t.Errorf("after like: Liked = %v, ThumbsUp = %d, want true, 13", v.Liked, v.Counts.ThumbsUp)
	}
	v = c.ToggleHeart()
	if !v.Hearted || v.Counts.Heart != 4 || !v.Liked {
		t.Errorf("after heart: %+v", v)
	}
	v = c.ToggleLike()
	if v.Liked || v.Counts.ThumbsUp != 12 {
		t.Errorf("after unlike: Liked = %v, ThumbsUp = %d, want false, 12", v.Liked, v.Counts.ThumbsUp)
	}

	events := sink.ofType(model.EventReactionChanged)
	if len(events) != 3 {
		t.Fatalf("reaction events = %d, want 3", len(events))
	}
	if events[2].State != "off" || events[2].Reason != string(model.ReactionThumbsUp) {
		t.Errorf("last reaction event = %+v", events[2])
	}
	if len(metrics.reactions) != 3 {
		t.Errorf("reaction metrics = %d, want 3", len(metrics.reactions))
	}
}

// TestCard_FlagFlow は通報ダイアログの一連の操作を検証する。
func TestCard_FlagFlow(t *testing.T) {
	f, sink, metrics := newTestFeed(t, staticSource(seed("a")))
	c := mustCard(t, f, "a")

	v, err := c.OpenFlag()
	if err != nil || v.Flag != reaction.FlagOpen {
		t.Fatalf("OpenFlag() = %q, %v", v.Flag, err)
	}
	v, err = c.DismissFlag(reaction.OutcomeCancelled)
	if err != nil || v.Flag != reaction.FlagClosed {
		t.Fatalf("DismissFlag(cancelled) = %q, %v", v.Flag, err)
	}

	_, _ = c.OpenFlag()
	v, err = c.DismissFlag(reaction.OutcomeUnspecified)
	if err != nil || v.Flag != reaction.FlagFlagged {
		t.Fatalf("DismissFlag(unspecified) = %q, %v", v.Flag, err)
	}

	if _, err := c.OpenFlag(); !errors.Is(err, model.ErrPreconditionViolation) {
		t.Errorf("OpenFlag() on flagged error = %v, want PRECONDITION_VIOLATION", err)
	}
	if got := len(sink.ofType(model.EventFlagChanged)); got != 4 {
		t.Errorf("flag events = %d, want 4", got)
	}
	if len(metrics.dismissals) != 2 {
		t.Errorf("dismissal metrics = %d, want 2", len(metrics.dismissals))
	}
}

// TestCard_SetExpanded は長い本文の展開と折りたたみを検証する。
func TestCard_SetExpanded(t *testing.T) {
	s := seed("a")
	s.Text = strings.Repeat("x", 151)
	f, _, _ := newTestFeed(t, staticSource(s))
	c := mustCard(t, f, "a")

	v := c.View()
	if !v.Truncated || v.TextControl != disclosure.ControlExpand {
		t.Errorf("collapsed view = {Truncated: %v, Control: %q}", v.Truncated, v.TextControl)
	}
	if len(v.Text) != 150+len(disclosure.Ellipsis) {
		t.Errorf("len(Text) = %d, want 153", len(v.Text))
	}

	v = c.SetExpanded(true)
	if v.Text != s.Text || v.TextControl != disclosure.ControlCollapse {
		t.Errorf("expanded view = {len: %d, Control: %q}", len(v.Text), v.TextControl)
	}

	v = c.SetExpanded(false)
	if !v.Truncated {
		t.Error("Truncated = false after collapse, want true")
	}
}

// TestCard_MarkImageUnavailable は画像の読み込み失敗が表示に反映されることを検証する。
func TestCard_MarkImageUnavailable(t *testing.T) {
	f, _, _ := newTestFeed(t, staticSource(seed("a")))
	v := mustCard(t, f, "a").MarkImageUnavailable()

	if v.ImageAvailable || v.ImageRef != "" {
		t.Errorf("ImageAvailable = %v, ImageRef = %q, want false, empty", v.ImageAvailable, v.ImageRef)
	}
}

// TestCard_SeededState はシードの通報済み・リアクション済み状態が反映されることを検証する。
func TestCard_SeededState(t *testing.T) {
	s := seed("a")
	s.Liked = true
	s.Flagged = true
	s.Sentiment = ""
	f, _, _ := newTestFeed(t, staticSource(s))

	v := mustCard(t, f, "a").View()
	if !v.Liked || v.Counts.ThumbsUp != 12 {
		t.Errorf("Liked = %v, ThumbsUp = %d, want true, 12", v.Liked, v.Counts.ThumbsUp)
	}
	if v.Flag != reaction.FlagFlagged {
		t.Errorf("Flag = %q, want flagged", v.Flag)
	}
	if v.Sentiment != model.SentimentNeutral {
		t.Errorf("Sentiment = %q, want Neutral", v.Sentiment)
	}
}

// TestFeed_Close は終了時にすべての再生が停止されることを検証する。
func TestFeed_Close(t *testing.T) {
	f, _, _ := newTestFeed(t, staticSource(seed("a")))
	c := mustCard(t, f, "a")
	_, _ = c.Play(context.Background())

	f.Close()
	if got := c.View().Playback; got != playback.StateStopped {
		t.Errorf("Playback = %q, want stopped", got)
	}
	if f.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.Len())
	}
}
