package card

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/murmur/internal/disclosure"
	"github.com/hitoshi/murmur/internal/model"
	"github.com/hitoshi/murmur/internal/playback"
	"github.com/hitoshi/murmur/internal/reaction"
)

// FeedSource はフィードに表示するカードの初期値を取得するコラボレーターのインターフェース。
type FeedSource interface {
	LoadCards(ctx context.Context) ([]model.CardSeed, error)
}

// Metrics はカード操作に関するメトリクスを記録するインターフェース。
type Metrics interface {
	RecordReaction(kind string, active bool)
	RecordFlagDismissal(outcome string, flagged bool)
	RecordFeedLoad(cards int, err error)
}

// Config はFeedの依存関係をまとめた構造体。
type Config struct {
	Coordinator *playback.Coordinator
	Resolver    playback.MediaResolver
	Events      model.EventSink
	Policy      disclosure.Policy
	// ImplicitFlagConfirm がtrueの場合、結果を伴わない通報ダイアログの閉じ方を通報として扱う。
	ImplicitFlagConfirm bool
	Metrics             Metrics
	Logger              *slog.Logger
}

// Feed は表示中のカードの集合。
type Feed struct {
	source FeedSource
	cfg    Config

	mu    sync.RWMutex
	order []string
	cards map[string]*Card
}

// NewFeed はFeedを生成する。カードはLoadを呼び出すまで空。
func NewFeed(source FeedSource, cfg Config) *Feed {
	if cfg.Coordinator == nil {
		cfg.Coordinator = playback.Default()
	}
	if cfg.Events == nil {
		cfg.Events = model.DiscardEvents{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Policy.Threshold <= 0 {
		cfg.Policy = disclosure.NewPolicy(0)
	}
	return &Feed{
		source: source,
		cfg:    cfg,
		cards:  make(map[string]*Card),
	}
}

// Load はデータソースからカードを読み込み直す。
// 既に表示中のカードはローカルの操作状態を保持したままシードを置き換え、
// 消えたカードと音声参照が変わったカードの旧コントローラーは再生を停止して解放する。
func (f *Feed) Load(ctx context.Context) error {
	seeds, err := f.source.LoadCards(ctx)
	if f.cfg.Metrics != nil {
		f.cfg.Metrics.RecordFeedLoad(len(seeds), err)
	}
	if err != nil {
		f.cfg.Logger.Error("フィードの読み込みに失敗しました",
			slog.String("error", err.Error()),
		)
		return model.NewFeedLoadFailedError(err)
	}

	f.mu.Lock()
	var released []*playback.Controller
	next := make(map[string]*Card, len(seeds))
	order := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if seed.ID == "" {
			continue
		}
		if _, dup := next[seed.ID]; dup {
			continue
		}
		if existing, ok := f.cards[seed.ID]; ok {
			if stale := existing.refresh(seed, f.newPlayer); stale != nil {
				released = append(released, stale)
			}
			next[seed.ID] = existing
		} else {
			next[seed.ID] = f.newCard(seed)
		}
		order = append(order, seed.ID)
	}

	removed := 0
	for id, c := range f.cards {
		if _, ok := next[id]; !ok {
			_, player := c.current()
			released = append(released, player)
			removed++
		}
	}
	f.cards = next
	f.order = order
	f.mu.Unlock()

	for _, player := range released {
		player.Release()
	}

	f.cfg.Logger.Info("フィードを読み込みました",
		slog.Int("cards", len(order)),
		slog.Int("removed", removed),
		slog.Int("released", len(released)),
	)
	return nil
}

// Card はIDに対応するカードを返す。存在しない場合はCARD_NOT_FOUNDを返す。
func (f *Feed) Card(id string) (*Card, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.cards[id]
	if !ok {
		return nil, model.NewCardNotFoundError(id)
	}
	return c, nil
}

// Views は表示順にすべてのカードのスナップショットを返す。
func (f *Feed) Views() []View {
	f.mu.RLock()
	cards := make([]*Card, 0, len(f.order))
	for _, id := range f.order {
		cards = append(cards, f.cards[id])
	}
	f.mu.RUnlock()

	views := make([]View, 0, len(cards))
	for _, c := range cards {
		views = append(views, c.View())
	}
	return views
}

// Len は表示中のカード数を返す。
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.order)
}

// Close はすべてのカードの再生を停止して解放する。
func (f *Feed) Close() {
	f.mu.Lock()
	cards := f.cards
	f.cards = make(map[string]*Card)
	f.order = nil
	f.mu.Unlock()

	for _, c := range cards {
		_, player := c.current()
		player.Release()
	}
}

func (f *Feed) newCard(seed model.CardSeed) *Card {
	return &Card{
		id:        seed.ID,
		seed:      seed,
		player:    f.newPlayer(seed),
		reactions: reaction.NewState(seed.Counts, seed.Liked, seed.Hearted),
		flag:      reaction.NewFlagWorkflow(seed.Flagged, f.cfg.ImplicitFlagConfirm),
		policy:    f.cfg.Policy,
		events:    f.cfg.Events,
		metrics:   f.cfg.Metrics,
	}
}

func (f *Feed) newPlayer(seed model.CardSeed) *playback.Controller {
	return f.cfg.Coordinator.NewController(seed.ID, seed.AudioRef, f.cfg.Resolver, f.cfg.Events)
}
