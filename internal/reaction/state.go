// Package reaction はカードごとのリアクション（いいね・ハート）と通報フローの状態を管理する。
package reaction

import (
	"sync"

	"github.com/hitoshi/murmur/internal/model"
)

// State はサーバーのリアクション数に、ローカルで切り替えたリアクションを重ねた状態。
// いいねとハートは独立しており、両方同時に有効にできる。
// 表示用の件数は毎回計算し、サーバーから受け取った件数は変更しない。
type State struct {
	mu sync.Mutex

	base model.ReactionCounts

	// seedLiked/seedHearted はbaseに自分のリアクションが含まれているかを表す。
	seedLiked   bool
	seedHearted bool

	liked   bool
	hearted bool
}

// NewState はサーバーから受け取った件数と自分のリアクション状態から初期状態を生成する。
func NewState(base model.ReactionCounts, liked, hearted bool) *State {
	return &State{
		base:        base,
		seedLiked:   liked,
		seedHearted: hearted,
		liked:       liked,
		hearted:     hearted,
	}
}

// ToggleLiked はいいねを切り替え、切り替え後の値を返す。
func (s *State) ToggleLiked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liked = !s.liked
	return s.liked
}

// ToggleHearted はハートを切り替え、切り替え後の値を返す。
func (s *State) ToggleHearted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hearted = !s.hearted
	return s.hearted
}

// Liked は現在いいねしているかを返す。
func (s *State) Liked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liked
}

// Hearted は現在ハートしているかを返す。
func (s *State) Hearted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hearted
}

// Base はサーバーから受け取った件数を返す。
func (s *State) Base() model.ReactionCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// DisplayedCount は表示用の件数を返す。
func (s *State) DisplayedCount(kind model.ReactionKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case model.ReactionThumbsUp:
		return DisplayedCount(s.base.ThumbsUp, s.seedLiked, s.liked)
	case model.ReactionHeart:
		return DisplayedCount(s.base.Heart, s.seedHearted, s.hearted)
	default:
		return 0
	}
}

// Reconcile はデータソースから再取得した件数と、データソースが把握している自分のリアクション状態で置き換える。
// ローカルの切り替え状態はそのまま残し、新しいシードとの差分がオーバーレイになる。
func (s *State) Reconcile(counts model.ReactionCounts, liked, hearted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = counts
	s.seedLiked = liked
	s.seedHearted = hearted
}

// DisplayedCount はサーバー件数にローカルの切り替え分を加えた件数を返す純粋関数。
// seedがfalseの場合は active のとき base+1、それ以外は base になる。
// seedがtrue（件数に自分の分が含まれる）の場合は取り消したときのみ base-1 になる。
func DisplayedCount(base int, seed, active bool) int {
	switch {
	case active && !seed:
		return base + 1
	case !active && seed && base > 0:
		return base - 1
	default:
		return base
	}
}
