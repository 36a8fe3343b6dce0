package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/murmur/internal/card"
	"github.com/hitoshi/murmur/internal/reaction"
)

// CardFeedInterface はカードハンドラーが必要とするフィードのインターフェース。
type CardFeedInterface interface {
	Load(ctx context.Context) error
	Views() []card.View
	Card(id string) (*card.Card, error)
}

// CardHandler はフィード上のカード操作のHTTPハンドラー。
type CardHandler struct {
	feed CardFeedInterface
}

// NewCardHandler はCardHandlerを生成する。
func NewCardHandler(feed CardFeedInterface) *CardHandler {
	return &CardHandler{feed: feed}
}

// --- リクエスト・レスポンス型 ---

// cardListResponse はカード一覧のレスポンス。
type cardListResponse struct {
	Cards []card.View `json:"cards"`
}

// dismissFlagRequest は通報ダイアログを閉じるリクエストのボディ。
// outcomeを省略した場合は結果なしの閉じ方として扱う。
type dismissFlagRequest struct {
	Outcome string `json:"outcome"`
}

// expandRequest は本文の展開状態を設定するリクエストのボディ。
type expandRequest struct {
	Expanded bool `json:"expanded"`
}

// ListCards はフィードのカード一覧を返す。
// GET /api/cards
func (h *CardHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cardListResponse{Cards: h.feed.Views()})
}

// Reload はフィードデータソースから再読み込みし、カード一覧を返す。
// ローカルのリアクションや通報状態は維持される。
// POST /api/cards/reload
func (h *CardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.feed.Load(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cardListResponse{Cards: h.feed.Views()})
}

// GetCard はカード1件を返す。
// GET /api/cards/{id}
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	h.withCard(w, r, func(c *card.Card) (card.View, error) {
		return c.View(), nil
	})
}

// Play はカードの音声を再生する。再生中の他のカードは停止される。
// POST /api/cards/{id}/play
func (h *CardHandler) Play(w http.ResponseWriter, r *http.Request) {
	h.withCard(w, r, func(c *card.Card) (card.View, error) {
		return c.Play(r.Context())
	})
}

// Stop はカードの再生を停止する。
// POST /api/cards/{id}/stop
func (h *CardHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.withCard(w, r, func(c *card.Card) (card.View, error) {
		return c.Stop(), nil
	})
}

// ToggleLike はいいねを切り替える。
// POST /api/cards/{id}/like
func (h *CardHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	h.withCard(w, r, func(c *card.Card) (card.View, error) {
		return c.ToggleLike(), nil
	})
}

// ToggleHeart はハートを切り替える。
// POST /api/cards/{id}/heart
func (h *CardHandler) ToggleHeart(w http.ResponseWriter, r *http.Request) {
	h.withCard(w, r, func(c *card.Card) (card.View, error) {
		return c.ToggleHeart(), nil
	})
}

// OpenFlag は通報ダイアログを開く。
// POST /api/cards/{id}/flag
func (h *CardHandler) OpenFlag(w http.ResponseWriter, r *http.Request) {
	h.withCard(w, r, func(c *card.Card) (card.View, error) {
		return c.OpenFlag()
	})
}

// DismissFlag は通報ダイアログを閉じる。
// POST /api/cards/{id}/flag/dismiss
func (h *CardHandler) DismissFlag(w http.ResponseWriter, r *http.Request) {
	var req dismissFlagRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	h.withCard(w, r, func(c *card.Card) (card.View, error) {
		return c.DismissFlag(reaction.ParseOutcome(req.Outcome))
	})
}

// SetExpanded は本文の展開・折りたたみを切り替える。
// PUT /api/cards/{id}/expanded
func (h *CardHandler) SetExpanded(w http.ResponseWriter, r *http.Request) {
	var req expandRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	h.withCard(w, r, func(c *card.Card) (card.View, error) {
		return c.SetExpanded(req.Expanded), nil
	})
}

// ImageError は画像の読み込み失敗を記録する。
// POST /api/cards/{id}/image-error
func (h *CardHandler) ImageError(w http.ResponseWriter, r *http.Request) {
	h.withCard(w, r, func(c *card.Card) (card.View, error) {
		return c.MarkImageUnavailable(), nil
	})
}

// withCard はURLのカードIDでカードを取得し、fnの結果をレスポンスとして書き込む。
func (h *CardHandler) withCard(w http.ResponseWriter, r *http.Request, fn func(c *card.Card) (card.View, error)) {
	c, err := h.feed.Card(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	view, err := fn(c)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
