package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/murmur/internal/capture"
	"github.com/hitoshi/murmur/internal/model"
)

// CaptureServiceInterface は録音ハンドラーが必要とするサービスインターフェース。
type CaptureServiceInterface interface {
	Start() (capture.Snapshot, error)
	Pause() (capture.Snapshot, error)
	Resume() (capture.Snapshot, error)
	Stop() (capture.Snapshot, error)
	Discard() (capture.Snapshot, error)
	AppendTranscript(fragment string) capture.Snapshot
	SetTranscript(text string) capture.Snapshot
	AttachAudio(ref string) (capture.Snapshot, error)
	Status() capture.Snapshot
	// Publish は検証後に投稿先へ送信する。送信失敗時はセッションを保持する。
	Publish(ctx context.Context, meta model.Metadata) (*capture.PublishResult, error)
}

// CaptureHandler は録音画面のHTTPハンドラー。
type CaptureHandler struct {
	service CaptureServiceInterface
}

// NewCaptureHandler はCaptureHandlerを生成する。
func NewCaptureHandler(service CaptureServiceInterface) *CaptureHandler {
	return &CaptureHandler{service: service}
}

// --- リクエスト型 ---

// transcriptRequest は文字起こし更新リクエストのボディ。
type transcriptRequest struct {
	Text string `json:"text"`
}

// audioRequest は録音した音声の参照を登録するリクエストのボディ。
type audioRequest struct {
	AudioRef string `json:"audio_ref"`
}

// publishRequest は公開リクエストのボディ。すべて任意項目。
type publishRequest struct {
	Location    string             `json:"location"`
	Category    string             `json:"category"`
	ImageRef    string             `json:"image_ref"`
	Coordinates *model.Coordinates `json:"coordinates"`
}

// categoriesResponse は選択可能なカテゴリ一覧のレスポンス。
type categoriesResponse struct {
	Categories []model.Category `json:"categories"`
}

// Status は現在の録音状態を返す。
// GET /api/capture
func (h *CaptureHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Status())
}

// Start は録音を開始する。
// POST /api/capture/start
func (h *CaptureHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, h.service.Start)
}

// Pause は録音を一時停止する。
// POST /api/capture/pause
func (h *CaptureHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, h.service.Pause)
}

// Resume は一時停止中の録音を再開する。
// POST /api/capture/resume
func (h *CaptureHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, h.service.Resume)
}

// Stop は録音を停止する。
// POST /api/capture/stop
func (h *CaptureHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.transition(w, h.service.Stop)
}

// Discard は停止済みの録音を破棄する。
// POST /api/capture/discard
func (h *CaptureHandler) Discard(w http.ResponseWriter, r *http.Request) {
	h.transition(w, h.service.Discard)
}

// AppendTranscript は文字起こしの断片を追記する。
// POST /api/capture/transcript
func (h *CaptureHandler) AppendTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.AppendTranscript(req.Text))
}

// SetTranscript は文字起こし全体を置き換える。利用者による手動編集に使う。
// PUT /api/capture/transcript
func (h *CaptureHandler) SetTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.SetTranscript(req.Text))
}

// AttachAudio は録音した音声の参照を登録する。
// PUT /api/capture/audio
func (h *CaptureHandler) AttachAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	snap, err := h.service.AttachAudio(req.AudioRef)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Publish は停止済みの録音をおすすめとして公開する。
// POST /api/capture/publish
func (h *CaptureHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	result, err := h.service.Publish(r.Context(), model.Metadata{
		Location:    req.Location,
		Category:    model.Category(req.Category),
		ImageRef:    req.ImageRef,
		Coordinates: req.Coordinates,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Categories は選択可能なカテゴリの一覧を返す。
// GET /api/capture/categories
func (h *CaptureHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, categoriesResponse{Categories: model.Categories})
}

func (h *CaptureHandler) transition(w http.ResponseWriter, fn func() (capture.Snapshot, error)) {
	snap, err := fn()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
