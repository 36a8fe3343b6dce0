package capture

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/murmur/internal/model"
)

// TextSanitizer は文字起こしテキストからマークアップを取り除くインターフェース。
// security.TranscriptSanitizer が実装する。
type TextSanitizer interface {
	SanitizeText(text string) string
}

// Validator は録音セッションを公開してよいかを判定し、投稿用のドラフトを組み立てる。
// ネットワークや永続化の副作用は持たない。
type Validator struct {
	sanitizer TextSanitizer
	now       func() time.Time
	newID     func() string
}

// NewValidator はValidatorを生成する。sanitizerがnilの場合はテキストをそのまま使う。
func NewValidator(sanitizer TextSanitizer) *Validator {
	return &Validator{
		sanitizer: sanitizer,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// Accept はセッションとメタデータを検証してドラフトを返す。
// 以下の順に検証し、最初に失敗したルールのエラーを返す:
//  1. セッションがStopped状態であること（EMPTY_SESSION）
//  2. 前後の空白を除いた本文が空でないこと（EMPTY_TRANSCRIPT）
//  3. カテゴリが指定されている場合は定義済みの値であること（INVALID_CATEGORY）
//
// 位置情報の有無やカテゴリの有無は本文の検証結果に影響しない。
func (v *Validator) Accept(session *Session, meta model.Metadata) (model.RecommendationDraft, error) {
	snap := session.Snapshot()

	if snap.State != StateStopped {
		return model.RecommendationDraft{}, model.NewEmptySessionError(string(snap.State))
	}

	text := snap.Transcript
	if v.sanitizer != nil {
		text = v.sanitizer.SanitizeText(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.RecommendationDraft{}, model.NewEmptyTranscriptError()
	}

	if meta.Category != "" && !meta.Category.IsValid() {
		return model.RecommendationDraft{}, model.NewInvalidCategoryError(string(meta.Category))
	}

	draft := model.RecommendationDraft{
		ID:              v.newID(),
		Text:            text,
		Location:        strings.TrimSpace(meta.Location),
		Category:        meta.Category,
		ImageRef:        meta.ImageRef,
		AudioRef:        snap.AudioRef,
		DurationSeconds: snap.Elapsed,
		CreatedAt:       v.now(),
	}
	if meta.Coordinates != nil {
		c := *meta.Coordinates
		draft.Coordinates = &c
	}

	return draft, nil
}
