// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: state, validation, media, submission, system
	Action   string // ユーザー向け対処方法
	Err      error  // 元になったエラー（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は元になったエラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is はエラーコードが一致する場合にtrueを返す。
// errors.Is(err, model.ErrEmptyTranscript) のような比較を可能にする。
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 定義済みエラーコード
const (
	ErrCodePreconditionViolation = "PRECONDITION_VIOLATION"
	ErrCodeEmptySession          = "EMPTY_SESSION"
	ErrCodeEmptyTranscript       = "EMPTY_TRANSCRIPT"
	ErrCodeInvalidCategory       = "INVALID_CATEGORY"
	ErrCodeMediaUnavailable      = "MEDIA_UNAVAILABLE"
	ErrCodeSubmitFailed          = "SUBMIT_FAILED"
	ErrCodeCardNotFound          = "CARD_NOT_FOUND"
	ErrCodeFeedLoadFailed        = "FEED_LOAD_FAILED"
)

// エラー種別の比較用センチネル。errors.Isでコードのみが比較される。
var (
	ErrPreconditionViolation = &APIError{Code: ErrCodePreconditionViolation}
	ErrEmptySession          = &APIError{Code: ErrCodeEmptySession}
	ErrEmptyTranscript       = &APIError{Code: ErrCodeEmptyTranscript}
	ErrInvalidCategory       = &APIError{Code: ErrCodeInvalidCategory}
	ErrMediaUnavailable      = &APIError{Code: ErrCodeMediaUnavailable}
	ErrSubmitFailed          = &APIError{Code: ErrCodeSubmitFailed}
	ErrCardNotFound          = &APIError{Code: ErrCodeCardNotFound}
	ErrFeedLoadFailed        = &APIError{Code: ErrCodeFeedLoadFailed}
)

// IsValidationError はエラーが公開前バリデーションエラーかを判定する。
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptySession) ||
		errors.Is(err, ErrEmptyTranscript) ||
		errors.Is(err, ErrInvalidCategory)
}

// NewPreconditionViolationError は許可されていない状態遷移のエラーを生成する。
// 状態は変更されない。
func NewPreconditionViolationError(operation, state string) *APIError {
	return &APIError{
		Code:     ErrCodePreconditionViolation,
		Message:  fmt.Sprintf("現在の状態（%s）では %s を実行できません。", state, operation),
		Category: "state",
		Action:   "画面の状態を確認してから操作してください。",
	}
}

// NewEmptySessionError は停止済みでないセッションを公開しようとした場合のエラーを生成する。
func NewEmptySessionError(state string) *APIError {
	return &APIError{
		Code:     ErrCodeEmptySession,
		Message:  fmt.Sprintf("録音が完了していません（状態: %s）。", state),
		Category: "validation",
		Action:   "録音を停止してから公開してください。",
	}
}

// NewEmptyTranscriptError は文字起こしが空の場合のエラーを生成する。
func NewEmptyTranscriptError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyTranscript,
		Message:  "おすすめの本文が空です。",
		Category: "validation",
		Action:   "録音し直すか、本文を入力してください。",
	}
}

// NewInvalidCategoryError は未定義のカテゴリが指定された場合のエラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   "カテゴリには food、travel、shopping、entertainment、services、other のいずれかを指定してください。",
	}
}

// NewMediaUnavailableError は音声の参照を解決できなかった場合のエラーを生成する。
func NewMediaUnavailableError(audioRef string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeMediaUnavailable,
		Message:  fmt.Sprintf("音声を再生できません: %s", audioRef),
		Category: "media",
		Action:   "しばらく待ってから再生をやり直してください。",
		Err:      err,
	}
}

// NewSubmitFailedError は投稿の送信に失敗した場合のエラーを生成する。
// セッションは停止状態のまま保持されるため、再録音せずに再送できる。
func NewSubmitFailedError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeSubmitFailed,
		Message:  "おすすめの投稿に失敗しました。",
		Category: "submission",
		Action:   "通信環境を確認して、もう一度公開してください。",
		Err:      err,
	}
}

// NewCardNotFoundError はフィード上に存在しないカードが指定された場合のエラーを生成する。
func NewCardNotFoundError(cardID string) *APIError {
	return &APIError{
		Code:     ErrCodeCardNotFound,
		Message:  fmt.Sprintf("指定されたおすすめが見つかりません: %s", cardID),
		Category: "feed",
		Action:   "フィードを再読み込みしてください。",
	}
}

// NewFeedLoadFailedError はフィードデータソースからの読み込みに失敗した場合のエラーを生成する。
// 表示中のカードはそのまま残る。
func NewFeedLoadFailedError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeFeedLoadFailed,
		Message:  "フィードを読み込めませんでした。",
		Category: "feed",
		Action:   "しばらく待ってから再読み込みしてください。",
		Err:      err,
	}
}
