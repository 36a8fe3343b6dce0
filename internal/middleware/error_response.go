package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/murmur/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// Retryableがtrueの場合、UIは録音をやり直さずに同じ操作を再試行できる。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	Retryable bool   `json:"retryable"`
}

// retryableCodes は外部要因で失敗し、同じ入力のまま再試行してよいエラーコード。
var retryableCodes = map[string]bool{
	model.ErrCodeSubmitFailed:     true,
	model.ErrCodeMediaUnavailable: true,
	model.ErrCodeFeedLoadFailed:   true,
	"RATE_LIMIT_EXCEEDED":         true,
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		Retryable: retryableCodes[apiErr.Code],
	})
}

// WriteInternalServerError は内部サーバーエラーを書き込む。詳細はログにのみ残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
