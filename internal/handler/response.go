// Package handler はエンジンへの操作をHTTPで受け付けるハンドラーを提供する。
// UIは状態を持たず、操作結果として返されるスナップショットを描画する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/murmur/internal/middleware"
	"github.com/hitoshi/murmur/internal/model"
)

// maxRequestBodySize はリクエストボディの最大サイズ（64KB）。
const maxRequestBodySize = 64 << 10

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSONBody はリクエストボディをJSONとしてデコードする。
// ボディが空の場合はvを変更せずにnilを返す。
func decodeJSONBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeBadRequest はリクエスト形式が不正な場合の400レスポンスを書き込む。
func writeBadRequest(w http.ResponseWriter, err error) {
	slog.Warn("invalid request body", slog.String("error", err.Error()))
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストの形式が正しくありません。",
		Category: "validation",
		Action:   "入力内容を確認してください。",
	})
}

// handleServiceError はエンジンから返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodePreconditionViolation:
		return http.StatusConflict
	case model.ErrCodeEmptySession, model.ErrCodeEmptyTranscript, model.ErrCodeInvalidCategory:
		return http.StatusUnprocessableEntity
	case model.ErrCodeMediaUnavailable:
		return http.StatusFailedDependency
	case model.ErrCodeSubmitFailed, model.ErrCodeFeedLoadFailed:
		return http.StatusBadGateway
	case model.ErrCodeCardNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
