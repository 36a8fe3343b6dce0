package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// contextKey はコンテキストキーの型。
type contextKey string

const clientIDContextKey contextKey = "client_id"

// ClientIDHeader はUIが自身を識別するために送るヘッダー名。
const ClientIDHeader = "X-Client-ID"

// maxClientIDLength は受け付けるクライアントIDの最大長。
const maxClientIDLength = 64

// NewClientIDMiddleware はリクエスト元のクライアントIDをコンテキストに格納するミドルウェアを返す。
// X-Client-IDヘッダーがない、または不正な場合は接続元のIPアドレスを使う。
// 認証ではなく、ログとレート制限のキーとしてのみ使用する。
func NewClientIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(ClientIDHeader))
			if !validClientID(id) {
				id = remoteHost(r.RemoteAddr)
			}
			ctx := context.WithValue(r.Context(), clientIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIDFromContext はコンテキストからクライアントIDを取得する。
// 未設定の場合は空文字列を返す。
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDContextKey).(string)
	return id
}

// validClientID はクライアントIDが英数字・ハイフン・アンダースコアのみで構成されているかを検証する。
func validClientID(id string) bool {
	if id == "" || len(id) > maxClientIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
