// Package media は音声参照を再生可能なURLに解決するメディアストレージのアダプターを提供する。
package media

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/murmur/internal/playback"
)

// URLGuard はSSRF検証のインターフェース。
type URLGuard interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// HTTPResolver は音声参照をメディアストレージ上のURLに解決し、HEADリクエストで
// 再生可能かを確認する。
// 相対参照はbaseURLを基準に解決し、絶対URLはそのまま検証する。
type HTTPResolver struct {
	baseURL *url.URL
	guard   URLGuard
	logger  *slog.Logger
	timeout time.Duration
	maxSize int64
}

var _ playback.MediaResolver = (*HTTPResolver)(nil)

// NewHTTPResolver はHTTPResolverを生成する。baseURLが空の場合は絶対URLの参照のみ解決できる。
// maxSizeが0以下の場合はサイズを検証しない。
func NewHTTPResolver(baseURL string, guard URLGuard, logger *slog.Logger, timeout time.Duration, maxSize int64) (*HTTPResolver, error) {
	r := &HTTPResolver{
		guard:   guard,
		logger:  logger,
		timeout: timeout,
		maxSize: maxSize,
	}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("メディアのベースURLが不正です: %w", err)
		}
		r.baseURL = u
	}
	return r, nil
}

// Resolve は音声参照を再生可能なMediaに解決する。
// 参照先が存在しない、音声でない、サイズ上限を超える場合はエラーを返す。
func (r *HTTPResolver) Resolve(ctx context.Context, audioRef string) (playback.Media, error) {
	target, err := r.resolveURL(audioRef)
	if err != nil {
		return playback.Media{}, err
	}

	if err := r.guard.ValidateURL(target); err != nil {
		return playback.Media{}, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return playback.Media{}, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Murmur/1.0")
	req.Header.Set("Accept", "audio/*")

	start := time.Now()
	resp, err := r.guard.NewSafeClient(r.timeout).Do(req)
	if err != nil {
		return playback.Media{}, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return playback.Media{}, fmt.Errorf("メディアストレージがステータス %d を返しました", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isAudioContentType(contentType) {
		return playback.Media{}, fmt.Errorf("音声ではないContent-Typeです: %q", contentType)
	}

	if r.maxSize > 0 && resp.ContentLength > r.maxSize {
		return playback.Media{}, fmt.Errorf("音声ファイルが大きすぎます: %d > %d", resp.ContentLength, r.maxSize)
	}

	r.logger.Debug("音声参照を解決しました",
		slog.String("audio_ref", audioRef),
		slog.String("url", target),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	media := playback.Media{URL: target, ContentType: contentType}
	if resp.ContentLength > 0 {
		media.Size = resp.ContentLength
	}
	return media, nil
}

// resolveURL は音声参照を絶対URLに変換する。
func (r *HTTPResolver) resolveURL(audioRef string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(audioRef))
	if err != nil {
		return "", fmt.Errorf("音声参照が不正です: %w", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if r.baseURL == nil {
		return "", fmt.Errorf("相対参照を解決するベースURLがありません: %s", audioRef)
	}
	return r.baseURL.ResolveReference(ref).String(), nil
}

// isAudioContentType はContent-Typeが音声として再生可能かを判定する。
func isAudioContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "audio/"):
		return true
	case mediaType == "application/ogg", mediaType == "video/mp4", mediaType == "video/webm":
		// コンテナ形式で配信される録音
		return true
	default:
		return false
	}
}
