// Package submission は検証済みのおすすめを投稿先APIへ送信するクライアントを提供する。
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/murmur/internal/capture"
	"github.com/hitoshi/murmur/internal/model"
)

// maxResponseSize は投稿APIのレスポンスとして読み込む最大バイト数。
const maxResponseSize = 64 * 1024

// Client は投稿APIのクライアント。
// 送信はレートリミッターで間隔を空けるが、失敗時の再送は行わない。
// 再送の判断は利用者に委ね、同じドラフトIDをIdempotency-Keyとして送る。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	limiter    *rate.Limiter
}

var _ capture.Submitter = (*Client)(nil)

// NewClient はClientを生成する。perMinuteが0以下の場合は送信間隔を制限しない。
func NewClient(httpClient *http.Client, endpoint string, perMinute int, logger *slog.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		limiter:    limiter,
	}
}

// submitResponse は投稿APIの成功レスポンス。
type submitResponse struct {
	ID string `json:"id"`
}

// Submit はドラフトをJSONで送信し、投稿先が採番したIDを返す。
func (c *Client) Submit(ctx context.Context, draft model.RecommendationDraft) (model.RecommendationID, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("送信待機中に中断されました: %w", err)
	}

	body, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("ドラフトのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Murmur/1.0")
	if draft.ID != "" {
		req.Header.Set("Idempotency-Key", draft.ID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("投稿APIの呼び出しに失敗しました",
			slog.String("draft_id", draft.ID),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("投稿APIがエラーステータスを返しました",
			slog.String("draft_id", draft.ID),
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("投稿APIがステータス %d を返しました", resp.StatusCode)
	}

	var result submitResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("投稿APIのレスポンスにIDが含まれていません")
	}

	c.logger.Info("おすすめを投稿しました",
		slog.String("draft_id", draft.ID),
		slog.String("recommendation_id", result.ID),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return model.RecommendationID(result.ID), nil
}
