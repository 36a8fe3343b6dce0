// Package feedsource はRSS/Atomフィードからカードの初期値を読み込むデータソースを提供する。
package feedsource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/murmur/internal/card"
	"github.com/hitoshi/murmur/internal/model"
)

// extensionPrefix はおすすめ固有の情報を格納するフィード拡張の名前空間プレフィックス。
//
//	<rss xmlns:murmur="https://murmur.example/ns/1.0"> ...
//	  <murmur:thumbsUp>12</murmur:thumbsUp>
const extensionPrefix = "murmur"

// URLGuard はSSRF検証のインターフェース。
type URLGuard interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// TextSanitizer はフィード本文からマークアップを除去するインターフェース。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// RSSSource はRSS/Atomフィードを取得してカードの初期値に変換する。
type RSSSource struct {
	feedURL     string
	guard       URLGuard
	sanitizer   TextSanitizer
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

var _ card.FeedSource = (*RSSSource)(nil)

// NewRSSSource はRSSSourceを生成する。
func NewRSSSource(
	feedURL string,
	guard URLGuard,
	sanitizer TextSanitizer,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *RSSSource {
	return &RSSSource{
		feedURL:     feedURL,
		guard:       guard,
		sanitizer:   sanitizer,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// LoadCards はフィードを取得し、記事ごとにカードの初期値を返す。
func (s *RSSSource) LoadCards(ctx context.Context) ([]model.CardSeed, error) {
	start := time.Now()

	if err := s.guard.ValidateURL(s.feedURL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Murmur/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := s.guard.NewSafeClient(s.timeout).Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("フィードがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	seeds := make([]model.CardSeed, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		seed := s.convertItem(item)
		if seed.ID == "" {
			continue
		}
		seeds = append(seeds, seed)
	}

	s.logger.Info("フィードを取得しました",
		slog.String("feed_url", s.feedURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("items_total", len(parsed.Items)),
		slog.Int("cards", len(seeds)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return seeds, nil
}

// convertItem はgofeedの記事をカードの初期値に変換する。
func (s *RSSSource) convertItem(item *gofeed.Item) model.CardSeed {
	seed := model.CardSeed{
		ID:       item.GUID,
		Location: extensionValue(item, "location"),
		Category: mapCategory(item.Categories),
		AudioRef: audioEnclosure(item),
		Counts: model.ReactionCounts{
			ThumbsUp:   extensionInt(item, "thumbsUp"),
			Heart:      extensionInt(item, "heart"),
			ThumbsDown: extensionInt(item, "thumbsDown"),
		},
		Sentiment: model.ParseSentiment(extensionValue(item, "sentiment")),
		Verified:  extensionBool(item, "verified"),
		Liked:     extensionBool(item, "liked"),
		Hearted:   extensionBool(item, "hearted"),
		Flagged:   extensionBool(item, "flagged"),
	}
	if seed.ID == "" {
		seed.ID = item.Link
	}

	// 本文: description → content → title の順に採用する
	raw := item.Description
	if strings.TrimSpace(raw) == "" {
		raw = item.Content
	}
	if strings.TrimSpace(raw) == "" {
		raw = item.Title
	}
	seed.Text = strings.TrimSpace(s.sanitizer.SanitizeText(raw))

	if item.Author != nil {
		seed.Author.Name = item.Author.Name
	}
	if seed.Author.Name == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
		seed.Author.Name = item.Authors[0].Name
	}
	seed.Author.Avatar = extensionValue(item, "avatar")

	switch {
	case item.Image != nil && item.Image.URL != "":
		seed.ImageRef = item.Image.URL
	default:
		seed.ImageRef = firstImageSrc(item.Description)
		if seed.ImageRef == "" {
			seed.ImageRef = firstImageSrc(item.Content)
		}
	}

	lat, latErr := strconv.ParseFloat(extensionValue(item, "latitude"), 64)
	lng, lngErr := strconv.ParseFloat(extensionValue(item, "longitude"), 64)
	if latErr == nil && lngErr == nil {
		seed.Coordinates = &model.Coordinates{Latitude: lat, Longitude: lng}
	}

	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		seed.PublishedAt = &t
	} else if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		seed.PublishedAt = &t
	}

	return seed
}

// audioEnclosure は音声のエンクロージャーのURLを返す。
// Content-Typeのないエンクロージャーは音声とみなす。
func audioEnclosure(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if enc.Type == "" || strings.HasPrefix(enc.Type, "audio/") {
			return enc.URL
		}
	}
	return ""
}

// mapCategory はフィードのカテゴリをおすすめのカテゴリに対応付ける。
// 最初に一致したものを採用し、いずれにも一致しない場合はotherとする。
func mapCategory(categories []string) model.Category {
	if len(categories) == 0 {
		return ""
	}
	for _, c := range categories {
		cat := model.Category(strings.ToLower(strings.TrimSpace(c)))
		if cat.IsValid() {
			return cat
		}
	}
	return model.CategoryOther
}

func extensionValue(item *gofeed.Item, name string) string {
	exts, ok := item.Extensions[extensionPrefix]
	if !ok {
		return ""
	}
	values := exts[name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}

func extensionInt(item *gofeed.Item, name string) int {
	n, err := strconv.Atoi(extensionValue(item, name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func extensionBool(item *gofeed.Item, name string) bool {
	b, _ := strconv.ParseBool(extensionValue(item, name))
	return b
}
