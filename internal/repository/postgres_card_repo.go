package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/murmur/internal/card"
	"github.com/hitoshi/murmur/internal/model"
)

// DefaultFeedLimit はフィードとして読み込むカードの既定件数。
const DefaultFeedLimit = 50

// PostgresCardRepo はPostgreSQLを使用したカードリポジトリ。
// viewerIDが設定されている場合、その閲覧者のリアクション・通報状態も読み込む。
type PostgresCardRepo struct {
	db       *sql.DB
	viewerID string
	limit    int
}

var (
	_ CardRepository  = (*PostgresCardRepo)(nil)
	_ card.FeedSource = (*PostgresCardRepo)(nil)
)

// NewPostgresCardRepo はPostgresCardRepoを生成する。limitが0以下の場合はDefaultFeedLimitを使う。
func NewPostgresCardRepo(db *sql.DB, viewerID string, limit int) *PostgresCardRepo {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return &PostgresCardRepo{db: db, viewerID: viewerID, limit: limit}
}

const selectCardColumns = `
	SELECT c.id, c.author_name, c.author_avatar, c.body, c.location,
	       c.latitude, c.longitude, c.category, c.sentiment,
	       c.image_ref, c.audio_ref, c.thumbs_up, c.heart, c.thumbs_down,
	       c.verified, c.published_at,
	       COALESCE(v.liked, FALSE), COALESCE(v.hearted, FALSE), COALESCE(v.flagged, FALSE)
	FROM cards c
	LEFT JOIN card_viewer_states v ON v.card_id = c.id AND v.viewer_id = $1`

// LoadCards はフィード用に最新のカードを読み込む。card.FeedSourceを実装する。
func (r *PostgresCardRepo) LoadCards(ctx context.Context) ([]model.CardSeed, error) {
	return r.ListRecent(ctx, r.limit)
}

// ListRecent は公開日時の新しい順にカードを最大limit件返す。
func (r *PostgresCardRepo) ListRecent(ctx context.Context, limit int) ([]model.CardSeed, error) {
	rows, err := r.db.QueryContext(ctx,
		selectCardColumns+`
	ORDER BY c.published_at DESC, c.id
	LIMIT $2`,
		r.viewerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("カード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	seeds := make([]model.CardSeed, 0, limit)
	for rows.Next() {
		seed, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, *seed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カード一覧の読み取りに失敗しました: %w", err)
	}
	return seeds, nil
}

// FindByID は指定IDのカードを取得する。見つからない場合はnilを返す。
func (r *PostgresCardRepo) FindByID(ctx context.Context, id string) (*model.CardSeed, error) {
	row := r.db.QueryRowContext(ctx, selectCardColumns+`
	WHERE c.id = $2`,
		r.viewerID, id,
	)
	seed, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return seed, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*model.CardSeed, error) {
	var (
		seed                       model.CardSeed
		avatar, location, category sql.NullString
		imageRef, audioRef         sql.NullString
		latitude, longitude        sql.NullFloat64
		sentiment                  string
		publishedAt                time.Time
	)

	err := row.Scan(
		&seed.ID, &seed.Author.Name, &avatar, &seed.Text, &location,
		&latitude, &longitude, &category, &sentiment,
		&imageRef, &audioRef, &seed.Counts.ThumbsUp, &seed.Counts.Heart, &seed.Counts.ThumbsDown,
		&seed.Verified, &publishedAt,
		&seed.Liked, &seed.Hearted, &seed.Flagged,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("カードの読み取りに失敗しました: %w", err)
	}

	seed.Author.Avatar = nullStringValue(avatar)
	seed.Location = nullStringValue(location)
	seed.Category = model.Category(nullStringValue(category))
	seed.Sentiment = model.ParseSentiment(sentiment)
	seed.ImageRef = nullStringValue(imageRef)
	seed.AudioRef = nullStringValue(audioRef)
	if latitude.Valid && longitude.Valid {
		seed.Coordinates = &model.Coordinates{Latitude: latitude.Float64, Longitude: longitude.Float64}
	}
	published := publishedAt.UTC()
	seed.PublishedAt = &published

	return &seed, nil
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
