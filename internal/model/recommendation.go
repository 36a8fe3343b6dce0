// Package model はドメインモデルを定義する。
package model

import "time"

// Category はおすすめのカテゴリを表す。
type Category string

const (
	CategoryFood          Category = "food"
	CategoryTravel        Category = "travel"
	CategoryShopping      Category = "shopping"
	CategoryEntertainment Category = "entertainment"
	CategoryServices      Category = "services"
	CategoryOther         Category = "other"
)

// Categories は選択可能なカテゴリの一覧（表示順）。
var Categories = []Category{
	CategoryFood,
	CategoryTravel,
	CategoryShopping,
	CategoryEntertainment,
	CategoryServices,
	CategoryOther,
}

// IsValid はカテゴリが定義済みの値かを判定する。
func (c Category) IsValid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Sentiment はおすすめの感情分類を表す。カードのバッジ表示に使われる。
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// ParseSentiment は文字列をSentimentに変換する。未知の値はNeutralとして扱う。
func ParseSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNegative:
		return Sentiment(s)
	default:
		return SentimentNeutral
	}
}

// Coordinates は位置情報の緯度経度を表す。
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RecommendationID は投稿先が採番したおすすめのID。
type RecommendationID string

// Metadata は公開時に録音へ付与するメタデータ。
// すべて任意項目で、カテゴリは空文字列を「未設定」として扱う。
type Metadata struct {
	Location    string       `json:"location,omitempty"`
	Category    Category     `json:"category,omitempty"`
	ImageRef    string       `json:"image_ref,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// RecommendationDraft は検証済みで投稿可能なおすすめ。
// capture.Validator.Accept のみが生成し、生成後は変更しない。
type RecommendationDraft struct {
	ID              string       `json:"id"`
	Text            string       `json:"text"`
	Location        string       `json:"location,omitempty"`
	Category        Category     `json:"category,omitempty"`
	ImageRef        string       `json:"image_ref,omitempty"`
	AudioRef        string       `json:"audio_ref,omitempty"`
	Coordinates     *Coordinates `json:"coordinates,omitempty"`
	DurationSeconds int          `json:"duration_seconds"`
	CreatedAt       time.Time    `json:"created_at"`
}

// ReactionKind はリアクションの種別を表す。
type ReactionKind string

const (
	ReactionThumbsUp ReactionKind = "thumbs_up"
	ReactionHeart    ReactionKind = "heart"
)

// ReactionCounts はサーバーから受け取ったリアクション数のスナップショット。
// ThumbsDown は表示のみで、ローカル操作の対象ではない。
type ReactionCounts struct {
	ThumbsUp   int `json:"thumbs_up"`
	Heart      int `json:"heart"`
	ThumbsDown int `json:"thumbs_down"`
}

// Author はおすすめの投稿者を表す。
type Author struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// CardSeed はフィードデータソースから取得したカードの初期値。
// エンジンはこの値を変更せず、ローカルのオーバーレイのみを更新する。
type CardSeed struct {
	ID          string
	Author      Author
	Text        string
	Location    string
	Coordinates *Coordinates
	Category    Category
	Sentiment   Sentiment
	ImageRef    string
	AudioRef    string
	Counts      ReactionCounts
	Verified    bool
	Liked       bool
	Hearted     bool
	Flagged     bool
	PublishedAt *time.Time
}
