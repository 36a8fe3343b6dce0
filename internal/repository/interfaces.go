// Package repository はカードデータの読み込みインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/murmur/internal/model"
)

// CardRepository はフィードに表示するカードの読み取りインターフェース。
// エンジンはサーバー側のデータを変更しないため、書き込み操作は持たない。
type CardRepository interface {
	// ListRecent は公開日時の新しい順にカードを最大limit件返す。
	ListRecent(ctx context.Context, limit int) ([]model.CardSeed, error)

	// FindByID は指定IDのカードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.CardSeed, error)
}
