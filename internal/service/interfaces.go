package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"espn_feed/internal/domain"
)

type ArticleStore interface {
	Upsert(ctx context.Context, article *domain.Article) (bool, error)
	GetLastModified(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]time.Time, error)
}

type VideoStore interface {
	DeleteAll(ctx context.Context) error
	InsertCategory(ctx context.Context, category *domain.VideoCategory, position int) (int64, error)
	InsertItems(ctx context.Context, categoryID int64, items []domain.VideoItem) ([]int64, error)
}

type TagStore interface {
	UpsertBatch(ctx context.Context, labels []string) ([]int64, error)
	LinkToItem(ctx context.Context, itemID int64, tagIDs []int64) error
}

type SyncStateStore interface {
	Get(ctx context.Context, sourceID, feed string) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

type Source interface {
	ID() string
	Name() string
	FetchArticles(ctx context.Context, limit int) ([]domain.Article, error)
	FetchVideoCategories(ctx context.Context) ([]domain.VideoCategory, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	PublishArticle(ctx context.Context, article *domain.Article, isNew bool) error
	PublishCategories(ctx context.Context, categories []domain.VideoCategory) error
	Close() error
}
