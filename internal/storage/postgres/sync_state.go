package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"espn_feed/internal/domain"
)

// SyncStateStore tracks progress per source and feed. The watch page is
// tracked as its own feed.
type SyncStateStore struct {
	db *sqlx.DB
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

func (s *SyncStateStore) Get(ctx context.Context, sourceID, feed string) (*domain.SyncState, error) {
	var state domain.SyncState
	query := `
		SELECT id, source_id, feed, last_synced_at, last_article_id, total_synced
		FROM sync_state
		WHERE source_id = $1 AND feed = $2`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, sourceID, feed)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.SyncState{SourceID: sourceID, Feed: feed}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync state %s/%s: %w", sourceID, feed, err)
	}
	return &state, nil
}

func (s *SyncStateStore) Update(ctx context.Context, state *domain.SyncState) error {
	query := `
		INSERT INTO sync_state (source_id, feed, last_synced_at, last_article_id, total_synced)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_id, feed) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			last_article_id = EXCLUDED.last_article_id,
			total_synced = EXCLUDED.total_synced`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		state.SourceID,
		state.Feed,
		state.LastSyncedAt,
		state.LastArticleID,
		state.TotalSynced,
	)
	if err != nil {
		return fmt.Errorf("update sync state %s/%s: %w", state.SourceID, state.Feed, err)
	}
	return nil
}

// List returns every tracked feed, for health reporting.
func (s *SyncStateStore) List(ctx context.Context) ([]domain.SyncState, error) {
	var states []domain.SyncState
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &states, `
		SELECT id, source_id, feed, last_synced_at, last_article_id, total_synced
		FROM sync_state
		ORDER BY source_id, feed`)
	if err != nil {
		return nil, fmt.Errorf("list sync state: %w", err)
	}
	return states, nil
}
