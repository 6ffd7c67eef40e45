package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"espn_feed/internal/domain"
)

// VideoStore persists the watch page snapshot. A sync replaces the whole
// snapshot, so categories and items carry their page position instead of an
// upstream key.
type VideoStore struct {
	db *sqlx.DB
}

func NewVideoStore(db *sqlx.DB) *VideoStore {
	return &VideoStore{db: db}
}

// DeleteAll removes the current snapshot. Items and their tag links cascade.
func (s *VideoStore) DeleteAll(ctx context.Context) error {
	if _, err := GetExecutor(ctx, s.db).ExecContext(ctx, "DELETE FROM video_categories"); err != nil {
		return fmt.Errorf("delete categories: %w", err)
	}
	return nil
}

func (s *VideoStore) InsertCategory(ctx context.Context, category *domain.VideoCategory, position int) (int64, error) {
	query := `
		INSERT INTO video_categories (name, description, is_live, priority, tags, show_title, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	tags := category.Tags
	if tags == nil {
		tags = []string{}
	}

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		category.Name,
		category.Description,
		category.IsLive,
		category.Priority,
		pq.Array(tags),
		category.ShowTitle,
		position,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert category %q: %w", category.Name, err)
	}
	return id, nil
}

// InsertItems stores items in order and returns their ids.
func (s *VideoStore) InsertItems(ctx context.Context, categoryID int64, items []domain.VideoItem) ([]int64, error) {
	query := `
		INSERT INTO video_items (
			category_id, position, title, description, thumbnail_url, video_url, duration_ms,
			published_at, sport, league, is_live, autoplay, show_metadata, size, content_type,
			network, is_re_air, event_name, aspect_ratio, auth_types, streaming_url, content_id,
			is_event, app_link_url
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24
		)
		RETURNING id`

	exec := GetExecutor(ctx, s.db)
	ids := make([]int64, 0, len(items))

	for i := range items {
		item := &items[i]

		var durationMS *int64
		if item.Duration != nil {
			ms := item.Duration.Milliseconds()
			durationMS = &ms
		}
		authTypes := item.AuthTypes
		if authTypes == nil {
			authTypes = []string{}
		}

		var id int64
		err := exec.QueryRowxContext(ctx, query,
			categoryID,
			i,
			item.Title,
			item.Description,
			item.ThumbnailURL,
			item.VideoURL,
			durationMS,
			item.PublishedAt,
			item.Sport,
			item.League,
			item.IsLive,
			item.Autoplay,
			item.ShowMetadata,
			item.Size,
			item.ContentType,
			item.Network,
			item.IsReAir,
			item.EventName,
			item.AspectRatio,
			pq.Array(authTypes),
			item.StreamingURL,
			item.ContentID,
			item.IsEvent,
			item.AppLinkURL,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert item %q: %w", item.Title, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

type categoryRow struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	IsLive      bool           `db:"is_live"`
	Priority    int            `db:"priority"`
	Tags        pq.StringArray `db:"tags"`
	ShowTitle   bool           `db:"show_title"`
}

type itemRow struct {
	ID           int64          `db:"id"`
	CategoryID   int64          `db:"category_id"`
	Title        string         `db:"title"`
	Description  sql.NullString `db:"description"`
	ThumbnailURL sql.NullString `db:"thumbnail_url"`
	VideoURL     sql.NullString `db:"video_url"`
	DurationMS   sql.NullInt64  `db:"duration_ms"`
	PublishedAt  time.Time      `db:"published_at"`
	Sport        sql.NullString `db:"sport"`
	League       sql.NullString `db:"league"`
	IsLive       bool           `db:"is_live"`
	Tags         pq.StringArray `db:"tags"`
	Autoplay     bool           `db:"autoplay"`
	ShowMetadata bool           `db:"show_metadata"`
	Size         string         `db:"size"`
	ContentType  string         `db:"content_type"`
	Network      sql.NullString `db:"network"`
	IsReAir      bool           `db:"is_re_air"`
	EventName    sql.NullString `db:"event_name"`
	AspectRatio  sql.NullString `db:"aspect_ratio"`
	AuthTypes    pq.StringArray `db:"auth_types"`
	StreamingURL sql.NullString `db:"streaming_url"`
	ContentID    sql.NullString `db:"content_id"`
	IsEvent      sql.NullBool   `db:"is_event"`
	AppLinkURL   sql.NullString `db:"app_link_url"`
}

func (r itemRow) toDomain() domain.VideoItem {
	item := domain.VideoItem{
		Title:        r.Title,
		Description:  fromNull(r.Description),
		ThumbnailURL: fromNull(r.ThumbnailURL),
		VideoURL:     fromNull(r.VideoURL),
		PublishedAt:  r.PublishedAt,
		Sport:        fromNull(r.Sport),
		League:       fromNull(r.League),
		IsLive:       r.IsLive,
		Tags:         []string(r.Tags),
		Autoplay:     r.Autoplay,
		ShowMetadata: r.ShowMetadata,
		Size:         r.Size,
		ContentType:  r.ContentType,
		Network:      fromNull(r.Network),
		IsReAir:      r.IsReAir,
		EventName:    fromNull(r.EventName),
		AspectRatio:  fromNull(r.AspectRatio),
		StreamingURL: fromNull(r.StreamingURL),
		ContentID:    fromNull(r.ContentID),
		AppLinkURL:   fromNull(r.AppLinkURL),
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	if len(r.AuthTypes) > 0 {
		item.AuthTypes = []string(r.AuthTypes)
	}
	if r.DurationMS.Valid {
		d := time.Duration(r.DurationMS.Int64) * time.Millisecond
		item.Duration = &d
	}
	if r.IsEvent.Valid {
		v := r.IsEvent.Bool
		item.IsEvent = &v
	}
	return item
}

const itemSelect = `
	SELECT vi.id, vi.category_id, vi.title, vi.description, vi.thumbnail_url, vi.video_url,
		vi.duration_ms, vi.published_at, vi.sport, vi.league, vi.is_live, vi.autoplay,
		vi.show_metadata, vi.size, vi.content_type, vi.network, vi.is_re_air, vi.event_name,
		vi.aspect_ratio, vi.auth_types, vi.streaming_url, vi.content_id, vi.is_event,
		vi.app_link_url,
		COALESCE((
			SELECT array_agg(t.label ORDER BY it.position)
			FROM video_item_tags it
			INNER JOIN tags t ON t.id = it.tag_id
			WHERE it.item_id = vi.id
		), '{}') AS tags
	FROM video_items vi`

// ListCategories returns the snapshot in page order.
func (s *VideoStore) ListCategories(ctx context.Context) ([]domain.VideoCategory, error) {
	exec := GetExecutor(ctx, s.db)

	var cats []categoryRow
	err := sqlx.SelectContext(ctx, exec, &cats, `
		SELECT id, name, description, is_live, priority, tags, show_title
		FROM video_categories
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	var items []itemRow
	if err := sqlx.SelectContext(ctx, exec, &items, itemSelect+" ORDER BY vi.category_id, vi.position"); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	byCategory := make(map[int64][]domain.VideoItem, len(cats))
	for _, r := range items {
		byCategory[r.CategoryID] = append(byCategory[r.CategoryID], r.toDomain())
	}

	result := make([]domain.VideoCategory, len(cats))
	for i, c := range cats {
		tags := []string(c.Tags)
		if tags == nil {
			tags = []string{}
		}
		catItems := byCategory[c.ID]
		if catItems == nil {
			catItems = []domain.VideoItem{}
		}
		result[i] = domain.VideoCategory{
			Name:        c.Name,
			Description: c.Description,
			Items:       catItems,
			IsLive:      c.IsLive,
			Priority:    c.Priority,
			Tags:        tags,
			ShowTitle:   c.ShowTitle,
		}
	}
	return result, nil
}

// GetItemByContentID returns the first item carrying contentID.
func (s *VideoStore) GetItemByContentID(ctx context.Context, contentID string) (*domain.VideoItem, error) {
	var row itemRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row,
		itemSelect+" WHERE vi.content_id = $1 ORDER BY vi.category_id, vi.position LIMIT 1", contentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", contentID, err)
	}
	item := row.toDomain()
	return &item, nil
}
