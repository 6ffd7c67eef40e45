package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"espn_feed/internal/domain"
)

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

type articleRow struct {
	ID           uuid.UUID      `db:"id"`
	SourceID     string         `db:"source_id"`
	Feed         string         `db:"feed"`
	Title        string         `db:"title"`
	Subtitle     sql.NullString `db:"subtitle"`
	Author       string         `db:"author"`
	PublishedAt  time.Time      `db:"published_at"`
	LastModified time.Time      `db:"last_modified"`
	ImageURL     sql.NullString `db:"image_url"`
	Body         string         `db:"body"`
	Type         string         `db:"type"`
	ReadMinutes  int            `db:"read_minutes"`
	Sport        sql.NullString `db:"sport"`
	RelatedTeams pq.StringArray `db:"related_teams"`
	Likes        int            `db:"likes"`
	Comments     int            `db:"comments"`
	Premium      bool           `db:"premium"`
	ArticleURL   sql.NullString `db:"article_url"`
	VideoURL     sql.NullString `db:"video_url"`
}

func (r articleRow) toDomain() domain.Article {
	teams := []string(r.RelatedTeams)
	if teams == nil {
		teams = []string{}
	}
	return domain.Article{
		ID:           r.ID,
		SourceID:     r.SourceID,
		Feed:         r.Feed,
		Title:        r.Title,
		Subtitle:     fromNull(r.Subtitle),
		Author:       r.Author,
		PublishedAt:  r.PublishedAt,
		LastModified: r.LastModified,
		ImageURL:     fromNull(r.ImageURL),
		Body:         r.Body,
		Type:         domain.ArticleType(r.Type),
		ReadMinutes:  r.ReadMinutes,
		Sport:        fromNull(r.Sport),
		RelatedTeams: teams,
		Likes:        r.Likes,
		Comments:     r.Comments,
		Premium:      r.Premium,
		ArticleURL:   fromNull(r.ArticleURL),
		VideoURL:     fromNull(r.VideoURL),
	}
}

const articleColumns = `id, source_id, feed, title, subtitle, author, published_at, last_modified,
	image_url, body, type, read_minutes, sport, related_teams, likes, comments, premium,
	article_url, video_url`

// Upsert stores the article. An existing row is only overwritten when the
// incoming copy was modified later. It reports whether a row was written.
func (s *ArticleStore) Upsert(ctx context.Context, article *domain.Article) (bool, error) {
	query := `
		INSERT INTO articles (
			id, source_id, feed, title, subtitle, author, published_at, last_modified,
			image_url, body, type, read_minutes, sport, related_teams, likes, comments,
			premium, article_url, video_url
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		ON CONFLICT (id) DO UPDATE SET
			feed = EXCLUDED.feed,
			title = EXCLUDED.title,
			subtitle = EXCLUDED.subtitle,
			author = EXCLUDED.author,
			last_modified = EXCLUDED.last_modified,
			image_url = EXCLUDED.image_url,
			body = EXCLUDED.body,
			type = EXCLUDED.type,
			read_minutes = EXCLUDED.read_minutes,
			sport = EXCLUDED.sport,
			related_teams = EXCLUDED.related_teams,
			premium = EXCLUDED.premium,
			article_url = EXCLUDED.article_url,
			video_url = EXCLUDED.video_url,
			updated_at = NOW()
		WHERE articles.last_modified < EXCLUDED.last_modified`

	teams := article.RelatedTeams
	if teams == nil {
		teams = []string{}
	}

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		article.ID,
		article.SourceID,
		article.Feed,
		article.Title,
		article.Subtitle,
		article.Author,
		article.PublishedAt,
		article.LastModified,
		article.ImageURL,
		article.Body,
		string(article.Type),
		article.ReadMinutes,
		article.Sport,
		pq.Array(teams),
		article.Likes,
		article.Comments,
		article.Premium,
		article.ArticleURL,
		article.VideoURL,
	)
	if err != nil {
		return false, fmt.Errorf("upsert article %s: %w", article.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetLastModified returns the stored modification time for each known id.
func (s *ArticleStore) GetLastModified(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	if len(ids) == 0 {
		return make(map[uuid.UUID]time.Time), nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	query := `SELECT id, last_modified FROM articles WHERE id = ANY($1::uuid[])`

	rows, err := GetExecutor(ctx, s.db).QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID]time.Time)
	for rows.Next() {
		var id uuid.UUID
		var lastMod time.Time
		if err := rows.Scan(&id, &lastMod); err != nil {
			return nil, err
		}
		result[id] = lastMod
	}

	return result, rows.Err()
}

// List returns articles newest first.
func (s *ArticleStore) List(ctx context.Context, f domain.ArticleFilter) ([]domain.Article, error) {
	var (
		where []string
		args  []any
	)
	if f.Feed != "" {
		args = append(args, f.Feed)
		where = append(where, fmt.Sprintf("feed = $%d", len(args)))
	}
	if f.Sport != "" {
		args = append(args, f.Sport)
		where = append(where, fmt.Sprintf("LOWER(sport) = LOWER($%d)", len(args)))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(articleColumns)
	sb.WriteString(" FROM articles")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY published_at DESC, id")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	var rows []articleRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	articles := make([]domain.Article, len(rows))
	for i, r := range rows {
		articles[i] = r.toDomain()
	}
	return articles, nil
}

func (s *ArticleStore) Get(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	var row articleRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row,
		"SELECT "+articleColumns+" FROM articles WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	article := row.toDomain()
	return &article, nil
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
