//go:build integration

package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"espn_feed/internal/domain"
	"espn_feed/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_articles.up.sql"),
			filepath.Join(migrationsPath, "002_create_watch_catalog.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM video_item_tags")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM tags")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM video_categories")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM articles")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_state")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func newArticle(title string, published, modified time.Time) *domain.Article {
	return &domain.Article{
		ID:           uuid.New(),
		SourceID:     "espn",
		Feed:         "nba",
		Title:        title,
		Subtitle:     utils.Ptr("Subtitle"),
		Author:       domain.DefaultArticleAuthor,
		PublishedAt:  published,
		LastModified: modified,
		Body:         "Body text",
		Type:         domain.ArticleTypeNews,
		ReadMinutes:  1,
		Sport:        utils.Ptr("NBA"),
		RelatedTeams: []string{},
		ArticleURL:   utils.Ptr("https://www.espn.com/nba/story/_/id/1"),
	}
}

func (s *PostgresIntegrationSuite) TestArticleStore_Upsert_Insert() {
	store := NewArticleStore(s.db)
	now := time.Now().Truncate(time.Microsecond)
	article := newArticle("Celtics win", now, now)

	written, err := store.Upsert(s.ctx, article)
	s.NoError(err)
	s.True(written)

	got, err := store.Get(s.ctx, article.ID)
	s.Require().NoError(err)
	s.Equal("Celtics win", got.Title)
	s.Equal("Subtitle", *got.Subtitle)
	s.Equal("NBA", *got.Sport)
	s.Nil(got.ImageURL)
	s.Equal([]string{}, got.RelatedTeams)
	s.WithinDuration(now, got.PublishedAt, time.Second)
}

func (s *PostgresIntegrationSuite) TestArticleStore_Upsert_UpdateWhenNewer() {
	store := NewArticleStore(s.db)
	now := time.Now().Truncate(time.Microsecond)
	article := newArticle("Original Title", now.Add(-time.Hour), now.Add(-time.Hour))

	_, err := store.Upsert(s.ctx, article)
	s.NoError(err)

	article.Title = "Updated Title"
	article.LastModified = now
	written, err := store.Upsert(s.ctx, article)
	s.NoError(err)
	s.True(written)

	got, err := store.Get(s.ctx, article.ID)
	s.Require().NoError(err)
	s.Equal("Updated Title", got.Title)
}

func (s *PostgresIntegrationSuite) TestArticleStore_Upsert_SkipWhenOlder() {
	store := NewArticleStore(s.db)
	now := time.Now().Truncate(time.Microsecond)
	article := newArticle("Newer Title", now, now)

	_, err := store.Upsert(s.ctx, article)
	s.NoError(err)

	article.Title = "Older Title"
	article.LastModified = now.Add(-time.Hour)
	written, err := store.Upsert(s.ctx, article)
	s.NoError(err)
	s.False(written)

	got, err := store.Get(s.ctx, article.ID)
	s.Require().NoError(err)
	s.Equal("Newer Title", got.Title)
}

func (s *PostgresIntegrationSuite) TestArticleStore_GetLastModified() {
	store := NewArticleStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	a := newArticle("A", now, now)
	b := newArticle("B", now, now.Add(time.Hour))
	for _, article := range []*domain.Article{a, b} {
		_, err := store.Upsert(s.ctx, article)
		s.NoError(err)
	}

	missing := uuid.New()
	result, err := store.GetLastModified(s.ctx, []uuid.UUID{a.ID, b.ID, missing})
	s.NoError(err)
	s.Len(result, 2)
	s.WithinDuration(now.Add(time.Hour), result[b.ID], time.Second)
	s.NotContains(result, missing)
}

func (s *PostgresIntegrationSuite) TestArticleStore_List() {
	store := NewArticleStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	older := newArticle("Older", now.Add(-time.Hour), now)
	newer := newArticle("Newer", now, now)
	nfl := newArticle("NFL", now.Add(-time.Minute), now)
	nfl.Feed = "nfl"
	nfl.Sport = utils.Ptr("NFL")
	for _, article := range []*domain.Article{older, newer, nfl} {
		_, err := store.Upsert(s.ctx, article)
		s.NoError(err)
	}

	all, err := store.List(s.ctx, domain.ArticleFilter{})
	s.NoError(err)
	s.Require().Len(all, 3)
	s.Equal("Newer", all[0].Title)
	s.Equal("Older", all[2].Title)

	nba, err := store.List(s.ctx, domain.ArticleFilter{Feed: "nba", Limit: 1})
	s.NoError(err)
	s.Require().Len(nba, 1)
	s.Equal("Newer", nba[0].Title)

	bySport, err := store.List(s.ctx, domain.ArticleFilter{Sport: "nfl"})
	s.NoError(err)
	s.Require().Len(bySport, 1)
	s.Equal("NFL", bySport[0].Title)

	_, err = store.Get(s.ctx, uuid.New())
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestTagStore_UpsertBatch() {
	store := NewTagStore(s.db)

	ids, err := store.UpsertBatch(s.ctx, []string{"live", "nba", "live"})
	s.NoError(err)
	s.Len(ids, 2)

	again, err := store.UpsertBatch(s.ctx, []string{"nba", "tile-only"})
	s.NoError(err)
	s.Equal(ids[1], again[0])

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM tags"))
	s.Equal(3, count)
}

func (s *PostgresIntegrationSuite) TestVideoStore_Snapshot() {
	videos := NewVideoStore(s.db)
	tags := NewTagStore(s.db)
	tm := NewTransactionManager(s.db)
	now := time.Now().Truncate(time.Microsecond)
	duration := 90 * time.Second

	categories := []domain.VideoCategory{
		{
			Name:      "Live",
			IsLive:    true,
			Priority:  0,
			Tags:      []string{"live"},
			ShowTitle: true,
			Items: []domain.VideoItem{{
				Title:        "Florida vs. LSU",
				PublishedAt:  now,
				IsLive:       true,
				Tags:         []string{"live", "ncaa"},
				Size:         "lg",
				AuthTypes:    []string{"mvpd"},
				StreamingURL: utils.Ptr("https://api.example.com/playback/video/1"),
				ContentID:    utils.Ptr("c-1"),
				Duration:     &duration,
				IsEvent:      utils.Ptr(true),
			}},
		},
		{Name: "", Items: []domain.VideoItem{}},
	}

	store := func() {
		err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
			if err := videos.DeleteAll(ctx); err != nil {
				return err
			}
			for i := range categories {
				catID, err := videos.InsertCategory(ctx, &categories[i], i)
				if err != nil {
					return err
				}
				itemIDs, err := videos.InsertItems(ctx, catID, categories[i].Items)
				if err != nil {
					return err
				}
				for j, itemID := range itemIDs {
					tagIDs, err := tags.UpsertBatch(ctx, categories[i].Items[j].Tags)
					if err != nil {
						return err
					}
					if err := tags.LinkToItem(ctx, itemID, tagIDs); err != nil {
						return err
					}
				}
			}
			return nil
		})
		s.Require().NoError(err)
	}

	store()
	store()

	got, err := videos.ListCategories(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("Live", got[0].Name)
	s.Equal([]string{"live"}, got[0].Tags)
	s.Require().Len(got[0].Items, 1)
	item := got[0].Items[0]
	s.Equal([]string{"live", "ncaa"}, item.Tags)
	s.Equal([]string{"mvpd"}, item.AuthTypes)
	s.Equal(duration, *item.Duration)
	s.True(*item.IsEvent)
	s.Empty(got[1].Items)

	byID, err := videos.GetItemByContentID(s.ctx, "c-1")
	s.Require().NoError(err)
	s.Equal("Florida vs. LSU", byID.Title)

	_, err = videos.GetItemByContentID(s.ctx, "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestSyncStateStore_GetNew() {
	store := NewSyncStateStore(s.db)

	state, err := store.Get(s.ctx, "espn", "watch")
	s.NoError(err)
	s.Equal("espn", state.SourceID)
	s.Equal("watch", state.Feed)
	s.True(state.LastSyncedAt.IsZero())
	s.Equal(int64(0), state.TotalSynced)
}

func (s *PostgresIntegrationSuite) TestSyncStateStore_UpdateAndList() {
	store := NewSyncStateStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	state := &domain.SyncState{
		SourceID:      "espn",
		Feed:          "nba",
		LastSyncedAt:  now,
		LastArticleID: "a-1",
		TotalSynced:   10,
	}
	s.NoError(store.Update(s.ctx, state))

	state.LastArticleID = "a-2"
	state.TotalSynced = 20
	s.NoError(store.Update(s.ctx, state))
	s.NoError(store.Update(s.ctx, &domain.SyncState{SourceID: "espn", Feed: "watch", LastSyncedAt: now}))

	retrieved, err := store.Get(s.ctx, "espn", "nba")
	s.NoError(err)
	s.Equal("a-2", retrieved.LastArticleID)
	s.Equal(int64(20), retrieved.TotalSynced)
	s.WithinDuration(now, retrieved.LastSyncedAt, time.Second)

	all, err := store.List(s.ctx)
	s.NoError(err)
	s.Len(all, 2)
}

func (s *PostgresIntegrationSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)
	articleStore := NewArticleStore(s.db)
	now := time.Now().Truncate(time.Microsecond)
	article := newArticle("Transaction Article", now, now)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		_, err := articleStore.Upsert(ctx, article)
		return err
	})
	s.NoError(err)

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM articles WHERE id = $1", article.ID))
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	articleStore := NewArticleStore(s.db)
	now := time.Now().Truncate(time.Microsecond)
	kept := newArticle("Pre-existing", now, now)
	rolledBack := newArticle("Should Rollback", now, now)

	_, err := articleStore.Upsert(s.ctx, kept)
	s.NoError(err)

	errBoom := errors.New("boom")
	err = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := articleStore.Upsert(ctx, rolledBack); err != nil {
			return err
		}
		return errBoom
	})
	s.ErrorIs(err, errBoom)

	_, err = articleStore.Get(s.ctx, rolledBack.ID)
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = articleStore.Get(s.ctx, kept.ID)
	s.NoError(err)
}
