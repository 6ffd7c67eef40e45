package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"espn_feed/internal/config"
	"espn_feed/internal/domain"
	"espn_feed/internal/service/mocks"
	"espn_feed/testdata/utils"
)

type SyncServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockSource
	articles  *mocks.MockArticleStore
	videos    *mocks.MockVideoStore
	tags      *mocks.MockTagStore
	syncState *mocks.MockSyncStateStore
	txManager *mocks.MockTransactionManager
	publisher *mocks.MockPublisher

	service *SyncService
	cfg     config.SyncConfig
	logger  *slog.Logger
	now     time.Time
}

func (s *SyncServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.articles = mocks.NewMockArticleStore(s.ctrl)
	s.videos = mocks.NewMockVideoStore(s.ctrl)
	s.tags = mocks.NewMockTagStore(s.ctrl)
	s.syncState = mocks.NewMockSyncStateStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.cfg = config.SyncConfig{
		Interval:          5 * time.Minute,
		NewsLimit:         25,
		MaxHistoricalDays: 30,
		SyncWatch:         utils.Ptr(false),
	}
	s.now = time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.source.EXPECT().ID().Return("espn").AnyTimes()
	s.source.EXPECT().Name().Return("ESPN").AnyTimes()

	s.service = s.newService(s.cfg, s.publisher)
}

func (s *SyncServiceTestSuite) newService(cfg config.SyncConfig, publisher Publisher) *SyncService {
	svc := NewSyncService(
		s.source,
		s.articles,
		s.videos,
		s.tags,
		s.syncState,
		s.txManager,
		publisher,
		s.logger,
		cfg,
	)
	svc.now = func() time.Time { return s.now }
	return svc
}

func (s *SyncServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceTestSuite))
}

func (s *SyncServiceTestSuite) passThroughTx() {
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	).AnyTimes()
}

func (s *SyncServiceTestSuite) expectSyncState(ctx context.Context, feed string, synced int64) *domain.SyncState {
	saved := &domain.SyncState{}
	s.syncState.EXPECT().Get(ctx, "espn", feed).Return(&domain.SyncState{SourceID: "espn", Feed: feed, TotalSynced: 3}, nil)
	s.syncState.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, state *domain.SyncState) error {
			*saved = *state
			return nil
		},
	)
	s.T().Cleanup(func() {
		s.Equal(int64(3)+synced, saved.TotalSynced)
		s.Equal(s.now, saved.LastSyncedAt)
	})
	return saved
}

func (s *SyncServiceTestSuite) article(feed, title string, published, modified time.Time) domain.Article {
	return domain.Article{
		ID:           uuid.NewSHA1(uuid.NameSpaceURL, []byte(title)),
		SourceID:     "espn",
		Feed:         feed,
		Title:        title,
		PublishedAt:  published,
		LastModified: modified,
	}
}

func (s *SyncServiceTestSuite) TestSync_NewArticles() {
	ctx := context.Background()
	articles := []domain.Article{s.article("nba", "Celtics win", s.now, s.now)}

	s.source.EXPECT().FetchArticles(ctx, 25).Return(articles, nil)
	s.articles.EXPECT().GetLastModified(ctx, []uuid.UUID{articles[0].ID}).Return(map[uuid.UUID]time.Time{}, nil)
	s.passThroughTx()
	s.articles.EXPECT().Upsert(ctx, &articles[0]).Return(true, nil)
	s.publisher.EXPECT().PublishArticle(ctx, &articles[0], true).Return(nil)
	saved := s.expectSyncState(ctx, "nba", 1)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.New)
	s.Equal(0, stats.Updated)
	s.Equal(0, stats.Skipped)
	s.Equal(1, stats.Published)
	s.Equal(articles[0].ID.String(), saved.LastArticleID)
}

func (s *SyncServiceTestSuite) TestSync_UpdatedArticles() {
	ctx := context.Background()
	articles := []domain.Article{s.article("nba", "Celtics win (updated)", s.now, s.now)}

	s.source.EXPECT().FetchArticles(ctx, 25).Return(articles, nil)
	s.articles.EXPECT().GetLastModified(ctx, gomock.Any()).Return(
		map[uuid.UUID]time.Time{articles[0].ID: s.now.Add(-time.Hour)}, nil,
	)
	s.passThroughTx()
	s.articles.EXPECT().Upsert(ctx, &articles[0]).Return(true, nil)
	s.publisher.EXPECT().PublishArticle(ctx, &articles[0], false).Return(nil)
	s.expectSyncState(ctx, "nba", 1)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(0, stats.New)
	s.Equal(1, stats.Updated)
	s.Equal(1, stats.Published)
}

func (s *SyncServiceTestSuite) TestSync_SkipsUnchangedArticles() {
	ctx := context.Background()
	articles := []domain.Article{s.article("nba", "Celtics win", s.now, s.now)}

	s.source.EXPECT().FetchArticles(ctx, 25).Return(articles, nil)
	s.articles.EXPECT().GetLastModified(ctx, gomock.Any()).Return(
		map[uuid.UUID]time.Time{articles[0].ID: s.now}, nil,
	)
	s.expectSyncState(ctx, "nba", 0)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.Skipped)
	s.Equal(0, stats.Published)
}

func (s *SyncServiceTestSuite) TestSync_FiltersOutdatedByDate() {
	ctx := context.Background()
	old := s.now.AddDate(0, 0, -40)
	articles := []domain.Article{s.article("nba", "Old news", old, old)}

	s.source.EXPECT().FetchArticles(ctx, 25).Return(articles, nil)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(0, stats.Fetched)
	s.Equal(0, stats.New)
}

func (s *SyncServiceTestSuite) TestSync_DedupesAcrossFeeds() {
	ctx := context.Background()
	top := s.article("top", "Celtics win", s.now, s.now)
	nba := top
	nba.Feed = "nba"

	s.source.EXPECT().FetchArticles(ctx, 25).Return([]domain.Article{top, nba}, nil)
	s.articles.EXPECT().GetLastModified(ctx, []uuid.UUID{top.ID}).Return(map[uuid.UUID]time.Time{}, nil)
	s.passThroughTx()
	s.articles.EXPECT().Upsert(ctx, &top).Return(true, nil)
	s.publisher.EXPECT().PublishArticle(ctx, &top, true).Return(nil)
	s.expectSyncState(ctx, "top", 1)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.New)
}

func (s *SyncServiceTestSuite) TestSync_SaveFailureCountsError() {
	ctx := context.Background()
	articles := []domain.Article{
		s.article("nba", "Broken", s.now, s.now),
		s.article("nba", "Stale write", s.now, s.now),
	}

	s.source.EXPECT().FetchArticles(ctx, 25).Return(articles, nil)
	s.articles.EXPECT().GetLastModified(ctx, gomock.Any()).Return(map[uuid.UUID]time.Time{}, nil)
	s.passThroughTx()
	s.articles.EXPECT().Upsert(ctx, &articles[0]).Return(false, errors.New("db down"))
	s.articles.EXPECT().Upsert(ctx, &articles[1]).Return(false, nil)
	s.expectSyncState(ctx, "nba", 0)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(1, stats.Errors)
	s.Equal(1, stats.Skipped)
	s.Equal(0, stats.New)
}

func (s *SyncServiceTestSuite) TestSync_SourceError() {
	ctx := context.Background()

	s.source.EXPECT().FetchArticles(ctx, 25).Return(nil, errors.New("network error"))

	stats, err := s.service.Sync(ctx)

	s.Error(err)
	s.ErrorContains(err, "network error")
	s.NotNil(stats)
}

func (s *SyncServiceTestSuite) TestSync_PublisherNil() {
	ctx := context.Background()
	s.service = s.newService(s.cfg, nil)
	articles := []domain.Article{s.article("nba", "Celtics win", s.now, s.now)}

	s.source.EXPECT().FetchArticles(ctx, 25).Return(articles, nil)
	s.articles.EXPECT().GetLastModified(ctx, gomock.Any()).Return(map[uuid.UUID]time.Time{}, nil)
	s.passThroughTx()
	s.articles.EXPECT().Upsert(ctx, gomock.Any()).Return(true, nil)
	s.expectSyncState(ctx, "nba", 1)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(1, stats.New)
	s.Equal(0, stats.Published)
}

func (s *SyncServiceTestSuite) watchConfig() config.SyncConfig {
	cfg := s.cfg
	cfg.SyncWatch = nil
	return cfg
}

func (s *SyncServiceTestSuite) TestSync_WatchSnapshot() {
	ctx := context.Background()
	s.service = s.newService(s.watchConfig(), s.publisher)

	categories := []domain.VideoCategory{
		{
			Name:   "Live",
			IsLive: true,
			Items: []domain.VideoItem{
				{Title: "Florida vs. LSU", IsLive: true, Tags: []string{"live", "ncaa"}},
				{Title: "Replay", Tags: []string{}},
			},
		},
		{Name: "Coming Up", Items: []domain.VideoItem{}},
	}

	s.source.EXPECT().FetchArticles(ctx, 25).Return(nil, nil)
	s.source.EXPECT().FetchVideoCategories(ctx).Return(categories, nil)
	s.passThroughTx()
	gomock.InOrder(
		s.videos.EXPECT().DeleteAll(ctx).Return(nil),
		s.videos.EXPECT().InsertCategory(ctx, &categories[0], 0).Return(int64(10), nil),
		s.videos.EXPECT().InsertItems(ctx, int64(10), categories[0].Items).Return([]int64{100, 101}, nil),
		s.tags.EXPECT().UpsertBatch(ctx, []string{"live", "ncaa"}).Return([]int64{1, 2}, nil),
		s.tags.EXPECT().LinkToItem(ctx, int64(100), []int64{1, 2}).Return(nil),
		s.videos.EXPECT().InsertCategory(ctx, &categories[1], 1).Return(int64(11), nil),
		s.videos.EXPECT().InsertItems(ctx, int64(11), categories[1].Items).Return([]int64{}, nil),
	)
	s.publisher.EXPECT().PublishCategories(ctx, categories).Return(nil)
	s.expectSyncState(ctx, WatchFeed, 2)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(2, stats.Categories)
	s.Equal(2, stats.VideoItems)
	s.Equal(1, stats.Published)
}

func (s *SyncServiceTestSuite) TestSync_EmptyWatchPageKeepsSnapshot() {
	ctx := context.Background()
	s.service = s.newService(s.watchConfig(), s.publisher)

	s.source.EXPECT().FetchArticles(ctx, 25).Return(nil, nil)
	s.source.EXPECT().FetchVideoCategories(ctx).Return([]domain.VideoCategory{}, nil)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(0, stats.Categories)
}

func (s *SyncServiceTestSuite) TestSync_NewsFailureStillSyncsWatch() {
	ctx := context.Background()
	s.service = s.newService(s.watchConfig(), s.publisher)
	categories := []domain.VideoCategory{{Name: "Featured", Items: []domain.VideoItem{}}}

	s.source.EXPECT().FetchArticles(ctx, 25).Return(nil, errors.New("feeds down"))
	s.source.EXPECT().FetchVideoCategories(ctx).Return(categories, nil)
	s.passThroughTx()
	s.videos.EXPECT().DeleteAll(ctx).Return(nil)
	s.videos.EXPECT().InsertCategory(ctx, gomock.Any(), 0).Return(int64(1), nil)
	s.videos.EXPECT().InsertItems(ctx, int64(1), gomock.Any()).Return([]int64{}, nil)
	s.publisher.EXPECT().PublishCategories(ctx, categories).Return(nil)
	s.expectSyncState(ctx, WatchFeed, 0)

	stats, err := s.service.Sync(ctx)

	s.ErrorContains(err, "feeds down")
	s.Equal(1, stats.Categories)
}

func (s *SyncServiceTestSuite) TestSync_WatchStoreFailure() {
	ctx := context.Background()
	s.service = s.newService(s.watchConfig(), s.publisher)

	s.source.EXPECT().FetchArticles(ctx, 25).Return(nil, nil)
	s.source.EXPECT().FetchVideoCategories(ctx).Return([]domain.VideoCategory{{Name: "Featured"}}, nil)
	s.passThroughTx()
	s.videos.EXPECT().DeleteAll(ctx).Return(errors.New("locked"))

	stats, err := s.service.Sync(ctx)

	s.ErrorContains(err, "store watch snapshot")
	s.Equal(0, stats.Categories)
}
