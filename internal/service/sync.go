package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"espn_feed/internal/config"
	"espn_feed/internal/domain"
)

// WatchFeed is the sync state key of the watch page.
const WatchFeed = "watch"

type SyncService struct {
	source    Source
	articles  ArticleStore
	videos    VideoStore
	tags      TagStore
	syncState SyncStateStore
	txManager TransactionManager
	publisher Publisher
	logger    *slog.Logger
	config    config.SyncConfig
	now       func() time.Time
}

func NewSyncService(
	source Source,
	articles ArticleStore,
	videos VideoStore,
	tags TagStore,
	syncState SyncStateStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		source:    source,
		articles:  articles,
		videos:    videos,
		tags:      tags,
		syncState: syncState,
		txManager: txManager,
		publisher: publisher,
		logger:    logger.With("source", source.ID()),
		config:    cfg,
		now:       time.Now,
	}
}

// Sync pulls the news feeds and the watch page. A failure in one does not
// stop the other; both errors are returned joined.
func (s *SyncService) Sync(ctx context.Context) (*domain.SyncStats, error) {
	startTime := s.now()
	s.logger.Info("starting sync",
		"source_name", s.source.Name(),
		"news_limit", s.config.NewsLimit,
		"max_historical_days", s.config.MaxHistoricalDays,
		"watch", s.config.WatchEnabled(),
	)

	stats := &domain.SyncStats{SourceID: s.source.ID()}

	var errs []error
	if err := s.syncNews(ctx, stats); err != nil {
		errs = append(errs, fmt.Errorf("sync news: %w", err))
	}
	if s.config.WatchEnabled() {
		if err := s.syncWatch(ctx, stats); err != nil {
			errs = append(errs, fmt.Errorf("sync watch: %w", err))
		}
	}

	stats.Duration = s.now().Sub(startTime)

	s.logger.Info("sync completed",
		"new", stats.New,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"published", stats.Published,
		"categories", stats.Categories,
		"video_items", stats.VideoItems,
		"duration", stats.Duration,
	)

	return stats, errors.Join(errs...)
}

func (s *SyncService) syncNews(ctx context.Context, stats *domain.SyncStats) error {
	articles, err := s.source.FetchArticles(ctx, s.config.NewsLimit)
	if err != nil {
		return fmt.Errorf("fetch articles: %w", err)
	}
	s.logger.Info("fetched articles from source", "count", len(articles))

	cutoffDate := s.now().AddDate(0, 0, -s.config.MaxHistoricalDays)
	articles = dedupe(s.filterByDate(articles, cutoffDate))
	s.logger.Debug("filtered by date", "remaining", len(articles))

	existing, err := s.existing(ctx, articles)
	if err != nil {
		return fmt.Errorf("filter for sync: %w", err)
	}

	toSync := filterForSync(articles, existing)
	s.logger.Info("articles to sync", "count", len(toSync))

	stats.Fetched += len(articles)
	stats.Skipped += len(articles) - len(toSync)

	perFeed := make(map[string]*domain.SyncState)
	for _, a := range articles {
		if _, ok := perFeed[a.Feed]; !ok {
			perFeed[a.Feed] = &domain.SyncState{SourceID: s.source.ID(), Feed: a.Feed}
		}
	}

	for i := range toSync {
		article := &toSync[i]
		_, isUpdate := existing[article.ID]

		written, err := s.saveArticle(ctx, article)
		if err != nil {
			s.logger.Warn("failed to save article", "id", article.ID, "title", article.Title, "error", err)
			stats.Errors++
			continue
		}
		if !written {
			stats.Skipped++
			continue
		}

		if s.publisher != nil {
			if err := s.publisher.PublishArticle(ctx, article, !isUpdate); err != nil {
				s.logger.Warn("failed to publish article", "id", article.ID, "error", err)
				stats.Errors++
			} else {
				stats.Published++
			}
		}

		if isUpdate {
			stats.Updated++
		} else {
			stats.New++
		}

		feed := perFeed[article.Feed]
		feed.TotalSynced++
		if feed.LastArticleID == "" {
			feed.LastArticleID = article.ID.String()
		}
	}

	for _, feed := range perFeed {
		if err := s.updateSyncState(ctx, feed.Feed, feed.TotalSynced, feed.LastArticleID); err != nil {
			return fmt.Errorf("update sync state: %w", err)
		}
	}
	return nil
}

func (s *SyncService) syncWatch(ctx context.Context, stats *domain.SyncStats) error {
	categories, err := s.source.FetchVideoCategories(ctx)
	if err != nil {
		return fmt.Errorf("fetch video categories: %w", err)
	}
	if len(categories) == 0 {
		s.logger.Warn("watch page yielded no categories, keeping previous snapshot")
		return nil
	}

	items := 0
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.videos.DeleteAll(txCtx); err != nil {
			return err
		}
		for i := range categories {
			category := &categories[i]
			categoryID, err := s.videos.InsertCategory(txCtx, category, i)
			if err != nil {
				return err
			}
			itemIDs, err := s.videos.InsertItems(txCtx, categoryID, category.Items)
			if err != nil {
				return err
			}
			for j, itemID := range itemIDs {
				if err := s.linkTags(txCtx, itemID, category.Items[j].Tags); err != nil {
					return err
				}
			}
			items += len(itemIDs)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store watch snapshot: %w", err)
	}

	stats.Categories += len(categories)
	stats.VideoItems += items
	s.logger.Info("stored watch snapshot", "categories", len(categories), "items", items)

	if s.publisher != nil {
		if err := s.publisher.PublishCategories(ctx, categories); err != nil {
			s.logger.Warn("failed to publish watch snapshot", "error", err)
			stats.Errors++
		} else {
			stats.Published++
		}
	}

	if err := s.updateSyncState(ctx, WatchFeed, int64(items), ""); err != nil {
		return fmt.Errorf("update sync state: %w", err)
	}
	return nil
}

func (s *SyncService) linkTags(ctx context.Context, itemID int64, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	tagIDs, err := s.tags.UpsertBatch(ctx, labels)
	if err != nil {
		return fmt.Errorf("upsert tags: %w", err)
	}
	if err := s.tags.LinkToItem(ctx, itemID, tagIDs); err != nil {
		return fmt.Errorf("link tags: %w", err)
	}
	return nil
}

func (s *SyncService) filterByDate(articles []domain.Article, cutoff time.Time) []domain.Article {
	var filtered []domain.Article
	for _, a := range articles {
		if a.PublishedAt.After(cutoff) {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// dedupe keeps the first copy of an article carried by several feeds.
func dedupe(articles []domain.Article) []domain.Article {
	seen := make(map[uuid.UUID]struct{}, len(articles))
	out := articles[:0]
	for _, a := range articles {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

func (s *SyncService) existing(ctx context.Context, articles []domain.Article) (map[uuid.UUID]time.Time, error) {
	if len(articles) == 0 {
		return map[uuid.UUID]time.Time{}, nil
	}
	ids := make([]uuid.UUID, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	return s.articles.GetLastModified(ctx, ids)
}

func filterForSync(articles []domain.Article, existing map[uuid.UUID]time.Time) []domain.Article {
	var toSync []domain.Article
	for _, article := range articles {
		lastMod, exists := existing[article.ID]
		if !exists || article.LastModified.After(lastMod) {
			toSync = append(toSync, article)
		}
	}
	return toSync
}

func (s *SyncService) saveArticle(ctx context.Context, article *domain.Article) (bool, error) {
	var written bool
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		written, err = s.articles.Upsert(txCtx, article)
		if err != nil {
			return fmt.Errorf("upsert article: %w", err)
		}
		return nil
	})
	return written, err
}

func (s *SyncService) updateSyncState(ctx context.Context, feed string, synced int64, lastID string) error {
	state, err := s.syncState.Get(ctx, s.source.ID(), feed)
	if err != nil {
		return err
	}

	state.SourceID = s.source.ID()
	state.Feed = feed
	state.LastSyncedAt = s.now()
	state.TotalSynced += synced
	if lastID != "" {
		state.LastArticleID = lastID
	}

	return s.syncState.Update(ctx, state)
}
