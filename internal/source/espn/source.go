package espn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"espn_feed/internal/apperr"
	"espn_feed/internal/domain"
	"espn_feed/internal/normalizer"
)

const (
	SourceID   = "espn"
	SourceName = "ESPN"

	maxBodyBytes = 8 << 20
)

// Feed is a named news endpoint, e.g. general headlines or one league.
type Feed struct {
	Name string
	URL  string
}

// Config holds ESPN source configuration.
type Config struct {
	NewsFeeds      []Feed
	WatchURL       string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	UserAgent      string
	CDNHost        string
}

// Source fetches ESPN news and watch payloads and normalizes them.
type Source struct {
	httpClient     *http.Client
	newsFeeds      []Feed
	watchURL       string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	userAgent      string
	maxBody        int64
	news           *normalizer.NewsNormalizer
	video          *normalizer.VideoFeedNormalizer
	logger         *slog.Logger
}

// New creates a new ESPN source.
func New(cfg Config, logger *slog.Logger, opts ...normalizer.Option) *Source {
	logger = logger.With("source", SourceID)
	opts = append([]normalizer.Option{normalizer.WithCDNHost(cfg.CDNHost)}, opts...)

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		newsFeeds:      cfg.NewsFeeds,
		watchURL:       cfg.WatchURL,
		maxAttempts:    maxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		userAgent:      cfg.UserAgent,
		maxBody:        maxBodyBytes,
		news:           normalizer.NewNewsNormalizer(logger, opts...),
		video:          normalizer.NewVideoFeedNormalizer(logger, opts...),
		logger:         logger,
	}
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// Images returns the CDN rewriter used for thumbnails.
func (s *Source) Images() normalizer.ImageRewriter {
	return s.video.Images()
}

// FetchArticles fetches every configured news feed. A failing feed is logged
// and skipped; an error is returned only when no feed could be fetched.
func (s *Source) FetchArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	var all []domain.Article
	var errs []error

	for _, feed := range s.newsFeeds {
		feedURL, err := withLimit(feed.URL, limit)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.Name, err))
			continue
		}

		body, err := s.fetch(ctx, feedURL)
		if err != nil {
			s.logger.Warn("news feed unavailable", "feed", feed.Name, "error", err)
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.Name, err))
			continue
		}

		articles := s.news.NormalizeFeed(body)
		for i := range articles {
			articles[i].SourceID = SourceID
			articles[i].Feed = feed.Name
		}
		all = append(all, articles...)

		s.logger.Debug("fetched news feed",
			"feed", feed.Name,
			"articles", len(articles),
			"total", len(all),
		)
	}

	if len(errs) > 0 && len(errs) == len(s.newsFeeds) {
		return nil, errors.Join(errs...)
	}
	return all, nil
}

// FetchVideoCategories fetches the watch page and flattens its buckets.
func (s *Source) FetchVideoCategories(ctx context.Context) ([]domain.VideoCategory, error) {
	body, err := s.fetch(ctx, s.watchURL)
	if err != nil {
		return nil, fmt.Errorf("fetch watch page: %w", err)
	}
	categories := s.video.Normalize(body)

	s.logger.Debug("fetched watch page", "categories", len(categories))
	return categories, nil
}

func (s *Source) fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		body, err = s.doRequest(ctx, url)
		if err == nil {
			return body, nil
		}

		if attempt == s.maxAttempts || !apperr.IsRetryable(err) {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperr.NewUpstream(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.NewUpstreamStatus(url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		return nil, apperr.NewUpstream(url, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > s.maxBody {
		return nil, apperr.NewUpstream(url, fmt.Errorf("%w: over %d bytes", apperr.ErrResponseTooLarge, s.maxBody))
	}
	return body, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func withLimit(raw string, limit int) (string, error) {
	if limit <= 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
