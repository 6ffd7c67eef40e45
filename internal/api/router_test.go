package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"

	"espn_feed/internal/domain"
	"espn_feed/internal/normalizer"
	"espn_feed/internal/playback"
	"espn_feed/testdata/utils"
)

type fakeArticles struct {
	articles []domain.Article
	filter   domain.ArticleFilter
}

func (f *fakeArticles) List(_ context.Context, filter domain.ArticleFilter) ([]domain.Article, error) {
	f.filter = filter
	return f.articles, nil
}

func (f *fakeArticles) Get(_ context.Context, id uuid.UUID) (*domain.Article, error) {
	for i := range f.articles {
		if f.articles[i].ID == id {
			return &f.articles[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeWatch struct {
	categories []domain.VideoCategory
}

func (f *fakeWatch) ListCategories(context.Context) ([]domain.VideoCategory, error) {
	return f.categories, nil
}

func (f *fakeWatch) GetItemByContentID(_ context.Context, id string) (*domain.VideoItem, error) {
	for _, c := range f.categories {
		for i := range c.Items {
			if c.Items[i].ContentID != nil && *c.Items[i].ContentID == id {
				return &c.Items[i], nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

type fakeState struct {
	err error
}

func (f *fakeState) List(context.Context) ([]domain.SyncState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.SyncState{{SourceID: "espn", Feed: "watch", TotalSynced: 12}}, nil
}

type resolverFunc func(ctx context.Context, url string) (string, error)

func (f resolverFunc) ResolvePlaybackURL(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

type RouterTestSuite struct {
	suite.Suite
	e        *echo.Echo
	articles *fakeArticles
	watch    *fakeWatch
	state    *fakeState
}

func (s *RouterTestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.articles = &fakeArticles{articles: []domain.Article{{
		ID:           uuid.MustParse("6f1c2a52-5b1e-5b8e-9d3a-3c2f1e0a9b77"),
		Title:        "Celtics win",
		RelatedTeams: []string{},
	}}}
	s.watch = &fakeWatch{categories: []domain.VideoCategory{
		{
			Name:   "Live",
			IsLive: true,
			Items: []domain.VideoItem{
				{Title: "Clip", ContentID: utils.Ptr("clip"), VideoURL: utils.Ptr("https://cdn.example.com/a.mp4"), Size: "lg", Tags: []string{}},
				{Title: "Florida vs. LSU", ContentID: utils.Ptr("game"), AuthTypes: []string{"mvpd"}, AppLinkURL: utils.Ptr("sportscenter://x-callback-url/showWatchStream?playID=1"), Tags: []string{}},
				{Title: "Replay", ContentID: utils.Ptr("replay"), StreamingURL: utils.Ptr("https://api.example.com/playback/video/9"), Tags: []string{}},
			},
		},
		{
			Name: "Leagues",
			Items: []domain.VideoItem{
				{Title: "NBA", ContentType: "league", ContentID: utils.Ptr("nba"), ThumbnailURL: utils.Ptr("https://a.espncdn.com/i/teamlogos/nba.png?w=500"), Tags: []string{}},
			},
		},
	}}
	s.state = &fakeState{}

	sessions := playback.NewSessions(
		resolverFunc(func(ctx context.Context, url string) (string, error) {
			return "", errors.New("resolver offline")
		}),
		playback.Config{Debounce: time.Nanosecond},
		time.Hour,
		logger,
	)

	s.e = echo.New()
	NewServer(s.e, Config{Port: "0", CorsOrigins: []string{"*"}}, logger)
	NewRouter(s.e, s.articles, s.watch, s.state, sessions, normalizer.NewImageRewriter("espncdn.com"), 20).Bind()
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) do(method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *RouterTestSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *RouterTestSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ok", s.decode(rec)["status"])

	s.state.err = errors.New("db down")
	rec = s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *RouterTestSuite) TestListNews() {
	rec := s.do(http.MethodGet, "/v1/news?feed=nba&type=News&limit=500", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(domain.ArticleFilter{Feed: "nba", Type: domain.ArticleTypeNews, Limit: maxPageSize}, s.articles.filter)
	s.Len(s.decode(rec)["articles"], 1)
}

func (s *RouterTestSuite) TestListNews_DefaultsAndValidation() {
	rec := s.do(http.MethodGet, "/v1/news", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(20, s.articles.filter.Limit)

	rec = s.do(http.MethodGet, "/v1/news?offset=-1", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterTestSuite) TestGetNews() {
	rec := s.do(http.MethodGet, "/v1/news/6f1c2a52-5b1e-5b8e-9d3a-3c2f1e0a9b77", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("Celtics win", s.decode(rec)["title"])

	rec = s.do(http.MethodGet, "/v1/news/"+uuid.NewString(), "", nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/v1/news/not-a-uuid", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterTestSuite) TestWatch_PresentsDerivedValues() {
	rec := s.do(http.MethodGet, "/v1/watch", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var body struct {
		Categories []struct {
			Name  string `json:"name"`
			Items []struct {
				Title           string  `json:"title"`
				Layout          string  `json:"layout"`
				RequiresESPNApp bool    `json:"requiresEspnApp"`
				Playable        bool    `json:"playable"`
				TileImageURL    *string `json:"tileImageUrl"`
			} `json:"items"`
		} `json:"categories"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Require().Len(body.Categories, 2)

	clip := body.Categories[0].Items[0]
	s.Equal("large", clip.Layout)
	s.True(clip.Playable)
	s.Nil(clip.TileImageURL)
	s.True(body.Categories[0].Items[1].RequiresESPNApp)

	league := body.Categories[1].Items[0]
	s.Equal("circle", league.Layout)
	s.False(league.Playable)
	s.Require().NotNil(league.TileImageURL)
	s.Equal("https://a.espncdn.com/i/teamlogos/nba.png?crop=1&format=jpg&height=100&width=100", *league.TileImageURL)

	rec = s.do(http.MethodGet, "/v1/watch?live=true", "", nil)
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Len(body.Categories, 1)
}

func (s *RouterTestSuite) TestPlay_DirectVideo() {
	rec := s.do(http.MethodPost, "/v1/watch/play", `{"contentId":"clip"}`, nil)

	s.Require().Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal("play", body["action"])
	s.Equal("https://cdn.example.com/a.mp4", body["url"])
	s.NotEmpty(rec.Header().Get(SessionHeader))
	s.Equal(rec.Header().Get(SessionHeader), body["sessionId"])
}

func (s *RouterTestSuite) TestPlay_ExternalAppPromptPerSession() {
	header := http.Header{SessionHeader: []string{"session-1"}}

	first := s.do(http.MethodPost, "/v1/watch/play", `{"contentId":"game"}`, header)
	s.Require().Equal(http.StatusOK, first.Code)
	s.Equal("session-1", first.Header().Get(SessionHeader))
	s.Equal("confirm_external_app", s.decode(first)["action"])

	time.Sleep(time.Millisecond)
	second := s.do(http.MethodPost, "/v1/watch/play", `{"contentId":"game"}`, header)
	s.Require().Equal(http.StatusOK, second.Code)
	s.Equal("open_external_app", s.decode(second)["action"])

	other := s.do(http.MethodPost, "/v1/watch/play", `{"contentId":"game"}`, http.Header{SessionHeader: []string{"session-2"}})
	s.Equal("confirm_external_app", s.decode(other)["action"])
}

func (s *RouterTestSuite) TestPlay_Errors() {
	rec := s.do(http.MethodPost, "/v1/watch/play", `{"contentId":"  "}`, nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/watch/play", `{"contentId":"missing"}`, nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/v1/watch/play", `{"contentId":"nba"}`, nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal(playback.ErrNotPlayable.Error(), s.decode(rec)["error"])

	rec = s.do(http.MethodPost, "/v1/watch/play", `{"contentId":"replay"}`, nil)
	s.Equal(http.StatusBadGateway, rec.Code)
	s.Equal(playback.ErrResolveFailed.Error(), s.decode(rec)["error"])
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	limiter := newIPRateLimiter(1, 2)
	limiter.now = func() time.Time { return now }

	e := echo.New()
	e.Use(rateLimit(limiter, logger))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	if hit("10.0.0.1") != http.StatusNoContent || hit("10.0.0.1") != http.StatusNoContent {
		t.Fatal("expected burst to be allowed")
	}
	if got := hit("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", got)
	}
	if got := hit("10.0.0.2"); got != http.StatusNoContent {
		t.Fatalf("expected other clients unaffected, got %d", got)
	}

	now = now.Add(10 * time.Minute)
	hit("10.0.0.3")
	if _, ok := limiter.clients["10.0.0.1"]; ok {
		t.Fatal("expected idle client to be pruned")
	}
}
