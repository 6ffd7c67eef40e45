package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"espn_feed/internal/apperr"
	"espn_feed/internal/domain"
	"espn_feed/internal/normalizer"
	"espn_feed/internal/playback"
)

// SessionHeader identifies the client app session for the play endpoint.
const SessionHeader = "X-Session-ID"

const maxPageSize = 100

type ArticleReader interface {
	List(ctx context.Context, f domain.ArticleFilter) ([]domain.Article, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Article, error)
}

type WatchReader interface {
	ListCategories(ctx context.Context) ([]domain.VideoCategory, error)
	GetItemByContentID(ctx context.Context, contentID string) (*domain.VideoItem, error)
}

type SyncStateReader interface {
	List(ctx context.Context) ([]domain.SyncState, error)
}

// Gates hands out the playback gate of a session.
type Gates interface {
	Gate(sessionID string) *playback.Gate
}

type Router struct {
	e        *echo.Echo
	articles ArticleReader
	watch    WatchReader
	state    SyncStateReader
	gates    Gates
	images   normalizer.ImageRewriter
	pageSize int
}

func NewRouter(
	e *echo.Echo,
	articles ArticleReader,
	watch WatchReader,
	state SyncStateReader,
	gates Gates,
	images normalizer.ImageRewriter,
	pageSize int,
) *Router {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Router{
		e:        e,
		articles: articles,
		watch:    watch,
		state:    state,
		gates:    gates,
		images:   images,
		pageSize: pageSize,
	}
}

func (r *Router) Bind() {
	r.e.GET("/healthz", r.healthHandler)

	v1 := r.e.Group("/v1")
	v1.GET("/news", r.listNewsHandler)
	v1.GET("/news/:id", r.getNewsHandler)
	v1.GET("/watch", r.watchHandler)
	v1.POST("/watch/play", r.playHandler)
}

func (r *Router) healthHandler(c echo.Context) error {
	states, err := r.state.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "sync": states})
}

func (r *Router) listNewsHandler(c echo.Context) error {
	limit, err := intParam(c, "limit", r.pageSize)
	if err != nil {
		return err
	}
	offset, err := intParam(c, "offset", 0)
	if err != nil {
		return err
	}
	switch {
	case limit == 0:
		limit = r.pageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}

	filter := domain.ArticleFilter{
		Feed:   c.QueryParam("feed"),
		Sport:  c.QueryParam("sport"),
		Type:   domain.ArticleType(strings.ToLower(c.QueryParam("type"))),
		Limit:  limit,
		Offset: offset,
	}

	articles, err := r.articles.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"articles": articles,
		"limit":    limit,
		"offset":   offset,
	})
}

func (r *Router) getNewsHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return &apperr.ValidationError{Message: "invalid article id", Err: err}
	}

	article, err := r.articles.Get(c.Request().Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "article not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, article)
}

// watchItem adds the presentation values derived from a stored item.
type watchItem struct {
	domain.VideoItem
	Layout          domain.LayoutType `json:"layout"`
	RequiresESPNApp bool              `json:"requiresEspnApp"`
	Playable        bool              `json:"playable"`
	TileImageURL    *string           `json:"tileImageUrl,omitempty"`
}

type watchCategory struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	IsLive      bool        `json:"isLive"`
	Priority    int         `json:"priority"`
	Tags        []string    `json:"tags"`
	ShowTitle   bool        `json:"showTitle"`
	Items       []watchItem `json:"items"`
}

func (r *Router) watchHandler(c echo.Context) error {
	categories, err := r.watch.ListCategories(c.Request().Context())
	if err != nil {
		return err
	}

	liveOnly := c.QueryParam("live") == "true"
	out := make([]watchCategory, 0, len(categories))
	for _, cat := range categories {
		if liveOnly && !cat.IsLive {
			continue
		}
		items := make([]watchItem, len(cat.Items))
		for i, item := range cat.Items {
			items[i] = r.presentItem(item)
		}
		out = append(out, watchCategory{
			Name:        cat.Name,
			Description: cat.Description,
			IsLive:      cat.IsLive,
			Priority:    cat.Priority,
			Tags:        cat.Tags,
			ShowTitle:   cat.ShowTitle,
			Items:       items,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"categories": out})
}

func (r *Router) presentItem(item domain.VideoItem) watchItem {
	layout := item.Layout()
	w := watchItem{
		VideoItem:       item,
		Layout:          layout,
		RequiresESPNApp: item.RequiresESPNApp(),
		Playable:        item.IsPlayable(),
	}
	if (layout == domain.LayoutCircle || layout == domain.LayoutSquare) && item.ThumbnailURL != nil {
		tile := r.images.SquareTile(*item.ThumbnailURL)
		w.TileImageURL = &tile
	}
	return w
}

type playRequest struct {
	ContentID string `json:"contentId"`
}

type playResponse struct {
	playback.Decision
	SessionID string `json:"sessionId"`
}

func (r *Router) playHandler(c echo.Context) error {
	var req playRequest
	if err := c.Bind(&req); err != nil {
		return &apperr.ValidationError{Message: "invalid request body", Err: err}
	}
	req.ContentID = strings.TrimSpace(req.ContentID)
	if req.ContentID == "" {
		return apperr.NewValidation("contentId is required")
	}

	sessionID := strings.TrimSpace(c.Request().Header.Get(SessionHeader))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	c.Response().Header().Set(SessionHeader, sessionID)

	ctx := c.Request().Context()
	item, err := r.watch.GetItemByContentID(ctx, req.ContentID)
	if errors.Is(err, domain.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "video not found")
	}
	if err != nil {
		return err
	}

	decision, err := r.gates.Gate(sessionID).Play(ctx, *item)
	switch {
	case errors.Is(err, playback.ErrNotPlayable):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, playback.ErrNotPlayable.Error())
	case errors.Is(err, playback.ErrResolveFailed):
		return echo.NewHTTPError(http.StatusBadGateway, playback.ErrResolveFailed.Error())
	case err != nil:
		return err
	}

	return c.JSON(http.StatusOK, playResponse{Decision: decision, SessionID: sessionID})
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperr.NewValidation(name + " must be a non-negative integer")
	}
	return v, nil
}
