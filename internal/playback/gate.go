// Package playback decides what a tap on a video tile does.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"espn_feed/internal/domain"
)

const (
	DefaultIndirectionMarker = "/playback/video/"
	DefaultDebounce          = 300 * time.Millisecond
	DefaultResolveTimeout    = 15 * time.Second
)

var (
	// ErrNotPlayable is shown to the user when an item has nothing to play.
	ErrNotPlayable = errors.New("video is not available for playback")

	// ErrResolveFailed is shown once when an indirection URL cannot be resolved.
	ErrResolveFailed = errors.New("unable to start playback")
)

// Action is what the client should do with a tap. ActionIgnored means the
// tap was coalesced or a resolution is in flight; ActionNone is an
// informational tile.
type Action string

const (
	ActionIgnored            Action = "ignored"
	ActionNone               Action = "none"
	ActionPlay               Action = "play"
	ActionConfirmExternalApp Action = "confirm_external_app"
	ActionOpenExternalApp    Action = "open_external_app"
)

type Decision struct {
	Action Action `json:"action"`
	URL    string `json:"url,omitempty"`
}

// Resolver turns an indirection URL into a playable one.
type Resolver interface {
	ResolvePlaybackURL(ctx context.Context, url string) (string, error)
}

// Session is the state shared by all taps of one app session.
type Session struct {
	appPromptShown atomic.Bool
}

func NewSession() *Session {
	return &Session{}
}

// claimAppPrompt reports true only for the first external-app hand-off.
func (s *Session) claimAppPrompt() bool {
	return s.appPromptShown.CompareAndSwap(false, true)
}

type Config struct {
	IndirectionMarker string
	Debounce          time.Duration
	ResolveTimeout    time.Duration
}

type Option func(*Gate)

// WithClock sets the time source for tap coalescing.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// Gate applies the tap-to-play policy for one session. At most one
// resolution runs at a time; taps during it are dropped, not queued.
type Gate struct {
	resolver       Resolver
	session        *Session
	marker         string
	resolveTimeout time.Duration
	taps           *rate.Limiter
	now            func() time.Time
	resolving      atomic.Bool
	logger         *slog.Logger
}

func NewGate(resolver Resolver, session *Session, cfg Config, logger *slog.Logger, opts ...Option) *Gate {
	if cfg.IndirectionMarker == "" {
		cfg.IndirectionMarker = DefaultIndirectionMarker
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultResolveTimeout
	}

	g := &Gate{
		resolver:       resolver,
		session:        session,
		marker:         cfg.IndirectionMarker,
		resolveTimeout: cfg.ResolveTimeout,
		taps:           rate.NewLimiter(rate.Every(cfg.Debounce), 1),
		now:            time.Now,
		logger:         logger.With("component", "playback"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Play decides the action for a tap on item. Returned errors are meant for
// the user: ErrNotPlayable or a wrapped ErrResolveFailed.
func (g *Gate) Play(ctx context.Context, item domain.VideoItem) (Decision, error) {
	if g.resolving.Load() {
		g.logger.Debug("tap ignored, resolution in flight", "title", item.Title)
		return Decision{Action: ActionIgnored}, nil
	}
	if !g.taps.AllowN(g.now(), 1) {
		g.logger.Debug("tap coalesced", "title", item.Title)
		return Decision{Action: ActionIgnored}, nil
	}

	if item.RequiresESPNApp() {
		return g.externalApp(item), nil
	}

	if stream := deref(item.StreamingURL); stream != "" {
		if strings.Contains(stream, g.marker) {
			return g.resolve(ctx, item, stream)
		}
		return Decision{Action: ActionPlay, URL: stream}, nil
	}

	if video := deref(item.VideoURL); video != "" {
		return Decision{Action: ActionPlay, URL: video}, nil
	}

	if deref(item.AppLinkURL) != "" {
		return g.externalApp(item), nil
	}

	if item.TileOnly() {
		return Decision{Action: ActionNone}, nil
	}

	g.logger.Info("item not playable", "title", item.Title, "content_id", deref(item.ContentID))
	return Decision{}, ErrNotPlayable
}

func (g *Gate) externalApp(item domain.VideoItem) Decision {
	action := ActionOpenExternalApp
	if g.session.claimAppPrompt() {
		action = ActionConfirmExternalApp
	}
	return Decision{Action: action, URL: deref(item.AppLinkURL)}
}

func (g *Gate) resolve(ctx context.Context, item domain.VideoItem, stream string) (Decision, error) {
	if !g.resolving.CompareAndSwap(false, true) {
		return Decision{Action: ActionIgnored}, nil
	}
	defer g.resolving.Store(false)

	ctx, cancel := context.WithTimeout(ctx, g.resolveTimeout)
	defer cancel()

	playable, err := g.resolver.ResolvePlaybackURL(ctx, stream)
	if err != nil {
		g.logger.Warn("playback resolution failed", "title", item.Title, "error", err)
		return Decision{}, fmt.Errorf("%w: %w", ErrResolveFailed, err)
	}
	return Decision{Action: ActionPlay, URL: playable}, nil
}

// Resolving reports whether a resolution is in flight.
func (g *Gate) Resolving() bool {
	return g.resolving.Load()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
