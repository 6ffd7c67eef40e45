package normalizer

import (
	"log/slog"
	"strings"
	"time"

	"espn_feed/internal/domain"
)

const (
	descriptionSeparator = " • "
	liveTag              = "live"
	statusLive           = "live"
)

// VideoFeedNormalizer flattens a watch page into categories of video items.
// It is a pure transform: identical input and clock give identical output.
type VideoFeedNormalizer struct {
	opts   options
	images ImageRewriter
	logger *slog.Logger
}

func NewVideoFeedNormalizer(logger *slog.Logger, opts ...Option) *VideoFeedNormalizer {
	o := buildOptions(opts)
	return &VideoFeedNormalizer{
		opts:   o,
		images: NewImageRewriter(o.cdnHost),
		logger: logger.With("normalizer", "video"),
	}
}

// Images exposes the rewriter configured for this normalizer's CDN host.
func (n *VideoFeedNormalizer) Images() ImageRewriter {
	return n.images
}

// Normalize decodes a watch page. Malformed or non-object payloads yield an
// empty slice; buckets whose contents were all dropped are still returned.
func (n *VideoFeedNormalizer) Normalize(data []byte) []domain.VideoCategory {
	var page WatchPage
	partial, err := decodeFeed(data, &page)
	if err != nil {
		n.logger.Warn("discarding malformed watch feed", "error", err, "bytes", len(data))
		return []domain.VideoCategory{}
	}
	if partial {
		n.logger.Debug("watch feed has mistyped fields")
	}

	now := n.opts.now()
	buckets := page.buckets()
	categories := make([]domain.VideoCategory, 0, len(buckets))
	for i, b := range buckets {
		categories = append(categories, n.normalizeBucket(i, b, now))
	}
	return categories
}

func (n *VideoFeedNormalizer) normalizeBucket(index int, b RawBucket, now time.Time) domain.VideoCategory {
	name := value(b.Name)
	category := domain.VideoCategory{
		Name:        name,
		Description: value(b.Description),
		Items:       make([]domain.VideoItem, 0, len(b.Contents)),
		IsLive:      b.IsLive != nil && *b.IsLive,
		Priority:    index,
		Tags:        mergeTags(b.Tags),
		ShowTitle:   name != "",
	}
	if b.Priority != nil {
		category.Priority = *b.Priority
	}
	if b.ShowTitle != nil {
		category.ShowTitle = *b.ShowTitle && name != ""
	}

	for _, c := range b.Contents {
		item, ok := n.normalizeContent(c, b.Tags, now)
		if !ok {
			n.logger.Debug("skipping untitled content", "bucket", name, "content_id", c.ID)
			continue
		}
		if item.IsLive {
			category.IsLive = true
		}
		category.Items = append(category.Items, item)
	}

	return category
}

// NormalizeContent converts one bucket entry. It reports false when no title
// can be resolved, in which case the entry must be dropped.
func (n *VideoFeedNormalizer) NormalizeContent(c RawVideoContent, bucketTags []string) (domain.VideoItem, bool) {
	return n.normalizeContent(c, bucketTags, n.opts.now())
}

func (n *VideoFeedNormalizer) normalizeContent(c RawVideoContent, bucketTags []string, now time.Time) (domain.VideoItem, bool) {
	title := resolveTitle(c)
	if title == "" {
		return domain.VideoItem{}, false
	}

	subtitle := value(c.Subtitle)
	status := value(c.Status)
	isLive := (c.IsLive != nil && *c.IsLive) || strings.EqualFold(status, statusLive)

	var synthesized []string
	if isLive {
		synthesized = []string{liveTag}
	}
	tags := mergeTags(bucketTags, c.Tags, synthesized)

	publishedAt, ok := firstTime(c.UTC, c.Date, c.OriginalAirDate)
	if !ok {
		publishedAt = now
	}

	md := decomposeSubtitle(subtitle)
	league := md.League
	if league == nil {
		league = optional(value(c.League))
	}

	item := domain.VideoItem{
		Title:        title,
		Description:  joinDescription(subtitle, status),
		ThumbnailURL: n.images.selectThumbnail(c),
		PublishedAt:  publishedAt,
		Sport:        optional(value(c.Sport)),
		League:       league,
		IsLive:       isLive,
		Tags:         tags,
		Autoplay:     c.Autoplay != nil && *c.Autoplay,
		ShowMetadata: !containsFold(tags, domain.TagTileOnly),
		Size:         value(c.Size),
		ContentType:  value(c.Type),
		Network:      md.Network,
		IsReAir:      isReAir(subtitle, tags, value(c.Description)),
		EventName:    eventName(c, title),
		AspectRatio:  optional(value(c.Ratio)),
		AuthTypes:    cleanList(c.AuthTypes),
		StreamingURL: optional(value(c.StreamingURL)),
		ContentID:    optional(c.ID.String()),
	}

	if c.Duration.Valid {
		d := c.Duration.Value
		item.Duration = &d
	}

	if c.Links != nil {
		item.VideoURL = optional(value(c.Links.Source))
		item.AppLinkURL = optional(value(c.Links.AppPlay))
		if item.StreamingURL == nil {
			item.StreamingURL = optional(value(c.Links.Play))
		}
	}

	if c.IsEvent != nil {
		isEvent := *c.IsEvent
		item.IsEvent = &isEvent
	}

	return item, true
}

func resolveTitle(c RawVideoContent) string {
	return firstNonEmpty(c.Title, c.Name, c.Headline, c.ShortName)
}

func joinDescription(parts ...string) *string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	joined := strings.Join(kept, descriptionSeparator)
	return &joined
}

func cleanList(list []string) []string {
	var out []string
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
