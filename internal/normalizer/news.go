package normalizer

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"espn_feed/internal/domain"
)

var articleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://www.espn.com/news"))

// Sport names for the upstream numeric sport identifiers.
var sportNames = map[int64]string{
	1:    "baseball",
	20:   "football",
	40:   "basketball",
	70:   "hockey",
	600:  "soccer",
	850:  "tennis",
	1100: "golf",
	1200: "cricket",
	2000: "racing",
	3301: "mma",
}

// NewsNormalizer turns upstream news entries into articles. It never fails:
// every missing field has a default.
type NewsNormalizer struct {
	opts   options
	logger *slog.Logger
}

func NewNewsNormalizer(logger *slog.Logger, opts ...Option) *NewsNormalizer {
	return &NewsNormalizer{
		opts:   buildOptions(opts),
		logger: logger.With("normalizer", "news"),
	}
}

// NormalizeFeed decodes a news payload. Garbled input yields an empty slice.
func (n *NewsNormalizer) NormalizeFeed(data []byte) []domain.Article {
	var feed NewsFeed
	partial, err := decodeFeed(data, &feed)
	if err != nil {
		n.logger.Warn("discarding malformed news feed", "error", err, "bytes", len(data))
		return []domain.Article{}
	}
	if partial {
		n.logger.Debug("news feed has mistyped fields")
	}

	now := n.opts.now()
	articles := make([]domain.Article, 0, len(feed.Articles))
	for _, raw := range feed.Articles {
		articles = append(articles, n.normalize(raw, now))
	}
	return articles
}

// Normalize converts a single entry, sampling the clock once for defaults.
func (n *NewsNormalizer) Normalize(raw RawArticle) domain.Article {
	return n.normalize(raw, n.opts.now())
}

func (n *NewsNormalizer) normalize(raw RawArticle, now time.Time) domain.Article {
	publishedAt, ok := firstTime(raw.Published)
	if !ok {
		if value(raw.Published) != "" {
			n.logger.Debug("unparsable publish date", "id", raw.ID, "published", value(raw.Published))
		}
		publishedAt = now
	}

	lastModified, ok := firstTime(raw.LastModified)
	if !ok {
		lastModified = publishedAt
	}

	title := value(raw.Headline)
	if title == "" {
		title = domain.DefaultArticleTitle
	}

	author := value(raw.Byline)
	if author == "" {
		author = domain.DefaultArticleAuthor
	}

	body := HTMLToText(value(raw.Story))
	if body == "" {
		body = value(raw.Description)
	}

	article := domain.Article{
		ID:           articleID(raw),
		Title:        title,
		Subtitle:     optional(value(raw.Description)),
		Author:       author,
		PublishedAt:  publishedAt,
		LastModified: lastModified,
		Body:         body,
		Type:         classifyArticle(raw),
		ReadMinutes:  ReadMinutes(body),
		Sport:        articleSport(raw.Categories),
		Premium:      raw.Premium != nil && *raw.Premium,
	}

	for _, img := range raw.Images {
		if u := value(img.URL); u != "" {
			article.ImageURL = &u
			break
		}
	}

	if raw.Links != nil {
		article.ArticleURL = optional(raw.Links.Web.value())
	}

	for _, v := range raw.Video {
		if v.Links == nil {
			continue
		}
		u := v.Links.Source.value()
		if u == "" {
			u = v.Links.Mobile.value()
		}
		if u != "" {
			article.VideoURL = &u
			break
		}
	}

	return article
}

// classifyArticle picks the article type. An embedded video always wins.
func classifyArticle(raw RawArticle) domain.ArticleType {
	if len(raw.Video) > 0 {
		return domain.ArticleTypeVideo
	}

	t := strings.ToLower(value(raw.Type))
	switch {
	case strings.Contains(t, "video"):
		return domain.ArticleTypeVideo
	case strings.Contains(t, "podcast"):
		return domain.ArticleTypePodcast
	case strings.Contains(t, "analysis"), strings.Contains(t, "story"):
		return domain.ArticleTypeAnalysis
	default:
		return domain.ArticleTypeNews
	}
}

func articleSport(categories []RawCategory) *string {
	for _, c := range categories {
		if c.League != nil {
			if s := firstNonEmpty(c.League.Abbreviation, c.League.Description); s != "" {
				return &s
			}
		}
	}
	for _, c := range categories {
		if c.SportID == nil {
			continue
		}
		if name, ok := sportNames[*c.SportID]; ok {
			return &name
		}
	}
	return nil
}

// articleID is stable across syncs whenever upstream gives anything to key on.
func articleID(raw RawArticle) uuid.UUID {
	var key string
	switch {
	case raw.ID != "":
		key = "id:" + raw.ID.String()
	case raw.Links != nil && raw.Links.Web.value() != "":
		key = "url:" + raw.Links.Web.value()
	case value(raw.Headline) != "":
		key = "headline:" + value(raw.Headline) + "|" + value(raw.Published)
	default:
		return uuid.New()
	}
	return uuid.NewSHA1(articleNamespace, []byte(key))
}
