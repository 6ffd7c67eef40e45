package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type ArticleType string

const (
	ArticleTypeNews     ArticleType = "news"
	ArticleTypeVideo    ArticleType = "video"
	ArticleTypePodcast  ArticleType = "podcast"
	ArticleTypeAnalysis ArticleType = "analysis"
)

const (
	DefaultArticleTitle  = "Untitled"
	DefaultArticleAuthor = "ESPN Staff"
)

// Article is the display record built from an upstream news entry.
// Likes and Comments stay zero: upstream never reports engagement.
type Article struct {
	ID           uuid.UUID   `json:"id"`
	SourceID     string      `json:"sourceId"`
	Feed         string      `json:"feed"`
	Title        string      `json:"title"`
	Subtitle     *string     `json:"subtitle,omitempty"`
	Author       string      `json:"author"`
	PublishedAt  time.Time   `json:"publishedAt"`
	LastModified time.Time   `json:"lastModified"`
	ImageURL     *string     `json:"imageUrl,omitempty"`
	Body         string      `json:"body"`
	Type         ArticleType `json:"type"`
	ReadMinutes  int         `json:"readMinutes"`
	Sport        *string     `json:"sport,omitempty"`
	RelatedTeams []string    `json:"relatedTeams"`
	Likes        int         `json:"likes"`
	Comments     int         `json:"comments"`
	Premium      bool        `json:"premium"`
	ArticleURL   *string     `json:"articleUrl,omitempty"`
	VideoURL     *string     `json:"videoUrl,omitempty"`
}

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("not found")

// ArticleFilter narrows an article listing. Zero values mean no constraint.
type ArticleFilter struct {
	Feed   string
	Sport  string
	Type   ArticleType
	Limit  int
	Offset int
}

type SyncState struct {
	ID            int64     `db:"id"`
	SourceID      string    `db:"source_id"`
	Feed          string    `db:"feed"`
	LastSyncedAt  time.Time `db:"last_synced_at"`
	LastArticleID string    `db:"last_article_id"`
	TotalSynced   int64     `db:"total_synced"`
}
