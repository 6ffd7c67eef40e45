package publisher

import (
	"time"

	"espn_feed/internal/domain"
)

const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionSnapshot = "snapshot"

	KindArticle = "article"
	KindWatch   = "watch"
)

type ArticleMessage struct {
	Kind      string         `json:"kind"`
	Action    string         `json:"action"` // "create" or "update"
	Article   domain.Article `json:"article"`
	Timestamp time.Time      `json:"timestamp"`
}

// CategoriesMessage carries a full watch page snapshot.
type CategoriesMessage struct {
	Kind       string                 `json:"kind"`
	Action     string                 `json:"action"`
	Categories []domain.VideoCategory `json:"categories"`
	Items      int                    `json:"items"`
	Timestamp  time.Time              `json:"timestamp"`
}

func newArticleMessage(article *domain.Article, isNew bool, now time.Time) ArticleMessage {
	action := ActionUpdate
	if isNew {
		action = ActionCreate
	}
	return ArticleMessage{
		Kind:      KindArticle,
		Action:    action,
		Article:   *article,
		Timestamp: now.UTC(),
	}
}

func newCategoriesMessage(categories []domain.VideoCategory, now time.Time) CategoriesMessage {
	items := 0
	for _, c := range categories {
		items += len(c.Items)
	}
	return CategoriesMessage{
		Kind:       KindWatch,
		Action:     ActionSnapshot,
		Categories: categories,
		Items:      items,
		Timestamp:  now.UTC(),
	}
}
