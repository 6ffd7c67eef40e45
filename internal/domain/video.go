package domain

import (
	"strings"
	"time"
)

const TagTileOnly = "tile-only"

// VideoItem is a normalized entry of a watch bucket. Derived values such as
// Layout and RequiresESPNApp are computed from the stored fields on demand.
type VideoItem struct {
	Title        string         `json:"title"`
	Description  *string        `json:"description,omitempty"`
	ThumbnailURL *string        `json:"thumbnailUrl,omitempty"`
	VideoURL     *string        `json:"videoUrl,omitempty"`
	Duration     *time.Duration `json:"duration,omitempty"`
	PublishedAt  time.Time      `json:"publishedAt"`
	Sport        *string        `json:"sport,omitempty"`
	League       *string        `json:"league,omitempty"`
	IsLive       bool           `json:"isLive"`
	Tags         []string       `json:"tags"`
	Autoplay     bool           `json:"autoplay"`
	ShowMetadata bool           `json:"showMetadata"`
	Size         string         `json:"size"`
	ContentType  string         `json:"contentType"`
	Network      *string        `json:"network,omitempty"`
	IsReAir      bool           `json:"isReAir"`
	EventName    *string        `json:"eventName,omitempty"`
	AspectRatio  *string        `json:"aspectRatio,omitempty"`
	AuthTypes    []string       `json:"authTypes,omitempty"`
	StreamingURL *string        `json:"streamingUrl,omitempty"`
	ContentID    *string        `json:"contentId,omitempty"`
	IsEvent      *bool          `json:"isEvent,omitempty"`
	AppLinkURL   *string        `json:"appLinkUrl,omitempty"`
}

var appAuthTypes = map[string]struct{}{
	"mvpd":     {},
	"direct":   {},
	"flagship": {},
	"isp":      {},
}

// RequiresESPNApp reports whether playback is gated behind the vendor app.
func (v VideoItem) RequiresESPNApp() bool {
	for _, t := range v.AuthTypes {
		if _, ok := appAuthTypes[strings.ToLower(strings.TrimSpace(t))]; ok {
			return true
		}
	}
	return false
}

// IsPlayable reports whether the item has anything to start playback with.
func (v VideoItem) IsPlayable() bool {
	return nonEmpty(v.VideoURL) || nonEmpty(v.StreamingURL) || nonEmpty(v.AppLinkURL) ||
		v.IsLive || (v.IsEvent != nil && *v.IsEvent)
}

// HasTag matches tags case-insensitively.
func (v VideoItem) HasTag(tag string) bool {
	for _, t := range v.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func (v VideoItem) TileOnly() bool {
	return v.HasTag(TagTileOnly)
}

// VideoCategory is one bucket (row) of the watch page.
type VideoCategory struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Items       []VideoItem `json:"items"`
	IsLive      bool        `json:"isLive"`
	Priority    int         `json:"priority"`
	Tags        []string    `json:"tags"`
	ShowTitle   bool        `json:"showTitle"`
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
