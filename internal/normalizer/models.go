package normalizer

// NewsFeed is the news endpoint envelope.
type NewsFeed struct {
	Header   string       `json:"header"`
	Articles []RawArticle `json:"articles"`
}

// RawArticle is a news entry as upstream sends it. Every field may be absent.
type RawArticle struct {
	ID           FlexString       `json:"id"`
	Headline     *string          `json:"headline"`
	Description  *string          `json:"description"`
	Story        *string          `json:"story"`
	Byline       *string          `json:"byline"`
	Published    *string          `json:"published"`
	LastModified *string          `json:"lastModified"`
	Type         *string          `json:"type"`
	Premium      *bool            `json:"premium"`
	Images       []RawImage       `json:"images"`
	Video        []RawVideo       `json:"video"`
	Categories   []RawCategory    `json:"categories"`
	Links        *RawArticleLinks `json:"links"`
}

type RawImage struct {
	URL     *string `json:"url"`
	Caption *string `json:"caption"`
}

type RawVideo struct {
	ID       FlexString     `json:"id"`
	Headline *string        `json:"headline"`
	Links    *RawVideoLinks `json:"links"`
}

type RawVideoLinks struct {
	Source *RawHref `json:"source"`
	Mobile *RawHref `json:"mobile"`
}

type RawCategory struct {
	Type    *string    `json:"type"`
	SportID *int64     `json:"sportId"`
	League  *RawLeague `json:"league"`
}

type RawLeague struct {
	ID           FlexString `json:"id"`
	Description  *string    `json:"description"`
	Abbreviation *string    `json:"abbreviation"`
}

type RawArticleLinks struct {
	Web    *RawHref `json:"web"`
	Mobile *RawHref `json:"mobile"`
}

type RawHref struct {
	Href *string `json:"href"`
}

func (h *RawHref) value() string {
	if h == nil {
		return ""
	}
	return value(h.Href)
}

// WatchPage is the watch endpoint envelope. Some responses nest buckets
// under "page", others return them at the top level.
type WatchPage struct {
	Page    *RawPage    `json:"page"`
	Buckets []RawBucket `json:"buckets"`
}

type RawPage struct {
	ID      FlexString  `json:"id"`
	Name    *string     `json:"name"`
	Buckets []RawBucket `json:"buckets"`
}

func (p WatchPage) buckets() []RawBucket {
	if p.Page != nil && len(p.Page.Buckets) > 0 {
		return p.Page.Buckets
	}
	return p.Buckets
}

// RawBucket is one row of the watch page.
type RawBucket struct {
	ID          FlexString        `json:"id"`
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Tags        []string          `json:"tags"`
	Priority    *int              `json:"priority"`
	IsLive      *bool             `json:"isLive"`
	ShowTitle   *bool             `json:"showTitle"`
	Contents    []RawVideoContent `json:"contents"`
}

// RawVideoContent is a flat, loosely typed entry of a bucket.
type RawVideoContent struct {
	ID                  FlexString       `json:"id"`
	Type                *string          `json:"type"`
	Name                *string          `json:"name"`
	Title               *string          `json:"title"`
	Headline            *string          `json:"headline"`
	ShortName           *string          `json:"shortName"`
	Description         *string          `json:"description"`
	Status              *string          `json:"status"`
	Subtitle            *string          `json:"subtitle"`
	ImageHref           *string          `json:"imageHref"`
	BackgroundImageHref *string          `json:"backgroundImageHref"`
	IconHref            *string          `json:"iconHref"`
	Duration            Seconds          `json:"duration"`
	IsLive              *bool            `json:"isLive"`
	IsEvent             *bool            `json:"isEvent"`
	IsLocked            *bool            `json:"isLocked"`
	IsPremium           *bool            `json:"isPremium"`
	UTC                 *string          `json:"utc"`
	Date                *string          `json:"date"`
	OriginalAirDate     *string          `json:"originalAirDate"`
	Ratio               *string          `json:"ratio"`
	Size                *string          `json:"size"`
	Autoplay            *bool            `json:"autoplay"`
	AuthTypes           []string         `json:"authTypes"`
	Tags                []string         `json:"tags"`
	EventType           *string          `json:"eventType"`
	Sport               *string          `json:"sport"`
	League              *string          `json:"league"`
	StreamingURL        *string          `json:"streamingURL"`
	Links               *RawContentLinks `json:"links"`
}

type RawContentLinks struct {
	Play    *string `json:"play"`
	AppPlay *string `json:"appPlay"`
	Source  *string `json:"source"`
	Web     *string `json:"web"`
}
