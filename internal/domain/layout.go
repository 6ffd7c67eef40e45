package domain

import "strings"

type LayoutType string

const (
	LayoutLarge  LayoutType = "large"
	LayoutMedium LayoutType = "medium"
	LayoutSmall  LayoutType = "small"
	LayoutCircle LayoutType = "circle"
	LayoutSquare LayoutType = "square"
	LayoutPoster LayoutType = "poster"
	LayoutShow   LayoutType = "show"
)

// layoutRule yields a layout when it applies. Rules are evaluated in order
// and the first match wins.
type layoutRule struct {
	name  string
	apply func(v VideoItem) (LayoutType, bool)
}

var layoutRules = []layoutRule{
	{name: "playable", apply: playableLayout},
	{name: "league", apply: leagueLayout},
	{name: "network", apply: networkLayout},
	{name: "aspect_ratio", apply: aspectRatioLayout},
	{name: "content_type", apply: contentTypeLayout},
}

var (
	leagueMarkers  = []string{"league", "sport", "conference"}
	networkMarkers = []string{"network", "channel", "brand"}
)

// Layout classifies how the item is rendered.
func (v VideoItem) Layout() LayoutType {
	layout, _ := v.layoutWithRule()
	return layout
}

func (v VideoItem) layoutWithRule() (LayoutType, string) {
	for _, r := range layoutRules {
		if layout, ok := r.apply(v); ok {
			return layout, r.name
		}
	}
	return SizeLayout(v.Size), "size"
}

// SizeLayout maps a size hint to one of the banded layouts.
func SizeLayout(size string) LayoutType {
	switch strings.ToLower(strings.TrimSpace(size)) {
	case "lg", "large":
		return LayoutLarge
	case "sm", "small":
		return LayoutSmall
	default:
		return LayoutMedium
	}
}

func playableLayout(v VideoItem) (LayoutType, bool) {
	if !v.IsPlayable() {
		return "", false
	}
	return SizeLayout(v.Size), true
}

func leagueLayout(v VideoItem) (LayoutType, bool) {
	return LayoutCircle, v.mentions(leagueMarkers)
}

func networkLayout(v VideoItem) (LayoutType, bool) {
	return LayoutSquare, v.mentions(networkMarkers)
}

func aspectRatioLayout(v VideoItem) (LayoutType, bool) {
	if v.AspectRatio == nil {
		return "", false
	}
	switch strings.TrimSpace(*v.AspectRatio) {
	case "16:9":
		return SizeLayout(v.Size), true
	case "1:1":
		return LayoutSquare, true
	case "2:3":
		return LayoutPoster, true
	case "4:3":
		return LayoutShow, true
	case "58:13":
		return LayoutLarge, true
	}
	return "", false
}

func contentTypeLayout(v VideoItem) (LayoutType, bool) {
	t := strings.ToLower(v.ContentType)
	switch {
	case strings.Contains(t, "movie"), strings.Contains(t, "film"):
		return LayoutPoster, true
	case strings.Contains(t, "show"):
		return LayoutShow, true
	}
	return "", false
}

// mentions checks the content type, title and tags for any marker.
func (v VideoItem) mentions(markers []string) bool {
	fields := make([]string, 0, len(v.Tags)+2)
	fields = append(fields, strings.ToLower(v.ContentType), strings.ToLower(v.Title))
	for _, t := range v.Tags {
		fields = append(fields, strings.ToLower(t))
	}
	for _, f := range fields {
		for _, m := range markers {
			if strings.Contains(f, m) {
				return true
			}
		}
	}
	return false
}
