package normalizer

import (
	"strings"
)

const subtitleSeparator = " • "

// League values that describe the airing rather than a competition.
var leagueStoplist = map[string]struct{}{
	"General": {},
	"RE-AIR":  {},
	"EN/ES":   {},
	"ES":      {},
}

// Substrings that identify a lone subtitle part as a network.
var networkNames = []string{
	"ESPN",
	"ABC",
	"SEC Network",
	"SECN",
	"ACC Network",
	"ACCN",
	"Longhorn Network",
	"NFL Network",
	"NBA TV",
	"MLB Network",
	"NHL Network",
}

var reAirTags = []string{"repeat", "reair", "replay"}

var reAirWords = []string{"re-air", "repeat", "replay"}

var genericEventTypes = []string{"game", "match", "event"}

// subtitleMetadata is what a "<network> • <league>" subtitle breaks down to.
type subtitleMetadata struct {
	Network *string
	League  *string
}

func decomposeSubtitle(subtitle string) subtitleMetadata {
	var parts []string
	for _, p := range strings.Split(subtitle, subtitleSeparator) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	switch len(parts) {
	case 0:
		return subtitleMetadata{}
	case 1:
		if isNetworkName(parts[0]) {
			return subtitleMetadata{Network: optional(parts[0])}
		}
		return subtitleMetadata{League: optional(parts[0])}
	}

	md := subtitleMetadata{Network: optional(parts[0])}
	if league := parts[len(parts)-1]; !isStoplistedLeague(league) {
		md.League = optional(league)
	}
	return md
}

func isNetworkName(s string) bool {
	for _, n := range networkNames {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func isStoplistedLeague(s string) bool {
	_, ok := leagueStoplist[s]
	return ok
}

// isReAir reports rebroadcasts. The subtitle marker is matched exactly as
// upstream emits it; tags and description are matched case-insensitively.
func isReAir(subtitle string, tags []string, description string) bool {
	if strings.Contains(subtitle, "RE-AIR") {
		return true
	}
	for _, t := range reAirTags {
		if containsFold(tags, t) {
			return true
		}
	}
	desc := strings.ToLower(description)
	for _, w := range reAirWords {
		if strings.Contains(desc, w) {
			return true
		}
	}
	return false
}

// eventName finds a name for the event that is not just the title again.
func eventName(c RawVideoContent, title string) *string {
	if et := value(c.EventType); et != "" && !isGenericEventType(et) && et != title {
		return &et
	}
	for _, candidate := range []*string{c.Headline, c.ShortName, c.Name} {
		if v := value(candidate); v != "" && v != title {
			return &v
		}
	}
	return nil
}

func isGenericEventType(s string) bool {
	for _, g := range genericEventTypes {
		if strings.EqualFold(s, g) {
			return true
		}
	}
	return false
}
