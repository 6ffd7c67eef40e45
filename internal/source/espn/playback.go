package espn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoPlaybackURL is returned when the resolve response carries no stream.
var ErrNoPlaybackURL = errors.New("no playback url in response")

// playbackResponse is the indirection payload returned by playback endpoints.
type playbackResponse struct {
	URL         string `json:"url"`
	PlaybackURL string `json:"playbackUrl"`
	Stream      *struct {
		HLS      string `json:"hls"`
		Complete string `json:"complete"`
	} `json:"stream"`
	Source *struct {
		Href string `json:"href"`
	} `json:"source"`
}

func (r playbackResponse) playable() string {
	candidates := []string{r.PlaybackURL, r.URL}
	if r.Stream != nil {
		candidates = append(candidates, r.Stream.HLS, r.Stream.Complete)
	}
	if r.Source != nil {
		candidates = append(candidates, r.Source.Href)
	}
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

// ResolvePlaybackURL follows a playback indirection URL once. It does not retry.
func (s *Source) ResolvePlaybackURL(ctx context.Context, url string) (string, error) {
	body, err := s.doRequest(ctx, url)
	if err != nil {
		return "", fmt.Errorf("resolve playback: %w", err)
	}

	var resp playbackResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode playback response: %w", err)
	}

	playable := resp.playable()
	if playable == "" {
		return "", ErrNoPlaybackURL
	}
	return playable, nil
}
