package extract

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// CaptionFetcher returns the caption text of an online video.
type CaptionFetcher interface {
	Captions(ctx context.Context, videoURL, language string) (string, error)
}

// captionTrack is the subset of a video's caption metadata needed to pick
// and download a track.
type captionTrack struct {
	LanguageCode string
	Kind         string
	BaseURL      string
}

// YouTubeCaptions downloads caption tracks through the YouTube player API.
type YouTubeCaptions struct {
	client *youtube.Client
	http   *http.Client
}

// NewYouTubeCaptions creates a caption fetcher. A nil httpClient uses
// http.DefaultClient.
func NewYouTubeCaptions(httpClient *http.Client) *YouTubeCaptions {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &YouTubeCaptions{
		client: &youtube.Client{HTTPClient: httpClient},
		http:   httpClient,
	}
}

// Captions implements CaptionFetcher.
func (y *YouTubeCaptions) Captions(ctx context.Context, videoURL, language string) (string, error) {
	video, err := y.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return "", fmt.Errorf("failed to load video metadata: %w", err)
	}

	tracks := make([]captionTrack, 0, len(video.CaptionTracks))
	for _, t := range video.CaptionTracks {
		tracks = append(tracks, captionTrack{LanguageCode: t.LanguageCode, Kind: t.Kind, BaseURL: t.BaseURL})
	}
	track, ok := pickCaptionTrack(tracks, language)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoCaptions, videoURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.BaseURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build caption request: %w", err)
	}
	resp, err := y.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("caption request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption request returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxFileBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read captions: %w", err)
	}
	return parseCaptions(body)
}

// pickCaptionTrack prefers a manual track in language, then an automatic
// one, then the first track available.
func pickCaptionTrack(tracks []captionTrack, language string) (captionTrack, bool) {
	if len(tracks) == 0 {
		return captionTrack{}, false
	}
	if language != "" {
		var auto *captionTrack
		for i, t := range tracks {
			if !strings.EqualFold(t.LanguageCode, language) {
				continue
			}
			if t.Kind != "asr" {
				return t, true
			}
			if auto == nil {
				auto = &tracks[i]
			}
		}
		if auto != nil {
			return *auto, true
		}
	}
	return tracks[0], true
}

// timedText covers both caption formats YouTube serves: the srv3
// <timedtext><body><p><s> layout and the legacy <transcript><text> one.
type timedText struct {
	XMLName    xml.Name
	Paragraphs []struct {
		Text     string `xml:",chardata"`
		Segments []struct {
			Text string `xml:",chardata"`
		} `xml:"s"`
	} `xml:"body>p"`
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

func parseCaptions(data []byte) (string, error) {
	var doc timedText
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to parse captions: %w", err)
	}

	var lines []string
	add := func(s string) {
		s = strings.Join(strings.Fields(html.UnescapeString(s)), " ")
		if s != "" {
			lines = append(lines, s)
		}
	}
	for _, p := range doc.Paragraphs {
		if len(p.Segments) == 0 {
			add(p.Text)
			continue
		}
		var b strings.Builder
		for _, seg := range p.Segments {
			b.WriteString(seg.Text)
		}
		add(b.String())
	}
	for _, l := range doc.Lines {
		add(l.Text)
	}

	if len(lines) == 0 {
		return "", ErrNoCaptions
	}
	return strings.Join(lines, "\n"), nil
}
