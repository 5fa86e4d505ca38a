package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shawhin/yt-index/internal/pipeline"
	"github.com/shawhin/yt-index/internal/table"
)

// Transcript fetching.
// Primary:  scrape watch page ytInitialPlayerResponse → caption track XML
// Fallback: ANDROID Innertube /player → captionTracks

// Fragment is one caption cue as served by the timedtext endpoint.
type Fragment struct {
	Text     string
	Start    float64
	Duration float64
}

// JoinFragments concatenates fragment texts with single spaces, preserving
// order and skipping empty cues.
func JoinFragments(frags []Fragment) string {
	var sb strings.Builder
	for _, f := range frags {
		if f.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(f.Text)
	}
	return sb.String()
}

// fetchTranscript is swappable for tests.
var fetchTranscript = FetchTranscript

// FetchAll attempts a transcript for every cataloged video. Any failure —
// captions disabled, none published, network, decode — collapses to the
// sentinel for that row; absence and fetch error are deliberately not
// distinguished. Row count and order are unchanged.
func FetchAll(ctx context.Context, t *table.Table) error {
	for i := range t.Records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		text, err := fetchTranscript(ctx, t.Records[i].VideoID)
		if err != nil {
			slog.Warn("transcript unavailable",
				slog.String("id", t.Records[i].VideoID), slog.Any("error", err))
			pipeline.IncrTranscriptFailure()
			text = table.TranscriptNA
		}
		t.Records[i].Transcript = text
	}
	t.HasTranscript = true
	return nil
}

// FetchTranscript fetches the caption text for one video.
func FetchTranscript(ctx context.Context, videoID string) (string, error) {
	pipeline.IncrTranscriptFetch()

	text, err := fetchViaPageScrape(ctx, videoID)
	if err == nil {
		return text, nil
	}
	slog.Debug("page scrape failed, trying player",
		slog.String("id", videoID), slog.Any("error", err))

	return fetchViaPlayer(ctx, videoID)
}

// ytInitialPlayerResponseMarker marks the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// fetchViaPageScrape scrapes the watch page HTML and extracts the caption
// track URL from ytInitialPlayerResponse. Works from any IP.
func fetchViaPageScrape(ctx context.Context, videoID string) (string, error) {
	resp, err := pipeline.RetryHTTP(ctx, pipeline.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ytWatchURLBase+videoID, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", pipeline.RandomUserAgent())
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return pipeline.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read watch page: %w", err)
	}

	idx := bytes.Index(body, []byte(ytInitialPlayerResponseMarker))
	if idx < 0 {
		return "", errors.New("ytInitialPlayerResponse not found in watch page")
	}
	jsonData := extractJSON(body[idx+len(ytInitialPlayerResponseMarker):])
	if jsonData == nil {
		return "", errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var playerResp innertubePlayerResp
	if err := json.Unmarshal(jsonData, &playerResp); err != nil {
		return "", fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return transcriptFromPlayerResp(ctx, playerResp)
}

// fetchViaPlayer uses the ANDROID Innertube /player endpoint.
func fetchViaPlayer(ctx context.Context, videoID string) (string, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return "", err
	}

	resp, err := pipeline.RetryHTTP(ctx, pipeline.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ytInnertubeURL+"?prettyPrint=false", bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", ytAndroidUA)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)
		return pipeline.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("android innertube: %w", err)
	}
	defer resp.Body.Close()

	var playerResp innertubePlayerResp
	if err := json.NewDecoder(resp.Body).Decode(&playerResp); err != nil {
		return "", fmt.Errorf("decode player: %w", err)
	}
	return transcriptFromPlayerResp(ctx, playerResp)
}

// transcriptFromPlayerResp picks a caption track from a player response and
// fetches its timedtext document.
func transcriptFromPlayerResp(ctx context.Context, playerResp innertubePlayerResp) (string, error) {
	if playerResp.Captions == nil {
		if playerResp.PlayabilityStatus != nil && playerResp.PlayabilityStatus.Reason != "" {
			return "", fmt.Errorf("captions unavailable: %s", playerResp.PlayabilityStatus.Reason)
		}
		return "", errors.New("no captions in player response")
	}
	tracks := playerResp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return "", errors.New("no caption tracks")
	}
	track, ok := pickBestTrack(tracks, pipeline.Cfg.TranscriptLangs)
	if !ok {
		return "", errors.New("all caption tracks require PoToken")
	}

	frags, err := fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return "", err
	}
	text := JoinFragments(frags)
	if text == "" {
		return "", errors.New("empty transcript")
	}
	return text, nil
}

// needsPoToken reports whether a caption track URL requires a PoToken
// (browser-only). Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language
// preferences. Skips tracks that require PoToken.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return tracks[0], false
	}
	// 1. Manual track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	// 2. Auto-generated track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	// 3. Any English track
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// fetchTimedText fetches a timedtext caption URL and parses its fragments.
func fetchTimedText(ctx context.Context, baseURL string) ([]Fragment, error) {
	resp, err := pipeline.RetryHTTP(ctx, pipeline.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", pipeline.UserAgentBot)
		return pipeline.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, err
	}
	return parseTimedText(body)
}

// parseTimedText converts a timedtext XML document into ordered fragments.
func parseTimedText(body []byte) ([]Fragment, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}
	frags := make([]Fragment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		frags = append(frags, Fragment{
			Text:     pipeline.CleanHTML(line.Text),
			Start:    line.Start,
			Duration: line.Dur,
		})
	}
	return frags, nil
}

// extractJSON extracts a complete JSON object starting at b[0] == '{' by
// tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	esc := false
	for i, c := range b {
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
