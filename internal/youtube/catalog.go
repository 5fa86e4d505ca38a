// Package youtube implements the two network stages of the pipeline:
// channel catalog collection via the Data API v3 and caption transcript
// fetching via the watch page and Innertube endpoints.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shawhin/yt-index/internal/pipeline"
	"github.com/shawhin/yt-index/internal/table"
)

const (
	ytDataAPIBase = "https://www.googleapis.com/youtube/v3"
	pageSize      = 50
)

// searchItem is one entry of a Data API v3 search page.
type searchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		PublishedAt string `json:"publishedAt"`
		Title       string `json:"title"`
	} `json:"snippet"`
}

type searchPage struct {
	Items         []searchItem `json:"items"`
	NextPageToken string       `json:"nextPageToken"`
}

// CollectChannel enumerates every video of the configured channel, newest
// first, by paginating the Data API v3 search endpoint.
func CollectChannel(ctx context.Context) (*table.Table, error) {
	return collectFrom(ctx, ytDataAPIBase+"/search")
}

// collectFrom runs the pagination loop against the given search endpoint.
// One call per page; stops when a page carries no next cursor. A malformed
// or error page contributes zero records but does not abort the collection;
// only transport failures (after retries) do.
func collectFrom(ctx context.Context, searchURL string) (*table.Table, error) {
	t := &table.Table{}
	pageToken := ""
	for {
		body, err := fetchSearchPage(ctx, searchURL, pageToken)
		if err != nil {
			return nil, fmt.Errorf("search page: %w", err)
		}
		pipeline.IncrSearchPage()

		records, next := pageRecords(body)
		t.Records = append(t.Records, records...)
		if next == "" {
			break
		}
		pageToken = next
	}
	slog.Info("catalog collected",
		slog.String("channel", pipeline.Cfg.ChannelID),
		slog.Int("videos", len(t.Records)))
	return t, nil
}

// fetchSearchPage performs one search call and returns the raw body.
func fetchSearchPage(ctx context.Context, searchURL, pageToken string) ([]byte, error) {
	if err := pipeline.WaitAPI(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("key", pipeline.Cfg.APIKey)
	params.Set("channelId", pipeline.Cfg.ChannelID)
	params.Set("part", "snippet,id")
	params.Set("order", "date")
	params.Set("maxResults", strconv.Itoa(pageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	resp, err := pipeline.RetryHTTP(ctx, pipeline.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", pipeline.UserAgentBot)
		return pipeline.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	// A non-OK page (quota exhausted, bad request) is still a page: its body
	// flows through pageRecords, yields zero records and, carrying no cursor,
	// halts the loop with the partial catalog intact.
	if resp.StatusCode != http.StatusOK {
		slog.Warn("data API error page",
			slog.Int("status", resp.StatusCode),
			slog.String("body", pipeline.Truncate(string(body), 512)))
	}
	return body, nil
}

// pageRecords decodes one search page tolerantly. An undecodable body or a
// body without items yields zero records; the next cursor is whatever the
// page carries, empty when absent.
func pageRecords(body []byte) ([]table.Record, string) {
	var page searchPage
	if err := json.Unmarshal(body, &page); err != nil {
		slog.Warn("malformed search page, skipping",
			slog.Any("error", err),
			slog.String("body", pipeline.Truncate(string(body), 256)))
		pipeline.IncrMalformedPage()
		return nil, nextToken(body)
	}
	if page.Items == nil {
		slog.Warn("search page without items")
		pipeline.IncrMalformedPage()
		return nil, page.NextPageToken
	}

	records := make([]table.Record, 0, len(page.Items))
	for _, item := range page.Items {
		if item.ID.VideoID == "" {
			continue // channel or playlist result
		}
		records = append(records, table.Record{
			VideoID:  item.ID.VideoID,
			Datetime: item.Snippet.PublishedAt,
			Title:    item.Snippet.Title,
		})
	}
	return records, page.NextPageToken
}

// nextToken salvages a cursor from a body that failed full decoding.
func nextToken(body []byte) string {
	var cursor struct {
		NextPageToken string `json:"nextPageToken"`
	}
	if err := json.Unmarshal(body, &cursor); err != nil {
		return ""
	}
	return cursor.NextPageToken
}
