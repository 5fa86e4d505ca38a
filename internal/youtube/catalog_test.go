package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shawhin/yt-index/internal/pipeline"
)

func initTestConfig(client *http.Client) {
	pipeline.Init(pipeline.Config{
		ChannelID:       "UCtest",
		APIKey:          "test-key",
		TranscriptLangs: []string{"en"},
		HTTPClient:      client,
	})
}

func searchItemJSON(id, title, published string) string {
	return fmt.Sprintf(`{"id":{"kind":"youtube#video","videoId":%q},"snippet":{"publishedAt":%q,"title":%q}}`, id, published, title)
}

func TestCollectPaginationTerminates(t *testing.T) {
	pages := map[string]string{
		"": `{"items":[` + searchItemJSON("vid00000001", "first", "2024-03-01T00:00:00Z") + `,` +
			searchItemJSON("vid00000002", "second", "2024-02-01T00:00:00Z") + `],"nextPageToken":"p2"}`,
		"p2": `{"items":[` + searchItemJSON("vid00000003", "third", "2024-01-01T00:00:00Z") + `]}`,
	}
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key param = %q", got)
		}
		if got := r.URL.Query().Get("maxResults"); got != "50" {
			t.Errorf("maxResults param = %q", got)
		}
		fmt.Fprint(w, pages[r.URL.Query().Get("pageToken")])
	}))
	defer srv.Close()
	initTestConfig(srv.Client())

	tbl, err := collectFrom(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("collectFrom: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 page calls, got %d", calls)
	}
	if len(tbl.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(tbl.Records))
	}
	// page order preserved
	wantIDs := []string{"vid00000001", "vid00000002", "vid00000003"}
	for i, want := range wantIDs {
		if tbl.Records[i].VideoID != want {
			t.Errorf("record %d = %q, want %q", i, tbl.Records[i].VideoID, want)
		}
	}
	if tbl.HasTranscript || tbl.Dim != 0 {
		t.Errorf("catalog table should have no transcript or embeddings")
	}
}

func TestCollectMalformedPageContributesNothing(t *testing.T) {
	// First page is not JSON at all: zero items and no salvageable cursor,
	// so collection halts without error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>quota exceeded</html>`)
	}))
	defer srv.Close()
	initTestConfig(srv.Client())

	tbl, err := collectFrom(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("collectFrom: %v", err)
	}
	if len(tbl.Records) != 0 {
		t.Errorf("expected 0 records, got %d", len(tbl.Records))
	}
}

func TestCollectQuotaExhaustedKeepsPartialCatalog(t *testing.T) {
	// Quota runs out after the first page. The 403 error body decodes like
	// any page: no items, no cursor, so collection halts gracefully and the
	// records gathered so far survive.
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{"items":[`+searchItemJSON("vid00000005", "kept", "2024-01-01T00:00:00Z")+`],"nextPageToken":"p2"}`)
			return
		}
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"quotaExceeded"}}`)
	}))
	defer srv.Close()
	initTestConfig(srv.Client())

	tbl, err := collectFrom(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("collectFrom: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 page calls (no retry on 403), got %d", calls)
	}
	if len(tbl.Records) != 1 || tbl.Records[0].VideoID != "vid00000005" {
		t.Errorf("expected the pre-quota record to survive, got %+v", tbl.Records)
	}
}

func TestCollectPageWithoutItemsAdvancesCursor(t *testing.T) {
	pages := map[string]string{
		"":   `{"nextPageToken":"p2"}`, // no items key: zero records, cursor still honored
		"p2": `{"items":[` + searchItemJSON("vid00000009", "only", "2024-01-01T00:00:00Z") + `]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pages[r.URL.Query().Get("pageToken")])
	}))
	defer srv.Close()
	initTestConfig(srv.Client())

	tbl, err := collectFrom(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("collectFrom: %v", err)
	}
	if len(tbl.Records) != 1 || tbl.Records[0].VideoID != "vid00000009" {
		t.Errorf("expected the p2 record only, got %+v", tbl.Records)
	}
}

func TestPageRecordsSkipsNonVideoItems(t *testing.T) {
	body := []byte(`{"items":[
		{"id":{"kind":"youtube#channel","channelId":"UCx"},"snippet":{"title":"a channel"}},
		` + searchItemJSON("vid00000004", "a video", "2024-01-01T00:00:00Z") + `
	]}`)
	records, next := pageRecords(body)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].VideoID != "vid00000004" || records[0].Title != "a video" {
		t.Errorf("unexpected record %+v", records[0])
	}
	if next != "" {
		t.Errorf("expected empty cursor, got %q", next)
	}
}

func TestNextTokenSalvage(t *testing.T) {
	if got := nextToken([]byte(`{"nextPageToken":"abc"}`)); got != "abc" {
		t.Errorf("nextToken = %q, want %q", got, "abc")
	}
	if got := nextToken([]byte(`not json`)); got != "" {
		t.Errorf("nextToken on garbage = %q, want empty", got)
	}
}
