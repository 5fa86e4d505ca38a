package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shawhin/yt-index/internal/table"
)

func TestJoinFragments(t *testing.T) {
	tests := []struct {
		name  string
		frags []Fragment
		want  string
	}{
		{"two fragments", []Fragment{{Text: "a"}, {Text: "b"}}, "a b"},
		{"skips empty", []Fragment{{Text: "a"}, {Text: ""}, {Text: "b"}}, "a b"},
		{"single", []Fragment{{Text: "hello"}}, "hello"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinFragments(tt.frags); got != tt.want {
				t.Errorf("JoinFragments() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTimedText(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.5" dur="2.1">hey <i>everyone</i></text>
  <text start="2.6" dur="1.9">welcome back &amp; thanks</text>
</transcript>`)

	frags, err := parseTimedText(body)
	if err != nil {
		t.Fatalf("parseTimedText: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(frags))
	}
	if frags[0].Text != "hey everyone" || frags[0].Start != 0.5 || frags[0].Duration != 2.1 {
		t.Errorf("fragment 0 = %+v", frags[0])
	}
	if frags[1].Text != "welcome back & thanks" {
		t.Errorf("fragment 1 text = %q", frags[1].Text)
	}
	if got := JoinFragments(frags); got != "hey everyone welcome back & thanks" {
		t.Errorf("joined = %q", got)
	}
}

func TestParseTimedTextInvalid(t *testing.T) {
	if _, err := parseTimedText([]byte("{not xml")); err == nil {
		t.Error("expected error for non-XML body")
	}
}

func TestFetchAllSentinelSubstitution(t *testing.T) {
	initTestConfig(http.DefaultClient)

	orig := fetchTranscript
	defer func() { fetchTranscript = orig }()
	fetchTranscript = func(ctx context.Context, videoID string) (string, error) {
		if videoID == "goodvideo01" {
			return "a b", nil
		}
		return "", errors.New("captions disabled")
	}

	tbl := &table.Table{Records: []table.Record{
		{VideoID: "goodvideo01"},
		{VideoID: "badvideo001"},
	}}
	if err := FetchAll(context.Background(), tbl); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if !tbl.HasTranscript {
		t.Error("HasTranscript not set")
	}
	if got := tbl.Records[0].Transcript; got != "a b" {
		t.Errorf("good row transcript = %q", got)
	}
	if got := tbl.Records[1].Transcript; got != table.TranscriptNA {
		t.Errorf("failed row transcript = %q, want %q", got, table.TranscriptNA)
	}
	if len(tbl.Records) != 2 {
		t.Errorf("row count changed: %d", len(tbl.Records))
	}
}

func TestFetchTimedTextHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<transcript><text start="0" dur="1">a</text><text start="1" dur="1">b</text></transcript>`)
	}))
	defer srv.Close()
	initTestConfig(srv.Client())

	frags, err := fetchTimedText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetchTimedText: %v", err)
	}
	if got := JoinFragments(frags); got != "a b" {
		t.Errorf("joined = %q, want %q", got, "a b")
	}
}

func TestPickBestTrack(t *testing.T) {
	manual := captionTrack{BaseURL: "https://yt/tt?lang=en", LanguageCode: "en"}
	asr := captionTrack{BaseURL: "https://yt/tt?lang=en&kind=asr", LanguageCode: "en", Kind: "asr"}
	french := captionTrack{BaseURL: "https://yt/tt?lang=fr", LanguageCode: "fr"}
	blocked := captionTrack{BaseURL: "https://yt/tt?lang=en&exp=xpe", LanguageCode: "en"}

	tests := []struct {
		name   string
		tracks []captionTrack
		langs  []string
		want   string
		ok     bool
	}{
		{"manual preferred over asr", []captionTrack{asr, manual}, []string{"en"}, manual.BaseURL, true},
		{"asr when no manual", []captionTrack{asr, french}, []string{"en"}, asr.BaseURL, true},
		{"english fallback", []captionTrack{french, manual}, []string{"de"}, manual.BaseURL, true},
		{"first usable fallback", []captionTrack{french}, []string{"de"}, french.BaseURL, true},
		{"all require potoken", []captionTrack{blocked}, []string{"en"}, blocked.BaseURL, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickBestTrack(tt.tracks, tt.langs)
			if ok != tt.ok || got.BaseURL != tt.want {
				t.Errorf("pickBestTrack() = (%q, %v), want (%q, %v)", got.BaseURL, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", `{"a":1};rest`, `{"a":1}`},
		{"nested", `{"a":{"b":"}"}}tail`, `{"a":{"b":"}"}}`},
		{"escaped quote", `{"a":"\"}"}...`, `{"a":"\"}"}`},
		{"escaped backslash ends string", `{"a":"x\\"};var y`, `{"a":"x\\"}`},
		{"not an object", `[1,2]`, ""},
		{"unterminated", `{"a":1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(extractJSON([]byte(tt.in)))
			if got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
