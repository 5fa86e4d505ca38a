package normalize

import (
	"reflect"
	"testing"

	"github.com/shawhin/yt-index/internal/table"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"apostrophe entity", "it&#39;s fine", "it's fine"},
		{"ampersand entity", "tips &amp; tricks", "tips & tricks"},
		{"truncated name", "sha Talebi explains", "Shaw Talebi explains"},
		{"combined", "sha Talebi&#39;s Channel", "Shaw Talebi's Channel"},
		{"multiple occurrences", "a&amp;b&amp;c", "a&b&c"},
		{"clean passthrough", "nothing to fix", "nothing to fix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextFixedPoint(t *testing.T) {
	inputs := []string{
		"sha Talebi&#39;s Channel",
		"tips &amp; tricks",
		"already clean",
		"",
	}
	for _, in := range inputs {
		once := Text(in)
		twice := Text(once)
		if once != twice {
			t.Errorf("Text not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestCanonicalDatetime(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"rfc3339", "2024-01-02T03:04:05Z", "2024-01-02T03:04:05Z", false},
		{"offset to utc", "2024-01-02T03:04:05+02:00", "2024-01-02T01:04:05Z", false},
		{"no zone", "2024-01-02T03:04:05", "2024-01-02T03:04:05Z", false},
		{"space separated", "2024-01-02 03:04:05", "2024-01-02T03:04:05Z", false},
		{"date only", "2024-01-02", "2024-01-02T00:00:00Z", false},
		{"garbage", "yesterday", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalDatetime(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CanonicalDatetime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CanonicalDatetime(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestApplyFixedPoint(t *testing.T) {
	tbl := &table.Table{
		HasTranscript: true,
		Records: []table.Record{
			{VideoID: "a", Datetime: "2024-01-02T03:04:05Z", Title: "sha Talebi&#39;s Channel", Transcript: "tips &amp; tricks"},
			{VideoID: "b", Datetime: "2024-02-02T03:04:05+01:00", Title: "clean", Transcript: table.TranscriptNA},
		},
	}

	if err := Apply(tbl); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := tbl.Records[0].Title; got != "Shaw Talebi's Channel" {
		t.Errorf("title = %q", got)
	}
	if got := tbl.Records[1].Datetime; got != "2024-02-02T02:04:05Z" {
		t.Errorf("datetime = %q", got)
	}
	if got := tbl.Records[1].Transcript; got != table.TranscriptNA {
		t.Errorf("sentinel rewritten: %q", got)
	}

	once := make([]table.Record, len(tbl.Records))
	copy(once, tbl.Records)
	if err := Apply(tbl); err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if !reflect.DeepEqual(once, tbl.Records) {
		t.Errorf("Apply not idempotent:\nonce  %+v\ntwice %+v", once, tbl.Records)
	}
}

func TestApplyBadDatetime(t *testing.T) {
	tbl := &table.Table{Records: []table.Record{{VideoID: "a", Datetime: "not a date"}}}
	if err := Apply(tbl); err == nil {
		t.Error("expected error for unparseable datetime")
	}
}
