// Package normalize rewrites known text artifacts in titles and transcripts
// and canonicalizes the publish datetime.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/shawhin/yt-index/internal/table"
)

// replacements are applied in order, replace-all. The replacement set is
// disjoint from its outputs, so the rewrite is idempotent.
var replacements = []struct {
	old, new string
}{
	{"&#39;", "'"},
	{"&amp;", "&"},
	{"sha ", "Shaw "}, // truncated channel-owner name
}

// Text applies the fixed literal substitutions to one string.
func Text(s string) string {
	for _, r := range replacements {
		s = strings.ReplaceAll(s, r.old, r.new)
	}
	return s
}

// datetimeLayouts are accepted publish-date inputs, tried in order.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CanonicalDatetime parses a raw publish-date string and renders it as
// RFC3339 UTC. Already-canonical input round-trips unchanged.
func CanonicalDatetime(s string) (string, error) {
	for _, layout := range datetimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC().Format(time.RFC3339), nil
		}
	}
	return "", fmt.Errorf("unparseable datetime %q", s)
}

// Apply rewrites title and transcript in every record and coerces the
// datetime column. Pure and order-preserving; applying twice equals once.
func Apply(t *table.Table) error {
	for i := range t.Records {
		r := &t.Records[i]
		r.Title = Text(r.Title)
		r.Transcript = Text(r.Transcript)
		dt, err := CanonicalDatetime(r.Datetime)
		if err != nil {
			return fmt.Errorf("row %s: %w", r.VideoID, err)
		}
		r.Datetime = dt
	}
	return nil
}
