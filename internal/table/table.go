// Package table defines the video table threaded through every pipeline
// stage and its on-disk codecs (CSV and Parquet).
package table

import (
	"fmt"
	"strconv"
	"strings"
)

// TranscriptNA is the sentinel recorded when a transcript could not be obtained.
const TranscriptNA = "n/a"

// Base column names shared by both codecs.
const (
	ColVideoID    = "video_id"
	ColDatetime   = "datetime"
	ColTitle      = "title"
	ColTranscript = "transcript"
)

// Record is one video row. Embeddings are nil until the embedding stage.
type Record struct {
	VideoID    string
	Datetime   string // raw API text until normalized, then RFC3339 UTC
	Title      string
	Transcript string // TranscriptNA when captions could not be fetched

	TitleEmbedding      []float32
	TranscriptEmbedding []float32
}

// Table is the ordered collection of records exchanged between stages.
// From the transcript stage onward the row count and ID set never change;
// stages only add or rewrite columns.
type Table struct {
	Records []Record

	HasTranscript bool // transcript column present (stage 2+)
	Dim           int  // embedding dimension, 0 before the embedding stage
}

// IDSet returns the set of video IDs, for schema-stability checks.
func (t *Table) IDSet() map[string]bool {
	ids := make(map[string]bool, len(t.Records))
	for _, r := range t.Records {
		ids[r.VideoID] = true
	}
	return ids
}

// EmbeddingColumn names the i-th component column of a field's embedding,
// e.g. EmbeddingColumn("title", 0) == "title_embedding-0".
func EmbeddingColumn(field string, i int) string {
	return fmt.Sprintf("%s_embedding-%d", field, i)
}

// parseEmbeddingColumn splits a column name of the form <field>_embedding-<i>.
// Returns ok=false for any other column.
func parseEmbeddingColumn(name string) (field string, i int, ok bool) {
	idx := strings.LastIndex(name, "_embedding-")
	if idx < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(name[idx+len("_embedding-"):])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return name[:idx], n, true
}

// columns returns the ordered column names for the table's current stage.
func (t *Table) columns() []string {
	cols := []string{ColVideoID, ColDatetime, ColTitle}
	if t.HasTranscript {
		cols = append(cols, ColTranscript)
	}
	for i := 0; i < t.Dim; i++ {
		cols = append(cols, EmbeddingColumn(ColTitle, i))
	}
	for i := 0; i < t.Dim; i++ {
		cols = append(cols, EmbeddingColumn(ColTranscript, i))
	}
	return cols
}
