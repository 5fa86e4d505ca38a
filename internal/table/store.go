package table

import (
	"fmt"
	"os"
	"path/filepath"
)

// Format selects the on-disk representation of the stage files.
type Format string

const (
	FormatCSV     Format = "csv"     // row-oriented, the default
	FormatParquet Format = "parquet" // columnar
)

// ParseFormat validates a configured format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatParquet:
		return Format(s), nil
	case "":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown store format %q (want csv or parquet)", s)
}

// Stage file base names; the extension comes from the format.
const (
	fileIDs         = "video-ids"
	fileTranscripts = "video-transcripts"
	fileIndex       = "video-index"
)

// Store reads and writes stage snapshots under one data directory.
type Store struct {
	Dir    string
	Format Format
}

func (s Store) path(base string) string {
	return filepath.Join(s.Dir, base+"."+string(s.Format))
}

// IDsPath is the Catalog Collector output file.
func (s Store) IDsPath() string { return s.path(fileIDs) }

// TranscriptsPath is the Transcript Fetcher output file, rewritten in place
// by the Text Normalizer.
func (s Store) TranscriptsPath() string { return s.path(fileTranscripts) }

// IndexPath is the final Embedding Generator output file.
func (s Store) IndexPath() string { return s.path(fileIndex) }

// Write persists a full table snapshot, creating the data dir if needed.
func (s Store) Write(path string, t *Table) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.Dir, err)
	}
	switch s.Format {
	case FormatParquet:
		return WriteParquet(path, t)
	default:
		return WriteCSV(path, t)
	}
}

// Read loads a full table snapshot.
func (s Store) Read(path string) (*Table, error) {
	switch s.Format {
	case FormatParquet:
		return ReadParquet(path)
	default:
		return ReadCSV(path)
	}
}
