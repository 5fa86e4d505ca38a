package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// WriteCSV writes the table as a headered CSV file, full snapshot.
func WriteCSV(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	cols := t.columns()
	if err := w.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(cols))
	for _, r := range t.Records {
		row = row[:0]
		row = append(row, r.VideoID, r.Datetime, r.Title)
		if t.HasTranscript {
			row = append(row, r.Transcript)
		}
		for i := 0; i < t.Dim; i++ {
			row = append(row, formatFloat(r.TitleEmbedding[i]))
		}
		for i := 0; i < t.Dim; i++ {
			row = append(row, formatFloat(r.TranscriptEmbedding[i]))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", r.VideoID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// ReadCSV reads a table written by WriteCSV. The stage is inferred from the
// header: presence of a transcript column and of embedding columns.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	layout, err := parseHeader(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	t := &Table{HasTranscript: layout.transcript >= 0, Dim: layout.dim}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rec, err := layout.record(row)
		if err != nil {
			return nil, err
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// headerLayout maps column positions discovered in a CSV header.
type headerLayout struct {
	videoID    int
	datetime   int
	title      int
	transcript int // -1 when absent
	titleEmb   []int
	transEmb   []int
	dim        int
}

func parseHeader(header []string) (*headerLayout, error) {
	l := &headerLayout{videoID: -1, datetime: -1, title: -1, transcript: -1}
	var titleEmb, transEmb map[int]int
	for pos, name := range header {
		switch name {
		case ColVideoID:
			l.videoID = pos
		case ColDatetime:
			l.datetime = pos
		case ColTitle:
			l.title = pos
		case ColTranscript:
			l.transcript = pos
		default:
			field, i, ok := parseEmbeddingColumn(name)
			if !ok {
				return nil, fmt.Errorf("unknown column %q", name)
			}
			switch field {
			case ColTitle:
				if titleEmb == nil {
					titleEmb = make(map[int]int)
				}
				titleEmb[i] = pos
			case ColTranscript:
				if transEmb == nil {
					transEmb = make(map[int]int)
				}
				transEmb[i] = pos
			default:
				return nil, fmt.Errorf("unknown embedding field %q", field)
			}
		}
	}
	if l.videoID < 0 || l.datetime < 0 || l.title < 0 {
		return nil, fmt.Errorf("missing required columns in header %v", header)
	}
	if len(titleEmb) != len(transEmb) {
		return nil, fmt.Errorf("embedding column count mismatch: title %d, transcript %d", len(titleEmb), len(transEmb))
	}
	l.dim = len(titleEmb)
	l.titleEmb = make([]int, l.dim)
	l.transEmb = make([]int, l.dim)
	for i := 0; i < l.dim; i++ {
		tp, ok1 := titleEmb[i]
		xp, ok2 := transEmb[i]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("non-contiguous embedding index %d", i)
		}
		l.titleEmb[i] = tp
		l.transEmb[i] = xp
	}
	return l, nil
}

func (l *headerLayout) record(row []string) (Record, error) {
	rec := Record{
		VideoID:  row[l.videoID],
		Datetime: row[l.datetime],
		Title:    row[l.title],
	}
	if l.transcript >= 0 {
		rec.Transcript = row[l.transcript]
	}
	if l.dim > 0 {
		rec.TitleEmbedding = make([]float32, l.dim)
		rec.TranscriptEmbedding = make([]float32, l.dim)
		for i := 0; i < l.dim; i++ {
			v, err := strconv.ParseFloat(row[l.titleEmb[i]], 32)
			if err != nil {
				return rec, fmt.Errorf("row %s: parse %s: %w", rec.VideoID, EmbeddingColumn(ColTitle, i), err)
			}
			rec.TitleEmbedding[i] = float32(v)
			v, err = strconv.ParseFloat(row[l.transEmb[i]], 32)
			if err != nil {
				return rec, fmt.Errorf("row %s: parse %s: %w", rec.VideoID, EmbeddingColumn(ColTranscript, i), err)
			}
			rec.TranscriptEmbedding[i] = float32(v)
		}
	}
	return rec, nil
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
