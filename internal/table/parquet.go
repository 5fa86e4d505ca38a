package table

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// parquetSchema builds the runtime schema for the table's current stage.
// Parquet field order is name-sorted; readers resolve columns by name.
func parquetSchema(t *Table) *parquet.Schema {
	group := parquet.Group{
		ColVideoID:  parquet.String(),
		ColDatetime: parquet.String(),
		ColTitle:    parquet.String(),
	}
	if t.HasTranscript {
		group[ColTranscript] = parquet.String()
	}
	for i := 0; i < t.Dim; i++ {
		group[EmbeddingColumn(ColTitle, i)] = parquet.Leaf(parquet.FloatType)
		group[EmbeddingColumn(ColTranscript, i)] = parquet.Leaf(parquet.FloatType)
	}
	return parquet.NewSchema("videos", group)
}

const parquetWriteChunk = 128

// WriteParquet writes the table as a Parquet file, full snapshot.
func WriteParquet(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[map[string]any](f, parquetSchema(t))
	rows := make([]map[string]any, 0, parquetWriteChunk)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if _, err := w.Write(rows); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		rows = rows[:0]
		return nil
	}

	for _, r := range t.Records {
		row := map[string]any{
			ColVideoID:  r.VideoID,
			ColDatetime: r.Datetime,
			ColTitle:    r.Title,
		}
		if t.HasTranscript {
			row[ColTranscript] = r.Transcript
		}
		for i := 0; i < t.Dim; i++ {
			row[EmbeddingColumn(ColTitle, i)] = r.TitleEmbedding[i]
			row[EmbeddingColumn(ColTranscript, i)] = r.TranscriptEmbedding[i]
		}
		rows = append(rows, row)
		if len(rows) == parquetWriteChunk {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return f.Close()
}

// ReadParquet reads a table written by WriteParquet. The stage is inferred
// from the file schema, mirroring ReadCSV.
func ReadParquet(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	t := &Table{}
	titleDim, transDim := 0, 0
	for _, field := range pf.Schema().Fields() {
		switch name := field.Name(); name {
		case ColVideoID, ColDatetime, ColTitle:
		case ColTranscript:
			t.HasTranscript = true
		default:
			fieldName, i, ok := parseEmbeddingColumn(name)
			if !ok {
				return nil, fmt.Errorf("%s: unknown column %q", path, name)
			}
			switch fieldName {
			case ColTitle:
				if i+1 > titleDim {
					titleDim = i + 1
				}
			case ColTranscript:
				if i+1 > transDim {
					transDim = i + 1
				}
			default:
				return nil, fmt.Errorf("%s: unknown embedding field %q", path, fieldName)
			}
		}
	}
	if titleDim != transDim {
		return nil, fmt.Errorf("%s: embedding dimension mismatch: title %d, transcript %d", path, titleDim, transDim)
	}
	t.Dim = titleDim

	r := parquet.NewGenericReader[map[string]any](pf)
	defer r.Close()

	buf := make([]map[string]any, 64)
	for {
		for i := range buf {
			buf[i] = make(map[string]any)
		}
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			rec, convErr := rowToRecord(buf[i], t)
			if convErr != nil {
				return nil, fmt.Errorf("%s: %w", path, convErr)
			}
			t.Records = append(t.Records, rec)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
	}
	return t, nil
}

func rowToRecord(row map[string]any, t *Table) (Record, error) {
	rec := Record{
		VideoID:  asString(row[ColVideoID]),
		Datetime: asString(row[ColDatetime]),
		Title:    asString(row[ColTitle]),
	}
	if t.HasTranscript {
		rec.Transcript = asString(row[ColTranscript])
	}
	if t.Dim > 0 {
		rec.TitleEmbedding = make([]float32, t.Dim)
		rec.TranscriptEmbedding = make([]float32, t.Dim)
		for i := 0; i < t.Dim; i++ {
			v, err := asFloat32(row[EmbeddingColumn(ColTitle, i)])
			if err != nil {
				return rec, fmt.Errorf("row %s: %s: %w", rec.VideoID, EmbeddingColumn(ColTitle, i), err)
			}
			rec.TitleEmbedding[i] = v
			v, err = asFloat32(row[EmbeddingColumn(ColTranscript, i)])
			if err != nil {
				return rec, fmt.Errorf("row %s: %s: %w", rec.VideoID, EmbeddingColumn(ColTranscript, i), err)
			}
			rec.TranscriptEmbedding[i] = v
		}
	}
	return rec, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

func asFloat32(v any) (float32, error) {
	switch f := v.(type) {
	case float32:
		return f, nil
	case float64:
		return float32(f), nil
	default:
		return 0, fmt.Errorf("unexpected value %T", v)
	}
}
