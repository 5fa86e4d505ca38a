// Package export loads the final video index into queryable sinks:
// a local SQLite file or Postgres with pgvector.
package export

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	_ "modernc.org/sqlite"

	"github.com/shawhin/yt-index/internal/pipeline"
	"github.com/shawhin/yt-index/internal/table"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS videos (
	video_id             TEXT PRIMARY KEY,
	published_at         TEXT NOT NULL,
	title                TEXT NOT NULL,
	transcript           TEXT NOT NULL,
	embedding_dim        INTEGER NOT NULL,
	title_embedding      BLOB,
	transcript_embedding BLOB
);
`

// ToSQLite upserts the full index table into a SQLite file. Embeddings are
// stored as little-endian float32 BLOBs.
func ToSQLite(ctx context.Context, path string, t *table.Table) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := upsertSQLite(ctx, db, t); err != nil {
		return err
	}
	pipeline.AddRowsExported(int64(len(t.Records)))
	slog.Info("index exported", slog.String("sink", "sqlite"),
		slog.String("path", path), slog.Int("rows", len(t.Records)))
	return nil
}

func upsertSQLite(ctx context.Context, db *sql.DB, t *table.Table) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO videos (video_id, published_at, title, transcript, embedding_dim, title_embedding, transcript_embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			published_at = excluded.published_at,
			title = excluded.title,
			transcript = excluded.transcript,
			embedding_dim = excluded.embedding_dim,
			title_embedding = excluded.title_embedding,
			transcript_embedding = excluded.transcript_embedding
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range t.Records {
		_, err := stmt.ExecContext(ctx, r.VideoID, r.Datetime, r.Title, r.Transcript,
			t.Dim, EncodeVector(r.TitleEmbedding), EncodeVector(r.TranscriptEmbedding))
		if err != nil {
			return fmt.Errorf("upsert %s: %w", r.VideoID, err)
		}
	}
	return tx.Commit()
}

// EncodeVector packs a float32 vector as a little-endian BLOB.
func EncodeVector(vec []float32) []byte {
	if vec == nil {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector unpacks a BLOB written by EncodeVector.
func DecodeVector(buf []byte) ([]float32, error) {
	if buf == nil {
		return nil, nil
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
