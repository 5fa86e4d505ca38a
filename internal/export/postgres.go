package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/shawhin/yt-index/internal/pipeline"
	"github.com/shawhin/yt-index/internal/table"
)

// ToPostgres upserts the full index table into Postgres with pgvector
// columns sized to the run's embedding dimension.
func ToPostgres(ctx context.Context, dsn string, t *table.Table) error {
	if t.Dim == 0 {
		return fmt.Errorf("table has no embeddings; run the embed stage first")
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS videos (
			video_id             TEXT PRIMARY KEY,
			published_at         TIMESTAMPTZ NOT NULL,
			title                TEXT NOT NULL,
			transcript           TEXT NOT NULL,
			title_embedding      vector(%d),
			transcript_embedding vector(%d)
		)`, t.Dim, t.Dim)
	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range t.Records {
		batch.Queue(`
			INSERT INTO videos (video_id, published_at, title, transcript, title_embedding, transcript_embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (video_id) DO UPDATE SET
				published_at = EXCLUDED.published_at,
				title = EXCLUDED.title,
				transcript = EXCLUDED.transcript,
				title_embedding = EXCLUDED.title_embedding,
				transcript_embedding = EXCLUDED.transcript_embedding`,
			r.VideoID, r.Datetime, r.Title, r.Transcript,
			pgvector.NewVector(r.TitleEmbedding), pgvector.NewVector(r.TranscriptEmbedding))
	}
	br := conn.SendBatch(ctx, batch)
	defer br.Close()
	for range t.Records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	pipeline.AddRowsExported(int64(len(t.Records)))
	slog.Info("index exported", slog.String("sink", "postgres"), slog.Int("rows", len(t.Records)))
	return nil
}
