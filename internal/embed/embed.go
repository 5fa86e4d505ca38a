// Package embed encodes titles and transcripts through a sentence-embedding
// model behind an OpenAI-compatible embeddings endpoint.
package embed

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shawhin/yt-index/internal/pipeline"
	"github.com/shawhin/yt-index/internal/table"
)

const defaultBatchSize = 64

// Generator holds the embeddings client and model, configured once per run.
type Generator struct {
	client *openai.Client
	model  string
	batch  int
}

// NewGenerator builds a Generator from the pipeline configuration.
func NewGenerator() *Generator {
	c := openai.DefaultConfig(pipeline.Cfg.EmbedAPIKey)
	if pipeline.Cfg.EmbedAPIBase != "" {
		c.BaseURL = pipeline.Cfg.EmbedAPIBase
	}
	if pipeline.Cfg.HTTPClient != nil {
		c.HTTPClient = pipeline.Cfg.HTTPClient
	}
	batch := pipeline.Cfg.EmbedBatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Generator{
		client: openai.NewClientWithConfig(c),
		model:  pipeline.Cfg.EmbedModel,
		batch:  batch,
	}
}

// Apply encodes the title and transcript of every record and attaches the
// vectors. Row count and order are unchanged; any failure is fatal to the
// run, per the pipeline's error tiers.
func (g *Generator) Apply(ctx context.Context, t *table.Table) error {
	titles := make([]string, len(t.Records))
	transcripts := make([]string, len(t.Records))
	for i, r := range t.Records {
		titles[i] = r.Title
		transcripts[i] = r.Transcript
	}

	titleVecs, err := g.Encode(ctx, titles)
	if err != nil {
		return fmt.Errorf("embed titles: %w", err)
	}
	transcriptVecs, err := g.Encode(ctx, transcripts)
	if err != nil {
		return fmt.Errorf("embed transcripts: %w", err)
	}

	dim := 0
	if len(titleVecs) > 0 {
		dim = len(titleVecs[0])
	}
	for i := range t.Records {
		if len(titleVecs[i]) != dim || len(transcriptVecs[i]) != dim {
			return fmt.Errorf("row %s: inconsistent embedding dimension", t.Records[i].VideoID)
		}
		t.Records[i].TitleEmbedding = titleVecs[i]
		t.Records[i].TranscriptEmbedding = transcriptVecs[i]
	}
	t.Dim = dim
	slog.Info("embeddings generated",
		slog.String("model", g.model),
		slog.Int("rows", len(t.Records)),
		slog.Int("dim", dim))
	return nil
}

// Encode embeds a list of texts, batching requests. The result preserves
// input order and has one vector per input.
func (g *Generator) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += g.batch {
		end := min(start+g.batch, len(texts))
		chunk := texts[start:end]

		pipeline.IncrEmbeddingRequest()
		resp, err := g.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(g.model),
			Input: chunk,
		})
		if err != nil {
			return nil, fmt.Errorf("embeddings API: %w", err)
		}
		if len(resp.Data) != len(chunk) {
			return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(resp.Data), len(chunk))
		}
		for pos, d := range resp.Data {
			i := d.Index
			if i < 0 || i >= len(chunk) {
				i = pos
			}
			vecs[start+i] = d.Embedding
		}
	}
	return vecs, nil
}
