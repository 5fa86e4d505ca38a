// yt-index — builds a semantic search index for one YouTube channel.
//
// Four stages, run in sequence: collect the channel catalog, fetch
// transcripts, normalize text, generate embeddings. Each stage reads the
// previous stage's snapshot file and writes its own.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/shawhin/yt-index/internal/embed"
	"github.com/shawhin/yt-index/internal/export"
	"github.com/shawhin/yt-index/internal/normalize"
	"github.com/shawhin/yt-index/internal/pipeline"
	"github.com/shawhin/yt-index/internal/table"
	"github.com/shawhin/yt-index/internal/youtube"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	initLogging()
	store, err := initPipeline()
	if err != nil {
		slog.Error("config", slog.Any("error", err))
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:           "yt-index",
		Short:         "Build a semantic search index for a YouTube channel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("yt-index %s\n", version)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "ids",
		Short: "Collect the channel's video catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIDs(cmd.Context(), store)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "transcripts",
		Short: "Fetch transcripts for every cataloged video",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscripts(cmd.Context(), store)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "transform",
		Short: "Normalize titles, transcripts and datetimes in place",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(store)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "embed",
		Short: "Generate title and transcript embeddings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(cmd.Context(), store)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run all four stages in sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := runIDs(ctx, store); err != nil {
				return err
			}
			if err := runTranscripts(ctx, store); err != nil {
				return err
			}
			if err := runTransform(store); err != nil {
				return err
			}
			return runEmbed(ctx, store)
		},
	})
	rootCmd.AddCommand(exportCmd(store))

	err = rootCmd.ExecuteContext(context.Background())
	slog.Info("run metrics\n" + pipeline.FormatMetrics())
	if err != nil {
		slog.Error("pipeline failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func initLogging() {
	level := slog.LevelInfo
	if env.Str("LOG_LEVEL", "") == "debug" {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With(slog.String("run_id", uuid.NewString()))
	slog.SetDefault(logger)
}

// initPipeline builds the explicit pipeline configuration from the
// environment and returns the stage file store.
func initPipeline() (table.Store, error) {
	format, err := table.ParseFormat(env.Str("STORE_FORMAT", "csv"))
	if err != nil {
		return table.Store{}, err
	}

	c := pipeline.Config{
		ChannelID:       env.Str("YT_CHANNEL_ID", "UC0y9s4PwBwMYciq73UTe3XA"),
		APIKey:          env.Str("YT_API_KEY", ""),
		DataDir:         env.Str("DATA_DIR", "data"),
		Format:          string(format),
		EmbedAPIBase:    env.Str("EMBED_API_BASE", "http://127.0.0.1:8080/v1"),
		EmbedAPIKey:     env.Str("EMBED_API_KEY", ""),
		EmbedModel:      env.Str("EMBED_MODEL", "all-MiniLM-L6-v2"),
		EmbedBatchSize:  env.Int("EMBED_BATCH_SIZE", 64),
		TranscriptLangs: env.List("TRANSCRIPT_LANGS", "en"),
		FetchTimeout:    env.Duration("FETCH_TIMEOUT", 15*time.Second),
	}
	c.HTTPClient = &http.Client{
		Timeout: c.FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     60 * time.Second,
		},
	}
	if rps := env.Float("YT_RATE_LIMIT", 4); rps > 0 {
		c.APILimiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	if c.APIKey == "" {
		slog.Warn("YT_API_KEY not set; Data API requests will fail server-side")
	}

	pipeline.Init(c)
	return table.Store{Dir: c.DataDir, Format: format}, nil
}

func runIDs(ctx context.Context, store table.Store) error {
	return pipeline.TrackOperation(ctx, "ids", func(ctx context.Context) error {
		t, err := youtube.CollectChannel(ctx)
		if err != nil {
			return err
		}
		return store.Write(store.IDsPath(), t)
	})
}

func runTranscripts(ctx context.Context, store table.Store) error {
	return pipeline.TrackOperation(ctx, "transcripts", func(ctx context.Context) error {
		t, err := store.Read(store.IDsPath())
		if err != nil {
			return err
		}
		if err := youtube.FetchAll(ctx, t); err != nil {
			return err
		}
		return store.Write(store.TranscriptsPath(), t)
	})
}

func runTransform(store table.Store) error {
	t, err := store.Read(store.TranscriptsPath())
	if err != nil {
		return err
	}
	if err := normalize.Apply(t); err != nil {
		return err
	}
	return store.Write(store.TranscriptsPath(), t)
}

func runEmbed(ctx context.Context, store table.Store) error {
	return pipeline.TrackOperation(ctx, "embed", func(ctx context.Context) error {
		t, err := store.Read(store.TranscriptsPath())
		if err != nil {
			return err
		}
		if err := embed.NewGenerator().Apply(ctx, t); err != nil {
			return err
		}
		return store.Write(store.IndexPath(), t)
	})
}

func exportCmd(store table.Store) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Load the final index into a queryable sink",
	}

	var sqlitePath string
	sqliteCmd := &cobra.Command{
		Use:   "sqlite",
		Short: "Export the index to a SQLite file",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := store.Read(store.IndexPath())
			if err != nil {
				return err
			}
			return export.ToSQLite(cmd.Context(), sqlitePath, t)
		},
	}
	sqliteCmd.Flags().StringVar(&sqlitePath, "out", "data/video-index.db", "SQLite file path")

	var dsn string
	postgresCmd := &cobra.Command{
		Use:   "postgres",
		Short: "Export the index to Postgres with pgvector",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := store.Read(store.IndexPath())
			if err != nil {
				return err
			}
			return export.ToPostgres(cmd.Context(), dsn, t)
		},
	}
	postgresCmd.Flags().StringVar(&dsn, "dsn", env.Str("DATABASE_URL", ""), "Postgres connection string")

	cmd.AddCommand(sqliteCmd, postgresCmd)
	return cmd
}
