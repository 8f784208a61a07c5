package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"librag/internal/activities"
	"librag/internal/api"
	"librag/internal/config"
	"librag/internal/index"
	"librag/internal/providers"
	"librag/internal/storage"
	"librag/internal/util"
	"librag/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()
	if err := util.EnsureDir(cfg.DataRoot); err != nil {
		log.Fatal().Err(err).Msg("create data root")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer db.Close()
	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	manager, err := providers.NewManager(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build providers")
	}
	embedder := providers.NewEmbeddingGateway(manager, cfg.EmbedDim)
	llm := providers.NewLLMGateway(manager)

	idx := index.New(cfg.EmbedDim,
		filepath.Join(cfg.DataRoot, cfg.IndexPath),
		filepath.Join(cfg.DataRoot, cfg.LocatorPath))

	chunkRepo := storage.NewChunkRepo(db)
	docRepo := storage.NewDocumentRepo(db)
	if idx.Stats().TotalEmbeddings == 0 {
		if n, err := chunkRepo.Count(context.Background()); err == nil && n > 0 {
			log.Info().Int("chunks", n).Msg("vector index empty, rebuilding from database")
			source := storage.NewIndexSource(chunkRepo, docRepo)
			if err := idx.Rebuild(context.Background(), source, embedder.EmbedTexts); err != nil {
				log.Error().Err(err).Msg("startup index rebuild failed")
			}
		}
	}

	// The worker shares the process with the API so ingest activities can
	// append to the same in-memory index the retrieval path searches.
	var temporal tclient.Client
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Warn().Err(err).Msg("temporal unavailable, background ingest disabled")
	} else {
		temporal = tc
		defer tc.Close()
		w := worker.New(tc, cfg.TemporalTaskQueue, worker.Options{})
		workflows.Register(w)
		activities.Register(w, activities.New(cfg, db, embedder, idx))
		go func() {
			if err := w.Run(worker.InterruptCh()); err != nil {
				log.Error().Err(err).Msg("worker stopped")
			}
		}()
		log.Info().Str("queue", cfg.TemporalTaskQueue).Msg("worker started")
	}

	srv := api.NewServer(cfg, db, idx, embedder, llm, temporal)
	log.Info().
		Str("addr", cfg.APIAddr).
		Str("llm_providers", cfg.LLMProviders).
		Str("embed_providers", cfg.EmbedProviders).
		Msg("librag api listening")
	if err := http.ListenAndServe(cfg.APIAddr, srv.Routes()); err != nil {
		log.Fatal().Err(err).Msg("http server")
	}
}
