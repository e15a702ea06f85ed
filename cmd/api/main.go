package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/moodreel/backend/internal/config"
	"github.com/zhouzirui/moodreel/backend/internal/handler"
	"github.com/zhouzirui/moodreel/backend/internal/logging"
	"github.com/zhouzirui/moodreel/backend/internal/model/rules"
	"github.com/zhouzirui/moodreel/backend/internal/server"
	"github.com/zhouzirui/moodreel/backend/internal/service/ai"
	"github.com/zhouzirui/moodreel/backend/internal/service/chat"
	"github.com/zhouzirui/moodreel/backend/internal/service/recommend"
	"github.com/zhouzirui/moodreel/backend/internal/store/movies"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if envErr != nil {
		logging.Debug().Err(envErr).Msg("no .env file, using system environment only")
	}

	catalog, closeCatalog, err := openCatalog(cfg.Catalog)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open movie catalog")
	}
	defer func() {
		if err := closeCatalog(); err != nil {
			logging.Warn().Err(err).Msg("failed to close movie catalog")
		}
	}()

	// dialogue stays nil when no model is configured; turns then fail with 503
	var dialogue chat.Dialogue
	if cfg.AI.Enabled() {
		converser, err := ai.New(ctx, cfg.AI)
		if err != nil {
			logging.Warn().Err(err).Str("provider", cfg.AI.Provider).Msg("failed to initialize dialogue model, continuing without it")
		} else {
			dialogue = converser
			logging.Info().Str("provider", converser.Name()).Str("model", cfg.AI.Model).Msg("dialogue model initialized")
		}
	} else {
		logging.Warn().Str("provider", cfg.AI.Provider).Msg("dialogue model credentials missing, chat turns will be unavailable")
	}

	ruleCatalog := rules.Default()
	chatSvc := chat.NewService(dialogue, chat.Options{
		Catalog: ruleCatalog,
		Timeout: cfg.AI.Timeout,
		IdleTTL: cfg.Session.IdleTTL,
	})
	recommendSvc := recommend.NewService(catalog, recommend.Options{
		PoolSize:         cfg.Catalog.PoolSize,
		FallbackPoolSize: cfg.Catalog.FallbackPoolSize,
		Timeout:          cfg.Catalog.Timeout,
		Seed:             cfg.Ranking.Seed,
	})

	router := handler.NewRouter(cfg.Server, ruleCatalog, chatSvc, recommendSvc)

	sup := server.NewSupervisor("moodreel", cfg.Server.ShutdownTimeout)
	sup.Add(server.NewHTTPService(server.NewHTTPServer(cfg.Server.Addr, router), cfg.Server.ShutdownTimeout))
	if cfg.Session.IdleTTL > 0 {
		sup.Add(chat.NewSweeper(chatSvc, cfg.Session.SweepInterval))
	}

	logging.Info().Str("addr", cfg.Server.Addr).Msg("moodreel backend listening")
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor stopped")
	}
	logging.Info().Msg("shutdown complete")
}

// openCatalog opens the badger catalog when a path is configured and falls
// back to an empty in-memory catalog otherwise.
func openCatalog(cfg config.CatalogConfig) (recommend.Retriever, func() error, error) {
	if cfg.Path == "" {
		logging.Warn().Msg("CATALOG_PATH not set, serving from an empty in-memory catalog")
		return movies.NewMemoryStore(), func() error { return nil }, nil
	}

	store, err := movies.OpenBadger(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	if n, err := store.Count(context.Background()); err == nil {
		logging.Info().Str("path", cfg.Path).Int("movies", n).Msg("movie catalog opened")
	}
	return store, store.Close, nil
}
