package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/recommender/internal/api"
	"github.com/knowledge-engine/recommender/internal/catalog"
	"github.com/knowledge-engine/recommender/internal/config"
	"github.com/knowledge-engine/recommender/internal/engine"
	"github.com/knowledge-engine/recommender/internal/logging"
)

func main() {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	// 2. Logging
	entry, err := logging.New(cfg.Log, "recommender-api")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	entry.Info("Starting Product Recommendation Service")

	// 3. Catalog source
	src, err := catalog.NewSource(cfg.Catalog)
	if err != nil {
		entry.Fatalf("Failed to initialize catalog source: %v", err)
	}

	// 4. Engine
	eng, err := engine.NewEngine(cfg, entry, src)
	if err != nil {
		entry.Fatalf("Failed to initialize engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Index.EagerBuild {
		// An unavailable catalog is not fatal; the service keeps serving empty results
		if err := eng.Build(ctx); err == nil {
			entry.Info("Similarity index ready")
		}
	} else {
		entry.Info("Similarity index will be built on first query")
	}

	// 5. API Server
	server := api.NewServer(eng, entry)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}

	go func() {
		entry.Infof("Recommendation API ready on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			entry.Fatal(err)
		}
	}()

	<-ctx.Done()
	entry.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		entry.WithError(err).Error("Graceful shutdown failed")
	}
}
