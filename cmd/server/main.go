package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/planningpoker/backend/internal/config"
	"github.com/planningpoker/backend/internal/httpapi"
	"github.com/planningpoker/backend/internal/hub"
	"github.com/planningpoker/backend/internal/registry"
	"github.com/planningpoker/backend/internal/store"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg := config.Load()

	var archive *store.Store
	if cfg.DatabaseURL != "" {
		var err error
		archive, err = store.Open(cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		log.Info("session archive enabled")
	}

	h := hub.New(log)
	reg := registry.New(registry.Config{
		CodeLength:    cfg.CodeLength,
		IdleTTL:       cfg.SessionTTL,
		SweepInterval: cfg.SweepInterval,
		OnEvict:       h.Drop,
	}, log, archiverOrNil(archive))

	api := httpapi.New(log, reg, h, archive, cfg.Deck, cfg.PublicURL)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reg.Run(ctx)
	})
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// archiverOrNil keeps the registry's Archiver nil when no store is
// configured; a typed nil *store.Store inside the interface would not be.
func archiverOrNil(s *store.Store) registry.Archiver {
	if s == nil {
		return nil
	}
	return s
}
