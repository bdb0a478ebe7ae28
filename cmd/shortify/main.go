package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	api "github.com/shortify/shortify/internal/api/http"
	"github.com/shortify/shortify/internal/config"
	"github.com/shortify/shortify/internal/database/postgres"
	"github.com/shortify/shortify/internal/qr"
	"github.com/shortify/shortify/internal/service"
	pg "github.com/shortify/shortify/pkg/postgres"
)

const migrationsPath = "file://migrations"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Env)

	db, err := pg.New(ctx, cfg.Postgres.DSN(),
		pg.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pg.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pg.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return err
	}

	if err := pg.RunMigrations(migrationsPath, cfg.Postgres.DSN()); err != nil {
		return err
	}

	linkSvc := service.NewLinkService(service.LinkServiceParams{
		Links:      postgres.NewLinkRepository(db),
		Clicks:     postgres.NewClickEventRepository(db),
		Usage:      postgres.NewUsageRepository(db),
		QRDesigns:  postgres.NewQRDesignRepository(db),
		QR:         qr.NewClient(cfg.QR),
		Limits:     cfg.PlanLimits,
		CodeLength: cfg.ShortCodeLength,
		BaseURL:    cfg.BaseURL,
		Logger:     logger.Logger,
	})
	usageSvc := service.NewUsageService(postgres.NewUsageRepository(db), cfg.PlanLimits)

	router := api.NewRouter(logger, linkSvc, usageSvc)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr))

		var err error
		if cfg.HTTPServer.CertFile != "" && cfg.HTTPServer.KeyFile != "" {
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return err
		}

		// Let in-flight click recordings land before the pool closes.
		linkSvc.Wait()

		return db.Close()
	})

	return g.Wait()
}

func setupLogger(env string) *httplog.Logger {
	opts := httplog.Options{
		LogLevel:       slog.LevelDebug,
		Concise:        true,
		RequestHeaders: true,
	}

	switch env {
	case config.EnvStage:
		opts.LogLevel = slog.LevelInfo
		opts.JSON = true
	case config.EnvProd:
		opts.LogLevel = slog.LevelInfo
		opts.JSON = true
		opts.Concise = false
	}

	return httplog.NewLogger("shortify", opts)
}
