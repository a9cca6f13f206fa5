package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"synapse/auth"
	"synapse/config"
	"synapse/contentstore"
	"synapse/contribution"
	"synapse/dataset"
	"synapse/db"
	"synapse/httpapi"
	"synapse/ledger"
	"synapse/metrics"
	"synapse/migrations"
	"synapse/purchase"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrations.Up(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	content, err := contentstore.New(ctx, contentstore.Options{
		Backend:  cfg.ContentBackend,
		BoltPath: cfg.ContentBoltDB,
		S3Bucket: cfg.ContentS3Bucket,
		S3Prefix: cfg.ContentS3Prefix,
	})
	if err != nil {
		return fmt.Errorf("bootstrap content store: %w", err)
	}

	chain, err := buildLedger(cfg)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	datasetRepo := dataset.NewRepository(pool)
	reconciler := dataset.NewReconciler(datasetRepo, chain, content, m, log)

	var cache *purchase.QuoteCache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		cache = purchase.NewQuoteCache(redis.NewClient(opts), config.QuoteCacheTTL)
	}
	coordinator := purchase.NewCoordinator(datasetRepo, chain, cache, m, log)

	indexRepo := contribution.NewIndexRepo(pool)
	manager := contribution.NewManager(chain, indexRepo, m, log)

	accounts := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)

	server := httpapi.NewServer(datasetRepo, reconciler, coordinator, manager, accounts, content, log)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if source, ok := chain.(ledger.EventSource); ok {
		worker := contribution.NewIndexWorker(source.Events(), indexRepo, log)
		g.Go(func() error {
			err := worker.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr, "ledger_mode", cfg.LedgerMode)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildLedger(cfg config.Config) (ledger.Adapter, error) {
	switch cfg.LedgerMode {
	case "memory", "":
		return ledger.NewMemory(), nil
	case "gateway":
		if cfg.LedgerGatewayURL == "" {
			return nil, fmt.Errorf("LEDGER_GATEWAY_URL is required in gateway mode")
		}
		return ledger.NewGateway(cfg.LedgerGatewayURL, cfg.LedgerTimeout), nil
	default:
		return nil, fmt.Errorf("unknown ledger mode %q", cfg.LedgerMode)
	}
}
