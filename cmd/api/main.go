package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hst-srl/matafuegos-sync/internal/application"
	appenrich "github.com/hst-srl/matafuegos-sync/internal/application/enrich"
	appingest "github.com/hst-srl/matafuegos-sync/internal/application/ingest"
	appreports "github.com/hst-srl/matafuegos-sync/internal/application/reports"
	"github.com/hst-srl/matafuegos-sync/internal/config"
	domain "github.com/hst-srl/matafuegos-sync/internal/domain/extinguishers"
	mysqlp "github.com/hst-srl/matafuegos-sync/internal/infra/db/mysql"
	postgresp "github.com/hst-srl/matafuegos-sync/internal/infra/db/postgres"
	"github.com/hst-srl/matafuegos-sync/internal/infra/httpserver"
	"github.com/hst-srl/matafuegos-sync/internal/infra/registry"
	minioStore "github.com/hst-srl/matafuegos-sync/internal/infra/storage"
	"github.com/hst-srl/matafuegos-sync/internal/logger"
	"github.com/hst-srl/matafuegos-sync/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "matafuegos-api")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	// connect relational store
	var (
		db   *sql.DB
		repo domain.Repository
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			zlog.Fatal("postgres connect error", zap.Error(err))
		}
		repo = postgresp.NewExtinguisherRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			zlog.Fatal("mysql connect error", zap.Error(err))
		}
		repo = mysqlp.NewExtinguisherRepository(db)
	}
	defer db.Close()

	// snapshot archive is optional
	var snapshots domain.SnapshotStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			zlog.Fatal("minio init error", zap.Error(err))
		}
		snapshots = store
	}

	agc := registry.New(registry.Options{
		Domain:         cfg.Registry.Domain,
		UserAgent:      cfg.Registry.UserAgent,
		ConnectTimeout: cfg.Registry.ConnectTimeout,
		Timeout:        cfg.Registry.Timeout,
	}, zlog)

	clock := application.SystemClock{}
	ingestSvc := appingest.New(repo, clock, zlog)
	reportsSvc := appreports.New(repo, clock, zlog)
	enrichSvc := &appenrich.Service{
		Repo:       repo,
		Registry:   agc,
		Snapshots:  snapshots,
		Clock:      clock,
		Logger:     zlog,
		FetchDelay: cfg.Enrich.FetchDelay,
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	mux.Use(middleware.Logging(zlog))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RateLimit(60, 10))

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}))
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Mount("/", httpserver.NewRouter(ingestSvc, enrichSvc, reportsSvc, cfg.Enrich.MaxBatch))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// background enrichment worker, same batch the /api_sync endpoint runs
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if cfg.Enrich.PollInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Enrich.PollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-workerCtx.Done():
					return
				case <-ticker.C:
					res, err := enrichSvc.RunBatch(workerCtx, cfg.Enrich.MaxBatch)
					if err != nil {
						zlog.Error("enrichment batch error", zap.Error(err))
						continue
					}
					middleware.AddEnrichmentResults(res.Enriched, res.Failed)
				}
			}
		}()
	}

	// run server
	go func() {
		zlog.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	zlog.Info("shutting down server...")
	stopWorker()

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
}
