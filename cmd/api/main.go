package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"docvault/internal/access"
	"docvault/internal/anchor"
	"docvault/internal/config"
	"docvault/internal/crypto/kdf"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	handlers "docvault/internal/http/handler"
	"docvault/internal/http/middleware"
	"docvault/internal/logging"
	"docvault/internal/otel"
	"docvault/internal/repository"
	"docvault/internal/repository/dynamodb"
	"docvault/internal/repository/postgres"
	"docvault/internal/service"
	"docvault/internal/signature"
	"docvault/internal/storage"
	"docvault/internal/token"
	"docvault/internal/watermark"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logging.New(cfg.Log)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("startup_config_invalid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.WithError(err).Fatal("tracing_init_failed")
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("db_connect_failed")
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		log.WithError(err).Fatal("db_migration_failed")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	docs, downloads, err := buildServices(ctx, cfg, db, log, reg)
	if err != nil {
		log.WithError(err).Fatal("startup_failed")
	}

	auth, err := middleware.NewSessionAuth(cfg.Auth.SessionSecret, cfg.Auth.Issuer)
	if err != nil {
		log.WithError(err).Fatal("startup_failed")
	}

	metrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.WithError(err).Fatal("startup_failed")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             int(cfg.Storage.MaxUploadBytes) + 1<<20,
		DisableStartupMessage: true,
	})

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(metrics.Handler())
	app.Use(otelfiber.Middleware())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:        db,
		Documents: docs,
		Downloads: downloads,
		Auth:      auth,
		Upload: handlers.UploadOptions{
			MaxBytes:     cfg.Storage.MaxUploadBytes,
			AllowedTypes: cfg.Vault.AllowedMediaTypes,
		},
		Log: log,
	})

	go func() {
		<-ctx.Done()
		log.Info("shutdown_started")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Warn("http_shutdown_failed")
		}
		if err := docs.Wait(shutdownCtx); err != nil {
			log.WithError(err).Warn("anchor_drain_incomplete")
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracing_shutdown_failed")
		}
	}()

	addr := ":" + cfg.Port
	log.WithField("addr", addr).Info("server_listening")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("server_failed")
	}
	log.Info("shutdown_complete")
}

func buildServices(ctx context.Context, cfg *config.AppConfig, db *sql.DB, log *logrus.Logger, reg prometheus.Registerer) (*service.DocumentStore, *service.Downloads, error) {
	buckets := storage.Buckets{
		Originals: cfg.Storage.OriginalsBucket,
		Secured:   cfg.Storage.SecuredBucket,
		Metadata:  cfg.Storage.MetadataBucket,
	}

	var (
		store storage.Storage
		err   error
	)
	switch cfg.Storage.Backend {
	case "s3":
		store, err = storage.NewS3(ctx, cfg.AWS, buckets)
	default:
		store, err = storage.NewMinIO(ctx, cfg.MinIO, buckets)
	}
	if err != nil {
		return nil, nil, err
	}

	master, err := config.DecodeSecret(cfg.Vault.MasterSecret)
	if err != nil {
		return nil, nil, err
	}
	keys, err := kdf.New(master, cfg.Vault.KDFIterations, cfg.Vault.KeyCacheSize, cfg.Vault.KeyCacheTTL)
	if err != nil {
		return nil, nil, err
	}

	var limits repository.AccessLimitRepository
	switch cfg.Vault.AccessLimitStore {
	case "dynamodb":
		limits, err = dynamodb.NewAccessLimitDynamoFromConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, nil, err
		}
	default:
		limits = postgres.NewAccessLimitPostgres(db)
	}

	limiter, err := access.NewLimiter(limits, repository.Policy{
		MaxDownloads: cfg.Vault.MaxDownloads,
		Window:       cfg.Vault.AccessWindow,
	}, log, reg, nil)
	if err != nil {
		return nil, nil, err
	}

	signer, err := signature.LoadSigner(cfg.Vault.SigningKeyPath, cfg.Vault.SigningKeyPEM)
	if err != nil {
		return nil, nil, err
	}
	tokens, err := token.New([]byte(cfg.Vault.TokenSecret), nil)
	if err != nil {
		return nil, nil, err
	}

	var anchorer anchor.Anchorer = anchor.Noop{}
	if cfg.Anchor.URL != "" {
		anchorer = anchor.NewHTTP(cfg.Anchor.URL, cfg.Anchor.APIKey, cfg.Anchor.Timeout)
	}

	docs, err := service.NewDocumentStore(store, postgres.NewDocumentPostgres(db), keys, anchorer, service.StoreConfig{
		Timeout:       cfg.Storage.Timeout,
		AnchorTimeout: cfg.Anchor.Timeout,
	}, log, reg)
	if err != nil {
		return nil, nil, err
	}

	downloads, err := service.NewDownloads(docs, limiter, watermark.New(log, nil), signer, tokens,
		postgres.NewAccessLogPostgres(db), service.DownloadConfig{TokenTTL: cfg.Vault.TokenTTL}, log, reg)
	if err != nil {
		return nil, nil, err
	}
	return docs, downloads, nil
}
