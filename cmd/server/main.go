package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"unilib/internal/auth"
	"unilib/internal/catalog"
	"unilib/internal/circulation"
	"unilib/internal/config"
	"unilib/internal/engagement"
	"unilib/internal/membership"
	"unilib/internal/notify"
	"unilib/internal/postgres"
	"unilib/internal/server"
	"unilib/pkg/ledger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.OTLPEndpoint != "" {
		shutdown, err := setupTracing(ctx, cfg.Tracing.OTLPEndpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("setup tracing")
		}
		defer shutdown(context.Background())
	}

	rawDB, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to database")
	}
	defer rawDB.Close()

	if err := postgres.Migrate(ctx, rawDB); err != nil {
		logger.Fatal().Err(err).Msg("migrate database")
	}
	db := sqlx.NewDb(rawDB, "postgres")

	var meiliClient meilisearch.ServiceManager
	if cfg.Search.MeiliHost != "" {
		meiliClient = meilisearch.New(cfg.Search.MeiliHost, meilisearch.WithAPIKey(cfg.Search.MeiliKey))
	}

	publisher, err := notify.NewPublisher(cfg.Events.RabbitURL, cfg.Events.Exchange, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to rabbitmq")
	}
	defer publisher.Close()

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	catalogSvc := catalog.NewService(db, catalog.NewSearchIndex(meiliClient, logger), logger)
	membershipSvc := membership.NewService(db, logger)

	var pub circulation.Publisher
	if publisher != nil {
		pub = publisher
	}
	circulationSvc := circulation.NewService(
		circulation.NewStore(db, ledger.New(rawDB)),
		catalogSvc,
		pub,
		logger,
	)
	engagementSvc := engagement.NewService(db, logger)

	router := server.NewRouter(server.Deps{
		Logger:         logger,
		Issuer:         issuer,
		Membership:     membership.NewHandler(membershipSvc, issuer),
		Catalog:        catalog.NewHandler(catalogSvc),
		Circulation:    circulation.NewHandler(circulationSvc, cfg.Circulation.SelfService),
		Engagement:     engagement.NewHandler(engagementSvc),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("unilib server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "unilib"),
		)),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
