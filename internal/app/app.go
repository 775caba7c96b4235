package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"leadsync/internal/delivery"
	"leadsync/internal/domain"
	"leadsync/internal/infrastructure"
	"leadsync/internal/usecase"
	"leadsync/pkg/config"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Environment holds the wired services shared by the server and the CLI.
type Environment struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	Runs    *infrastructure.RunRepository
	Store   domain.TableStore
	Sync    *usecase.SyncService
	Publish *usecase.PublishService
	Report  *usecase.ReportService

	// nil unless Salesforce credentials are configured
	SalesforceCRM domain.CRMSource

	pool *pgxpool.Pool
}

// New wires the services. The warehouse is PostgreSQL when DATABASE_URL is
// set and an in-process store otherwise.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*Environment, error) {
	env := &Environment{
		Config:  cfg,
		Logger:  log,
		Metrics: m,
		Runs:    infrastructure.NewRunRepository(0, log),
	}

	if cfg.Warehouse.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Warehouse.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		env.pool = pool
		env.Store = infrastructure.NewPostgresStore(pool, cfg.Warehouse.Schema, log, m)
		log.WithField("schema", cfg.Warehouse.Schema).Info("Using PostgreSQL warehouse")
	} else {
		env.Store = infrastructure.NewMemoryStore(log)
		log.Warn("DATABASE_URL not set, using in-memory warehouse")
	}

	if cfg.External.AnalyticsAPIURL == "" {
		log.Warn("ANALYTICS_API_URL not set, sync runs will fail")
	}
	analytics := infrastructure.NewAnalyticsClient(
		cfg.External.AnalyticsAPIURL,
		cfg.External.AnalyticsAPIToken,
		cfg.External.AnalyticsProperty,
		cfg.Sync.PageSize,
		cfg.Sync.RateLimitPerSecond,
		cfg.Sync.RequestTimeout,
		log,
		m,
	)

	if cfg.SalesforceEnabled() {
		sf, err := infrastructure.NewSalesforceClient(
			cfg.External.SalesforceDomain,
			cfg.External.SalesforceUsername,
			cfg.External.SalesforceConsumerKey,
			cfg.External.SalesforceKeyFile,
		)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.SalesforceCRM = infrastructure.NewSalesforceCRMSource(sf, cfg.External.SalesforceObject, cfg.External.SalesforceWhere, log, m)
	}

	env.Sync = usecase.NewSyncService(analytics, env.Runs, log, m)
	env.Publish = usecase.NewPublishService(env.Store, env.Runs, cfg.Warehouse.MappedTable, cfg.Warehouse.AuxTable, log, m)
	env.Report = usecase.NewReportService(env.Runs, log)

	return env, nil
}

// CSVSource opens a CRM or auxiliary file from disk in the configured charset.
func (e *Environment) CSVSource(path string) *infrastructure.CSVSource {
	return infrastructure.NewCSVFileSource(path, e.Config.Sync.InputEncoding, e.Logger, e.Metrics)
}

// Handler builds the HTTP API.
func (e *Environment) Handler() http.Handler {
	handlers := delivery.NewHTTPHandlers(e.Sync, e.Publish, e.Report, delivery.HandlerOptions{
		InputEncoding:  e.Config.Sync.InputEncoding,
		MaxUploadBytes: e.Config.Server.MaxUploadBytes,
		ResetToken:     e.Config.Security.ResetToken,
		SalesforceCRM:  e.SalesforceCRM,
	}, e.Logger, e.Metrics)

	return delivery.NewHTTPRouter(handlers, e.Logger, e.Metrics, e.Config.Server.RequestTimeout).SetupRoutes()
}

// Serve runs the HTTP API until ctx is cancelled, then drains in-flight
// requests.
func (e *Environment) Serve(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           e.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.Logger.WithField("port", port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	e.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (e *Environment) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}
