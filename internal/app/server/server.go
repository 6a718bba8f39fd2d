package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"crewpay/internal/domain/payroll"
	"crewpay/internal/export"
	"crewpay/internal/export/ach"
	"crewpay/internal/export/certified"
	"crewpay/internal/platform/config"
	cryptoutil "crewpay/internal/platform/crypto"
	"crewpay/internal/platform/db"
	"crewpay/internal/platform/metrics"
	"crewpay/internal/transport/http/api"
	payrollhandler "crewpay/internal/transport/http/handlers/payroll"
	"crewpay/internal/transport/http/middleware"
)

// Pinger reports database readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Config  config.Config
	DB      Pinger
	Metrics *metrics.Collector
	Payroll payrollhandler.PayrollService
	Exports payrollhandler.Exporter
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	var recorder middleware.Recorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(recorder))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.DB == nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := deps.DB.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if deps.Metrics != nil {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, deps.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	var limitOpts []middleware.RateLimitOption
	if cfg.TrustProxy {
		limitOpts = append(limitOpts, middleware.WithKeyFunc(middleware.ForwardedForKey))
	}
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute, limitOpts...))
		r.Use(middleware.HeavyRateLimit(cfg.RateLimitPerMin, time.Minute, limitOpts...))
		payrollhandler.NewHandler(deps.Payroll, deps.Exports).RegisterRoutes(r)
	})

	return router
}

func taxPolicy(cfg config.Config) (payroll.TaxPolicy, error) {
	if cfg.TaxTablePath == "" {
		return payroll.DefaultTaxPolicy(), nil
	}
	table, err := payroll.LoadTaxTable(cfg.TaxTablePath)
	if err != nil {
		return nil, err
	}
	return table.Policy(cfg.TaxTable)
}

// Run wires the payroll services and serves HTTP until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.MigrationsDir, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
	}

	cipher, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}
	if !cipher.Configured() {
		slog.Warn("DATA_ENCRYPTION_KEY not set; bank accounts are stored without encryption")
	}

	policy, err := taxPolicy(cfg)
	if err != nil {
		return err
	}

	collector := metrics.New()
	store := payroll.NewStore(pool, cipher)
	payrollSvc := payroll.NewService(store, payroll.NewCalculator(policy), cfg.CalcWorkers)

	var achExporter *ach.Exporter
	if cfg.ACHEnabled() {
		achExporter, err = ach.New(cfg.ACHConfig())
		if err != nil {
			return err
		}
	} else {
		slog.Warn("ACH originator not configured; ach exports are disabled")
	}
	exportSvc := export.NewService(payrollSvc, store, export.Options{
		Dir:       cfg.ExportDir,
		Certified: certified.Options{ContractorName: cfg.ContractorName},
		ACH:       achExporter,
		Metrics:   collector,
	})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: NewRouter(Deps{
			Config:  cfg,
			DB:      pool,
			Metrics: collector,
			Payroll: payrollSvc,
			Exports: exportSvc,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("crewpay server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	slog.Info("crewpay server shutting down")
	return srv.Shutdown(shutdownCtx)
}
