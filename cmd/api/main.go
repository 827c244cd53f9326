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

	"github.com/cmlabs-hris/hris-payroll-go/internal/config"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	appHTTP "github.com/cmlabs-hris/hris-payroll-go/internal/handler/http"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/logger"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/hris-payroll-go/internal/repository/memory"
	"github.com/cmlabs-hris/hris-payroll-go/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/hris-payroll-go/internal/service/payroll"
)

const (
	appName         = "hris-payroll"
	appVersion      = "v1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, logger.Options{
		App:     appName,
		Version: appVersion,
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Format:  cfg.App.LogFormat,
	})
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rules, err := config.LoadPayrollRules(cfg.Payroll.RulesFile)
	if err != nil {
		return fmt.Errorf("load payroll rules: %w", err)
	}
	calculator, err := payrollService.NewDeductionCalculator(rules)
	if err != nil {
		return fmt.Errorf("init calculator: %w", err)
	}

	var payrollRepo payroll.PayrollRepository
	switch cfg.Payroll.Store {
	case config.StoreMemory:
		log.Warn("using in-memory payroll store, records are lost on restart")
		payrollRepo = memory.NewPayrollRepository()
	default:
		dsn := cfg.DatabaseURL()
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(dsn); err != nil {
				return err
			}
			log.Info("database migrations applied")
		}

		db, err := database.NewPostgreSQLDB(ctx, dsn, log.With(slog.String("component", "database")))
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		payrollRepo = postgresql.NewPayrollRepository(db)
	}

	appMetrics := metrics.New()
	service := payrollService.NewPayrollService(payrollRepo, calculator, appMetrics, log)
	payrollHandler := appHTTP.NewPayrollHandler(service)

	scheduler := cron.NewScheduler(log)
	cron.NewPayrollJobs(service, appMetrics).RegisterJobs(scheduler, cfg.Payroll.TotalsInterval)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	router := appHTTP.NewRouter(appHTTP.RouterOptions{
		Logger:         log,
		AllowedOrigins: cfg.App.CORSAllowedOrigins,
		Metrics:        appMetrics.Handler(),
	}, payrollHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server running", slog.String("addr", server.Addr), slog.String("store", cfg.Payroll.Store))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
