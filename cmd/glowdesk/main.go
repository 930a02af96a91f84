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

	"github.com/hibiken/asynq"

	"github.com/glowdesk/glowdesk/cmd/glowdesk/cli"
	analytichttp "github.com/glowdesk/glowdesk/internal/analytics/http"
	"github.com/glowdesk/glowdesk/internal/app"
	"github.com/glowdesk/glowdesk/internal/auth"
	"github.com/glowdesk/glowdesk/internal/customers"
	"github.com/glowdesk/glowdesk/internal/freebies"
	"github.com/glowdesk/glowdesk/internal/observability"
	"github.com/glowdesk/glowdesk/internal/platform/cache"
	"github.com/glowdesk/glowdesk/internal/products"
	"github.com/glowdesk/glowdesk/internal/purchases"
	"github.com/glowdesk/glowdesk/internal/shared"
	"github.com/glowdesk/glowdesk/jobs"
)

const usage = `usage: glowdesk [command]

commands:
  serve                    run the HTTP API (default)
  create-user -email -password [-name]
  enqueue inventory:low_stock_scan [-threshold n] [-limit n]
  enqueue mail:send -to addr [-subject s] [-body b]
  queue                    print queue statistics
`

func main() {
	if shared.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	cmd, args := "serve", []string(nil)
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}
	switch cmd {
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cmd, args, cfg, logger); err != nil {
		logger.Error(cmd+" failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, cfg *app.Config, logger *slog.Logger) error {
	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	switch cmd {
	case "serve":
		return serve(ctx, cfg, redisOpts, logger)
	case "create-user":
		return createUser(ctx, cfg, redisOpts, logger, args)
	case "enqueue", "queue":
		jobsCLI := cli.NewJobsCLI(redisOpts.AsynqOpt())
		defer func() { _ = jobsCLI.Close() }()
		if cmd == "queue" {
			stats, err := jobsCLI.InspectQueues()
			if err != nil {
				return err
			}
			for _, q := range stats {
				fmt.Printf("%-8s pending=%d active=%d scheduled=%d retry=%d archived=%d paused=%t\n",
					q.Queue, q.Pending, q.Active, q.Scheduled, q.Retry, q.Archived, q.Paused)
			}
			return nil
		}
		if len(args) == 0 {
			return errors.New("enqueue: job name required")
		}
		info, err := jobsCLI.Trigger(ctx, args[0], args[1:], os.Stderr)
		if err != nil {
			return err
		}
		logger.Info("job enqueued", slog.String("type", info.Type), slog.String("id", info.ID), slog.String("queue", info.Queue))
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func createUser(ctx context.Context, cfg *app.Config, redisOpts cache.Options, logger *slog.Logger, args []string) error {
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()
	store, err := app.OpenStore(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	svcs := app.NewServices(app.ServiceDeps{Config: cfg, Store: store, Redis: redisClient, Logger: logger})
	return cli.CreateUser(ctx, svcs.Auth, args, os.Stdout)
}

func serve(ctx context.Context, cfg *app.Config, redisOpts cache.Options, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store, err := app.OpenStore(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("store close", slog.Any("error", err))
		}
	}()

	jobClient := jobs.NewClient(redisOpts.AsynqOpt())
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	svcs := app.NewServices(app.ServiceDeps{
		Config:  cfg,
		Store:   store,
		Redis:   redisClient,
		Mail:    jobClient,
		Metrics: metrics,
		Logger:  logger,
	})
	if err := svcs.ListenForInvalidation(ctx); err != nil {
		logger.Warn("analytics invalidation listener", slog.Any("error", err))
	}
	svcs.Auth.Subscribe(func(change auth.StateChange) {
		if change.User != nil {
			logger.Debug("auth state changed", slog.String("user_id", change.User.ID))
		}
	})

	sessionManager := shared.NewSessionManager(redisClient, "glowdesk_session", cfg.StorePrefix, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	inspector := asynq.NewInspector(redisOpts.AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      auth.NewHandler(logger, svcs.Auth, sessionManager, csrfManager),
		CustomersHandler: customers.NewHandler(logger, svcs.Customers),
		ProductsHandler:  products.NewHandler(logger, svcs.Products),
		FreebiesHandler:  freebies.NewHandler(logger, svcs.Freebies),
		PurchasesHandler: purchases.NewHandler(logger, svcs.Purchases),
		AnalyticsHandler: analytichttp.NewHandler(logger, svcs.Analytics),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Store:            store,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
