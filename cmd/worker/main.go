package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/messdesk/messdesk/internal/app"
	jobmetrics "github.com/messdesk/messdesk/internal/jobs"
	"github.com/messdesk/messdesk/jobs"
)

// adminDirectory resolves the mess admin's email straight from the database;
// the worker has no reason to pull in the full repository layers.
type adminDirectory struct {
	pool *pgxpool.Pool
}

func (d adminDirectory) AdminEmail(ctx context.Context, messID int64) (string, error) {
	var email string
	err := d.pool.QueryRow(ctx,
		`SELECT u.email
		   FROM memberships mb
		   JOIN users u ON u.id = mb.user_id
		  WHERE mb.mess_id = $1 AND mb.is_admin
		  LIMIT 1`, messID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return email, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	quotaAlerts := jobs.NewQuotaAlertHandler(adminDirectory{pool: pool}, client, logger)
	expiryScan := jobs.NewExpiryScanHandler(pool, client, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeQuotaAlert, Handler: quotaAlerts.Handle},
			{Type: jobs.TaskTypeExpiryScan, Handler: expiryScan.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 6 * * *", Task: jobs.NewExpiryScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
		Metrics: jobmetrics.NewMetrics(nil),
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
