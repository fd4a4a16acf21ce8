package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// expiryWindow is how far ahead the sweep looks for expiring subscriptions.
const expiryWindow = 3 * 24 * time.Hour

// ExpiryScanHandler sweeps for subscriptions about to expire and mails the
// mess administrators a renewal reminder. It runs on a cron schedule.
type ExpiryScanHandler struct {
	pool   *pgxpool.Pool
	client *Client
	logger *slog.Logger
}

// NewExpiryScanHandler constructs the handler.
func NewExpiryScanHandler(pool *pgxpool.Pool, client *Client, logger *slog.Logger) *ExpiryScanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpiryScanHandler{pool: pool, client: client, logger: logger}
}

// Handle processes TaskTypeExpiryScan tasks.
func (h *ExpiryScanHandler) Handle(ctx context.Context, t *asynq.Task) error {
	now := time.Now()
	rows, err := h.pool.Query(ctx,
		`SELECT s.mess_id, m.name, s.plan, s.expires_at, u.email
		   FROM subscriptions s
		   JOIN messes m ON m.id = s.mess_id
		   JOIN memberships mb ON mb.mess_id = s.mess_id AND mb.is_admin
		   JOIN users u ON u.id = mb.user_id
		  WHERE s.is_active AND s.expires_at > $1 AND s.expires_at <= $2`,
		now, now.Add(expiryWindow))
	if err != nil {
		return err
	}
	defer rows.Close()

	var notified int
	for rows.Next() {
		var (
			messID    int64
			messName  string
			plan      string
			expiresAt time.Time
			email     string
		)
		if err := rows.Scan(&messID, &messName, &plan, &expiresAt, &email); err != nil {
			return err
		}
		_, err := h.client.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      email,
			Subject: fmt.Sprintf("Subscription for %s expires soon", messName),
			Body: fmt.Sprintf("The %s plan for %s expires on %s. Renew to keep your features.",
				plan, messName, expiresAt.Format("2006-01-02")),
		})
		if err != nil {
			h.logger.Error("expiry scan: enqueue reminder",
				slog.Int64("mess_id", messID), slog.Any("error", err))
			continue
		}
		notified++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	h.logger.Info("expiry scan complete", slog.Int("notified", notified))
	return nil
}
