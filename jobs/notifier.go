package jobs

import (
	"context"
	"log/slog"

	"github.com/messdesk/messdesk/internal/entitlement"
)

// QuotaNotifier bridges the entitlement engine to the job queue: when a
// metered feature hits its limit, an alert task is enqueued out of band.
type QuotaNotifier struct {
	client *Client
	logger *slog.Logger
}

// NewQuotaNotifier constructs the notifier.
func NewQuotaNotifier(client *Client, logger *slog.Logger) *QuotaNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaNotifier{client: client, logger: logger}
}

// QuotaExhausted enqueues a quota alert. Failures are logged, never bubbled;
// notification must not fail the request that consumed the last unit.
func (n *QuotaNotifier) QuotaExhausted(ctx context.Context, messID int64, f entitlement.Feature, used int) {
	_, err := n.client.EnqueueQuotaAlert(ctx, QuotaAlertPayload{
		MessID:  messID,
		Feature: string(f),
		Used:    used,
	})
	if err != nil {
		n.logger.Error("quota alert enqueue",
			slog.Int64("mess_id", messID),
			slog.String("feature", string(f)),
			slog.Any("error", err))
	}
}
