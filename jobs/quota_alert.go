package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// AdminDirectory resolves the email address of a mess administrator so
// alerts reach someone who can upgrade the plan.
type AdminDirectory interface {
	AdminEmail(ctx context.Context, messID int64) (string, error)
}

// QuotaAlertHandler turns quota exhaustion events into emails.
type QuotaAlertHandler struct {
	directory AdminDirectory
	client    *Client
	logger    *slog.Logger
}

// NewQuotaAlertHandler constructs the handler.
func NewQuotaAlertHandler(directory AdminDirectory, client *Client, logger *slog.Logger) *QuotaAlertHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaAlertHandler{directory: directory, client: client, logger: logger}
}

// Handle processes TaskTypeQuotaAlert tasks.
func (h *QuotaAlertHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload QuotaAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	email, err := h.directory.AdminEmail(ctx, payload.MessID)
	if err != nil {
		h.logger.Error("quota alert: admin lookup",
			slog.Int64("mess_id", payload.MessID), slog.Any("error", err))
		return err
	}
	if email == "" {
		return errors.New("jobs: mess has no admin email")
	}
	_, err = h.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      email,
		Subject: fmt.Sprintf("Quota reached: %s", payload.Feature),
		Body: fmt.Sprintf(
			"Your mess has used all %d units of the %s feature for this billing period. Upgrade the plan to continue.",
			payload.Used, payload.Feature),
	})
	return err
}
