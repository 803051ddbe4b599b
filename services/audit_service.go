package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"folioAPI/internal/billing"
	"folioAPI/internal/types/subscription"
)

// AuditService writes the side tables that record webhook deliveries and
// checkout attempts. Callers treat every error as non-fatal.
type AuditService struct {
	db *pgxpool.Pool
}

func NewAuditService(db *pgxpool.Pool) *AuditService {
	return &AuditService{db: db}
}

var _ billing.Recorder = (*AuditService)(nil)

func (s *AuditService) RecordWebhook(ctx context.Context, rec billing.WebhookRecord) error {
	query := `
	INSERT INTO webhook_events (id, provider, event_name, payload, signature_valid, processing_error, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var payload *string
	if len(rec.Payload) > 0 {
		p := string(rec.Payload)
		payload = &p
	}
	receivedAt := rec.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	_, err := s.db.Exec(ctx, query,
		uuid.New().String(),
		string(rec.Provider),
		rec.EventName,
		payload,
		rec.SignatureValid,
		rec.Error,
		receivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}

type CheckoutRecord struct {
	UserID     string
	Provider   subscription.Provider
	Plan       subscription.PlanType
	CheckoutID string
	Error      string
}

func (s *AuditService) RecordCheckout(ctx context.Context, rec CheckoutRecord) error {
	query := `
	INSERT INTO checkout_attempts (id, user_id, provider, plan_type, checkout_id, error, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := s.db.Exec(ctx, query,
		uuid.New().String(),
		rec.UserID,
		string(rec.Provider),
		string(rec.Plan),
		rec.CheckoutID,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record checkout attempt: %w", err)
	}
	return nil
}
