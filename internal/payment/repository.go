package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

type Repository interface {
	RecordAttempt(ctx context.Context, a *Attempt) error
	ListAttemptsByOrder(ctx context.Context, orderID uint) ([]*Attempt, error)
	SaveConfirmationEvent(
		ctx context.Context,
		provider string,
		paymentRef string,
		orderRef string,
		payload json.RawMessage,
		signatureValid bool,
	) (eventID int64, isDuplicate bool, err error)
	MarkEventProcessed(ctx context.Context, eventID int64) error
	MarkEventFailed(ctx context.Context, eventID int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) RecordAttempt(ctx context.Context, a *Attempt) error {
	const q = `
	INSERT INTO payment_attempts (order_id, payment_ref, status, amount_minor, payload)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (order_id, payment_ref, status) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, q,
		a.OrderID, a.PaymentRef, a.Status, a.AmountMinor, a.RawPayload,
	)
	return err
}

func (r *repository) ListAttemptsByOrder(ctx context.Context, orderID uint) ([]*Attempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, payment_ref, status, amount_minor, created_at
		FROM payment_attempts
		WHERE order_id = $1
		ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(
			&a.ID, &a.OrderID, &a.PaymentRef, &a.Status, &a.AmountMinor, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &a)
	}

	return result, rows.Err()
}

// SaveConfirmationEvent stores one inbound payment confirmation per
// (provider, payment_ref). A replayed confirmation hits the conflict and is
// reported as a duplicate instead of a second row.
func (r *repository) SaveConfirmationEvent(
	ctx context.Context,
	provider string,
	paymentRef string,
	orderRef string,
	payload json.RawMessage,
	signatureValid bool,
) (int64, bool, error) {

	const q = `
	INSERT INTO payment_events (
		provider,
		payment_ref,
		order_ref,
		signature_valid,
		payload
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (provider, payment_ref)
	DO NOTHING
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx, q,
		provider,
		paymentRef,
		orderRef,
		signatureValid,
		payload,
	).Scan(&id)

	if err != nil {
		// Duplicate event, idempotent success
		if errors.Is(err, sql.ErrNoRows) {
			return 0, true, nil
		}
		return 0, false, err
	}

	return id, false, nil
}

func (r *repository) MarkEventProcessed(ctx context.Context, eventID int64) error {
	const q = `
	UPDATE payment_events
	SET processed_at = NOW()
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, eventID)
	return err
}

func (r *repository) MarkEventFailed(ctx context.Context, eventID int64, reason string) error {
	const q = `
	UPDATE payment_events
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, eventID, reason)
	return err
}
