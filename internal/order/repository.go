package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	CreateWithLines(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, orderID uint) (*Order, error)
	GetByGatewayOrderRef(ctx context.Context, ref string) (*Order, error)
	FindOpenByOwner(ctx context.Context, ownerID uint) (*Order, error)
	SetGatewayOrderRef(ctx context.Context, orderID uint, ref string) error
	Cancel(ctx context.Context, orderID uint) error
	MarkPaid(ctx context.Context, orderID uint, paymentRef, signature string) (bool, error)
	SetInvoiceRefs(ctx context.Context, orderID uint, gatewayInvoiceRef, docRef string) error
	ListStaleRegistered(ctx context.Context, olderThan time.Duration, limit int) ([]*Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `
	id,
	owner_id,
	status,
	payment_status,
	total_amount,
	customer_name,
	customer_email,
	billing_address,
	shipping_address,
	gateway_order_ref,
	gateway_payment_ref,
	gateway_signature,
	gateway_invoice_ref,
	invoice_doc_ref,
	created_at,
	updated_at`

// CreateWithLines inserts the order and all of its lines in one
// transaction. If any line insert fails nothing is persisted.
func (r *repository) CreateWithLines(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateWithLines"),
		zap.Uint("owner_id", o.OwnerID),
		zap.Int("lines", len(o.Lines)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			owner_id, status, payment_status, total_amount,
			customer_name, customer_email, billing_address, shipping_address
		)
		VALUES ($1, $2, FALSE, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`,
		o.OwnerID,
		o.Status,
		o.TotalAmount,
		o.CustomerName,
		o.CustomerEmail,
		o.BillingAddress,
		o.ShippingAddress,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			log.Info("open order already exists for owner")
			return ErrOpenOrderExists
		}
		log.Error("failed to insert order", zap.Error(err))
		return err
	}

	for i := range o.Lines {
		line := &o.Lines[i]
		line.OrderID = o.ID

		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_lines (
				order_id, variant_id, variant_name, description, quantity, unit_price
			) VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`,
			o.ID,
			line.VariantID,
			line.VariantName,
			line.Description,
			line.Quantity,
			line.UnitPrice,
		).Scan(&line.ID)
		if err != nil {
			log.Error("failed to insert order line",
				zap.String("variant_id", line.VariantID),
				zap.Error(err),
			)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info("order created",
		zap.Uint("order_id", o.ID),
		zap.String("total_amount", o.TotalAmount.StringFixed(2)),
	)
	return nil
}

// retryRead re-runs a read once on a transient failure. Reads have no
// side effects; not-found is a result, not a failure.
func retryRead[T any](ctx context.Context, load func() (T, error)) (T, error) {
	v, err := load()
	if err == nil || errors.Is(err, ErrOrderNotFound) || ctx.Err() != nil {
		return v, err
	}
	return load()
}

func (r *repository) GetByID(ctx context.Context, orderID uint) (*Order, error) {
	return retryRead(ctx, func() (*Order, error) {
		return r.getByID(ctx, orderID)
	})
}

func (r *repository) getByID(ctx context.Context, orderID uint) (*Order, error) {
	o, err := r.scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, orderID))
	if err != nil {
		return nil, err
	}

	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) GetByGatewayOrderRef(ctx context.Context, ref string) (*Order, error) {
	return retryRead(ctx, func() (*Order, error) {
		return r.getByGatewayOrderRef(ctx, ref)
	})
}

func (r *repository) getByGatewayOrderRef(ctx context.Context, ref string) (*Order, error) {
	o, err := r.scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE gateway_order_ref = $1
	`, ref))
	if err != nil {
		return nil, err
	}

	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// FindOpenByOwner returns the owner's newest unpaid PENDING order, or nil
// when there is none. Used to resume checkout instead of creating a
// duplicate order.
func (r *repository) FindOpenByOwner(ctx context.Context, ownerID uint) (*Order, error) {
	return retryRead(ctx, func() (*Order, error) {
		return r.findOpenByOwner(ctx, ownerID)
	})
}

func (r *repository) findOpenByOwner(ctx context.Context, ownerID uint) (*Order, error) {
	o, err := r.scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE owner_id = $1 AND status = 'PENDING' AND payment_status = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`, ownerID))
	if errors.Is(err, ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// SetGatewayOrderRef assigns the remote order reference. The guard on NULL
// means an already-registered order is never re-pointed at a new remote
// order.
func (r *repository) SetGatewayOrderRef(ctx context.Context, orderID uint, ref string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET gateway_order_ref = $1, updated_at = NOW()
		WHERE id = $2 AND gateway_order_ref IS NULL
	`, ref, orderID)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrGatewayRefAssigned
	}
	return nil
}

// Cancel voids an unpaid order. The payment_status = FALSE guard means an
// order that got captured in the meantime keeps its money trail untouched.
func (r *repository) Cancel(ctx context.Context, orderID uint) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND payment_status = FALSE
	`, StatusCanceled, orderID)
	return err
}

// MarkPaid flips payment_status and stores the capture references in one
// statement. The payment_status = FALSE guard makes a replayed confirmation
// a no-op; the bool result reports whether this call applied the capture.
func (r *repository) MarkPaid(ctx context.Context, orderID uint, paymentRef, signature string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = TRUE,
		    status = $1,
		    gateway_payment_ref = $2,
		    gateway_signature = NULLIF($3, ''),
		    updated_at = NOW()
		WHERE id = $4 AND payment_status = FALSE
	`, StatusConfirmed, paymentRef, signature, orderID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func (r *repository) SetInvoiceRefs(ctx context.Context, orderID uint, gatewayInvoiceRef, docRef string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET gateway_invoice_ref = NULLIF($1, ''),
		    invoice_doc_ref = NULLIF($2, ''),
		    updated_at = NOW()
		WHERE id = $3
	`, gatewayInvoiceRef, docRef, orderID)
	return err
}

// ListStaleRegistered returns unpaid orders that hold a gateway order
// reference and have not been touched for olderThan. Input to the
// reconciler sweep.
func (r *repository) ListStaleRegistered(ctx context.Context, olderThan time.Duration, limit int) ([]*Order, error) {
	cutoff := time.Now().Add(-olderThan)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE payment_status = FALSE
		  AND status = 'PENDING'
		  AND gateway_order_ref IS NOT NULL
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID,
			&o.OwnerID,
			&o.Status,
			&o.PaymentStatus,
			&o.TotalAmount,
			&o.CustomerName,
			&o.CustomerEmail,
			&o.BillingAddress,
			&o.ShippingAddress,
			&o.GatewayOrderRef,
			&o.GatewayPaymentRef,
			&o.GatewaySignature,
			&o.GatewayInvoiceRef,
			&o.InvoiceDocRef,
			&o.CreatedAt,
			&o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	// The reconciler invoices recovered orders, so each one needs its
	// lines, same as the single-order reads.
	for _, o := range result {
		if err := r.loadLines(ctx, o); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (r *repository) scanOrder(row *sql.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OwnerID,
		&o.Status,
		&o.PaymentStatus,
		&o.TotalAmount,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.BillingAddress,
		&o.ShippingAddress,
		&o.GatewayOrderRef,
		&o.GatewayPaymentRef,
		&o.GatewaySignature,
		&o.GatewayInvoiceRef,
		&o.InvoiceDocRef,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) loadLines(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, variant_id, variant_name, description, quantity, unit_price
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id ASC
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var line Line
		if err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.VariantID,
			&line.VariantName,
			&line.Description,
			&line.Quantity,
			&line.UnitPrice,
		); err != nil {
			return err
		}
		o.Lines = append(o.Lines, line)
	}

	return rows.Err()
}
