package cart

import (
	"context"
	"database/sql"
	"errors"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	GetLine(ctx context.Context, ownerID uint, variantID string) (*Line, error)
	InsertLine(ctx context.Context, ownerID uint, variantID string) (*Line, error)
	SetQuantity(ctx context.Context, ownerID uint, variantID string, quantity int) error
	DeleteLine(ctx context.Context, ownerID uint, variantID string) (bool, error)
	Snapshot(ctx context.Context, ownerID uint) ([]SnapshotLine, error)
	Clear(ctx context.Context, ownerID uint) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetLine(ctx context.Context, ownerID uint, variantID string) (*Line, error) {
	query := `
	SELECT
		id,
		owner_id,
		variant_id,
		quantity,
		created_at,
		updated_at
	FROM cart_lines
	WHERE owner_id = $1 AND variant_id = $2
	`

	var line Line
	row := r.db.QueryRowContext(ctx, query, ownerID, variantID)
	err := row.Scan(
		&line.ID,
		&line.OwnerID,
		&line.VariantID,
		&line.Quantity,
		&line.CreatedAt,
		&line.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &line, nil
}

func (r *repository) InsertLine(ctx context.Context, ownerID uint, variantID string) (*Line, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "InsertLine"),
		zap.Uint("owner_id", ownerID),
		zap.String("variant_id", variantID),
	)

	query := `
	INSERT INTO cart_lines (
		owner_id,
		variant_id,
		quantity
	)
	VALUES ($1, $2, 1)
	RETURNING
		id,
		owner_id,
		variant_id,
		quantity,
		created_at,
		updated_at
	`

	var line Line
	row := r.db.QueryRowContext(ctx, query, ownerID, variantID)
	err := row.Scan(
		&line.ID,
		&line.OwnerID,
		&line.VariantID,
		&line.Quantity,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to insert cart line", zap.Error(err))
		return nil, err
	}

	log.Info("cart line created", zap.String("line_id", line.ID))
	return &line, nil
}

func (r *repository) SetQuantity(ctx context.Context, ownerID uint, variantID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE cart_lines
		SET quantity = $1, updated_at = NOW()
		WHERE owner_id = $2 AND variant_id = $3
	`, quantity, ownerID, variantID)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrLineNotFound
	}

	return nil
}

// DeleteLine removes the line and reports whether a row existed.
func (r *repository) DeleteLine(ctx context.Context, ownerID uint, variantID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE owner_id = $1 AND variant_id = $2
	`, ownerID, variantID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// Snapshot returns the owner's lines in insertion order, each priced at the
// variant's current catalog price. The read has no side effects, so a
// transient failure gets one transparent retry.
func (r *repository) Snapshot(ctx context.Context, ownerID uint) ([]SnapshotLine, error) {
	lines, err := r.snapshot(ctx, ownerID)
	if err == nil || ctx.Err() != nil {
		return lines, err
	}
	return r.snapshot(ctx, ownerID)
}

func (r *repository) snapshot(ctx context.Context, ownerID uint) ([]SnapshotLine, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Snapshot"),
		zap.Uint("owner_id", ownerID),
	)

	query := `
	SELECT
		c.variant_id,
		v.name,
		v.description,
		c.quantity,
		v.sale_price
	FROM cart_lines c
	JOIN variants v ON c.variant_id = v.id
	WHERE c.owner_id = $1
	ORDER BY c.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		log.Error("snapshot query failed", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []SnapshotLine
	for rows.Next() {
		var line SnapshotLine
		if err := rows.Scan(
			&line.VariantID,
			&line.VariantName,
			&line.Description,
			&line.Quantity,
			&line.UnitPrice,
		); err != nil {
			log.Error("snapshot scan failed", zap.Error(err))
			return nil, err
		}
		result = append(result, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Debug("snapshot loaded", zap.Int("lines", len(result)))
	return result, nil
}

func (r *repository) Clear(ctx context.Context, ownerID uint) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE owner_id = $1
	`, ownerID)
	return err
}
