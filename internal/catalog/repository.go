package catalog

import (
	"context"
	"database/sql"
	"errors"
)

var ErrVariantNotFound = errors.New("product variant not found")

type Repository interface {
	GetVariant(ctx context.Context, variantID string) (*Variant, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// GetVariant returns a published variant with its current sale price.
func (r *repository) GetVariant(ctx context.Context, variantID string) (*Variant, error) {
	query := `
	SELECT
		id,
		product_id,
		sku,
		name,
		description,
		sale_price,
		published
	FROM variants
	WHERE id = $1 AND published = TRUE
	`

	var v Variant
	row := r.db.QueryRowContext(ctx, query, variantID)
	err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.SKU,
		&v.Name,
		&v.Description,
		&v.Price,
		&v.Published,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	if err != nil {
		return nil, err
	}

	return &v, nil
}
