package cart

import (
	"context"
	"errors"

	"storefront-be/internal/catalog"
	"storefront-be/internal/fault"
	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

// Service defines the business logic for the pre-checkout basket.
type Service interface {
	Add(ctx context.Context, ownerID uint, variantID string) error
	Increase(ctx context.Context, ownerID uint, variantID string) error
	Decrease(ctx context.Context, ownerID uint, variantID string) error
	Remove(ctx context.Context, ownerID uint, variantID string) error
	Snapshot(ctx context.Context, ownerID uint) ([]SnapshotLine, error)
	Clear(ctx context.Context, ownerID uint) error
}

type service struct {
	repo        Repository
	catalogRepo catalog.Repository
}

func NewService(repo Repository, catalogRepo catalog.Repository) Service {
	return &service{repo: repo, catalogRepo: catalogRepo}
}

// Add creates a line at quantity 1. Adding a variant that is already in the
// cart is a no-op; quantity changes go through Increase/Decrease.
func (s *service) Add(ctx context.Context, ownerID uint, variantID string) error {
	if _, err := s.catalogRepo.GetVariant(ctx, variantID); err != nil {
		if errors.Is(err, catalog.ErrVariantNotFound) {
			return fault.Wrap(fault.KindValidation, "unknown variant", err)
		}
		return fault.Wrap(fault.KindStorage, "lookup variant", err)
	}

	line, err := s.repo.GetLine(ctx, ownerID, variantID)
	if err != nil {
		return fault.Wrap(fault.KindStorage, "get cart line", err)
	}
	if line != nil {
		return nil
	}

	if _, err := s.repo.InsertLine(ctx, ownerID, variantID); err != nil {
		if isUniqueViolation(err) {
			// A concurrent Add won the insert; the line exists at
			// quantity 1, which is exactly this call's outcome.
			return nil
		}
		return fault.Wrap(fault.KindStorage, "insert cart line", err)
	}
	return nil
}

func (s *service) Increase(ctx context.Context, ownerID uint, variantID string) error {
	line, err := s.repo.GetLine(ctx, ownerID, variantID)
	if err != nil {
		return fault.Wrap(fault.KindStorage, "get cart line", err)
	}

	if line == nil {
		if _, err := s.catalogRepo.GetVariant(ctx, variantID); err != nil {
			if errors.Is(err, catalog.ErrVariantNotFound) {
				return fault.Wrap(fault.KindValidation, "unknown variant", err)
			}
			return fault.Wrap(fault.KindStorage, "lookup variant", err)
		}
		if _, err := s.repo.InsertLine(ctx, ownerID, variantID); err != nil {
			return fault.Wrap(fault.KindStorage, "insert cart line", err)
		}
		return nil
	}

	if err := s.repo.SetQuantity(ctx, ownerID, variantID, line.Quantity+1); err != nil {
		return fault.Wrap(fault.KindStorage, "update cart quantity", err)
	}
	return nil
}

// Decrease lowers the quantity by one, deleting the line when it reaches
// zero. Decreasing a line that does not exist is a not-found error.
func (s *service) Decrease(ctx context.Context, ownerID uint, variantID string) error {
	line, err := s.repo.GetLine(ctx, ownerID, variantID)
	if err != nil {
		return fault.Wrap(fault.KindStorage, "get cart line", err)
	}
	if line == nil {
		return fault.Wrap(fault.KindNotFound, "decrease cart line", ErrLineNotFound)
	}

	if line.Quantity > 1 {
		if err := s.repo.SetQuantity(ctx, ownerID, variantID, line.Quantity-1); err != nil {
			return fault.Wrap(fault.KindStorage, "update cart quantity", err)
		}
		return nil
	}

	if _, err := s.repo.DeleteLine(ctx, ownerID, variantID); err != nil {
		return fault.Wrap(fault.KindStorage, "delete cart line", err)
	}
	return nil
}

// Remove deletes the line if present; removing an absent line succeeds.
func (s *service) Remove(ctx context.Context, ownerID uint, variantID string) error {
	existed, err := s.repo.DeleteLine(ctx, ownerID, variantID)
	if err != nil {
		return fault.Wrap(fault.KindStorage, "delete cart line", err)
	}
	if !existed {
		logger.FromCtx(ctx).Debug("remove on absent cart line",
			zap.Uint("owner_id", ownerID),
			zap.String("variant_id", variantID),
		)
	}
	return nil
}

func (s *service) Snapshot(ctx context.Context, ownerID uint) ([]SnapshotLine, error) {
	lines, err := s.repo.Snapshot(ctx, ownerID)
	if err != nil {
		return nil, fault.Wrap(fault.KindStorage, "load cart snapshot", err)
	}
	return lines, nil
}

func (s *service) Clear(ctx context.Context, ownerID uint) error {
	if err := s.repo.Clear(ctx, ownerID); err != nil {
		return fault.Wrap(fault.KindStorage, "clear cart", err)
	}
	return nil
}
