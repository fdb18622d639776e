package inventory

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/rafata1/storefront-orders/apperr"
	"github.com/rafata1/storefront-orders/database"
	"github.com/rafata1/storefront-orders/logging"
	"github.com/rafata1/storefront-orders/model"
)

// StockChange is a signed-off quantity for one variant, applied by the ledger.
type StockChange struct {
	VariantID int64
	Quantity  int
}

type IService interface {
	// PrepareAndValidateStock checks every line against current stock without writing anything.
	PrepareAndValidateStock(ctx context.Context, lines []model.CartLine) ([]model.ValidatedLine, error)
	Decrement(ctx context.Context, variantID int64, quantity int) error
	Restore(ctx context.Context, variantID int64, quantity int) error
	DecrementAll(ctx context.Context, changes []StockChange) error
	RestoreAll(ctx context.Context, changes []StockChange) error
}

type service struct {
	repo IRepo
}

func NewService(repo IRepo) IService {
	return &service{
		repo: repo,
	}
}

func (s service) PrepareAndValidateStock(ctx context.Context, lines []model.CartLine) ([]model.ValidatedLine, error) {
	if len(lines) == 0 {
		return nil, apperr.ErrEmptyOrder
	}

	merged, err := mergeCartLines(lines)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(merged))
	for _, line := range merged {
		ids = append(ids, line.VariantID)
	}
	variants, err := s.repo.GetVariants(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	byID := make(map[int64]model.ProductVariant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}

	var issues []apperr.StockIssue
	res := make([]model.ValidatedLine, 0, len(merged))
	for _, line := range merged {
		variant, ok := byID[line.VariantID]
		switch {
		case !ok:
			issues = append(issues, apperr.StockIssue{
				VariantID: line.VariantID,
				Requested: line.Quantity,
				Reason:    apperr.ErrNotFound,
			})
		case !variant.IsActive:
			issues = append(issues, apperr.StockIssue{
				VariantID: line.VariantID,
				SKU:       variant.SKU,
				Requested: line.Quantity,
				Available: variant.StockQuantity,
				Reason:    apperr.ErrUnavailable,
			})
		case line.Quantity > variant.StockQuantity:
			issues = append(issues, apperr.StockIssue{
				VariantID: line.VariantID,
				SKU:       variant.SKU,
				Requested: line.Quantity,
				Available: variant.StockQuantity,
				Reason:    apperr.ErrInsufficientStock,
			})
		default:
			res = append(res, model.ValidatedLine{Variant: variant, Quantity: line.Quantity})
		}
	}

	if len(issues) > 0 {
		return nil, &apperr.StockError{Issues: issues}
	}
	return res, nil
}

func (s service) Decrement(ctx context.Context, variantID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", apperr.ErrInvalidInput, quantity)
	}

	ok, err := s.repo.DecrementStock(ctx, variantID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock of variant %d: %w", variantID, err)
	}
	if ok {
		return nil
	}

	issue, err := s.describeShortage(ctx, variantID, quantity)
	if err != nil {
		return err
	}
	return &apperr.StockError{Issues: []apperr.StockIssue{issue}}
}

func (s service) Restore(ctx context.Context, variantID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", apperr.ErrInvalidInput, quantity)
	}

	ok, err := s.repo.RestoreStock(ctx, variantID, quantity)
	if err != nil {
		return fmt.Errorf("restore stock of variant %d: %w", variantID, err)
	}
	if !ok {
		return fmt.Errorf("%w: variant %d", apperr.ErrNotFound, variantID)
	}

	logging.FromContext(ctx).Info("stock restored",
		zap.Int64("variant_id", variantID),
		zap.Int("quantity", quantity),
	)
	return nil
}

// DecrementAll applies changes in ascending variant order inside one transaction. Every
// shortage is collected before the transaction is rolled back.
func (s service) DecrementAll(ctx context.Context, changes []StockChange) error {
	ordered, err := mergeChanges(changes)
	if err != nil {
		return err
	}

	return s.repo.Transact(ctx, func(ctx context.Context) error {
		var issues []apperr.StockIssue
		for _, change := range ordered {
			ok, err := s.repo.DecrementStock(ctx, change.VariantID, change.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock of variant %d: %w", change.VariantID, err)
			}
			if ok {
				continue
			}
			issue, err := s.describeShortage(ctx, change.VariantID, change.Quantity)
			if err != nil {
				return err
			}
			issues = append(issues, issue)
		}
		if len(issues) > 0 {
			return &apperr.StockError{Issues: issues}
		}
		return nil
	})
}

// RestoreAll puts quantities back in ascending variant order. Variants that no longer exist
// are skipped: there is no stock left to correct for them.
func (s service) RestoreAll(ctx context.Context, changes []StockChange) error {
	ordered, err := mergeChanges(changes)
	if err != nil {
		return err
	}

	return s.repo.Transact(ctx, func(ctx context.Context) error {
		for _, change := range ordered {
			err := s.Restore(ctx, change.VariantID, change.Quantity)
			if apperr.KindOf(err) == apperr.KindNotFound {
				logging.FromContext(ctx).Warn("stock restore skipped, variant no longer exists",
					zap.Int64("variant_id", change.VariantID),
					zap.Int("quantity", change.Quantity),
				)
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s service) describeShortage(ctx context.Context, variantID int64, quantity int) (apperr.StockIssue, error) {
	variant, err := s.repo.GetVariant(ctx, variantID)
	if database.IsNotFound(err) {
		return apperr.StockIssue{VariantID: variantID, Requested: quantity, Reason: apperr.ErrNotFound}, nil
	}
	if err != nil {
		return apperr.StockIssue{}, fmt.Errorf("load variant %d: %w", variantID, err)
	}
	return apperr.StockIssue{
		VariantID: variantID,
		SKU:       variant.SKU,
		Requested: quantity,
		Available: variant.StockQuantity,
		Reason:    apperr.ErrInsufficientStock,
	}, nil
}

func mergeCartLines(lines []model.CartLine) ([]model.CartLine, error) {
	index := make(map[int64]int, len(lines))
	merged := make([]model.CartLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for variant %d must be positive, got %d",
				apperr.ErrInvalidInput, line.VariantID, line.Quantity)
		}
		if i, ok := index[line.VariantID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.VariantID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

// mergeChanges sums quantities per variant and sorts by variant id so concurrent transactions
// take row locks in the same order.
func mergeChanges(changes []StockChange) ([]StockChange, error) {
	sums := make(map[int64]int, len(changes))
	for _, change := range changes {
		if change.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for variant %d must be positive, got %d",
				apperr.ErrInvalidInput, change.VariantID, change.Quantity)
		}
		sums[change.VariantID] += change.Quantity
	}

	res := make([]StockChange, 0, len(sums))
	for id, qty := range sums {
		res = append(res, StockChange{VariantID: id, Quantity: qty})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].VariantID < res[j].VariantID })
	return res, nil
}
