package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rafata1/storefront-orders/apperr"
	"github.com/rafata1/storefront-orders/database"
	"github.com/rafata1/storefront-orders/logging"
	"github.com/rafata1/storefront-orders/model"
)

// ProductSale is the per-product increment derived from one order.
type ProductSale struct {
	ProductID   int64           `db:"product_id"`
	ProductName string          `db:"product_name"`
	Quantity    int64           `db:"quantity"`
	Revenue     decimal.Decimal `db:"revenue"`
	SoldAt      time.Time       `db:"sold_at"`
}

// IService accumulates sales figures. Figures only ever grow: cancelled or returned orders do
// not retract what they contributed once delivered.
type IService interface {
	UpdateDailyRevenueStats(ctx context.Context, order model.Order) error
	UpdateProductSalesStats(ctx context.Context, lines []model.OrderLine) error
	GetDailyRevenue(ctx context.Context, date time.Time) (model.DailyRevenueStats, error)
	GetProductSales(ctx context.Context, productID int64) (model.ProductSalesStats, error)
}

type service struct {
	repo  IRepo
	clock func() time.Time
}

func NewService(repo IRepo, clock func() time.Time) IService {
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo: repo,
		clock: func() time.Time {
			return clock().UTC()
		},
	}
}

func (s service) UpdateDailyRevenueStats(ctx context.Context, order model.Order) error {
	date := order.CreatedAt.UTC()
	if err := s.repo.IncrementDailyRevenue(ctx, date, 1, order.TotalAmount); err != nil {
		return fmt.Errorf("update daily revenue for %s: %w", date.Format(time.DateOnly), err)
	}
	logging.FromContext(ctx).Info("daily revenue updated",
		zap.String("order_code", order.OrderCode),
		zap.String("date", date.Format(time.DateOnly)),
		zap.String("amount", order.TotalAmount.StringFixed(2)),
	)
	return nil
}

// UpdateProductSalesStats applies every product's increment or none of them.
func (s service) UpdateProductSalesStats(ctx context.Context, lines []model.OrderLine) error {
	sales := aggregateSales(lines, s.clock())
	return s.repo.Transact(ctx, func(ctx context.Context) error {
		for _, sale := range sales {
			if err := s.repo.IncrementProductSales(ctx, sale); err != nil {
				return fmt.Errorf("update sales of product %d: %w", sale.ProductID, err)
			}
		}
		return nil
	})
}

func (s service) GetDailyRevenue(ctx context.Context, date time.Time) (model.DailyRevenueStats, error) {
	res, err := s.repo.GetDailyRevenue(ctx, date)
	if database.IsNotFound(err) {
		return model.DailyRevenueStats{}, fmt.Errorf("%w: no revenue recorded for %s", apperr.ErrNotFound, date.Format(time.DateOnly))
	}
	return res, err
}

func (s service) GetProductSales(ctx context.Context, productID int64) (model.ProductSalesStats, error) {
	res, err := s.repo.GetProductSales(ctx, productID)
	if database.IsNotFound(err) {
		return model.ProductSalesStats{}, fmt.Errorf("%w: no sales recorded for product %d", apperr.ErrNotFound, productID)
	}
	return res, err
}

// aggregateSales folds lines of the same product into one increment, keeping first-seen order.
func aggregateSales(lines []model.OrderLine, soldAt time.Time) []ProductSale {
	index := make(map[int64]int, len(lines))
	var res []ProductSale
	for _, line := range lines {
		i, ok := index[line.ProductID]
		if !ok {
			index[line.ProductID] = len(res)
			res = append(res, ProductSale{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Revenue:     decimal.Zero,
				SoldAt:      soldAt,
			})
			i = len(res) - 1
		}
		res[i].Quantity += int64(line.Quantity)
		res[i].Revenue = res[i].Revenue.Add(line.LineTotal)
	}
	return res
}
