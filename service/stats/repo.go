package stats

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/rafata1/storefront-orders/database"
	"github.com/rafata1/storefront-orders/model"
)

type IRepo interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
	IncrementDailyRevenue(ctx context.Context, date time.Time, orders int64, revenue decimal.Decimal) error
	IncrementProductSales(ctx context.Context, sale ProductSale) error
	GetDailyRevenue(ctx context.Context, date time.Time) (model.DailyRevenueStats, error)
	GetProductSales(ctx context.Context, productID int64) (model.ProductSalesStats, error)
}

type repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) IRepo {
	return &repo{
		db: db,
	}
}

func (r repo) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.Transact(ctx, r.db, fn)
}

var incrementDailyRevenueQuery = `INSERT INTO daily_revenue_stats (stat_date, total_orders, total_revenue)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE total_orders = total_orders + VALUES(total_orders),
                        total_revenue = total_revenue + VALUES(total_revenue)`

func (r repo) IncrementDailyRevenue(ctx context.Context, date time.Time, orders int64, revenue decimal.Decimal) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, incrementDailyRevenueQuery, dateOnly(date), orders, revenue)
	return err
}

var incrementProductSalesQuery = `INSERT INTO product_sales_stats (product_id, product_name, total_sold_quantity, total_revenue, last_sold_at)
VALUES (:product_id, :product_name, :quantity, :revenue, :sold_at)
ON DUPLICATE KEY UPDATE product_name = VALUES(product_name),
                        total_sold_quantity = total_sold_quantity + VALUES(total_sold_quantity),
                        total_revenue = total_revenue + VALUES(total_revenue),
                        last_sold_at = VALUES(last_sold_at)`

func (r repo) IncrementProductSales(ctx context.Context, sale ProductSale) error {
	_, err := database.Conn(ctx, r.db).NamedExecContext(ctx, incrementProductSalesQuery, sale)
	return err
}

var getDailyRevenueQuery = "SELECT * FROM daily_revenue_stats WHERE stat_date = ?"

func (r repo) GetDailyRevenue(ctx context.Context, date time.Time) (model.DailyRevenueStats, error) {
	var res model.DailyRevenueStats
	err := database.Conn(ctx, r.db).GetContext(ctx, &res, getDailyRevenueQuery, dateOnly(date))
	return res, err
}

var getProductSalesQuery = "SELECT * FROM product_sales_stats WHERE product_id = ?"

func (r repo) GetProductSales(ctx context.Context, productID int64) (model.ProductSalesStats, error) {
	var res model.ProductSalesStats
	err := database.Conn(ctx, r.db).GetContext(ctx, &res, getProductSalesQuery, productID)
	return res, err
}

func dateOnly(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
