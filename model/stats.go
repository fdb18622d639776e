package model

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type DailyRevenueStats struct {
	StatDate     time.Time       `db:"stat_date"`
	TotalOrders  int64           `db:"total_orders"`
	TotalRevenue decimal.Decimal `db:"total_revenue"`
	UpdatedAt    sql.NullTime    `db:"updated_at"`
}

type ProductSalesStats struct {
	ProductID         int64           `db:"product_id"`
	ProductName       string          `db:"product_name"`
	TotalSoldQuantity int64           `db:"total_sold_quantity"`
	TotalRevenue      decimal.Decimal `db:"total_revenue"`
	LastSoldAt        sql.NullTime    `db:"last_sold_at"`
}
