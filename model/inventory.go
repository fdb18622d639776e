package model

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

type ProductVariant struct {
	ID            int64           `db:"id"`
	ProductID     int64           `db:"product_id"`
	ProductName   string          `db:"product_name"`
	SKU           string          `db:"sku"`
	ColorName     string          `db:"color_name"`
	SizeName      string          `db:"size_name"`
	ThumbnailURL  string          `db:"thumbnail_url"`
	Price         decimal.Decimal `db:"price"`
	StockQuantity int             `db:"stock_quantity"`
	IsActive      bool            `db:"is_active"`
	CreatedAt     sql.NullTime    `db:"created_at"`
	UpdatedAt     sql.NullTime    `db:"updated_at"`
}

// CartLine is a requested quantity of one variant. It is never persisted.
type CartLine struct {
	VariantID int64 `json:"variant_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// ValidatedLine pairs a variant, as read during validation, with the quantity to buy.
type ValidatedLine struct {
	Variant  ProductVariant
	Quantity int
}

func (l ValidatedLine) LineTotal() decimal.Decimal {
	return l.Variant.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
