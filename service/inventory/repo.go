package inventory

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/rafata1/storefront-orders/database"
	"github.com/rafata1/storefront-orders/model"
)

type IRepo interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
	GetVariant(ctx context.Context, id int64) (model.ProductVariant, error)
	GetVariants(ctx context.Context, ids []int64) ([]model.ProductVariant, error)
	DecrementStock(ctx context.Context, id int64, quantity int) (bool, error)
	RestoreStock(ctx context.Context, id int64, quantity int) (bool, error)
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

var getVariantQuery = "SELECT * FROM product_variants WHERE id = ?"

func (r repo) GetVariant(ctx context.Context, id int64) (model.ProductVariant, error) {
	var res model.ProductVariant
	err := database.Conn(ctx, r.db).GetContext(ctx, &res, getVariantQuery, id)
	return res, err
}

var getVariantsQuery = "SELECT * FROM product_variants WHERE id IN (?)"

func (r repo) GetVariants(ctx context.Context, ids []int64) ([]model.ProductVariant, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(getVariantsQuery, ids)
	if err != nil {
		return nil, err
	}

	var res []model.ProductVariant
	err = database.Conn(ctx, r.db).SelectContext(ctx, &res, query, args...)
	return res, err
}

// the WHERE clause re-checks availability in the same statement that writes, so two
// transactions racing for the last units cannot both succeed
var decrementStockQuery = "UPDATE product_variants SET stock_quantity = stock_quantity - ? WHERE id = ? AND stock_quantity >= ?"

func (r repo) DecrementStock(ctx context.Context, id int64, quantity int) (bool, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, decrementStockQuery, quantity, id, quantity)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

var restoreStockQuery = "UPDATE product_variants SET stock_quantity = stock_quantity + ? WHERE id = ?"

func (r repo) RestoreStock(ctx context.Context, id int64, quantity int) (bool, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, restoreStockQuery, quantity, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}
