package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindOperationFailed},
		{errors.New("boom"), KindOperationFailed},
		{fmt.Errorf("load: %w", ErrNotFound), KindNotFound},
		{fmt.Errorf("%w: pending -> delivered", ErrInvalidTransition), KindInvalidTransition},
		{fmt.Errorf("place order: %w", ErrEmptyOrder), KindEmptyOrder},
		{ErrConflict, KindConflict},
		{ErrUnauthorized, KindUnauthorized},
		{ErrInvalidInput, KindInvalidInput},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
}

func TestStockError(t *testing.T) {
	err := error(&StockError{Issues: []StockIssue{
		{VariantID: 1, SKU: "LS-A", Requested: 3, Available: 1, Reason: ErrInsufficientStock},
		{VariantID: 2, SKU: "LS-B", Requested: 1, Reason: ErrUnavailable},
		{VariantID: 9, Requested: 1, Reason: ErrNotFound},
		{VariantID: 4, SKU: "LS-D", Requested: 5, Available: 0, Reason: ErrInsufficientStock},
	}})

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindInsufficientStock, KindOf(err))
	assert.Len(t, err.(*StockError).Unwrap(), 3)

	msg := err.Error()
	assert.Contains(t, msg, "variant 1 (LS-A): requested 3, available 1")
	assert.Contains(t, msg, "variant 2 (LS-B): no longer sold")
	assert.Contains(t, msg, "variant 9: not found")
	assert.Contains(t, msg, "variant 4 (LS-D): requested 5, available 0")

	onlyMissing := &StockError{Issues: []StockIssue{{VariantID: 9, Reason: ErrNotFound}}}
	assert.Equal(t, KindNotFound, KindOf(onlyMissing))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify("op", nil))

	typed := fmt.Errorf("%w: order x", ErrConflict)
	assert.Same(t, typed, Classify("op", typed))

	cause := errors.New("connection reset")
	err := Classify("place order", cause)
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "place order: operation failed: connection reset", err.Error())
	assert.Same(t, err, Classify("again", err))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	assert.Equal(t, http.StatusConflict, KindInsufficientStock.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, KindEmptyOrder.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, KindUnauthorized.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindOperationFailed.HTTPStatus())
	assert.Equal(t, "insufficient_stock", KindInsufficientStock.String())
}
