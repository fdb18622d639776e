// Package apperr holds the failure taxonomy shared by the order services.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnavailable       = errors.New("unavailable")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyOrder        = errors.New("order has no lines")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrOperationFailed   = errors.New("operation failed")
)

type Kind int

const (
	KindOperationFailed Kind = iota
	KindNotFound
	KindUnavailable
	KindInsufficientStock
	KindEmptyOrder
	KindInvalidTransition
	KindConflict
	KindUnauthorized
	KindInvalidInput
)

// checked in order: the first match wins when an error carries several causes.
var kindSentinels = []struct {
	kind Kind
	err  error
}{
	{KindEmptyOrder, ErrEmptyOrder},
	{KindInvalidInput, ErrInvalidInput},
	{KindInsufficientStock, ErrInsufficientStock},
	{KindUnavailable, ErrUnavailable},
	{KindNotFound, ErrNotFound},
	{KindInvalidTransition, ErrInvalidTransition},
	{KindUnauthorized, ErrUnauthorized},
	{KindConflict, ErrConflict},
}

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindEmptyOrder:
		return "empty_order"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidInput:
		return "invalid_input"
	}
	return "operation_failed"
}

// HTTPStatus is the status code a request handler should answer with for this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable, KindInsufficientStock, KindInvalidTransition, KindConflict:
		return http.StatusConflict
	case KindEmptyOrder, KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// KindOf classifies err. Anything outside the taxonomy is KindOperationFailed.
func KindOf(err error) Kind {
	if err == nil {
		return KindOperationFailed
	}
	for _, s := range kindSentinels {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindOperationFailed
}

// Classify returns err unchanged when it already belongs to the taxonomy and otherwise marks
// it as ErrOperationFailed, keeping the cause in the chain.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindOperationFailed || errors.Is(err, ErrOperationFailed) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrOperationFailed, err)
}

// StockIssue describes one cart line that cannot be fulfilled.
type StockIssue struct {
	VariantID int64
	SKU       string
	Requested int
	Available int
	Reason    error
}

func (i StockIssue) String() string {
	switch {
	case errors.Is(i.Reason, ErrInsufficientStock):
		return fmt.Sprintf("variant %d (%s): requested %d, available %d", i.VariantID, i.SKU, i.Requested, i.Available)
	case errors.Is(i.Reason, ErrUnavailable):
		return fmt.Sprintf("variant %d (%s): no longer sold", i.VariantID, i.SKU)
	}
	return fmt.Sprintf("variant %d: not found", i.VariantID)
}

// StockError reports every failing line of a cart at once.
type StockError struct {
	Issues []StockIssue
}

func (e *StockError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return "stock check failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the distinct reasons so errors.Is matches any of them.
func (e *StockError) Unwrap() []error {
	var reasons []error
	for _, issue := range e.Issues {
		seen := false
		for _, r := range reasons {
			if r == issue.Reason {
				seen = true
				break
			}
		}
		if !seen && issue.Reason != nil {
			reasons = append(reasons, issue.Reason)
		}
	}
	return reasons
}
