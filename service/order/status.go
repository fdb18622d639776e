package order

import (
	"fmt"
	"slices"

	"github.com/rafata1/storefront-orders/apperr"
	"github.com/rafata1/storefront-orders/model"
)

// orderStateTransitions lists the statuses reachable from each status. Cancelled and Returned
// are terminal.
var orderStateTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderPending:   {model.OrderConfirmed, model.OrderCancelled},
	model.OrderConfirmed: {model.OrderShipping, model.OrderCancelled},
	model.OrderShipping:  {model.OrderDelivered, model.OrderReturned},
	model.OrderDelivered: {model.OrderReturned},
	model.OrderCancelled: {},
	model.OrderReturned:  {},
}

// managerOnlyTargets can only be requested by staff. Customers may cancel their own pending
// orders and nothing else.
var managerOnlyTargets = map[model.OrderStatus]bool{
	model.OrderConfirmed: true,
	model.OrderShipping:  true,
	model.OrderDelivered: true,
	model.OrderReturned:  true,
}

// ValidateTransition fails with ErrInvalidTransition unless requested is directly reachable
// from current. Staying in the same status is not a transition.
func ValidateTransition(current, requested model.OrderStatus) error {
	if !slices.Contains(orderStateTransitions[current], requested) {
		return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, current, requested)
	}
	return nil
}

func AllowedTransitions(current model.OrderStatus) []model.OrderStatus {
	return slices.Clone(orderStateTransitions[current])
}

func IsTerminal(status model.OrderStatus) bool {
	next, ok := orderStateTransitions[status]
	return ok && len(next) == 0
}

// Authorize checks that actor may move order to target.
func Authorize(actor model.Actor, order model.Order, target model.OrderStatus) error {
	if actor.ID == "" {
		return fmt.Errorf("%w: no acting user", apperr.ErrUnauthorized)
	}
	if actor.IsManager() {
		return nil
	}
	if managerOnlyTargets[target] {
		return fmt.Errorf("%w: only staff can move orders to %s", apperr.ErrUnauthorized, target)
	}
	if order.UserID == "" || order.UserID != actor.ID {
		return fmt.Errorf("%w: order %s belongs to another customer", apperr.ErrUnauthorized, order.OrderCode)
	}
	if order.Status != model.OrderPending {
		return fmt.Errorf("%w: customers can only cancel pending orders", apperr.ErrUnauthorized)
	}
	return nil
}

// ValidatePaymentChange guards payment updates arriving after fulfilment. Once an order is
// delivered or returned its payment was settled on delivery, so the only further move is a
// refund of a paid order.
func ValidatePaymentChange(order model.Order, next model.PaymentStatus) error {
	if order.Status != model.OrderDelivered && order.Status != model.OrderReturned {
		return nil
	}
	if order.PaymentStatus == model.PaymentPaid && next == model.PaymentRefunded {
		return nil
	}
	return fmt.Errorf("%w: payment %s -> %s on %s order %s",
		apperr.ErrInvalidTransition, order.PaymentStatus, next, order.Status, order.OrderCode)
}
