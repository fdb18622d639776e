package order

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rafata1/storefront-orders/apperr"
	"github.com/rafata1/storefront-orders/model"
)

func TestValidateTransition(t *testing.T) {
	allowed := map[[2]model.OrderStatus]bool{
		{model.OrderPending, model.OrderConfirmed}:   true,
		{model.OrderPending, model.OrderCancelled}:   true,
		{model.OrderConfirmed, model.OrderShipping}:  true,
		{model.OrderConfirmed, model.OrderCancelled}: true,
		{model.OrderShipping, model.OrderDelivered}:  true,
		{model.OrderShipping, model.OrderReturned}:   true,
		{model.OrderDelivered, model.OrderReturned}:  true,
	}

	for _, from := range model.AllOrderStatuses {
		for _, to := range model.AllOrderStatuses {
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				err := ValidateTransition(from, to)
				if allowed[[2]model.OrderStatus{from, to}] {
					assert.NoError(t, err)
					return
				}
				assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
			})
		}
	}

	assert.ErrorIs(t, ValidateTransition(model.OrderStatus(99), model.OrderPending), apperr.ErrInvalidTransition)
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, IsTerminal(model.OrderCancelled))
	assert.True(t, IsTerminal(model.OrderReturned))
	assert.False(t, IsTerminal(model.OrderDelivered))
	assert.False(t, IsTerminal(model.OrderStatus(99)))
	assert.Empty(t, AllowedTransitions(model.OrderReturned))
	assert.Equal(t, []model.OrderStatus{model.OrderDelivered, model.OrderReturned}, AllowedTransitions(model.OrderShipping))
}

func TestAuthorize(t *testing.T) {
	own := model.Order{OrderCode: "ORD-261017-0000000001", UserID: "user-1", Status: model.OrderPending}
	confirmed := own
	confirmed.Status = model.OrderConfirmed
	guest := own
	guest.UserID = ""

	owner := model.Actor{ID: "user-1", Role: model.RoleCustomer}
	stranger := model.Actor{ID: "user-2", Role: model.RoleCustomer}
	admin := model.Actor{ID: "admin-1", Role: model.RoleAdmin}

	tests := []struct {
		name   string
		actor  model.Actor
		order  model.Order
		target model.OrderStatus
		ok     bool
	}{
		{"staff confirms", staff, own, model.OrderConfirmed, true},
		{"admin returns", admin, own, model.OrderReturned, true},
		{"staff cancels confirmed", staff, confirmed, model.OrderCancelled, true},
		{"owner cancels pending", owner, own, model.OrderCancelled, true},
		{"owner cancels confirmed", owner, confirmed, model.OrderCancelled, false},
		{"owner confirms", owner, own, model.OrderConfirmed, false},
		{"owner marks delivered", owner, own, model.OrderDelivered, false},
		{"stranger cancels", stranger, own, model.OrderCancelled, false},
		{"customer cancels guest order", owner, guest, model.OrderCancelled, false},
		{"no actor id", model.Actor{Role: model.RoleAdmin}, own, model.OrderConfirmed, false},
		{"system actor", model.SystemActor, own, model.OrderConfirmed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.order, tt.target)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		})
	}
}

func TestValidatePaymentChange(t *testing.T) {
	tests := []struct {
		name    string
		status  model.OrderStatus
		payment model.PaymentStatus
		next    model.PaymentStatus
		ok      bool
	}{
		{"pending order paid", model.OrderPending, model.PaymentUnpaid, model.PaymentPaid, true},
		{"shipping order failed", model.OrderShipping, model.PaymentPaid, model.PaymentFailed, true},
		{"cancelled order refunded", model.OrderCancelled, model.PaymentPaid, model.PaymentRefunded, true},
		{"delivered order refunded", model.OrderDelivered, model.PaymentPaid, model.PaymentRefunded, true},
		{"returned order refunded", model.OrderReturned, model.PaymentPaid, model.PaymentRefunded, true},
		{"delivered order unpaid", model.OrderDelivered, model.PaymentPaid, model.PaymentUnpaid, false},
		{"delivered order failed", model.OrderDelivered, model.PaymentPaid, model.PaymentFailed, false},
		{"returned order repaid", model.OrderReturned, model.PaymentRefunded, model.PaymentPaid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePaymentChange(model.Order{Status: tt.status, PaymentStatus: tt.payment}, tt.next)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
		})
	}
}
