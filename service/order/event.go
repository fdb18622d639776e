package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rafata1/storefront-orders/model"
	"github.com/rafata1/storefront-orders/order_event"
)

func placedOutbox(order model.Order) (model.Outbox, error) {
	lines := make([]order_event.OrderLineEvent, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, order_event.OrderLineEvent{
			VariantID: line.VariantID,
			ProductID: line.ProductID,
			SKU:       line.SKU,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	content, err := json.Marshal(order_event.OrderPlacedEvent{
		EventID:     uuid.NewString(),
		Type:        order_event.TypeOrderPlaced,
		OrderID:     order.ID,
		OrderCode:   order.OrderCode,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Lines:       lines,
		OccurredAt:  order.CreatedAt,
	})
	if err != nil {
		return model.Outbox{}, err
	}
	return model.Outbox{
		EventType:  order_event.TypeOrderPlaced,
		MessageKey: order.OrderCode,
		Content:    content,
	}, nil
}

func statusChangedOutbox(order model.Order, previous model.OrderStatus, changedBy string, at time.Time) (model.Outbox, error) {
	event := order_event.OrderStatusChangedEvent{
		EventID:        uuid.NewString(),
		Type:           order_event.TypeOrderStatusChanged,
		OrderID:        order.ID,
		OrderCode:      order.OrderCode,
		PreviousStatus: previous.String(),
		CurrentStatus:  order.Status.String(),
		ChangedBy:      changedBy,
		OccurredAt:     at,
	}
	if order.Invoice != nil {
		event.InvoiceNumber = order.Invoice.InvoiceNumber
	}

	content, err := json.Marshal(event)
	if err != nil {
		return model.Outbox{}, err
	}
	return model.Outbox{
		EventType:  order_event.TypeOrderStatusChanged,
		MessageKey: order.OrderCode,
		Content:    content,
	}, nil
}

func extractIDs(outboxes []model.Outbox) []int64 {
	res := make([]int64, 0, len(outboxes))
	for _, outbox := range outboxes {
		res = append(res, outbox.ID)
	}
	return res
}
