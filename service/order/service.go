package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rafata1/storefront-orders/apperr"
	"github.com/rafata1/storefront-orders/database"
	"github.com/rafata1/storefront-orders/kafka"
	"github.com/rafata1/storefront-orders/logging"
	"github.com/rafata1/storefront-orders/model"
	"github.com/rafata1/storefront-orders/order_event"
	"github.com/rafata1/storefront-orders/service/inventory"
	"github.com/rafata1/storefront-orders/service/invoice"
	"github.com/rafata1/storefront-orders/service/stats"
)

const tracerName = "github.com/rafata1/storefront-orders/service/order"

type PlaceOrderCommand struct {
	Customer CustomerInfo     `json:"customer"`
	Address  AddressInput     `json:"address"`
	Lines    []model.CartLine `json:"lines"`
}

type StatusChangeCommand struct {
	OrderCode    string
	TargetStatus model.OrderStatus
	Note         string
	Actor        model.Actor
}

type IService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (model.Order, error)
	GetOrder(ctx context.Context, code string) (model.Order, error)
	// ProcessStatusChange moves an order along the status machine and applies the side
	// effects of the target status in the same transaction.
	ProcessStatusChange(ctx context.Context, cmd StatusChangeCommand) (model.Order, error)
	UpdatePaymentStatus(ctx context.Context, code string, status model.PaymentStatus) error
	RelayMessage(ctx context.Context, limit int) (int, error)
	ConsumePaymentStatuses(ctx context.Context, stopAfter time.Duration)
}

type ServiceDeps struct {
	Repo            IRepo
	Inventory       inventory.IService
	Invoices        invoice.IService
	Stats           stats.IService
	Builder         *Builder
	Producer        kafka.IProducer
	PaymentConsumer kafka.IConsumer
	Clock           func() time.Time
	MaxCodeAttempts int
}

type service struct {
	repo            IRepo
	inventory       inventory.IService
	invoices        invoice.IService
	stats           stats.IService
	builder         *Builder
	producer        kafka.IProducer
	paymentConsumer kafka.IConsumer
	clock           func() time.Time
	maxCodeAttempts int
	effects         map[model.OrderStatus][]sideEffect
	tracer          trace.Tracer
}

// statusChange is the state shared by the side effects of one transition.
type statusChange struct {
	order         *model.Order
	previous      model.OrderStatus
	actor         model.Actor
	at            time.Time
	firstDelivery bool
}

type sideEffect func(ctx context.Context, change *statusChange) error

func NewService(deps ServiceDeps) (IService, error) {
	if deps.Repo == nil {
		return nil, errors.New("order service: repository is required")
	}
	if deps.Inventory == nil || deps.Invoices == nil || deps.Stats == nil {
		return nil, errors.New("order service: inventory, invoice and stats services are required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	builder := deps.Builder
	if builder == nil {
		builder = NewBuilder(clock, nil)
	}
	attempts := deps.MaxCodeAttempts
	if attempts < 1 {
		attempts = 1
	}

	s := &service{
		repo:            deps.Repo,
		inventory:       deps.Inventory,
		invoices:        deps.Invoices,
		stats:           deps.Stats,
		builder:         builder,
		producer:        deps.Producer,
		paymentConsumer: deps.PaymentConsumer,
		clock: func() time.Time {
			return clock().UTC()
		},
		maxCodeAttempts: attempts,
		tracer:          otel.Tracer(tracerName),
	}
	s.effects = map[model.OrderStatus][]sideEffect{
		model.OrderPending:   nil,
		model.OrderConfirmed: nil,
		model.OrderShipping:  nil,
		model.OrderDelivered: {s.markPaid, s.issueInvoice, s.recordSales},
		model.OrderCancelled: {s.restoreStock},
		model.OrderReturned:  {s.restoreStock},
	}
	return s, nil
}

func (s *service) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (order model.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder", trace.WithAttributes(attribute.Int("order.lines", len(cmd.Lines))))
	defer func() { endSpan(span, err) }()

	if len(cmd.Lines) == 0 {
		return model.Order{}, apperr.ErrEmptyOrder
	}

	validated, err := s.inventory.PrepareAndValidateStock(ctx, cmd.Lines)
	if err != nil {
		return model.Order{}, apperr.Classify("place order", err)
	}

	order, err = s.builder.Build(cmd.Customer, cmd.Address, validated)
	if err != nil {
		return model.Order{}, apperr.Classify("place order", err)
	}

	err = s.repo.Transact(ctx, func(ctx context.Context) error {
		if err := s.inventory.DecrementAll(ctx, stockChanges(order.Lines)); err != nil {
			return err
		}
		if err := s.insertOrder(ctx, &order); err != nil {
			return err
		}
		outbox, err := placedOutbox(order)
		if err != nil {
			return err
		}
		return s.repo.CreateOutbox(ctx, outbox)
	})
	if err != nil {
		return model.Order{}, apperr.Classify("place order", err)
	}

	span.SetAttributes(attribute.String("order.code", order.OrderCode))
	logging.FromContext(ctx).Info("order placed",
		zap.String("order_code", order.OrderCode),
		zap.Int64("order_id", order.ID),
		zap.Int("lines", len(order.Lines)),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// insertOrder writes the header, regenerating the code on a unique index collision, followed
// by lines, address and the initial history entry.
func (s *service) insertOrder(ctx context.Context, order *model.Order) error {
	for attempt := 1; ; attempt++ {
		id, err := s.repo.CreateOrder(ctx, *order)
		if err == nil {
			order.ID = id
			break
		}
		if !database.IsDuplicateKey(err) {
			return fmt.Errorf("create order: %w", err)
		}
		if attempt >= s.maxCodeAttempts {
			return fmt.Errorf("%w: order code still taken after %d attempts", apperr.ErrConflict, attempt)
		}
		logging.FromContext(ctx).Warn("order code collision, regenerating",
			zap.String("order_code", order.OrderCode),
			zap.Int("attempt", attempt),
		)
		order.OrderCode = s.builder.NewCode()
	}

	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
	}
	if err := s.repo.CreateLines(ctx, order.Lines); err != nil {
		return fmt.Errorf("create order lines: %w", err)
	}

	order.Address.OrderID = order.ID
	if err := s.repo.CreateAddress(ctx, order.Address); err != nil {
		return fmt.Errorf("create order address: %w", err)
	}

	for i := range order.History {
		order.History[i].OrderID = order.ID
		id, err := s.repo.AppendHistory(ctx, order.History[i])
		if err != nil {
			return fmt.Errorf("append order history: %w", err)
		}
		order.History[i].ID = id
	}
	return nil
}

func (s *service) GetOrder(ctx context.Context, code string) (model.Order, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.Order{}, fmt.Errorf("%w: order code is required", apperr.ErrInvalidInput)
	}

	order, err := s.repo.GetOrderByCode(ctx, code)
	if err != nil {
		return model.Order{}, s.mapRepositoryError(code, err)
	}
	if err := s.loadDetails(ctx, &order); err != nil {
		return model.Order{}, apperr.Classify("get order", err)
	}
	return order, nil
}

func (s *service) ProcessStatusChange(ctx context.Context, cmd StatusChangeCommand) (order model.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "order.ProcessStatusChange", trace.WithAttributes(
		attribute.String("order.code", cmd.OrderCode),
		attribute.String("order.target_status", cmd.TargetStatus.String()),
	))
	defer func() { endSpan(span, err) }()

	code := strings.TrimSpace(cmd.OrderCode)
	if code == "" {
		return model.Order{}, fmt.Errorf("%w: order code is required", apperr.ErrInvalidInput)
	}

	var previous model.OrderStatus
	err = s.repo.Transact(ctx, func(ctx context.Context) error {
		locked, err := s.repo.LockOrderForUpdate(ctx, code)
		if err != nil {
			return s.mapRepositoryError(code, err)
		}
		if err := ValidateTransition(locked.Status, cmd.TargetStatus); err != nil {
			return err
		}
		if err := Authorize(cmd.Actor, locked, cmd.TargetStatus); err != nil {
			return err
		}
		if err := s.loadDetails(ctx, &locked); err != nil {
			return err
		}

		now := s.clock()
		previous = locked.Status
		change := &statusChange{
			order:         &locked,
			previous:      previous,
			actor:         cmd.Actor,
			at:            now,
			firstDelivery: !locked.HasReached(model.OrderDelivered),
		}

		history := newHistory(cmd.TargetStatus, strings.TrimSpace(cmd.Note), cmd.Actor.ID, now)
		history.OrderID = locked.ID
		if history.ID, err = s.repo.AppendHistory(ctx, history); err != nil {
			return fmt.Errorf("append order history: %w", err)
		}

		for _, effect := range s.effects[cmd.TargetStatus] {
			if err := effect(ctx, change); err != nil {
				return err
			}
		}

		ok, err := s.repo.UpdateStatus(ctx, StatusUpdate{
			OrderID:         locked.ID,
			Status:          cmd.TargetStatus,
			PaymentStatus:   locked.PaymentStatus,
			ExpectedVersion: locked.Version,
			UpdatedAt:       now,
		})
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: order %s changed concurrently", apperr.ErrConflict, code)
		}
		locked.Status = cmd.TargetStatus
		locked.Version++
		locked.UpdatedAt = now
		locked.History = append(locked.History, history)

		outbox, err := statusChangedOutbox(locked, previous, cmd.Actor.ID, now)
		if err != nil {
			return err
		}
		if err := s.repo.CreateOutbox(ctx, outbox); err != nil {
			return fmt.Errorf("create outbox: %w", err)
		}

		order = locked
		return nil
	})
	if err != nil {
		return model.Order{}, apperr.Classify("change order status", err)
	}

	logging.FromContext(ctx).Info("order status changed",
		zap.String("order_code", order.OrderCode),
		zap.Stringer("from", previous),
		zap.Stringer("to", order.Status),
		zap.String("changed_by", cmd.Actor.ID),
	)
	return order, nil
}

func (s *service) markPaid(_ context.Context, change *statusChange) error {
	change.order.PaymentStatus = model.PaymentPaid
	return nil
}

func (s *service) issueInvoice(ctx context.Context, change *statusChange) error {
	if !change.firstDelivery {
		return nil
	}
	inv, err := s.invoices.UpsertInvoice(ctx, *change.order)
	if err != nil {
		return err
	}
	change.order.Invoice = &inv
	return nil
}

// recordSales runs once per order. Later cancellations or returns leave the figures as they are.
func (s *service) recordSales(ctx context.Context, change *statusChange) error {
	if !change.firstDelivery {
		return nil
	}
	if err := s.stats.UpdateDailyRevenueStats(ctx, *change.order); err != nil {
		return err
	}
	return s.stats.UpdateProductSalesStats(ctx, change.order.Lines)
}

func (s *service) restoreStock(ctx context.Context, change *statusChange) error {
	return s.inventory.RestoreAll(ctx, stockChanges(change.order.Lines))
}

func (s *service) UpdatePaymentStatus(ctx context.Context, code string, status model.PaymentStatus) error {
	err := s.repo.Transact(ctx, func(ctx context.Context) error {
		order, err := s.repo.LockOrderForUpdate(ctx, code)
		if err != nil {
			return s.mapRepositoryError(code, err)
		}
		if order.PaymentStatus == status {
			return nil
		}
		if err := ValidatePaymentChange(order, status); err != nil {
			return err
		}
		return s.repo.UpdatePaymentStatus(ctx, order.ID, status, s.clock())
	})
	if err != nil {
		return apperr.Classify("update payment status", err)
	}
	logging.FromContext(ctx).Info("payment status updated",
		zap.String("order_code", code),
		zap.Stringer("payment_status", status),
	)
	return nil
}

func (s *service) RelayMessage(ctx context.Context, limit int) (int, error) {
	if s.producer == nil {
		return 0, errors.New("order service: producer not configured")
	}
	outboxes, err := s.repo.GetPendingOutbox(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(outboxes) == 0 {
		return 0, nil
	}

	messages := make([]kafka.Message, 0, len(outboxes))
	for _, outbox := range outboxes {
		messages = append(messages, kafka.Message{Key: outbox.MessageKey, Value: outbox.Content})
	}
	if err := s.producer.Push(messages); err != nil {
		return 0, fmt.Errorf("push outbox: %w", err)
	}

	if err := s.repo.MarkDoneOutboxes(ctx, extractIDs(outboxes)); err != nil {
		return 0, err
	}
	return len(outboxes), nil
}

// ConsumePaymentStatuses applies payment outcomes until ctx ends or stopAfter elapses
// (zero runs until ctx ends). Malformed messages and unknown orders are logged and skipped.
func (s *service) ConsumePaymentStatuses(ctx context.Context, stopAfter time.Duration) {
	logger := logging.FromContext(ctx)
	if s.paymentConsumer == nil {
		logger.Error("payment consumer not configured")
		return
	}

	var deadline <-chan time.Time
	if stopAfter > 0 {
		timer := time.NewTimer(stopAfter)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case msg, ok := <-s.paymentConsumer.Messages():
			if !ok {
				return
			}
			logger.Debug("payment status received",
				zap.String("topic", msg.Topic),
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			if err := s.handlePaymentMessage(ctx, msg.Value); err != nil {
				logger.Warn("payment status skipped", zap.Int64("offset", msg.Offset), zap.Error(err))
			}
		case err, ok := <-s.paymentConsumer.Errors():
			if !ok {
				return
			}
			logger.Error("failed to consume payment status", zap.Error(err))
		case <-deadline:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *service) handlePaymentMessage(ctx context.Context, value []byte) error {
	var event order_event.PaymentStatusEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("decode payment status: %w", err)
	}
	status, err := model.ParsePaymentStatus(event.PaymentStatus)
	if err != nil {
		return err
	}
	return s.UpdatePaymentStatus(ctx, event.OrderCode, status)
}

func (s *service) loadDetails(ctx context.Context, order *model.Order) error {
	var err error
	if order.Lines, err = s.repo.GetLines(ctx, order.ID); err != nil {
		return fmt.Errorf("load order lines: %w", err)
	}
	if order.Address, err = s.repo.GetAddress(ctx, order.ID); err != nil && !database.IsNotFound(err) {
		return fmt.Errorf("load order address: %w", err)
	}
	if order.History, err = s.repo.GetHistory(ctx, order.ID); err != nil {
		return fmt.Errorf("load order history: %w", err)
	}
	if order.Invoice, err = s.invoices.GetByOrderID(ctx, order.ID); err != nil {
		return err
	}
	return nil
}

func (s *service) mapRepositoryError(code string, err error) error {
	if database.IsNotFound(err) {
		return fmt.Errorf("%w: order %s", apperr.ErrNotFound, code)
	}
	return fmt.Errorf("load order %s: %w", code, err)
}

func stockChanges(lines []model.OrderLine) []inventory.StockChange {
	res := make([]inventory.StockChange, 0, len(lines))
	for _, line := range lines {
		res = append(res, inventory.StockChange{VariantID: line.VariantID, Quantity: line.Quantity})
	}
	return res
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.KindOf(err).String())
	}
	span.End()
}
