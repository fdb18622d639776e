package order

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/rafata1/storefront-orders/apperr"
	"github.com/rafata1/storefront-orders/model"
)

const (
	orderCodePrefix     = "ORD-"
	orderCodeDateLayout = "060102"
	orderCodeSuffixLen  = 10

	placedNote = "order placed"
	guestActor = "guest"
)

// CodePattern matches every code produced by GenerateOrderCode.
var CodePattern = regexp.MustCompile(`^ORD-\d{6}-[0-9A-HJKMNP-TV-Z]{10}$`)

// CustomerInfo is what the customer supplies at checkout besides the cart and address.
type CustomerInfo struct {
	UserID         string              `json:"user_id" validate:"max=64"`
	Name           string              `json:"name" validate:"required,max=255"`
	Phone          string              `json:"phone" validate:"required,max=32"`
	Email          string              `json:"email" validate:"omitempty,email,max=255"`
	PaymentMethod  model.PaymentMethod `json:"payment_method" validate:"required"`
	ShippingFee    decimal.Decimal     `json:"shipping_fee" validate:"-"`
	DiscountAmount decimal.Decimal     `json:"discount_amount" validate:"-"`
	Note           string              `json:"note" validate:"max=1024"`
}

type AddressInput struct {
	ReceiverName  string `json:"receiver_name" validate:"required,max=255"`
	ReceiverPhone string `json:"receiver_phone" validate:"required,max=32"`
	AddressLine   string `json:"address_line" validate:"required,max=512"`
	Ward          string `json:"ward" validate:"max=128"`
	District      string `json:"district" validate:"max=128"`
	City          string `json:"city" validate:"max=128"`
	PostalCode    string `json:"postal_code" validate:"max=16"`
}

// Builder assembles new orders. It only constructs values; persisting them is up to the caller.
type Builder struct {
	clock    func() time.Time
	newCode  func(time.Time) string
	validate *validator.Validate
}

func NewBuilder(clock func() time.Time, codeGenerator func(time.Time) string) *Builder {
	if clock == nil {
		clock = time.Now
	}
	if codeGenerator == nil {
		codeGenerator = GenerateOrderCode
	}
	return &Builder{
		clock: func() time.Time {
			return clock().UTC()
		},
		newCode:  codeGenerator,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// GenerateOrderCode returns ORD-<yymmdd>-<10 Crockford base32 chars>, safe to use in URLs.
func GenerateOrderCode(now time.Time) string {
	id := ulid.Make().String()
	return orderCodePrefix + now.UTC().Format(orderCodeDateLayout) + "-" + id[len(id)-orderCodeSuffixLen:]
}

// NewCode draws a fresh order code for the builder's current date.
func (b *Builder) NewCode() string {
	return b.newCode(b.clock())
}

func (b *Builder) Build(customer CustomerInfo, address AddressInput, lines []model.ValidatedLine) (model.Order, error) {
	if len(lines) == 0 {
		return model.Order{}, apperr.ErrEmptyOrder
	}
	customer, address = trimInput(customer, address)
	if err := b.validateInput(customer, address); err != nil {
		return model.Order{}, err
	}

	now := b.clock()
	orderLines := make([]model.OrderLine, 0, len(lines))
	subTotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity <= 0 {
			return model.Order{}, fmt.Errorf("%w: quantity for variant %d must be positive", apperr.ErrInvalidInput, line.Variant.ID)
		}
		snapshot := snapshotLine(line)
		subTotal = subTotal.Add(snapshot.LineTotal)
		orderLines = append(orderLines, snapshot)
	}

	shipping := customer.ShippingFee.Round(2)
	discount := customer.DiscountAmount.Round(2)
	total := subTotal.Add(shipping).Sub(discount)
	if total.IsNegative() {
		return model.Order{}, fmt.Errorf("%w: discount %s exceeds subtotal plus shipping %s",
			apperr.ErrInvalidInput, discount.StringFixed(2), subTotal.Add(shipping).StringFixed(2))
	}

	changedBy := customer.UserID
	if changedBy == "" {
		changedBy = guestActor
	}

	return model.Order{
		OrderCode:      b.newCode(now),
		UserID:         customer.UserID,
		Status:         model.OrderPending,
		PaymentStatus:  model.PaymentUnpaid,
		PaymentMethod:  customer.PaymentMethod,
		CustomerName:   customer.Name,
		CustomerPhone:  customer.Phone,
		CustomerEmail:  customer.Email,
		Note:           customer.Note,
		SubTotal:       subTotal,
		ShippingFee:    shipping,
		DiscountAmount: discount,
		TotalAmount:    total,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
		Lines:          orderLines,
		Address: model.OrderAddress{
			ReceiverName:  address.ReceiverName,
			ReceiverPhone: address.ReceiverPhone,
			AddressLine:   address.AddressLine,
			Ward:          address.Ward,
			District:      address.District,
			City:          address.City,
			PostalCode:    address.PostalCode,
		},
		History: []model.OrderStatusHistory{
			newHistory(model.OrderPending, placedNote, changedBy, now),
		},
	}, nil
}

func (b *Builder) validateInput(customer CustomerInfo, address AddressInput) error {
	if err := b.validate.Struct(customer); err != nil {
		return fmt.Errorf("%w: customer: %s", apperr.ErrInvalidInput, describeValidation(err))
	}
	if !customer.PaymentMethod.Valid() {
		return fmt.Errorf("%w: customer: unknown payment method %d", apperr.ErrInvalidInput, int(customer.PaymentMethod))
	}
	if customer.ShippingFee.IsNegative() || customer.DiscountAmount.IsNegative() {
		return fmt.Errorf("%w: customer: fees must not be negative", apperr.ErrInvalidInput)
	}
	if err := b.validate.Struct(address); err != nil {
		return fmt.Errorf("%w: address: %s", apperr.ErrInvalidInput, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

func snapshotLine(line model.ValidatedLine) model.OrderLine {
	unitPrice := line.Variant.Price.Round(2)
	return model.OrderLine{
		VariantID:    line.Variant.ID,
		ProductID:    line.Variant.ProductID,
		ProductName:  line.Variant.ProductName,
		SKU:          line.Variant.SKU,
		ColorName:    line.Variant.ColorName,
		SizeName:     line.Variant.SizeName,
		ThumbnailURL: line.Variant.ThumbnailURL,
		Quantity:     line.Quantity,
		UnitPrice:    unitPrice,
		LineTotal:    unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
	}
}

func trimInput(customer CustomerInfo, address AddressInput) (CustomerInfo, AddressInput) {
	customer.UserID = strings.TrimSpace(customer.UserID)
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.Email = strings.TrimSpace(customer.Email)
	customer.Note = strings.TrimSpace(customer.Note)

	address.ReceiverName = strings.TrimSpace(address.ReceiverName)
	address.ReceiverPhone = strings.TrimSpace(address.ReceiverPhone)
	address.AddressLine = strings.TrimSpace(address.AddressLine)
	address.Ward = strings.TrimSpace(address.Ward)
	address.District = strings.TrimSpace(address.District)
	address.City = strings.TrimSpace(address.City)
	address.PostalCode = strings.TrimSpace(address.PostalCode)
	return customer, address
}

func newHistory(status model.OrderStatus, note string, changedBy string, at time.Time) model.OrderStatusHistory {
	h := model.OrderStatusHistory{
		Status:    status,
		Note:      note,
		ChangedBy: changedBy,
	}
	h.CreatedAt.Time, h.CreatedAt.Valid = at, true
	return h
}
