package model

import "fmt"

type PaymentStatus int

const (
	PaymentUnpaid   PaymentStatus = 1
	PaymentPaid     PaymentStatus = 2
	PaymentRefunded PaymentStatus = 3
	PaymentFailed   PaymentStatus = 4
)

var paymentStatusNames = map[PaymentStatus]string{
	PaymentUnpaid:   "unpaid",
	PaymentPaid:     "paid",
	PaymentRefunded: "refunded",
	PaymentFailed:   "failed",
}

func (s PaymentStatus) String() string {
	if name, ok := paymentStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("payment_status(%d)", int(s))
}

func ParsePaymentStatus(name string) (PaymentStatus, error) {
	for status, n := range paymentStatusNames {
		if n == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown payment status %q", name)
}

type PaymentMethod int

const (
	PaymentCOD          PaymentMethod = 1
	PaymentBankTransfer PaymentMethod = 2
	PaymentCard         PaymentMethod = 3
	PaymentEWallet      PaymentMethod = 4
)

var paymentMethodNames = map[PaymentMethod]string{
	PaymentCOD:          "cod",
	PaymentBankTransfer: "bank_transfer",
	PaymentCard:         "card",
	PaymentEWallet:      "e_wallet",
}

func (m PaymentMethod) String() string {
	if name, ok := paymentMethodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("payment_method(%d)", int(m))
}

func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethodNames[m]
	return ok
}

func ParsePaymentMethod(name string) (PaymentMethod, error) {
	for method, n := range paymentMethodNames {
		if n == name {
			return method, nil
		}
	}
	return 0, fmt.Errorf("unknown payment method %q", name)
}

func (m PaymentMethod) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown payment method %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *PaymentMethod) UnmarshalText(text []byte) error {
	method, err := ParsePaymentMethod(string(text))
	if err != nil {
		return err
	}
	*m = method
	return nil
}
