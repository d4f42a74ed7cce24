package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "Created"
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusSucceeded PaymentStatus = "Succeeded"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

// PaymentMethod is how a payment was (or will be) made.
type PaymentMethod string

const (
	PaymentMethodUnknown     PaymentMethod = "Unknown"
	PaymentMethodTransfer    PaymentMethod = "Transfer"
	PaymentMethodPointOfSale PaymentMethod = "PointOfSale"
	PaymentMethodOnline      PaymentMethod = "Online"
)

// PaymentType distinguishes regular payments from refunds and from the
// zero-priced payments the reallocation engine creates to net balance items
// against each other.
type PaymentType string

const (
	PaymentTypePayment      PaymentType = "Payment"
	PaymentTypeRefund       PaymentType = "Refund"
	PaymentTypeReallocation PaymentType = "Reallocation"
)

// Payment is a single monetary movement. The reallocation engine never changes
// a payment; it only changes how the payment's price is apportioned to balance
// items through BalanceItemPayment links.
type Payment struct {
	DefaultModel
	OrganizationID uuid.UUID `gorm:"index"`
	Price          int64     // Signed, in minor currency units
	Status         PaymentStatus
	Method         PaymentMethod
	Type           PaymentType
	PaidAt         *time.Time
}

// IsPending reports whether the payment is still in flight. Pending payments
// count towards pricePending of the linked balance items.
func (p Payment) IsPending() bool {
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusCreated
}
