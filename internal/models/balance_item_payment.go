package models

import (
	"github.com/google/uuid"
)

// BalanceItemPayment apportions a part of a payment's price to one balance
// item. A payment can be split over multiple links; the link prices of a
// payment together never exceed the payment's own price in magnitude.
//
// This is the only record the reallocation engine mutates: it re-points
// links to other balance items, splits them, and creates new ones.
type BalanceItemPayment struct {
	DefaultModel
	OrganizationID uuid.UUID `gorm:"index"`
	BalanceItemID  uuid.UUID `gorm:"index"`
	BalanceItem    BalanceItem
	PaymentID      uuid.UUID `gorm:"index"`
	Payment        Payment
	Price          int64 // Signed, in minor currency units
}
