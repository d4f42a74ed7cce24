package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BalanceItemStatus is the lifecycle state of a balance item.
type BalanceItemStatus string

const (
	// BalanceItemStatusDue means the item counts towards the outstanding
	// balance with its nominal price.
	BalanceItemStatusDue BalanceItemStatus = "Due"

	// BalanceItemStatusHidden means the item is not due (yet) and is not
	// shown, e.g. an order that was deleted before it was paid.
	BalanceItemStatusHidden BalanceItemStatus = "Hidden"

	// BalanceItemStatusCanceled means the obligation no longer exists. Money
	// already attributed to a canceled item makes its open price negative:
	// it has to be reallocated or reimbursed.
	BalanceItemStatusCanceled BalanceItemStatus = "Canceled"
)

// BalanceItemType describes what kind of obligation a balance item is.
type BalanceItemType string

const (
	BalanceItemTypeRegistration BalanceItemType = "Registration"
	BalanceItemTypeOrder        BalanceItemType = "Order"
	BalanceItemTypeMembership   BalanceItemType = "Membership"
	BalanceItemTypeOther        BalanceItemType = "Other"
)

// ReceivableBalanceType selects which subject a receivable balance belongs
// to. It is a closed set: each value maps to exactly one subject column on
// balance_items.
type ReceivableBalanceType string

const (
	ReceivableBalanceTypeMember       ReceivableBalanceType = "member"
	ReceivableBalanceTypeUser         ReceivableBalanceType = "user"
	ReceivableBalanceTypeOrganization ReceivableBalanceType = "organization"
	ReceivableBalanceTypeRegistration ReceivableBalanceType = "registration"
)

// SubjectColumn returns the balance_items column holding the subject ID for
// this receivable balance type.
func (t ReceivableBalanceType) SubjectColumn() (string, error) {
	switch t {
	case ReceivableBalanceTypeMember:
		return "member_id", nil
	case ReceivableBalanceTypeUser:
		return "user_id", nil
	case ReceivableBalanceTypeOrganization:
		return "paying_organization_id", nil
	case ReceivableBalanceTypeRegistration:
		return "registration_id", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownReceivableBalanceType, string(t))
	}
}

// Balance items within this duration of their due date already count towards
// the outstanding balance, so members get some time to pay before the due
// date passes.
const dueHorizon = 7 * 24 * time.Hour

// BalanceItem is a single owed or credited amount for a subject.
//
// PricePaid, PricePending and PriceOpen are cached projections over the
// item's payment links; they are maintained by the ledger aggregator.
type BalanceItem struct {
	DefaultModel
	OrganizationID uuid.UUID `gorm:"index"`

	// Subject columns. Exactly one is set, matching the ReceivableBalanceType
	// the item is accounted under.
	MemberID             *uuid.UUID `gorm:"index"`
	UserID               *uuid.UUID `gorm:"index"`
	PayingOrganizationID *uuid.UUID `gorm:"index"`
	RegistrationID       *uuid.UUID `gorm:"index"`

	Type        BalanceItemType
	Status      BalanceItemStatus
	Description string

	UnitPrice int64 // Signed, in minor currency units
	Amount    uint  // Quantity, at least 1

	// Cached values, maintained by the aggregator
	PricePaid    int64
	PricePending int64
	PriceOpen    int64

	// When set, the item does not have to be paid before this date and stays
	// out of the reallocation pool until shortly before it.
	DueAt *time.Time

	Relations RelationSet `gorm:"serializer:json"`
}

// Price is the nominal price of the item.
func (b BalanceItem) Price() int64 {
	return b.UnitPrice * int64(b.Amount)
}

// CalculatePriceOpen derives the open amount from the cached paid and pending
// sums. For items that are no longer due, the nominal price is effectively
// reversed: only the money already attributed to them remains open.
func (b BalanceItem) CalculatePriceOpen() int64 {
	if b.Status != BalanceItemStatusDue {
		return -b.PricePaid - b.PricePending
	}
	return b.Price() - b.PricePaid - b.PricePending
}

// IsAfterDueDate reports whether the item counts towards the outstanding
// balance at the given time. Items without a due date always do; items with
// one join the pool a week before it.
func (b BalanceItem) IsAfterDueDate(now time.Time) bool {
	if b.DueAt == nil {
		return true
	}
	return !b.DueAt.After(now.Add(dueHorizon))
}

// BeforeSave trims whitespace from all strings.
func (b *BalanceItem) BeforeSave(_ *gorm.DB) error {
	b.Description = strings.TrimSpace(b.Description)
	return nil
}

// AfterFind enforces UTC for the due date, like the base model does for the
// timestamps.
func (b *BalanceItem) AfterFind(tx *gorm.DB) (err error) {
	err = b.DefaultModel.AfterFind(tx)
	if err != nil {
		return err
	}

	if b.DueAt != nil {
		utc := b.DueAt.In(time.UTC)
		b.DueAt = &utc
	}
	return nil
}

// BalanceItemsForSubject loads the receivable balance pool for one subject:
// every non-hidden balance item of the organization that either has an open
// amount or money pending against it.
func BalanceItemsForSubject(db *gorm.DB, organizationID, subjectID uuid.UUID, balanceType ReceivableBalanceType) ([]BalanceItem, error) {
	column, err := balanceType.SubjectColumn()
	if err != nil {
		return nil, err
	}

	var items []BalanceItem
	err = db.
		Where("organization_id = ?", organizationID).
		Where(fmt.Sprintf("%s = ?", column), subjectID).
		Where("status != ?", BalanceItemStatusHidden).
		Where("price_open != 0 OR price_pending != 0").
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("loading balance items for subject %s failed: %w", subjectID, err)
	}

	return items, nil
}

// LoadPayments loads all payment links of the given balance items together
// with the linked payments.
func LoadPayments(db *gorm.DB, items []BalanceItem) ([]BalanceItemPayment, []Payment, error) {
	if len(items) == 0 {
		return nil, nil, nil
	}

	itemIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
	}

	var links []BalanceItemPayment
	err := db.Where("balance_item_id IN ?", itemIDs).Order("created_at ASC").Find(&links).Error
	if err != nil {
		return nil, nil, fmt.Errorf("loading payment links failed: %w", err)
	}

	if len(links) == 0 {
		return nil, nil, nil
	}

	paymentIDs := make([]uuid.UUID, 0, len(links))
	for _, link := range links {
		paymentIDs = append(paymentIDs, link.PaymentID)
	}

	var payments []Payment
	err = db.Where("id IN ?", paymentIDs).Find(&payments).Error
	if err != nil {
		return nil, nil, fmt.Errorf("loading payments failed: %w", err)
	}

	return links, payments, nil
}
