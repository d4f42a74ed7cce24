// Package reallocation keeps a subject's balance items consistent with the
// payments recorded against them. It moves, splits and synthesizes payment
// links so that canceled or repriced obligations settle against open ones
// without ever creating or destroying money.
package reallocation

import (
	"errors"
	"fmt"

	"github.com/clubledger/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrLinkInvariantViolated means the links of a payment together exceed
	// the payment's own price. This is a programming error in whatever wrote
	// the links; it is never repaired silently.
	ErrLinkInvariantViolated = errors.New("payment links exceed the payment price")

	// ErrReallocationNotBalanced means a reallocation payment would not sum
	// to zero over its links.
	ErrReallocationNotBalanced = errors.New("reallocation payment links do not sum to zero")
)

// UpdatePaidAndPending recomputes the cached pricePaid, pricePending and
// priceOpen columns of the given balance items from their payment links. The
// items are updated in place and persisted.
//
// Links of succeeded payments count towards pricePaid, links of created or
// pending payments towards pricePending. Links of failed payments count
// towards neither. The recompute is idempotent and never touches the payment
// or link rows themselves.
func UpdatePaidAndPending(db *gorm.DB, items []*models.BalanceItem) error {
	if len(items) == 0 {
		return nil
	}

	plain := make([]models.BalanceItem, 0, len(items))
	for _, item := range items {
		plain = append(plain, *item)
	}

	links, payments, err := models.LoadPayments(db, plain)
	if err != nil {
		return err
	}

	paymentsByID := make(map[uuid.UUID]models.Payment, len(payments))
	for _, payment := range payments {
		paymentsByID[payment.ID] = payment
	}

	err = checkLinkInvariant(db, payments)
	if err != nil {
		return err
	}

	paid := make(map[uuid.UUID]int64, len(items))
	pending := make(map[uuid.UUID]int64, len(items))

	for _, link := range links {
		payment, ok := paymentsByID[link.PaymentID]
		if !ok {
			continue
		}

		switch {
		case payment.Status == models.PaymentStatusSucceeded:
			paid[link.BalanceItemID] += link.Price
		case payment.IsPending():
			pending[link.BalanceItemID] += link.Price
		}
	}

	for _, item := range items {
		item.PricePaid = paid[item.ID]
		item.PricePending = pending[item.ID]
		item.PriceOpen = item.CalculatePriceOpen()

		err = db.Model(&models.BalanceItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]any{
				"price_paid":    item.PricePaid,
				"price_pending": item.PricePending,
				"price_open":    item.PriceOpen,
			}).Error
		if err != nil {
			return fmt.Errorf("updating cached prices for balance item %s failed: %w", item.ID, err)
		}
	}

	return nil
}

// checkLinkInvariant verifies, over all links of the given payments, that no
// payment has more money apportioned to balance items than its own price.
// The links of a payment may also live on items outside the current working
// set, so they are loaded separately.
func checkLinkInvariant(db *gorm.DB, payments []models.Payment) error {
	if len(payments) == 0 {
		return nil
	}

	paymentIDs := make([]uuid.UUID, 0, len(payments))
	prices := make(map[uuid.UUID]int64, len(payments))
	for _, payment := range payments {
		paymentIDs = append(paymentIDs, payment.ID)
		prices[payment.ID] = payment.Price
	}

	var links []models.BalanceItemPayment
	err := db.Where("payment_id IN ?", paymentIDs).Find(&links).Error
	if err != nil {
		return fmt.Errorf("loading links for invariant check failed: %w", err)
	}

	totals := make(map[uuid.UUID]int64, len(payments))
	for _, link := range links {
		totals[link.PaymentID] += link.Price
	}

	for paymentID, total := range totals {
		if abs(total) > abs(prices[paymentID]) {
			return fmt.Errorf("%w: payment %s has price %d but links totaling %d", ErrLinkInvariantViolated, paymentID, prices[paymentID], total)
		}
	}

	return nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
