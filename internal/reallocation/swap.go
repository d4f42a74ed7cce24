package reallocation

import (
	"sort"

	"github.com/clubledger/backend/internal/metrics"
	"github.com/clubledger/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Side is one side of a pairwise reallocation: a balance item together with
// the signed open amount still to resolve for it. Remaining does not have to
// equal the item's full open price; callers can settle partially.
type Side struct {
	Item      *models.BalanceItem
	Remaining int64
}

// SwapPayments resolves the shared imbalance of two balance items by moving
// existing payment links between them. One side must be a credit (negative
// remaining) and the other a debt (positive remaining); otherwise nothing is
// done.
//
// Links of failed payments are never inspected or moved. Succeeded and
// pending money are reconciled separately, and within each class money flows
// in both directions: positive links leave the over-funded credit towards the
// debt, negative refund links leave the debt towards the credit. Whole links
// are preferred; a link is split only when no combination of whole links
// lands exactly on the transfer amount.
//
// Both items are re-aggregated before returning, so their cached prices
// reflect the moved links.
func SwapPayments(db *gorm.DB, a, b *Side) error {
	var credit, debt *Side
	switch {
	case a.Remaining < 0 && b.Remaining > 0:
		credit, debt = a, b
	case b.Remaining < 0 && a.Remaining > 0:
		credit, debt = b, a
	default:
		// Nothing to resolve between these two
		return nil
	}

	links, payments, err := models.LoadPayments(db, []models.BalanceItem{*a.Item, *b.Item})
	if err != nil {
		return err
	}

	paymentsByID := make(map[uuid.UUID]models.Payment, len(payments))
	for _, payment := range payments {
		paymentsByID[payment.ID] = payment
	}

	classes := []func(models.Payment) bool{
		func(p models.Payment) bool { return p.Status == models.PaymentStatusSucceeded },
		models.Payment.IsPending,
	}

	for _, inClass := range classes {
		var fromCredit, fromDebt []*models.BalanceItemPayment
		for i := range links {
			link := &links[i]
			payment, ok := paymentsByID[link.PaymentID]
			if !ok || payment.Status == models.PaymentStatusFailed || !inClass(payment) {
				continue
			}

			switch {
			case link.BalanceItemID == credit.Item.ID && link.Price > 0:
				fromCredit = append(fromCredit, link)
			case link.BalanceItemID == debt.Item.ID && link.Price < 0:
				fromDebt = append(fromDebt, link)
			}
		}

		err = moveLinks(db, fromCredit, credit, debt)
		if err != nil {
			return err
		}

		err = moveLinks(db, fromDebt, debt, credit)
		if err != nil {
			return err
		}
	}

	return UpdatePaidAndPending(db, []*models.BalanceItem{a.Item, b.Item})
}

// moveLinks transfers up to min(|src.Remaining|, |dst.Remaining|) from src to
// dst using the given movable links. An exact subset of whole links is
// preferred since it keeps every original payment record traceable; when none
// exists, the smallest links are moved whole and the last one is split so the
// moved total lands exactly on the transfer amount.
func moveLinks(db *gorm.DB, links []*models.BalanceItemPayment, src, dst *Side) error {
	target := min(abs(src.Remaining), abs(dst.Remaining))
	if target == 0 || len(links) == 0 {
		return nil
	}

	magnitudes := make([]int64, len(links))
	for i, link := range links {
		magnitudes[i] = abs(link.Price)
	}

	if picked, ok := exactSubset(magnitudes, target); ok {
		for _, i := range picked {
			err := moveWhole(db, links[i], src, dst)
			if err != nil {
				return err
			}
		}
		return nil
	}

	order := make([]int, len(links))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return magnitudes[order[i]] < magnitudes[order[j]]
	})

	moved := int64(0)
	for _, i := range order {
		link := links[i]

		if moved+magnitudes[i] <= target {
			err := moveWhole(db, link, src, dst)
			if err != nil {
				return err
			}

			moved += magnitudes[i]
			if moved == target {
				break
			}
			continue
		}

		// The link is bigger than what is left to transfer: split it. The
		// payment's own price never changes, only how it is apportioned.
		part := target - moved
		if link.Price < 0 {
			part = -part
		}

		link.Price -= part
		err := db.Save(link).Error
		if err != nil {
			return err
		}

		err = db.Create(&models.BalanceItemPayment{
			OrganizationID: link.OrganizationID,
			BalanceItemID:  dst.Item.ID,
			PaymentID:      link.PaymentID,
			Price:          part,
		}).Error
		if err != nil {
			return err
		}
		metrics.LinksSplit.Inc()

		src.Remaining += part
		dst.Remaining -= part
		break
	}

	return nil
}

// moveWhole re-points a link to the destination item unmodified.
func moveWhole(db *gorm.DB, link *models.BalanceItemPayment, src, dst *Side) error {
	link.BalanceItemID = dst.Item.ID
	err := db.Save(link).Error
	if err != nil {
		return err
	}
	metrics.LinksMoved.Inc()

	src.Remaining += link.Price
	dst.Remaining -= link.Price
	return nil
}
