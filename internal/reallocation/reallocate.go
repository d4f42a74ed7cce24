package reallocation

import (
	"fmt"
	"sort"
	"time"

	"github.com/clubledger/backend/internal/metrics"
	"github.com/clubledger/backend/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Reallocate nets the receivable balance of one subject: canceled or
// overpaid balance items give their money to open ones, either by physically
// moving payment links (when the items clearly describe the same thing) or
// through a zero-priced reallocation payment.
//
// Amounts that cannot be netted stay open; that is not an error. All changes
// of a single run are applied in one transaction.
func Reallocate(db *gorm.DB, organizationID, subjectID uuid.UUID, balanceType models.ReceivableBalanceType) error {
	metrics.ReallocationRuns.Inc()

	return db.Transaction(func(tx *gorm.DB) error {
		return reallocate(tx, organizationID, subjectID, balanceType)
	})
}

func reallocate(tx *gorm.DB, organizationID, subjectID uuid.UUID, balanceType models.ReceivableBalanceType) error {
	items, err := loadPool(tx, organizationID, subjectID, balanceType)
	if err != nil {
		return err
	}

	// First fold canceled duplicates into their live counterpart, so the
	// pairing below works on one item per obligation.
	merged, err := mergeCanceledDuplicates(tx, items)
	if err != nil {
		return err
	}
	if merged {
		items, err = loadPool(tx, organizationID, subjectID, balanceType)
		if err != nil {
			return err
		}
	}

	var credits, debts []*Side
	for i := range items {
		item := &items[i]
		side := &Side{Item: item, Remaining: item.PriceOpen}
		switch {
		case item.PriceOpen < 0:
			credits = append(credits, side)
		case item.PriceOpen > 0:
			debts = append(debts, side)
		}
	}

	if len(credits) == 0 || len(debts) == 0 {
		return nil
	}

	// When the whole pool sums to zero, unequal amounts may be pooled into
	// one reallocation payment. Otherwise only exact amounts are netted, so
	// no partial synthetic payment is ever created just to force a balance.
	var total int64
	for _, side := range append(credits[:len(credits):len(credits)], debts...) {
		total += side.Remaining
	}
	canReachZero := total == 0

	synthesized := make(map[*Side]int64)

	for _, rung := range matchLadder() {
		// Credits closest to zero first; debts with the latest due date
		// first, then the largest remaining first.
		sort.SliceStable(credits, func(i, j int) bool {
			return credits[i].Remaining > credits[j].Remaining
		})
		sort.SliceStable(debts, func(i, j int) bool {
			di, dj := dueValue(debts[i]), dueValue(debts[j])
			if !di.Equal(dj) {
				return di.After(dj)
			}
			return debts[i].Remaining > debts[j].Remaining
		})

		for _, credit := range credits {
			if credit.Remaining >= 0 {
				continue
			}

			var match *Side
			for _, debt := range debts {
				if debt.Remaining <= 0 || !rung.match(credit, debt) {
					continue
				}
				if !rung.alterPayments && !canReachZero && debt.Remaining != -credit.Remaining {
					continue
				}
				match = debt
				break
			}

			if match == nil {
				continue
			}

			if rung.alterPayments {
				err = SwapPayments(tx, credit, match)
				if err != nil {
					return err
				}
				continue
			}

			moveAmount := min(match.Remaining, -credit.Remaining)
			credit.Remaining += moveAmount
			match.Remaining -= moveAmount
			synthesized[credit] -= moveAmount
			synthesized[match] += moveAmount
		}
	}

	if len(synthesized) > 0 {
		err = createReallocationPayment(tx, organizationID, append(credits, debts...), synthesized)
		if err != nil {
			return err
		}
	}

	// Re-aggregate every item whose remaining diverged from its stored open
	// price. Sides settled through SwapPayments are already up to date.
	var changed []*models.BalanceItem
	for _, side := range append(credits[:len(credits):len(credits)], debts...) {
		if side.Remaining != side.Item.PriceOpen {
			changed = append(changed, side.Item)
		}
	}

	return UpdatePaidAndPending(tx, changed)
}

// loadPool loads the subject's balance items that take part in reallocation:
// everything with open or pending money that is not hidden and not due in
// the future.
func loadPool(tx *gorm.DB, organizationID, subjectID uuid.UUID, balanceType models.ReceivableBalanceType) ([]models.BalanceItem, error) {
	items, err := models.BalanceItemsForSubject(tx, organizationID, subjectID, balanceType)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pool := items[:0]
	for _, item := range items {
		if item.IsAfterDueDate(now) {
			pool = append(pool, item)
		}
	}

	return pool, nil
}

type ladderRung struct {
	// alterPayments rungs physically move links through SwapPayments;
	// the others accumulate amounts for a reallocation payment.
	alterPayments bool
	match         func(credit, debt *Side) bool
}

// matchLadder returns the pairing priorities, best first. Each predicate runs
// for every credit before the next rung is tried, so all exact matches are
// settled before any weaker match is considered.
func matchLadder() []ladderRung {
	sameType := func(credit, debt *Side) bool {
		return credit.Item.Type == debt.Item.Type
	}
	sameAmount := func(credit, debt *Side) bool {
		return debt.Remaining == -credit.Remaining
	}
	relations := func(allowedDifferences int) func(credit, debt *Side) bool {
		return func(credit, debt *Side) bool {
			return debt.Item.Relations.Matches(credit.Item.Relations, allowedDifferences)
		}
	}
	all := func(predicates ...func(credit, debt *Side) bool) func(credit, debt *Side) bool {
		return func(credit, debt *Side) bool {
			for _, predicate := range predicates {
				if !predicate(credit, debt) {
					return false
				}
			}
			return true
		}
	}

	return []ladderRung{
		// Same type, same relations, same amount
		{alterPayments: true, match: all(sameAmount, sameType, relations(0))},
		{alterPayments: false, match: all(sameAmount, sameType, relations(0))},
		// Same type, same relations
		{alterPayments: true, match: all(sameType, relations(0))},
		{alterPayments: false, match: all(sameType, relations(0))},
		// Same type, one mismatching relation
		{alterPayments: false, match: all(sameAmount, sameType, relations(1))},
		{alterPayments: false, match: all(sameType, relations(1))},
		// Same type, two mismatching relations
		{alterPayments: false, match: all(sameAmount, sameType, relations(2))},
		{alterPayments: false, match: all(sameType, relations(2))},
		// Same type, same amount
		{alterPayments: false, match: all(sameAmount, sameType)},
		// Same amount
		{alterPayments: false, match: sameAmount},
		// Same type
		{alterPayments: false, match: sameType},
		// Anything
		{alterPayments: false, match: func(_, _ *Side) bool { return true }},
	}
}

func dueValue(side *Side) time.Time {
	if side.Item.DueAt == nil {
		return time.Time{}
	}
	return *side.Item.DueAt
}

// mergeCanceledDuplicates re-points all links of canceled balance items onto
// a due item describing the same obligation, when there is exactly one such
// due item. Without this, a re-created registration would keep showing money
// against the canceled duplicate next to the open amount on the new one.
//
// Only true duplicates are folded: same type, same relations and the same
// nominal price. Canceled items priced differently go through the normal
// pairing instead.
func mergeCanceledDuplicates(tx *gorm.DB, items []models.BalanceItem) (bool, error) {
	var touched []*models.BalanceItem

	for i := range items {
		item := &items[i]
		if item.Status != models.BalanceItemStatusDue {
			continue
		}

		similarDue := false
		var canceled []*models.BalanceItem
		for j := range items {
			other := &items[j]
			if other.ID == item.ID || other.Type != item.Type || !other.Relations.Matches(item.Relations, 0) {
				continue
			}

			if other.Status == models.BalanceItemStatusDue {
				similarDue = true
				break
			}

			if other.Price() == item.Price() && (other.PricePaid != 0 || other.PricePending != 0) {
				canceled = append(canceled, other)
			}
		}

		// With two due items for the same obligation there is no single
		// merge target
		if similarDue || len(canceled) == 0 {
			continue
		}

		canceledIDs := make([]uuid.UUID, 0, len(canceled))
		for _, other := range canceled {
			canceledIDs = append(canceledIDs, other.ID)
		}

		err := tx.Model(&models.BalanceItemPayment{}).
			Where("balance_item_id IN ?", canceledIDs).
			Update("balance_item_id", item.ID).Error
		if err != nil {
			return false, fmt.Errorf("merging balance items into %s failed: %w", item.ID, err)
		}

		log.Debug().
			Str("balanceItem", item.ID.String()).
			Int("merged", len(canceled)).
			Msg("merged canceled balance items")
		metrics.ItemsMerged.Add(float64(len(canceled)))

		touched = append(touched, item)
		touched = append(touched, canceled...)
	}

	if len(touched) == 0 {
		return false, nil
	}

	return true, UpdatePaidAndPending(tx, touched)
}

// createReallocationPayment writes one zero-priced payment whose links book
// the accumulated amounts in and out of the matched items. The links always
// sum to zero: a reallocation never changes the total money in the ledger.
func createReallocationPayment(tx *gorm.DB, organizationID uuid.UUID, sides []*Side, synthesized map[*Side]int64) error {
	var total int64
	for _, price := range synthesized {
		total += price
	}
	if total != 0 {
		return fmt.Errorf("%w: total is %d", ErrReallocationNotBalanced, total)
	}

	now := time.Now().In(time.UTC)
	payment := models.Payment{
		OrganizationID: organizationID,
		Price:          0,
		Type:           models.PaymentTypeReallocation,
		Method:         models.PaymentMethodUnknown,
		Status:         models.PaymentStatusSucceeded,
		PaidAt:         &now,
	}
	err := tx.Create(&payment).Error
	if err != nil {
		return fmt.Errorf("creating reallocation payment failed: %w", err)
	}
	metrics.ReallocationPaymentsCreated.Inc()

	// Iterate the sides, not the map, for deterministic link order
	for _, side := range sides {
		price, ok := synthesized[side]
		if !ok {
			continue
		}

		err = tx.Create(&models.BalanceItemPayment{
			OrganizationID: organizationID,
			BalanceItemID:  side.Item.ID,
			PaymentID:      payment.ID,
			Price:          price,
		}).Error
		if err != nil {
			return fmt.Errorf("creating reallocation link failed: %w", err)
		}
	}

	return nil
}
