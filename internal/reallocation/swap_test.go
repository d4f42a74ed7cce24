package reallocation_test

import (
	"github.com/clubledger/backend/internal/models"
	"github.com/clubledger/backend/internal/reallocation"
)

func (suite *TestSuiteStandard) swap(a, b *models.BalanceItem) {
	err := reallocation.SwapPayments(models.DB,
		&reallocation.Side{Item: a, Remaining: a.PriceOpen},
		&reallocation.Side{Item: b, Remaining: b.PriceOpen},
	)
	suite.Assert().NoError(err)
}

func (suite *TestSuiteStandard) TestSwapWithoutLinks() {
	// Swapping never invents money: with no links to move, both stay open
	credit := suite.createItem(testItem{
		unitPrice: -30_00,
		priceOpen: open(-30_00),
	})
	debt := suite.createItem(testItem{
		unitPrice: 30_00,
		priceOpen: open(30_00),
	})

	suite.swap(credit, debt)

	suite.expectItem(credit, itemState{priceOpen: -30_00})
	suite.expectItem(debt, itemState{priceOpen: 30_00})
}

func (suite *TestSuiteStandard) TestSwapCreditToDebt() {
	credit := suite.createItem(testItem{
		unitPrice: 30_00,
		status:    models.BalanceItemStatusCanceled,
		paid:      []int64{30_00},
		priceOpen: open(-30_00),
	})
	debt := suite.createItem(testItem{
		unitPrice: 30_00,
		priceOpen: open(30_00),
	})

	suite.swap(credit, debt)

	suite.expectItem(credit, itemState{priceOpen: 0})
	suite.expectItem(debt, itemState{priceOpen: 0, paid: []int64{30_00}})
}

func (suite *TestSuiteStandard) TestSwapPendingPayments() {
	credit := suite.createItem(testItem{
		unitPrice: 30_00,
		status:    models.BalanceItemStatusCanceled,
		pending:   []int64{30_00},
		priceOpen: open(-30_00),
	})
	debt := suite.createItem(testItem{
		unitPrice: 30_00,
		priceOpen: open(30_00),
	})

	suite.swap(credit, debt)

	suite.expectItem(credit, itemState{priceOpen: 0})
	suite.expectItem(debt, itemState{priceOpen: 0, pending: []int64{30_00}})
}

func (suite *TestSuiteStandard) TestSwapLeavesFailedPayments() {
	credit := suite.createItem(testItem{
		unitPrice: 30_00,
		status:    models.BalanceItemStatusCanceled,
		paid:      []int64{30_00},
		failed:    []int64{30_00},
		priceOpen: open(-30_00),
	})
	debt := suite.createItem(testItem{
		unitPrice: 60_00,
		failed:    []int64{60_00},
		priceOpen: open(60_00),
	})

	suite.swap(credit, debt)

	suite.expectItem(credit, itemState{priceOpen: 0, failed: []int64{30_00}})
	suite.expectItem(debt, itemState{priceOpen: 30_00, paid: []int64{30_00}, failed: []int64{60_00}})
}

func (suite *TestSuiteStandard) TestSwapOnlyFailedPayments() {
	// A credit backed by nothing but a failed payment cannot settle anything
	credit := suite.createItem(testItem{
		unitPrice: -30_00,
		failed:    []int64{30_00},
		priceOpen: open(-30_00),
	})
	debt := suite.createItem(testItem{
		unitPrice: 30_00,
		priceOpen: open(30_00),
	})

	suite.swap(credit, debt)

	suite.expectItem(credit, itemState{priceOpen: -30_00, failed: []int64{30_00}})
	suite.expectItem(debt, itemState{priceOpen: 30_00})
}

func (suite *TestSuiteStandard) TestSwapLargerCredit() {
	credit := suite.createItem(testItem{
		unitPrice: 30_00,
		status:    models.BalanceItemStatusCanceled,
		paid:      []int64{30_00},
		priceOpen: open(-30_00),
	})
	debt := suite.createItem(testItem{
		unitPrice: 15_00,
		priceOpen: open(15_00),
	})

	suite.swap(credit, debt)

	// Only 15 00 could be settled; the paid link was split for it
	suite.expectItem(credit, itemState{priceOpen: -15_00, paid: []int64{15_00}})
	suite.expectItem(debt, itemState{priceOpen: 0, paid: []int64{15_00}})
}

func (suite *TestSuiteStandard) TestSwapLargerDebt() {
	credit := suite.createItem(testItem{
		unitPrice: 15_00,
		status:    models.BalanceItemStatusCanceled,
		paid:      []int64{15_00},
		priceOpen: open(-15_00),
	})
	debt := suite.createItem(testItem{
		unitPrice: 30_00,
		priceOpen: open(30_00),
	})

	suite.swap(credit, debt)

	suite.expectItem(credit, itemState{priceOpen: 0})
	suite.expectItem(debt, itemState{priceOpen: 15_00, paid: []int64{15_00}})
}

func (suite *TestSuiteStandard) TestSwapSplitsLink() {
	credit := suite.createItem(testItem{
		unitPrice: 50_00,
		status:    models.BalanceItemStatusCanceled,
		paid:      []int64{50_00},
		priceOpen: open(-50_00),
	})
	debt := suite.createItem(testItem{
		unitPrice: 30_00,
		priceOpen: open(30_00),
	})

	suite.swap(credit, debt)

	suite.expectItem(credit, itemState{priceOpen: -20_00, paid: []int64{20_00}})
	suite.expectItem(debt, itemState{priceOpen: 0, paid: []int64{30_00}})

	// The payment itself is untouched; only its apportioning changed
	var payment models.Payment
	suite.Assert().NoError(models.DB.First(&payment, "type = ?", models.PaymentTypePayment).Error)
	suite.Assert().Equal(int64(50_00), payment.Price)
	suite.Assert().EqualValues(2, suite.countRows(&models.BalanceItemPayment{}))
}

func (suite *TestSuiteStandard) TestSwapPrefersWholeLinks() {
	credit := suite.createItem(testItem{
		unitPrice: 35_00,
		status:    models.BalanceItemStatusCanceled,
		paid:      []int64{20_00, 5_00, 10_00},
		priceOpen: open(-35_00),
	})
	debt := suite.createItem(testItem{
		unitPrice: 15_00,
		priceOpen: open(15_00),
	})

	suite.swap(credit, debt)

	// 5 00 and 10 00 together hit 15 00 exactly, so no link was split
	suite.expectItem(credit, itemState{priceOpen: -20_00, paid: []int64{20_00}})
	suite.expectItem(debt, itemState{priceOpen: 0, paid: []int64{5_00, 10_00}})
	suite.Assert().EqualValues(3, suite.countRows(&models.BalanceItemPayment{}))
}

func (suite *TestSuiteStandard) TestSwapRefundLinksFlowBack() {
	// Refund links are negative: they flow from the debt to the credit
	credit := suite.createItem(testItem{
		unitPrice: -30_00,
		priceOpen: open(-30_00),
	})
	debt := suite.createItem(testItem{
		unitPrice: 15_00,
		paid:      []int64{-20_00, -10_00},
		priceOpen: open(45_00),
	})

	suite.swap(credit, debt)

	suite.expectItem(credit, itemState{priceOpen: 0, paid: []int64{-20_00, -10_00}})
	suite.expectItem(debt, itemState{priceOpen: 15_00})
}

func (suite *TestSuiteStandard) TestSwapConservesMoney() {
	credit := suite.createItem(testItem{
		unitPrice: 70_00,
		status:    models.BalanceItemStatusCanceled,
		paid:      []int64{40_00, 30_00},
		pending:   []int64{12_34},
	})
	debt := suite.createItem(testItem{
		unitPrice: 55_00,
		paid:      []int64{5_00},
	})

	before := suite.ledgerTotal(credit, debt)
	suite.swap(credit, debt)
	after := suite.ledgerTotal(credit, debt)

	suite.Assert().Equal(before, after)
}

func (suite *TestSuiteStandard) TestSwapSameSignIsNoop() {
	a := suite.createItem(testItem{unitPrice: 10_00, priceOpen: open(10_00)})
	b := suite.createItem(testItem{unitPrice: 20_00, paid: []int64{5_00}, priceOpen: open(15_00)})

	suite.swap(a, b)

	suite.expectItem(a, itemState{priceOpen: 10_00})
	suite.expectItem(b, itemState{priceOpen: 15_00, paid: []int64{5_00}})
}
