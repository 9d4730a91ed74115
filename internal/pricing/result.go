package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/model"
)

// Parameter keys shared by more than one calculator.
const (
	KeyIVAPct = "IVA_PCT"
)

// Period is the declaration frequency of a client.
type Period string

const (
	PeriodMonthly   Period = "MENSUAL"
	PeriodQuarterly Period = "TRIMESTRAL"
)

// TaxRegime is the tax regime of a self-employed client.
type TaxRegime string

const (
	RegimeNormal  TaxRegime = "NORMAL"
	RegimeESN     TaxRegime = "ESN"
	RegimeModulos TaxRegime = "MODULOS"
)

// Discount is the final discount stage of a calculation, either a percentage
// of the pre-discount total or a fixed subtraction.
type Discount struct {
	Type  model.DiscountType `json:"tipo"`
	Value decimal.Decimal    `json:"valor"`
}

// Result is the itemized output of a calculator. Total always equals
// Subtotal + TaxTotal after the single terminal rounding to two decimals.
type Result struct {
	Items    []model.BudgetItem
	Subtotal decimal.Decimal
	TaxTotal decimal.Decimal
	Total    decimal.Decimal
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// lineBuilder accumulates unrounded line items. Rounding happens once, in
// finish, so intermediate arithmetic never compounds rounding error.
type lineBuilder struct {
	vatPct decimal.Decimal
	items  []model.BudgetItem
}

func newLineBuilder(snap *Snapshot) *lineBuilder {
	vat, ok := snap.Value(KeyIVAPct)
	if !ok {
		vat = decimal.NewFromInt(21)
	}
	return &lineBuilder{vatPct: vat}
}

// add appends one line. The subtotal is the rule-computed amount; quantity
// and unit price are informational for synthesized lines.
func (b *lineBuilder) add(concept, category string, quantity int, unitPrice, subtotal decimal.Decimal) {
	b.items = append(b.items, model.BudgetItem{
		Concept:   concept,
		Category:  category,
		Position:  len(b.items) + 1,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		TaxPct:    b.vatPct,
		Subtotal:  subtotal,
		Total:     subtotal.Mul(one.Add(b.vatPct.Div(hundred))),
	})
}

// addFlat appends a quantity-1 line priced directly at amount.
func (b *lineBuilder) addFlat(concept, category string, amount decimal.Decimal) {
	b.add(concept, category, 1, amount, amount)
}

func (b *lineBuilder) finish() *Result {
	subtotal := decimal.Zero
	taxTotal := decimal.Zero
	for _, it := range b.items {
		subtotal = subtotal.Add(it.Subtotal)
		taxTotal = taxTotal.Add(it.Subtotal.Mul(it.TaxPct).Div(hundred))
	}

	items := make([]model.BudgetItem, len(b.items))
	for i, it := range b.items {
		it.Subtotal = it.Subtotal.Round(2)
		it.Total = it.Total.Round(2)
		items[i] = it
	}

	sub := subtotal.Round(2)
	tax := taxTotal.Round(2)
	return &Result{
		Items:    items,
		Subtotal: sub,
		TaxTotal: tax,
		Total:    sub.Add(tax),
	}
}

// applyDiscount appends the discount line clamped so the running pre-tax
// total never goes below zero, and returns the discounted running total.
func (b *lineBuilder) applyDiscount(d *Discount, running decimal.Decimal) decimal.Decimal {
	if d == nil || !d.Value.IsPositive() {
		return running
	}

	var amount decimal.Decimal
	var concept string
	if d.Type == model.DiscountFixed {
		amount = d.Value
		concept = "Descuento aplicado (-" + d.Value.StringFixed(2) + "€)"
	} else {
		amount = running.Mul(d.Value).Div(hundred)
		concept = "Descuento aplicado (-" + d.Value.String() + "%)"
	}

	if amount.GreaterThan(running) {
		amount = running
	}
	if !amount.IsPositive() {
		return running
	}

	b.add(concept, "DESCUENTO", 1, amount.Neg(), amount.Neg())
	return running.Sub(amount)
}
