package documents

import (
	"math"

	"github.com/meridian-erp/meridian-erp/internal/money"
)

// DiscountType selects how a line discount value is read.
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountAmount     DiscountType = "AMOUNT"
)

// Line is the pricing input for a single document line.
type Line struct {
	Quantity      float64
	UnitPriceHT   float64
	DiscountType  DiscountType
	DiscountValue float64
	TaxRatePct    float64
}

// LineTotals breaks a computed line down for display and posting.
type LineTotals struct {
	ExTax         float64
	Discount      float64
	AfterDiscount float64
	Tax           float64
	WithTax       float64
}

// Totals aggregates a whole document.
type Totals struct {
	ExTax    float64
	Discount float64
	Tax      float64
	WithTax  float64
}

// ComputeLine rolls up one line. Malformed numeric input counts as zero
// rather than erroring; the calculator feeds posting flows that must
// stay total, and a zero line simply contributes nothing.
func ComputeLine(line Line) LineTotals {
	qty := sanitize(line.Quantity)
	price := sanitize(line.UnitPriceHT)

	exTax := money.Mul(qty, price)
	var discount float64
	switch line.DiscountType {
	case DiscountPercentage:
		discount = money.Pct(exTax, sanitize(line.DiscountValue))
	case DiscountAmount:
		discount = money.Round2(sanitize(line.DiscountValue))
	}
	afterDiscount := money.Round2(exTax - discount)
	tax := money.Pct(afterDiscount, sanitize(line.TaxRatePct))

	return LineTotals{
		ExTax:         exTax,
		Discount:      discount,
		AfterDiscount: afterDiscount,
		Tax:           tax,
		WithTax:       money.Round2(afterDiscount + tax),
	}
}

// ComputeTotals rolls up document totals from its lines. Pure: no
// engine calls it back, the orchestrating document module feeds the
// result into ledger and payment postings.
func ComputeTotals(lines []Line) Totals {
	var t Totals
	for _, line := range lines {
		lt := ComputeLine(line)
		t.ExTax = money.Round2(t.ExTax + lt.ExTax)
		t.Discount = money.Round2(t.Discount + lt.Discount)
		t.Tax = money.Round2(t.Tax + lt.Tax)
	}
	t.WithTax = money.Round2(t.ExTax - t.Discount + t.Tax)
	return t
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
