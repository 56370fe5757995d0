// Package gst computes Indian GST totals for procurement documents.
//
// Intrastate transactions split the tax evenly into CGST and SGST;
// interstate transactions carry the full amount as IGST. Exactly one of
// the two splits is ever non-zero for a given computation.
package gst

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNegativeInput indicates a line with negative quantity, rate or GST rate.
var ErrNegativeInput = errors.New("gst: negative quantity, rate or gst rate")

// Line is a single taxable line item.
type Line struct {
	Qty     float64
	Rate    float64
	GSTRate float64
}

// Adjustments are line-independent additive amounts applied after tax.
type Adjustments struct {
	OtherCharges float64
	Discount     float64
	RoundOff     float64
}

// Totals is the result of a GST computation, rounded to two places.
type Totals struct {
	Subtotal float64
	CGST     float64
	SGST     float64
	IGST     float64
	TotalGST float64
	Total    float64
}

var hundred = decimal.NewFromInt(100)

// Compute derives document totals from line items. Intrastate controls
// the CGST+SGST versus IGST split. Negative inputs are rejected, never
// clamped.
func Compute(lines []Line, intrastate bool, adj Adjustments) (Totals, error) {
	subtotal := decimal.Zero
	totalGST := decimal.Zero
	for _, line := range lines {
		if line.Qty < 0 || line.Rate < 0 || line.GSTRate < 0 {
			return Totals{}, ErrNegativeInput
		}
		qty := decimal.NewFromFloat(line.Qty)
		rate := decimal.NewFromFloat(line.Rate)
		gross := qty.Mul(rate)
		subtotal = subtotal.Add(gross)
		totalGST = totalGST.Add(gross.Mul(decimal.NewFromFloat(line.GSTRate)).Div(hundred))
	}

	subtotal = subtotal.Round(2)
	totalGST = totalGST.Round(2)

	var cgst, sgst, igst decimal.Decimal
	if intrastate {
		// Halve CGST first so both halves always sum back to the total.
		cgst = totalGST.Div(decimal.NewFromInt(2)).Round(2)
		sgst = totalGST.Sub(cgst)
	} else {
		igst = totalGST
	}

	total := subtotal.Add(totalGST).
		Add(decimal.NewFromFloat(adj.OtherCharges)).
		Sub(decimal.NewFromFloat(adj.Discount)).
		Add(decimal.NewFromFloat(adj.RoundOff)).
		Round(2)

	return Totals{
		Subtotal: subtotal.InexactFloat64(),
		CGST:     cgst.InexactFloat64(),
		SGST:     sgst.InexactFloat64(),
		IGST:     igst.InexactFloat64(),
		TotalGST: totalGST.InexactFloat64(),
		Total:    total.InexactFloat64(),
	}, nil
}

// LineAmount recomputes a single line's tax-inclusive amount. Document
// lines store this value only as a cache of qty, rate and GST rate.
func LineAmount(qty, rate, gstRate float64) float64 {
	q := decimal.NewFromFloat(qty)
	r := decimal.NewFromFloat(rate)
	g := decimal.NewFromFloat(gstRate)
	one := decimal.NewFromInt(1)
	return q.Mul(r).Mul(one.Add(g.Div(hundred))).Round(2).InexactFloat64()
}
