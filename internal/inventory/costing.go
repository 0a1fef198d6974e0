package inventory

import "github.com/meridian-erp/meridian-erp/internal/money"

// WeightedAverage returns the new average unit cost after receiving
// inQty units at inCost on top of curQty units carried at curAvg.
// A result with no remaining quantity resets the average to zero.
func WeightedAverage(curQty, curAvg, inQty, inCost float64) float64 {
	return RecomputeAverage(curQty, curQty*curAvg, inQty, inCost)
}

// RecomputeAverage derives the weighted-average unit cost from a prior
// quantity and its total carrying cost plus one inbound receipt.
func RecomputeAverage(priorQty, priorTotalCost, inQty, inCost float64) float64 {
	newQty := priorQty + inQty
	if newQty <= 0 {
		return 0
	}
	return money.Round2((priorTotalCost + inQty*inCost) / newQty)
}

// MovementValue prices a signed quantity at a unit cost, rounded to
// cents. Outbound movements yield negative values.
func MovementValue(qty, unitCost float64) float64 {
	return money.Round2(qty * unitCost)
}
