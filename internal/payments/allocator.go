package payments

import "github.com/meridian-erp/meridian-erp/internal/money"

// Allocate spreads amount over the documents in the order given. The
// caller owns the priority policy and pre-sorts; nothing is re-sorted
// here. Documents with no remaining balance are skipped, and the walk
// stops as soon as the amount is exhausted. The plan is pure output,
// no balance is persisted.
func Allocate(amount float64, docs []OpenDocument) (Plan, error) {
	if amount <= 0 {
		return Plan{}, ErrInvalidAmount
	}
	remaining := money.Round2(amount)
	plan := Plan{Allocations: []Allocation{}}
	for _, doc := range docs {
		if remaining <= 0 {
			break
		}
		balance := money.Round2(doc.Balance())
		if balance <= 0 {
			continue
		}
		applied := balance
		if remaining < balance {
			applied = remaining
		}
		plan.Allocations = append(plan.Allocations, Allocation{DocumentID: doc.ID, Applied: applied})
		remaining = money.Round2(remaining - applied)
	}
	plan.Leftover = remaining
	return plan, nil
}
