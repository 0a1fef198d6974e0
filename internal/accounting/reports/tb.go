// Package reports builds read-only rollups over the chart of accounts.
package reports

import (
	"math"
	"sort"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
)

// TrialBalanceRow is one account with its accumulated movement and the
// balance on its normal side.
type TrialBalanceRow struct {
	Number  string  `json:"number"`
	Label   string  `json:"label"`
	Nature  string  `json:"nature"`
	Debit   float64 `json:"debit"`
	Credit  float64 `json:"credit"`
	Balance float64 `json:"balance"`
}

// TrialBalanceClass aggregates rows sharing a chart class.
type TrialBalanceClass struct {
	Class  int               `json:"class"`
	Rows   []TrialBalanceRow `json:"rows"`
	Debit  float64           `json:"debit"`
	Credit float64           `json:"credit"`
}

// TrialBalance is the full rollup. Balanced is false when the grand
// totals diverge, which signals ledger corruption.
type TrialBalance struct {
	Classes     []TrialBalanceClass `json:"classes"`
	TotalDebit  float64             `json:"total_debit"`
	TotalCredit float64             `json:"total_credit"`
	Balanced    bool                `json:"balanced"`
}

// BuildTrialBalance groups account totals by chart class. Accounts with
// no movement are skipped.
func BuildTrialBalance(accts []accounts.Account) TrialBalance {
	classes := make(map[int]*TrialBalanceClass)
	keys := make([]int, 0)
	for _, acc := range accts {
		if acc.TotalDebit == 0 && acc.TotalCredit == 0 {
			continue
		}
		cls, ok := classes[acc.Class]
		if !ok {
			cls = &TrialBalanceClass{Class: acc.Class}
			classes[acc.Class] = cls
			keys = append(keys, acc.Class)
		}
		row := TrialBalanceRow{
			Number:  acc.Number,
			Label:   acc.Label,
			Nature:  string(acc.Nature),
			Debit:   acc.TotalDebit,
			Credit:  acc.TotalCredit,
			Balance: balanceOf(acc),
		}
		cls.Rows = append(cls.Rows, row)
		cls.Debit += row.Debit
		cls.Credit += row.Credit
	}

	sort.Ints(keys)
	result := TrialBalance{}
	for _, key := range keys {
		cls := classes[key]
		sort.Slice(cls.Rows, func(i, j int) bool {
			return cls.Rows[i].Number < cls.Rows[j].Number
		})
		result.Classes = append(result.Classes, *cls)
		result.TotalDebit += cls.Debit
		result.TotalCredit += cls.Credit
	}
	result.Balanced = math.Abs(result.TotalDebit-result.TotalCredit) < 0.005
	return result
}

func balanceOf(acc accounts.Account) float64 {
	if acc.Nature == accounts.NatureCredit {
		return acc.TotalCredit - acc.TotalDebit
	}
	return acc.TotalDebit - acc.TotalCredit
}
