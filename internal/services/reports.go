package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// CategoryBreakdown is one line of a report: how much a category
// contributed over the period.
type CategoryBreakdown struct {
	CategoryID int64           `json:"category_id"`
	Name       string          `json:"category_name"`
	Total      decimal.Decimal `json:"total"`
}

// Report summarizes a period: overall income and expense totals plus
// per-category breakdowns.
type Report struct {
	TotalIncome       decimal.Decimal     `json:"total_income"`
	TotalExpense      decimal.Decimal     `json:"total_expense"`
	NetBalance        decimal.Decimal     `json:"net_balance"`
	IncomeByCategory  []CategoryBreakdown `json:"income_by_category"`
	ExpenseByCategory []CategoryBreakdown `json:"expense_by_category"`
}

// BuildReport folds per-category totals into a report.
func BuildReport(totals []storage.CategoryTotal) Report {
	report := Report{
		TotalIncome:       decimal.Zero,
		TotalExpense:      decimal.Zero,
		IncomeByCategory:  []CategoryBreakdown{},
		ExpenseByCategory: []CategoryBreakdown{},
	}

	for _, t := range totals {
		line := CategoryBreakdown{CategoryID: t.CategoryID, Name: t.Name, Total: t.Total}
		switch t.Type {
		case core.Income:
			report.TotalIncome = report.TotalIncome.Add(t.Total)
			report.IncomeByCategory = append(report.IncomeByCategory, line)
		case core.Expense:
			report.TotalExpense = report.TotalExpense.Add(t.Total)
			report.ExpenseByCategory = append(report.ExpenseByCategory, line)
		}
	}

	// Biggest contributors first.
	sortByTotalDesc(report.IncomeByCategory)
	sortByTotalDesc(report.ExpenseByCategory)

	report.NetBalance = report.TotalIncome.Sub(report.TotalExpense)
	return report
}

func sortByTotalDesc(lines []CategoryBreakdown) {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Total.GreaterThan(lines[j].Total)
	})
}
