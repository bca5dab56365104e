package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

func TestBuildReport(t *testing.T) {
	totals := []storage.CategoryTotal{
		{CategoryID: 1, Name: "Salary", Type: core.Income, Total: decimal.RequireFromString("2500.00")},
		{CategoryID: 2, Name: "Groceries", Type: core.Expense, Total: decimal.RequireFromString("310.45")},
		{CategoryID: 3, Name: "Rent", Type: core.Expense, Total: decimal.RequireFromString("1200")},
	}

	report := BuildReport(totals)

	if !report.TotalIncome.Equal(decimal.RequireFromString("2500.00")) {
		t.Errorf("TotalIncome = %s, want 2500.00", report.TotalIncome)
	}
	if !report.TotalExpense.Equal(decimal.RequireFromString("1510.45")) {
		t.Errorf("TotalExpense = %s, want 1510.45", report.TotalExpense)
	}
	if !report.NetBalance.Equal(decimal.RequireFromString("989.55")) {
		t.Errorf("NetBalance = %s, want 989.55", report.NetBalance)
	}
	if len(report.IncomeByCategory) != 1 || len(report.ExpenseByCategory) != 2 {
		t.Errorf("breakdown lengths = %d income, %d expense, want 1 and 2",
			len(report.IncomeByCategory), len(report.ExpenseByCategory))
	}
}

func TestBuildReportOrdersBreakdownsByTotal(t *testing.T) {
	// Inputs arrive in category-name order; the report lists the biggest
	// contributors first.
	totals := []storage.CategoryTotal{
		{CategoryID: 2, Name: "Groceries", Type: core.Expense, Total: decimal.RequireFromString("300")},
		{CategoryID: 4, Name: "Insurance", Type: core.Expense, Total: decimal.RequireFromString("85.50")},
		{CategoryID: 3, Name: "Rent", Type: core.Expense, Total: decimal.RequireFromString("1200")},
		{CategoryID: 1, Name: "Bonus", Type: core.Income, Total: decimal.RequireFromString("500")},
		{CategoryID: 5, Name: "Salary", Type: core.Income, Total: decimal.RequireFromString("2500")},
	}

	report := BuildReport(totals)

	wantExpense := []string{"Rent", "Groceries", "Insurance"}
	for i, want := range wantExpense {
		if report.ExpenseByCategory[i].Name != want {
			t.Errorf("ExpenseByCategory[%d] = %s (total %s), want %s",
				i, report.ExpenseByCategory[i].Name, report.ExpenseByCategory[i].Total, want)
		}
	}
	wantIncome := []string{"Salary", "Bonus"}
	for i, want := range wantIncome {
		if report.IncomeByCategory[i].Name != want {
			t.Errorf("IncomeByCategory[%d] = %s (total %s), want %s",
				i, report.IncomeByCategory[i].Name, report.IncomeByCategory[i].Total, want)
		}
	}
}

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(nil)

	if !report.TotalIncome.IsZero() || !report.TotalExpense.IsZero() || !report.NetBalance.IsZero() {
		t.Errorf("empty report has non-zero totals: %+v", report)
	}
	if report.IncomeByCategory == nil || report.ExpenseByCategory == nil {
		t.Error("breakdowns should be empty slices, not nil, so they serialize as []")
	}
}
