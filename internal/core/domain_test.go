package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRecurringRuleValidate(t *testing.T) {
	valid := RecurringRule{
		Description: "Rent",
		Amount:      decimal.NewFromInt(1200),
		StartDate:   NewDate(2024, 1, 1),
		Frequency:   Monthly,
		CategoryID:  1,
	}

	tests := []struct {
		name    string
		mutate  func(r *RecurringRule)
		wantErr bool
	}{
		{"valid rule", func(r *RecurringRule) {}, false},
		{"valid with end date", func(r *RecurringRule) { r.EndDate = NewDate(2024, 12, 31) }, false},
		{"empty description", func(r *RecurringRule) { r.Description = " " }, true},
		{"zero amount", func(r *RecurringRule) { r.Amount = decimal.Zero }, true},
		{"negative amount", func(r *RecurringRule) { r.Amount = decimal.NewFromInt(-5) }, true},
		{"missing start date", func(r *RecurringRule) { r.StartDate = Date{} }, true},
		{"end before start", func(r *RecurringRule) { r.EndDate = NewDate(2023, 12, 31) }, true},
		{"unknown frequency", func(r *RecurringRule) { r.Frequency = "biweekly" }, true},
		{"missing category", func(r *RecurringRule) { r.CategoryID = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		Amount:     decimal.NewFromFloat(12.50),
		Date:       NewDate(2024, 3, 1),
		CategoryID: 2,
	}

	tests := []struct {
		name    string
		mutate  func(tx *Transaction)
		wantErr bool
	}{
		{"valid transaction", func(tx *Transaction) {}, false},
		{"zero amount", func(tx *Transaction) { tx.Amount = decimal.Zero }, true},
		{"missing date", func(tx *Transaction) { tx.Date = Date{} }, true},
		{"missing category", func(tx *Transaction) { tx.CategoryID = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			err := tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBudgetValidate(t *testing.T) {
	tests := []struct {
		name    string
		budget  Budget
		wantErr bool
	}{
		{"valid overall budget", Budget{Year: 2024, Month: 6, Amount: decimal.NewFromInt(500)}, false},
		{"valid category budget", Budget{Year: 2024, Month: 6, Amount: decimal.NewFromInt(100), CategoryID: 3}, false},
		{"month out of range", Budget{Year: 2024, Month: 13, Amount: decimal.NewFromInt(100)}, true},
		{"non-positive amount", Budget{Year: 2024, Month: 6, Amount: decimal.Zero}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.budget.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
