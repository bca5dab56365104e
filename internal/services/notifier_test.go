package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

type fakeNotificationStore struct {
	notifications []core.Notification
	budgets       []core.Budget
	spent         map[int64]decimal.Decimal // keyed by budget category id
}

func (s *fakeNotificationStore) InsertNotification(ctx context.Context, n core.Notification) (int64, error) {
	s.notifications = append(s.notifications, n)
	return int64(len(s.notifications)), nil
}

func (s *fakeNotificationStore) BudgetsForMonth(ctx context.Context, ownerID int64, year, month int) ([]core.Budget, error) {
	var out []core.Budget
	for _, b := range s.budgets {
		if b.OwnerID == ownerID && b.Year == year && b.Month == month {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeNotificationStore) ExpensesInMonth(ctx context.Context, ownerID, categoryID int64, year, month int) (decimal.Decimal, error) {
	return s.spent[categoryID], nil
}

type fakePublisher struct {
	published []int64
}

func (p *fakePublisher) PublishTransactionGenerated(ctx context.Context, transactionID, ruleID, ownerID int64) error {
	p.published = append(p.published, transactionID)
	return nil
}

func TestRuleGeneratedPublishesPerTransaction(t *testing.T) {
	store := &fakeNotificationStore{}
	pub := &fakePublisher{}
	n := NewNotifier(store, pub)

	rule := core.RecurringRule{ID: 7, Description: "Rent", OwnerID: 1}
	created := []core.Transaction{{ID: 100}, {ID: 101}, {ID: 102}}
	n.RuleGenerated(context.Background(), rule, created)

	if len(store.notifications) != 1 {
		t.Fatalf("got %d notifications, want 1", len(store.notifications))
	}
	got := store.notifications[0]
	if got.Type != core.NotifyRecurringTx {
		t.Errorf("notification type = %s, want %s", got.Type, core.NotifyRecurringTx)
	}
	if got.RelatedEntityID != 7 || got.RelatedEntityType != "recurring_rule" {
		t.Errorf("related entity = %s %d, want recurring_rule 7", got.RelatedEntityType, got.RelatedEntityID)
	}
	if len(pub.published) != 3 {
		t.Errorf("published %d messages, want 3", len(pub.published))
	}
}

func TestRuleGeneratedNilPublisher(t *testing.T) {
	store := &fakeNotificationStore{}
	n := NewNotifier(store, nil)

	n.RuleGenerated(context.Background(), core.RecurringRule{ID: 1, OwnerID: 1}, []core.Transaction{{ID: 5}})

	if len(store.notifications) != 1 {
		t.Errorf("got %d notifications, want 1 (broker disabled is not an error)", len(store.notifications))
	}
}

func TestExpenseRecordedThresholds(t *testing.T) {
	budget := core.Budget{ID: 1, Year: 2024, Month: 3, Amount: decimal.NewFromInt(100), OwnerID: 1, CategoryID: 10}

	tests := []struct {
		name     string
		spent    int64 // total after the new transaction
		amount   int64
		wantType core.NotificationType
		wantNone bool
	}{
		{name: "under warning threshold", spent: 50, amount: 10, wantNone: true},
		{name: "crosses warning threshold", spent: 85, amount: 10, wantType: core.NotifyBudgetWarning},
		{name: "already past warning", spent: 90, amount: 5, wantNone: true},
		{name: "crosses limit", spent: 110, amount: 30, wantType: core.NotifyBudgetExceeded},
		{name: "already exceeded", spent: 150, amount: 10, wantNone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeNotificationStore{
				budgets: []core.Budget{budget},
				spent:   map[int64]decimal.Decimal{10: decimal.NewFromInt(tt.spent)},
			}
			n := NewNotifier(store, nil)

			n.ExpenseRecorded(context.Background(), core.Transaction{
				Amount:     decimal.NewFromInt(tt.amount),
				Type:       core.Expense,
				Date:       core.NewDate(2024, 3, 15),
				CategoryID: 10,
				OwnerID:    1,
			}, core.Transaction{})

			if tt.wantNone {
				if len(store.notifications) != 0 {
					t.Fatalf("got %d notifications, want none: %+v", len(store.notifications), store.notifications)
				}
				return
			}
			if len(store.notifications) != 1 {
				t.Fatalf("got %d notifications, want 1", len(store.notifications))
			}
			if store.notifications[0].Type != tt.wantType {
				t.Errorf("notification type = %s, want %s", store.notifications[0].Type, tt.wantType)
			}
		})
	}
}

func TestExpenseRecordedUpdateUsesPreviousAmount(t *testing.T) {
	budget := core.Budget{ID: 1, Year: 2024, Month: 3, Amount: decimal.NewFromInt(100), OwnerID: 1, CategoryID: 10}

	tests := []struct {
		name       string
		spent      int64 // total after the update
		amount     int64 // amount after the update
		prevAmount int64 // amount before the update
		wantType   core.NotificationType
		wantNone   bool
	}{
		// Spend was at 85 before the update and 90 after: the warning
		// threshold was crossed by the original write, not this one.
		{name: "bumping a counted expense stays silent", spent: 90, amount: 25, prevAmount: 20, wantNone: true},
		// Spend goes from 75 to 95: this update is the crossing.
		{name: "update crossing the warning threshold fires", spent: 95, amount: 30, prevAmount: 10, wantType: core.NotifyBudgetWarning},
		// Spend goes from 90 to 120: past the limit in one step.
		{name: "update crossing the limit fires", spent: 120, amount: 40, prevAmount: 10, wantType: core.NotifyBudgetExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeNotificationStore{
				budgets: []core.Budget{budget},
				spent:   map[int64]decimal.Decimal{10: decimal.NewFromInt(tt.spent)},
			}
			n := NewNotifier(store, nil)

			updated := core.Transaction{
				ID:         55,
				Amount:     decimal.NewFromInt(tt.amount),
				Type:       core.Expense,
				Date:       core.NewDate(2024, 3, 15),
				CategoryID: 10,
				OwnerID:    1,
			}
			previous := updated
			previous.Amount = decimal.NewFromInt(tt.prevAmount)

			n.ExpenseRecorded(context.Background(), updated, previous)

			if tt.wantNone {
				if len(store.notifications) != 0 {
					t.Fatalf("got %d notifications, want none: %+v", len(store.notifications), store.notifications)
				}
				return
			}
			if len(store.notifications) != 1 {
				t.Fatalf("got %d notifications, want 1", len(store.notifications))
			}
			if store.notifications[0].Type != tt.wantType {
				t.Errorf("notification type = %s, want %s", store.notifications[0].Type, tt.wantType)
			}
		})
	}
}

func TestExpenseRecordedIgnoresIncome(t *testing.T) {
	store := &fakeNotificationStore{
		budgets: []core.Budget{{ID: 1, Year: 2024, Month: 3, Amount: decimal.NewFromInt(100), OwnerID: 1}},
		spent:   map[int64]decimal.Decimal{0: decimal.NewFromInt(500)},
	}
	n := NewNotifier(store, nil)

	n.ExpenseRecorded(context.Background(), core.Transaction{
		Amount:  decimal.NewFromInt(500),
		Type:    core.Income,
		Date:    core.NewDate(2024, 3, 15),
		OwnerID: 1,
	}, core.Transaction{})

	if len(store.notifications) != 0 {
		t.Errorf("income transaction produced %d notifications, want 0", len(store.notifications))
	}
}

func TestExpenseRecordedOverallBudget(t *testing.T) {
	// A budget with no category covers every expense of the month.
	store := &fakeNotificationStore{
		budgets: []core.Budget{{ID: 1, Year: 2024, Month: 3, Amount: decimal.NewFromInt(1000), OwnerID: 1, CategoryID: 0}},
		spent:   map[int64]decimal.Decimal{0: decimal.NewFromInt(1005)},
	}
	n := NewNotifier(store, nil)

	n.ExpenseRecorded(context.Background(), core.Transaction{
		Amount:     decimal.NewFromInt(20),
		Type:       core.Expense,
		Date:       core.NewDate(2024, 3, 20),
		CategoryID: 42,
		OwnerID:    1,
	}, core.Transaction{})

	if len(store.notifications) != 1 {
		t.Fatalf("got %d notifications, want 1", len(store.notifications))
	}
	if store.notifications[0].Type != core.NotifyBudgetExceeded {
		t.Errorf("notification type = %s, want %s", store.notifications[0].Type, core.NotifyBudgetExceeded)
	}
}
