package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedOwnerWithCategory(t *testing.T, repo *storage.SQLiteRepository) (core.User, core.Category) {
	t.Helper()
	ctx := context.Background()
	user, err := repo.CreateUser(ctx, "owner@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	category, err := repo.CreateCategory(ctx, core.Category{Name: "Housing", Type: core.Expense, OwnerID: user.ID})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	return user, category
}

// Exercises the whole generation path against a real database: a monthly
// rule created in January and first run in mid March produces the January,
// February and March occurrences, and a second run the same day adds
// nothing.
func TestGenerationEndToEnd(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, category := seedOwnerWithCategory(t, repo)

	rule, err := repo.CreateRule(ctx, core.RecurringRule{
		Description: "Rent",
		Amount:      decimal.NewFromInt(1200),
		StartDate:   core.NewDate(2024, 1, 1),
		Frequency:   core.Monthly,
		IsActive:    true,
		OwnerID:     user.ID,
		CategoryID:  category.ID,
	})
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	gen := services.NewGenerator(services.NewGenerationStore(repo.BeginGeneration), nil)

	count, err := gen.GenerateDue(ctx, core.NewDate(2024, 3, 15))
	if err != nil {
		t.Fatalf("GenerateDue() error = %v", err)
	}
	if count != 3 {
		t.Fatalf("GenerateDue() = %d, want 3", count)
	}

	transactions, err := repo.ListTransactions(ctx, user.ID, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(transactions) != 3 {
		t.Fatalf("%d transactions persisted, want 3", len(transactions))
	}
	for _, tx := range transactions {
		if tx.RuleID != rule.ID {
			t.Errorf("transaction %d rule_id = %d, want %d", tx.ID, tx.RuleID, rule.ID)
		}
		if tx.Type != core.Expense {
			t.Errorf("transaction %d type = %s, want expense", tx.ID, tx.Type)
		}
		if !tx.Amount.Equal(decimal.NewFromInt(1200)) {
			t.Errorf("transaction %d amount = %s, want 1200", tx.ID, tx.Amount)
		}
	}

	stored, err := repo.GetRule(ctx, rule.ID, user.ID)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if !stored.LastCreatedDate.Equal(core.NewDate(2024, 3, 1)) {
		t.Errorf("cursor = %s, want 2024-03-01", stored.LastCreatedDate)
	}

	count, err = gen.GenerateDue(ctx, core.NewDate(2024, 3, 15))
	if err != nil {
		t.Fatalf("second GenerateDue() error = %v", err)
	}
	if count != 0 {
		t.Errorf("second run created %d transactions, want 0", count)
	}
}

func TestGenerationSkipsCrossOwnerCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, _ := seedOwnerWithCategory(t, repo)

	other, err := repo.CreateUser(ctx, "other@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	foreign, err := repo.CreateCategory(ctx, core.Category{Name: "Salary", Type: core.Income, OwnerID: other.ID})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	rule, err := repo.CreateRule(ctx, core.RecurringRule{
		Description: "Misconfigured",
		Amount:      decimal.NewFromInt(10),
		StartDate:   core.NewDate(2024, 1, 1),
		Frequency:   core.Monthly,
		IsActive:    true,
		OwnerID:     user.ID,
		CategoryID:  foreign.ID,
	})
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	gen := services.NewGenerator(services.NewGenerationStore(repo.BeginGeneration), nil)
	count, err := gen.GenerateDue(ctx, core.NewDate(2024, 2, 15))
	if err != nil {
		t.Fatalf("GenerateDue() error = %v", err)
	}
	if count != 0 {
		t.Errorf("cross-owner rule generated %d transactions, want 0", count)
	}

	stored, err := repo.GetRule(ctx, rule.ID, user.ID)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if !stored.LastCreatedDate.IsZero() {
		t.Errorf("skipped rule cursor = %s, want untouched", stored.LastCreatedDate)
	}
}

// Deleting a rule is not blocked by its generated transactions: they stay
// in the ledger with their rule link cleared.
func TestDeleteRuleKeepsGeneratedTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, category := seedOwnerWithCategory(t, repo)

	rule, err := repo.CreateRule(ctx, core.RecurringRule{
		Description: "Streaming",
		Amount:      decimal.RequireFromString("12.99"),
		StartDate:   core.NewDate(2024, 1, 1),
		Frequency:   core.Monthly,
		IsActive:    true,
		OwnerID:     user.ID,
		CategoryID:  category.ID,
	})
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	gen := services.NewGenerator(services.NewGenerationStore(repo.BeginGeneration), nil)
	count, err := gen.GenerateDue(ctx, core.NewDate(2024, 2, 15))
	if err != nil {
		t.Fatalf("GenerateDue() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("GenerateDue() = %d, want 2", count)
	}

	if err := repo.DeleteRule(ctx, rule.ID, user.ID); err != nil {
		t.Fatalf("DeleteRule() error = %v, want nil", err)
	}
	if _, err := repo.GetRule(ctx, rule.ID, user.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetRule() after delete error = %v, want ErrNotFound", err)
	}

	transactions, err := repo.ListTransactions(ctx, user.ID, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("%d transactions after rule delete, want 2", len(transactions))
	}
	for _, tx := range transactions {
		if tx.RuleID != 0 {
			t.Errorf("transaction %d rule_id = %d, want cleared", tx.ID, tx.RuleID)
		}
	}
}

func TestRuleRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, category := seedOwnerWithCategory(t, repo)

	created, err := repo.CreateRule(ctx, core.RecurringRule{
		Description: "Gym",
		Amount:      decimal.RequireFromString("39.99"),
		StartDate:   core.NewDate(2024, 1, 31),
		EndDate:     core.NewDate(2025, 1, 31),
		Frequency:   core.Monthly,
		IsActive:    true,
		OwnerID:     user.ID,
		CategoryID:  category.ID,
	})
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	got, err := repo.GetRule(ctx, created.ID, user.ID)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if !got.Amount.Equal(decimal.RequireFromString("39.99")) {
		t.Errorf("amount = %s, want 39.99", got.Amount)
	}
	if !got.StartDate.Equal(core.NewDate(2024, 1, 31)) || !got.EndDate.Equal(core.NewDate(2025, 1, 31)) {
		t.Errorf("dates = %s..%s", got.StartDate, got.EndDate)
	}
	if !got.LastCreatedDate.IsZero() {
		t.Errorf("new rule cursor = %s, want zero", got.LastCreatedDate)
	}

	// Ownership checks: the other user sees nothing.
	other, err := repo.CreateUser(ctx, "somebody@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if _, err := repo.GetRule(ctx, created.ID, other.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-owner GetRule() error = %v, want ErrNotFound", err)
	}
}
