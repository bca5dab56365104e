package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

func TestCreateBudgetRejectsDuplicatePeriod(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, category := seedOwnerWithCategory(t, repo)

	overall := core.Budget{Year: 2024, Month: 6, Amount: decimal.NewFromInt(500), OwnerID: user.ID}
	if _, err := repo.CreateBudget(ctx, overall); err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}

	// A second overall budget for the same month: the schema cannot catch
	// this one because the category column is NULL for both rows.
	if _, err := repo.CreateBudget(ctx, overall); !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate overall budget error = %v, want ErrConflict", err)
	}

	// A category budget in the same month is a different slot.
	scoped := overall
	scoped.CategoryID = category.ID
	if _, err := repo.CreateBudget(ctx, scoped); err != nil {
		t.Fatalf("category budget alongside overall error = %v", err)
	}
	if _, err := repo.CreateBudget(ctx, scoped); !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate category budget error = %v, want ErrConflict", err)
	}

	// Another user is free to budget the same month.
	other, err := repo.CreateUser(ctx, "other@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	overall.OwnerID = other.ID
	if _, err := repo.CreateBudget(ctx, overall); err != nil {
		t.Errorf("other owner's overall budget error = %v", err)
	}
}

func TestUpdateBudgetRejectsPeriodCollision(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user, _ := seedOwnerWithCategory(t, repo)

	june, err := repo.CreateBudget(ctx, core.Budget{Year: 2024, Month: 6, Amount: decimal.NewFromInt(500), OwnerID: user.ID})
	if err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}
	july, err := repo.CreateBudget(ctx, core.Budget{Year: 2024, Month: 7, Amount: decimal.NewFromInt(600), OwnerID: user.ID})
	if err != nil {
		t.Fatalf("CreateBudget() error = %v", err)
	}

	// Moving July onto June's slot collides.
	july.Month = 6
	if _, err := repo.UpdateBudget(ctx, july); !errors.Is(err, core.ErrConflict) {
		t.Errorf("UpdateBudget() onto taken period error = %v, want ErrConflict", err)
	}

	// Changing only the amount keeps the budget's own slot and succeeds.
	june.Amount = decimal.NewFromInt(550)
	if _, err := repo.UpdateBudget(ctx, june); err != nil {
		t.Errorf("UpdateBudget() same period error = %v", err)
	}
}
