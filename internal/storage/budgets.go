package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bilancio/internal/core"
)

// BudgetFilter narrows ListBudgets. Zero values mean "no filter".
type BudgetFilter struct {
	Year       int
	Month      int
	CategoryID int64
}

func scanBudget(scan func(dest ...any) error) (core.Budget, error) {
	var b core.Budget
	var amount string
	var categoryID sql.NullInt64
	if err := scan(&b.ID, &b.Year, &b.Month, &amount, &b.OwnerID, &categoryID); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.Amount, err = amountFromDB(amount); err != nil {
		return core.Budget{}, err
	}
	b.CategoryID = categoryID.Int64
	return b, nil
}

// budgetPeriodTaken reports whether the owner already has another budget in
// the same (year, month, category) slot. The UNIQUE constraint cannot catch
// overall budgets: their category_id is NULL, and SQLite treats NULLs as
// distinct, so the check has to happen here.
func (r *SQLiteRepository) budgetPeriodTaken(ctx context.Context, b core.Budget, excludeID int64) (bool, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT COUNT(*) FROM budgets WHERE owner_id = ? AND year = ? AND month = ?`)
	args := []any{b.OwnerID, b.Year, b.Month}
	if b.CategoryID == 0 {
		sb.WriteString(` AND category_id IS NULL`)
	} else {
		sb.WriteString(` AND category_id = ?`)
		args = append(args, b.CategoryID)
	}
	if excludeID != 0 {
		sb.WriteString(` AND id != ?`)
		args = append(args, excludeID)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, sb.String(), args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check budget period: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	taken, err := r.budgetPeriodTaken(ctx, b, 0)
	if err != nil {
		return core.Budget{}, err
	}
	if taken {
		return core.Budget{}, fmt.Errorf("create budget: %w", core.ErrConflict)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (year, month, amount, owner_id, category_id) VALUES (?, ?, ?, ?, ?)`,
		b.Year, b.Month, amountToDB(b.Amount), b.OwnerID, nullIDToDB(b.CategoryID))
	if err != nil {
		if isConstraintViolation(err) {
			return core.Budget{}, fmt.Errorf("create budget: %w", core.ErrConflict)
		}
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	b.ID, err = res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget id: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id, ownerID int64) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, year, month, amount, owner_id, category_id FROM budgets WHERE id = ? AND owner_id = ?`,
		id, ownerID)
	b, err := scanBudget(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, ownerID int64, f BudgetFilter) ([]core.Budget, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, year, month, amount, owner_id, category_id FROM budgets WHERE owner_id = ?`)
	args := []any{ownerID}

	if f.Year != 0 {
		sb.WriteString(` AND year = ?`)
		args = append(args, f.Year)
	}
	if f.Month != 0 {
		sb.WriteString(` AND month = ?`)
		args = append(args, f.Month)
	}
	if f.CategoryID != 0 {
		sb.WriteString(` AND category_id = ?`)
		args = append(args, f.CategoryID)
	}
	sb.WriteString(` ORDER BY year, month, category_id`)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BudgetsForMonth implements services.NotificationStore.
func (r *SQLiteRepository) BudgetsForMonth(ctx context.Context, ownerID int64, year, month int) ([]core.Budget, error) {
	return r.ListBudgets(ctx, ownerID, BudgetFilter{Year: year, Month: month})
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	taken, err := r.budgetPeriodTaken(ctx, b, b.ID)
	if err != nil {
		return core.Budget{}, err
	}
	if taken {
		return core.Budget{}, fmt.Errorf("update budget: %w", core.ErrConflict)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET year = ?, month = ?, amount = ?, category_id = ? WHERE id = ? AND owner_id = ?`,
		b.Year, b.Month, amountToDB(b.Amount), nullIDToDB(b.CategoryID), b.ID, b.OwnerID)
	if err != nil {
		if isConstraintViolation(err) {
			return core.Budget{}, fmt.Errorf("update budget: %w", core.ErrConflict)
		}
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Budget{}, core.ErrNotFound
	}
	return b, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id, ownerID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}
