package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bilancio/internal/core"
)

const ruleColumns = `id, description, amount, start_date, end_date, frequency, last_created_date, is_active, owner_id, category_id`

func scanRule(scan func(dest ...any) error) (core.RecurringRule, error) {
	var r core.RecurringRule
	var amount, startDate, frequency string
	var endDate, lastCreated sql.NullString
	var active int
	if err := scan(&r.ID, &r.Description, &amount, &startDate, &endDate, &frequency, &lastCreated, &active, &r.OwnerID, &r.CategoryID); err != nil {
		return core.RecurringRule{}, err
	}
	var err error
	if r.Amount, err = amountFromDB(amount); err != nil {
		return core.RecurringRule{}, err
	}
	if r.StartDate, err = dateFromDB(startDate); err != nil {
		return core.RecurringRule{}, err
	}
	if r.EndDate, err = nullDateFromDB(endDate); err != nil {
		return core.RecurringRule{}, err
	}
	if r.LastCreatedDate, err = nullDateFromDB(lastCreated); err != nil {
		return core.RecurringRule{}, err
	}
	r.Frequency = core.Frequency(frequency)
	r.IsActive = active != 0
	return r, nil
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_rules (description, amount, start_date, end_date, frequency, last_created_date, is_active, owner_id, category_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Description, amountToDB(rule.Amount), dateToDB(rule.StartDate),
		nullDateToDB(rule.EndDate), string(rule.Frequency), nullDateToDB(rule.LastCreatedDate),
		boolToDB(rule.IsActive), rule.OwnerID, rule.CategoryID)
	if err != nil {
		if isConstraintViolation(err) {
			return core.RecurringRule{}, fmt.Errorf("create rule: %w", core.ErrConflict)
		}
		return core.RecurringRule{}, fmt.Errorf("create rule: %w", err)
	}
	rule.ID, err = res.LastInsertId()
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("create rule id: %w", err)
	}
	return rule, nil
}

func (r *SQLiteRepository) GetRule(ctx context.Context, id, ownerID int64) (core.RecurringRule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ? AND owner_id = ?`,
		id, ownerID)
	rule, err := scanRule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, core.ErrNotFound
	}
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (r *SQLiteRepository) ListRules(ctx context.Context, ownerID int64) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE owner_id = ? ORDER BY id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// UpdateRule rewrites the user-editable fields of a rule. The cursor is
// deliberately not touched: editing a rule, including its start date, never
// resets what has already been generated.
func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_rules SET description = ?, amount = ?, start_date = ?, end_date = ?, frequency = ?, is_active = ?, category_id = ?
		 WHERE id = ? AND owner_id = ?`,
		rule.Description, amountToDB(rule.Amount), dateToDB(rule.StartDate),
		nullDateToDB(rule.EndDate), string(rule.Frequency), boolToDB(rule.IsActive),
		rule.CategoryID, rule.ID, rule.OwnerID)
	if err != nil {
		if isConstraintViolation(err) {
			return core.RecurringRule{}, fmt.Errorf("update rule: %w", core.ErrConflict)
		}
		return core.RecurringRule{}, fmt.Errorf("update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.RecurringRule{}, core.ErrNotFound
	}
	return r.GetRule(ctx, rule.ID, rule.OwnerID)
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, id, ownerID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM recurring_rules WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func boolToDB(b bool) int {
	if b {
		return 1
	}
	return 0
}
