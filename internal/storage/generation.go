package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bilancio/internal/core"
)

// GenerationRun is the unit of work for one generation pass. Every insert
// and cursor update lands in a single SQLite transaction; its method set
// matches what the generation engine expects from its store.
type GenerationRun struct {
	tx *sql.Tx
}

func (r *SQLiteRepository) BeginGeneration(ctx context.Context) (*GenerationRun, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin generation tx: %w", err)
	}
	return &GenerationRun{tx: tx}, nil
}

func (g *GenerationRun) ActiveRulesStartedBy(ctx context.Context, runDate core.Date) ([]core.RecurringRule, error) {
	rows, err := g.tx.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE is_active = 1 AND start_date <= ? ORDER BY id`,
		dateToDB(runDate))
	if err != nil {
		return nil, fmt.Errorf("list due rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan due rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (g *GenerationRun) CategoryOwnedBy(ctx context.Context, categoryID, ownerID int64) (core.Category, error) {
	var c core.Category
	var typ string
	err := g.tx.QueryRowContext(ctx,
		`SELECT id, name, type, owner_id FROM categories WHERE id = ? AND owner_id = ?`,
		categoryID, ownerID).Scan(&c.ID, &c.Name, &typ, &c.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category for rule: %w", err)
	}
	c.Type = core.CategoryType(typ)
	return c, nil
}

func (g *GenerationRun) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := g.tx.ExecContext(ctx,
		`INSERT INTO transactions (amount, type, date, description, category_id, owner_id, rule_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		amountToDB(t.Amount), string(t.Type), dateToDB(t.Date), t.Description,
		t.CategoryID, t.OwnerID, nullIDToDB(t.RuleID), timeToDB(t.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert generated transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert generated transaction id: %w", err)
	}
	return id, nil
}

func (g *GenerationRun) UpdateRuleCursor(ctx context.Context, ruleID int64, last core.Date) error {
	res, err := g.tx.ExecContext(ctx,
		`UPDATE recurring_rules SET last_created_date = ? WHERE id = ?`,
		dateToDB(last), ruleID)
	if err != nil {
		return fmt.Errorf("update rule cursor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update rule cursor: rule %d vanished", ruleID)
	}
	return nil
}

func (g *GenerationRun) Commit() error   { return g.tx.Commit() }
func (g *GenerationRun) Rollback() error { return g.tx.Rollback() }
