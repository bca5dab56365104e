package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	From       core.Date
	To         core.Date
	CategoryID int64
	Type       core.CategoryType
	Limit      int
	Offset     int
}

const transactionColumns = `id, amount, type, date, description, category_id, owner_id, rule_id, created_at`

func scanTransaction(scan func(dest ...any) error) (core.Transaction, error) {
	var t core.Transaction
	var amount, date, typ, createdAt string
	var ruleID sql.NullInt64
	if err := scan(&t.ID, &amount, &typ, &date, &t.Description, &t.CategoryID, &t.OwnerID, &ruleID, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if t.Amount, err = amountFromDB(amount); err != nil {
		return core.Transaction{}, err
	}
	if t.Date, err = dateFromDB(date); err != nil {
		return core.Transaction{}, err
	}
	if t.CreatedAt, err = timeFromDB(createdAt); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.CategoryType(typ)
	t.RuleID = ruleID.Int64
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (amount, type, date, description, category_id, owner_id, rule_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		amountToDB(t.Amount), string(t.Type), dateToDB(t.Date), t.Description,
		t.CategoryID, t.OwnerID, nullIDToDB(t.RuleID), timeToDB(t.CreatedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return core.Transaction{}, fmt.Errorf("create transaction: %w", core.ErrConflict)
		}
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction id: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id, ownerID int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND owner_id = ?`,
		id, ownerID)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID int64, f TransactionFilter) ([]core.Transaction, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + transactionColumns + ` FROM transactions WHERE owner_id = ?`)
	args := []any{ownerID}

	if !f.From.IsZero() {
		sb.WriteString(` AND date >= ?`)
		args = append(args, dateToDB(f.From))
	}
	if !f.To.IsZero() {
		sb.WriteString(` AND date <= ?`)
		args = append(args, dateToDB(f.To))
	}
	if f.CategoryID != 0 {
		sb.WriteString(` AND category_id = ?`)
		args = append(args, f.CategoryID)
	}
	if f.Type != "" {
		sb.WriteString(` AND type = ?`)
		args = append(args, string(f.Type))
	}
	sb.WriteString(` ORDER BY date DESC, id DESC`)
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET amount = ?, type = ?, date = ?, description = ?, category_id = ?
		 WHERE id = ? AND owner_id = ?`,
		amountToDB(t.Amount), string(t.Type), dateToDB(t.Date), t.Description, t.CategoryID,
		t.ID, t.OwnerID)
	if err != nil {
		if isConstraintViolation(err) {
			return core.Transaction{}, fmt.Errorf("update transaction: %w", core.ErrConflict)
		}
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, core.ErrNotFound
	}
	return r.GetTransaction(ctx, t.ID, t.OwnerID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id, ownerID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ExpensesInMonth totals expense transactions for a period. categoryID 0
// covers all categories.
func (r *SQLiteRepository) ExpensesInMonth(ctx context.Context, ownerID, categoryID int64, year, month int) (decimal.Decimal, error) {
	from := core.NewDate(year, month, 1)
	to := from.AddMonths(1).AddDays(-1)

	query := `SELECT amount FROM transactions
		WHERE owner_id = ? AND type = 'expense' AND date >= ? AND date <= ?`
	args := []any{ownerID, dateToDB(from), dateToDB(to)}
	if categoryID != 0 {
		query += ` AND category_id = ?`
		args = append(args, categoryID)
	}

	// Amounts are decimal strings, so the sum happens in Go rather than in
	// SQLite's float arithmetic.
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return decimal.Zero, fmt.Errorf("scan expense amount: %w", err)
		}
		a, err := amountFromDB(s)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(a)
	}
	return total, rows.Err()
}

// CategoryTotal is one line of a report breakdown.
type CategoryTotal struct {
	CategoryID int64
	Name       string
	Type       core.CategoryType
	Total      decimal.Decimal
}

// CategoryTotalsBetween sums transactions per category over a date range.
func (r *SQLiteRepository) CategoryTotalsBetween(ctx context.Context, ownerID int64, from, to core.Date) ([]CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, t.type, t.amount
		 FROM transactions t JOIN categories c ON c.id = t.category_id
		 WHERE t.owner_id = ? AND t.date >= ? AND t.date <= ?
		 ORDER BY c.name, c.id, t.type`,
		ownerID, dateToDB(from), dateToDB(to))
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	// Aggregation happens here so the decimal strings never go through
	// SQLite's float arithmetic.
	var out []CategoryTotal
	for rows.Next() {
		var id int64
		var name, typ, amount string
		if err := rows.Scan(&id, &name, &typ, &amount); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		a, err := amountFromDB(amount)
		if err != nil {
			return nil, err
		}
		n := len(out)
		if n > 0 && out[n-1].CategoryID == id && out[n-1].Type == core.CategoryType(typ) {
			out[n-1].Total = out[n-1].Total.Add(a)
			continue
		}
		out = append(out, CategoryTotal{
			CategoryID: id,
			Name:       name,
			Type:       core.CategoryType(typ),
			Total:      a,
		})
	}
	return out, rows.Err()
}
