package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

type recordingLedger struct {
	rows []string
	err  error
}

func (l *recordingLedger) Append(_ context.Context, tx core.Transaction, categoryName string) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	l.rows = append(l.rows, tx.Description+"/"+categoryName)
	return "Ledger!A2:E2", nil
}

func seedTransaction(t *testing.T, repo *storage.SQLiteRepository) core.Transaction {
	t.Helper()
	ctx := context.Background()
	user, err := repo.CreateUser(ctx, "worker@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	category, err := repo.CreateCategory(ctx, core.Category{Name: "Rent", Type: core.Expense, OwnerID: user.ID})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	tx, err := repo.CreateTransaction(ctx, core.Transaction{
		Amount:      decimal.NewFromInt(1200),
		Type:        core.Expense,
		Date:        core.NewDate(2024, 3, 1),
		Description: "Rent",
		CategoryID:  category.ID,
		OwnerID:     user.ID,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	return tx
}

func TestHandleTransactionGenerated(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	defer repo.Close()
	tx := seedTransaction(t, repo)

	ledger := &recordingLedger{}
	w := NewExportWorker(repo, ledger)

	msg := amqp.NewTransactionGeneratedMessage(tx.ID, tx.RuleID, tx.OwnerID)
	if err := w.HandleTransactionGenerated(context.Background(), msg); err != nil {
		t.Fatalf("HandleTransactionGenerated() error = %v", err)
	}
	if len(ledger.rows) != 1 || ledger.rows[0] != "Rent/Rent" {
		t.Errorf("ledger rows = %v", ledger.rows)
	}
}

func TestHandleTransactionGeneratedMissingTransaction(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	defer repo.Close()

	w := NewExportWorker(repo, &recordingLedger{})
	msg := amqp.NewTransactionGeneratedMessage(42, 1, 1)
	if err := w.HandleTransactionGenerated(context.Background(), msg); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestHandleTransactionGeneratedNoLedger(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	defer repo.Close()

	w := NewExportWorker(repo, nil)
	msg := amqp.NewTransactionGeneratedMessage(1, 1, 1)
	if err := w.HandleTransactionGenerated(context.Background(), msg); err != nil {
		t.Errorf("nil ledger should ack, got error %v", err)
	}
}
