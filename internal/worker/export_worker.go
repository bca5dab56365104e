package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/export"
	"bilancio/internal/storage"
)

// ExportWorker mirrors generated transactions to an external ledger.
type ExportWorker struct {
	storage *storage.SQLiteRepository
	ledger  export.LedgerAppender
}

func NewExportWorker(storage *storage.SQLiteRepository, ledger export.LedgerAppender) *ExportWorker {
	return &ExportWorker{
		storage: storage,
		ledger:  ledger,
	}
}

// HandleTransactionGenerated processes one generation message: it loads the
// transaction and its category from storage and appends a row to the ledger.
func (w *ExportWorker) HandleTransactionGenerated(ctx context.Context, msg *amqp.TransactionGeneratedMessage) error {
	slog.InfoContext(ctx, "Processing generated transaction",
		"transaction_id", msg.TransactionID,
		"rule_id", msg.RuleID)

	if w.ledger == nil {
		slog.WarnContext(ctx, "No ledger appender configured, skipping export",
			"transaction_id", msg.TransactionID)
		return nil
	}

	tx, err := w.storage.GetTransaction(ctx, msg.TransactionID, msg.OwnerID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	category, err := w.storage.GetCategory(ctx, tx.CategoryID, tx.OwnerID)
	if err != nil {
		return fmt.Errorf("get category from storage: %w", err)
	}

	ref, err := w.ledger.Append(ctx, tx, category.Name)
	if err != nil {
		return fmt.Errorf("append to ledger: %w", err)
	}

	slog.InfoContext(ctx, "Transaction exported",
		"transaction_id", msg.TransactionID,
		"ledger_ref", ref,
		"description", tx.Description,
		"amount", tx.Amount.String())

	return nil
}
