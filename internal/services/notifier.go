package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

// NotificationStore persists notifications and answers the spending
// queries the budget checks need.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n core.Notification) (int64, error)
	// BudgetsForMonth returns the owner's budgets for the given period,
	// both category-specific and overall.
	BudgetsForMonth(ctx context.Context, ownerID int64, year, month int) ([]core.Budget, error)
	// ExpensesInMonth totals the owner's expense transactions for the
	// period. A categoryID of 0 means all categories.
	ExpensesInMonth(ctx context.Context, ownerID, categoryID int64, year, month int) (decimal.Decimal, error)
}

// Publisher pushes generated-transaction events to the message broker.
// *amqp.Client satisfies it.
type Publisher interface {
	PublishTransactionGenerated(ctx context.Context, transactionID, ruleID, ownerID int64) error
}

var warningRatio = decimal.NewFromFloat(0.8)

// Notifier turns engine and bookkeeping events into notification rows and
// broker messages. All of its work is best-effort: it runs after the data
// that matters has been committed, so failures are logged, never returned.
type Notifier struct {
	store     NotificationStore
	publisher Publisher // nil when the broker is disabled
}

func NewNotifier(store NotificationStore, publisher Publisher) *Notifier {
	return &Notifier{store: store, publisher: publisher}
}

// RuleGenerated records one notification per generation batch and publishes
// one broker message per created transaction.
func (n *Notifier) RuleGenerated(ctx context.Context, rule core.RecurringRule, created []core.Transaction) {
	msg := fmt.Sprintf("Recurring rule %q generated %d transaction(s)", rule.Description, len(created))
	notification := core.Notification{
		UserID:            rule.OwnerID,
		Type:              core.NotifyRecurringTx,
		Message:           msg,
		RelatedEntityID:   rule.ID,
		RelatedEntityType: "recurring_rule",
	}
	if _, err := n.store.InsertNotification(ctx, notification); err != nil {
		slog.ErrorContext(ctx, "Failed to insert generation notification",
			"error", err, "rule_id", rule.ID)
	}

	if n.publisher == nil {
		return
	}
	for _, tx := range created {
		if err := n.publisher.PublishTransactionGenerated(ctx, tx.ID, rule.ID, rule.OwnerID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish generated transaction",
				"error", err, "transaction_id", tx.ID, "rule_id", rule.ID)
		}
	}
}

// ExpenseRecorded checks the owner's budgets after an expense has been
// written and raises a warning or exceeded notification when the write
// crosses a threshold. Crossings are edge-triggered: a budget already over
// its threshold before the write stays silent. For updates, previous must
// hold the transaction as it was before the write so the pre-write spend
// can be reconstructed; for creates it is the zero value.
func (n *Notifier) ExpenseRecorded(ctx context.Context, tx, previous core.Transaction) {
	if tx.Type != core.Expense {
		return
	}

	year, month, _ := tx.Date.Date()
	budgets, err := n.store.BudgetsForMonth(ctx, tx.OwnerID, year, int(month))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load budgets for threshold check",
			"error", err, "owner_id", tx.OwnerID)
		return
	}

	for _, b := range budgets {
		if b.CategoryID != 0 && b.CategoryID != tx.CategoryID {
			continue
		}
		spent, err := n.store.ExpensesInMonth(ctx, tx.OwnerID, b.CategoryID, year, int(month))
		if err != nil {
			slog.ErrorContext(ctx, "Failed to total expenses for threshold check",
				"error", err, "budget_id", b.ID)
			continue
		}
		// spent already reflects the write: the new amount is in, the
		// previous one (if any counted against this budget) is out.
		before := spent.Sub(tx.Amount)
		if countedAgainst(b, previous, year, int(month)) {
			before = before.Add(previous.Amount)
		}

		var kind core.NotificationType
		var msg string
		switch {
		case spent.GreaterThanOrEqual(b.Amount) && before.LessThan(b.Amount):
			kind = core.NotifyBudgetExceeded
			msg = fmt.Sprintf("Budget for %s exceeded: spent %s of %s", periodLabel(b), spent, b.Amount)
		case spent.GreaterThanOrEqual(b.Amount.Mul(warningRatio)) && before.LessThan(b.Amount.Mul(warningRatio)):
			kind = core.NotifyBudgetWarning
			msg = fmt.Sprintf("Budget for %s at %s of %s", periodLabel(b), spent, b.Amount)
		default:
			continue
		}

		notification := core.Notification{
			UserID:            tx.OwnerID,
			Type:              kind,
			Message:           msg,
			RelatedEntityID:   b.ID,
			RelatedEntityType: "budget",
		}
		if _, err := n.store.InsertNotification(ctx, notification); err != nil {
			slog.ErrorContext(ctx, "Failed to insert budget notification",
				"error", err, "budget_id", b.ID)
		}
	}
}

// countedAgainst reports whether tx contributed to the budget's spend for
// the given period before the current write.
func countedAgainst(b core.Budget, tx core.Transaction, year, month int) bool {
	if tx.ID == 0 || tx.Type != core.Expense {
		return false
	}
	ty, tm, _ := tx.Date.Date()
	if ty != year || int(tm) != month {
		return false
	}
	return b.CategoryID == 0 || b.CategoryID == tx.CategoryID
}

func periodLabel(b core.Budget) string {
	if b.CategoryID != 0 {
		return fmt.Sprintf("category %d, %04d-%02d", b.CategoryID, b.Year, b.Month)
	}
	return fmt.Sprintf("%04d-%02d", b.Year, b.Month)
}
