package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
)

// GenerationStore opens a unit of work for one generation run. The run holds
// a single exclusive transaction for its whole duration: occurrences become
// visible to the run as they are written, and nothing is visible to the rest
// of the system until Commit.
type GenerationStore interface {
	Begin(ctx context.Context) (GenerationTx, error)
}

// GenerationTx is the persistence surface the engine drives within one run.
type GenerationTx interface {
	// ActiveRulesStartedBy returns rules with is_active=true and
	// start_date on or before runDate.
	ActiveRulesStartedBy(ctx context.Context, runDate core.Date) ([]core.RecurringRule, error)
	// CategoryOwnedBy returns the category only when it exists and belongs
	// to ownerID; otherwise core.ErrNotFound.
	CategoryOwnedBy(ctx context.Context, categoryID, ownerID int64) (core.Category, error)
	InsertTransaction(ctx context.Context, tx core.Transaction) (int64, error)
	UpdateRuleCursor(ctx context.Context, ruleID int64, last core.Date) error
	Commit() error
	Rollback() error
}

type generationStoreFunc func(ctx context.Context) (GenerationTx, error)

func (f generationStoreFunc) Begin(ctx context.Context) (GenerationTx, error) { return f(ctx) }

// NewGenerationStore adapts a Begin-style method, such as the SQLite
// repository's BeginGeneration, to the GenerationStore interface.
func NewGenerationStore[T GenerationTx](begin func(context.Context) (T, error)) GenerationStore {
	return generationStoreFunc(func(ctx context.Context) (GenerationTx, error) {
		uow, err := begin(ctx)
		if err != nil {
			return nil, err
		}
		return uow, nil
	})
}

// RunObserver is notified after a run commits, once per rule that produced
// occurrences. Implementations write notification rows, publish events, etc.
type RunObserver interface {
	RuleGenerated(ctx context.Context, rule core.RecurringRule, created []core.Transaction)
}

// Generator materializes due transactions from recurring rules.
type Generator struct {
	store    GenerationStore
	observer RunObserver // optional
}

func NewGenerator(store GenerationStore, observer RunObserver) *Generator {
	return &Generator{store: store, observer: observer}
}

// GenerateDue creates every transaction that should exist on or before
// runDate, advancing each rule's cursor exactly once per occurrence.
//
// A rule whose category is missing or owned by someone else is skipped with
// a log line; generation continues for the remaining rules. Persistence
// failures abort the run: the transaction rolls back and no cursor moves, so
// the next run retries naturally. Returns the number of transactions created.
func (g *Generator) GenerateDue(ctx context.Context, runDate core.Date) (int, error) {
	uow, err := g.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin generation run: %w", err)
	}

	slog.InfoContext(ctx, "Running recurring transaction generation", "run_date", runDate.String())

	rules, err := uow.ActiveRulesStartedBy(ctx, runDate)
	if err != nil {
		uow.Rollback()
		return 0, fmt.Errorf("list active rules: %w", err)
	}

	createdTotal := 0
	createdByRule := make(map[int64][]core.Transaction)

	for i := range rules {
		rule := rules[i]

		created, err := g.generateForRule(ctx, uow, &rule, runDate)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				// Data-integrity problem for this rule only: skip it,
				// leave its cursor untouched, keep going.
				slog.WarnContext(ctx, "Category missing or not owned by rule owner, skipping rule",
					"rule_id", rule.ID,
					"category_id", rule.CategoryID,
					"owner_id", rule.OwnerID)
				continue
			}
			uow.Rollback()
			return 0, fmt.Errorf("generate for rule %d: %w", rule.ID, err)
		}

		if len(created) > 0 {
			createdTotal += len(created)
			createdByRule[rule.ID] = created
			rules[i] = rule
		}
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("commit generation run: %w", err)
	}

	slog.InfoContext(ctx, "Recurring transaction generation complete",
		"run_date", runDate.String(),
		"rules_checked", len(rules),
		"transactions_created", createdTotal)

	if g.observer != nil {
		for _, rule := range rules {
			if created := createdByRule[rule.ID]; len(created) > 0 {
				g.observer.RuleGenerated(ctx, rule, created)
			}
		}
	}

	return createdTotal, nil
}

// generateForRule runs the occurrence loop for a single rule, mutating the
// rule's cursor in memory as it advances. Returns core.ErrNotFound (wrapped)
// when the rule's category cannot be resolved.
func (g *Generator) generateForRule(ctx context.Context, uow GenerationTx, rule *core.RecurringRule, runDate core.Date) ([]core.Transaction, error) {
	due, err := NextDue(rule.StartDate, rule.LastCreatedDate, rule.Frequency)
	if err != nil {
		// Unreachable after creation-time validation; fatal if it happens.
		return nil, err
	}

	var created []core.Transaction
	var category core.Category
	resolved := false

	for !due.After(runDate) {
		if !rule.EndDate.IsZero() && due.After(rule.EndDate) {
			slog.InfoContext(ctx, "Recurring rule ended, stopping generation",
				"rule_id", rule.ID,
				"end_date", rule.EndDate.String(),
				"next_due", due.String())
			break
		}

		if !resolved {
			category, err = uow.CategoryOwnedBy(ctx, rule.CategoryID, rule.OwnerID)
			if err != nil {
				return nil, err
			}
			resolved = true
		}

		tx := core.Transaction{
			Amount:      rule.Amount,
			Type:        category.Type,
			Date:        due,
			Description: rule.Description,
			CategoryID:  rule.CategoryID,
			OwnerID:     rule.OwnerID,
			RuleID:      rule.ID,
		}

		id, err := uow.InsertTransaction(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("insert transaction: %w", err)
		}
		tx.ID = id

		// Cursor and transaction move together inside the unit of work:
		// a crash mid-loop never leaves a gap or a duplicate occurrence.
		if err := uow.UpdateRuleCursor(ctx, rule.ID, due); err != nil {
			return nil, fmt.Errorf("update rule cursor: %w", err)
		}
		rule.LastCreatedDate = due
		created = append(created, tx)

		slog.DebugContext(ctx, "Created transaction from recurring rule",
			"rule_id", rule.ID,
			"date", due.String())

		due, err = NextDue(rule.StartDate, rule.LastCreatedDate, rule.Frequency)
		if err != nil {
			return nil, err
		}
	}

	return created, nil
}
