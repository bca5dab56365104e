package export

import (
	"context"

	"bilancio/internal/core"
)

// Ports for outbound ledger adapters.
type (
	LedgerAppender interface {
		Append(ctx context.Context, tx core.Transaction, categoryName string) (rowRef string, err error)
	}
)
