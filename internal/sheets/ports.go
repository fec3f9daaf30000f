package sheets

import (
	"context"

	"mymoney/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter appends a persisted transaction to an external
	// spreadsheet and returns a reference to the written row.
	TransactionExporter interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}
)
