package services

import (
	"context"

	"github.com/shopspring/decimal"

	"mymoney/internal/core"
)

// Ports for the stores the recurrence engine reads and writes.
type (
	// RuleStore lists recurrence rules. ListActiveRules must return only
	// rules with Active=true owned by owner, in any order.
	RuleStore interface {
		ListActiveRules(ctx context.Context, owner int64) ([]core.RecurrenceRule, error)
	}

	// TransactionStore is the ledger. Create must return an error wrapping
	// core.ErrDuplicateOriginTag when (owner, origin tag) already exists.
	TransactionStore interface {
		ExistsByOriginTag(ctx context.Context, owner int64, originTag string) (bool, error)
		Create(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	}

	// TotalsReader sums materialized transactions of a month by kind.
	TotalsReader interface {
		SumByKind(ctx context.Context, owner int64, year, month int) (income, expense decimal.Decimal, err error)
	}

	// TransactionPublisher announces newly persisted transactions.
	TransactionPublisher interface {
		PublishTransactionCreated(ctx context.Context, tx core.Transaction) error
	}
)
