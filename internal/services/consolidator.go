package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mymoney/internal/core"
)

// ErrNotApplicable means the occurrence is out of window, off cadence or
// already consolidated. It is a normal outcome, not a failure.
var ErrNotApplicable = errors.New("recurrence not applicable for period")

// Consolidator turns a predicted occurrence into a persisted transaction.
type Consolidator struct {
	transactions TransactionStore
	ledger       *Ledger
}

func NewConsolidator(transactions TransactionStore) *Consolidator {
	return &Consolidator{
		transactions: transactions,
		ledger:       NewLedger(transactions),
	}
}

// Build re-checks the occurrence and returns the transaction that would be
// written, without persisting it. The rule is assumed to be owner-scoped.
func (c *Consolidator) Build(ctx context.Context, rule core.RecurrenceRule, year, month int) (core.Transaction, error) {
	occurs, err := ShouldOccur(rule, year, month)
	if err != nil {
		return core.Transaction{}, err
	}
	if !occurs {
		return core.Transaction{}, ErrNotApplicable
	}

	materialized, err := c.ledger.IsMaterialized(ctx, rule, year, month)
	if err != nil {
		return core.Transaction{}, err
	}
	if materialized {
		return core.Transaction{}, ErrNotApplicable
	}

	date, err := ResolveDate(rule, year, month)
	if err != nil {
		return core.Transaction{}, err
	}

	return core.Transaction{
		Owner:       rule.Owner,
		Description: rule.Description + core.RecurringMarker,
		Amount:      rule.Amount,
		Kind:        rule.Kind,
		Date:        date,
		CategoryID:  rule.CategoryID,
		AccountID:   rule.AccountID,
		OriginTag:   OriginTag(rule.ID, year, month),
		Imported:    false,
	}, nil
}

// Consolidate builds and persists the occurrence. A unique violation from
// the store means a concurrent call won the race and maps to ErrNotApplicable.
func (c *Consolidator) Consolidate(ctx context.Context, rule core.RecurrenceRule, year, month int) (core.Transaction, error) {
	tx, err := c.Build(ctx, rule, year, month)
	if err != nil {
		return core.Transaction{}, err
	}

	created, err := c.transactions.Create(ctx, tx)
	if errors.Is(err, core.ErrDuplicateOriginTag) {
		slog.InfoContext(ctx, "Occurrence consolidated concurrently",
			"rule_id", rule.ID,
			"origin_tag", tx.OriginTag)
		return core.Transaction{}, ErrNotApplicable
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Consolidated recurrence",
		"rule_id", rule.ID,
		"transaction_id", created.ID,
		"origin_tag", created.OriginTag,
		"date", created.Date.String(),
		"amount", core.FormatAmount(created.Amount))

	return created, nil
}
