package services

import (
	"context"
	"fmt"
	"strconv"

	"mymoney/internal/core"
)

const originTagPrefix = "recurrence_"

// OriginTag returns the dedup key of a rule occurrence. Month and year are
// written as plain integers; the same string is used to read and to write.
func OriginTag(ruleID int64, year, month int) string {
	return originTagPrefix + strconv.FormatInt(ruleID, 10) + "_" + strconv.Itoa(month) + "_" + strconv.Itoa(year)
}

// Ledger answers whether an occurrence already has a persisted transaction.
type Ledger struct {
	transactions TransactionStore
}

func NewLedger(transactions TransactionStore) *Ledger {
	return &Ledger{transactions: transactions}
}

// IsMaterialized performs a single lookup by (owner, origin tag).
func (l *Ledger) IsMaterialized(ctx context.Context, rule core.RecurrenceRule, year, month int) (bool, error) {
	if err := core.ValidateMonth(month); err != nil {
		return false, err
	}
	exists, err := l.transactions.ExistsByOriginTag(ctx, rule.Owner, OriginTag(rule.ID, year, month))
	if err != nil {
		return false, fmt.Errorf("check origin tag: %w", err)
	}
	return exists, nil
}
