package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"mymoney/internal/core"
)

// Projector computes the occurrences still expected in a month.
type Projector struct {
	rules  RuleStore
	ledger *Ledger
	totals TotalsReader
}

// NewProjector creates a projector. totals may be nil, in which case
// actual totals are reported as zero.
func NewProjector(rules RuleStore, transactions TransactionStore, totals TotalsReader) *Projector {
	return &Projector{
		rules:  rules,
		ledger: NewLedger(transactions),
		totals: totals,
	}
}

// Project returns one prediction for every active, in-window, on-cadence
// rule of owner that has not been materialized yet. Order is unspecified.
func (p *Projector) Project(ctx context.Context, owner int64, year, month int) ([]core.PredictedOccurrence, error) {
	if err := core.ValidateMonth(month); err != nil {
		return nil, err
	}

	rules, err := p.rules.ListActiveRules(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}

	predicted := make([]core.PredictedOccurrence, 0, len(rules))
	for _, rule := range rules {
		occurs, err := ShouldOccur(rule, year, month)
		if err != nil {
			slog.WarnContext(ctx, "Skipping rule with invalid cadence",
				"rule_id", rule.ID,
				"cadence", rule.Cadence,
				"error", err)
			continue
		}
		if !occurs {
			continue
		}

		materialized, err := p.ledger.IsMaterialized(ctx, rule, year, month)
		if err != nil {
			return nil, err
		}
		if materialized {
			continue
		}

		date, err := ResolveDate(rule, year, month)
		if err != nil {
			return nil, err
		}

		predicted = append(predicted, core.PredictedOccurrence{
			RuleID:      rule.ID,
			Description: rule.Description + core.PredictedMarker,
			Amount:      rule.Amount,
			Kind:        rule.Kind,
			Date:        date,
			CategoryID:  rule.CategoryID,
			AccountID:   rule.AccountID,
			Predicted:   true,
		})
	}

	return predicted, nil
}

// Summarize partitions the projection by kind and adds the actual totals
// of the month: projected = actual + predicted.
func (p *Projector) Summarize(ctx context.Context, owner int64, year, month int) (core.MonthProjection, error) {
	predicted, err := p.Project(ctx, owner, year, month)
	if err != nil {
		return core.MonthProjection{}, err
	}

	summary := core.MonthProjection{
		Owner: owner,
		Year:  year,
		Month: month,
		Income: core.KindProjection{
			Predicted:      []core.PredictedOccurrence{},
			ActualTotal:    decimal.Zero,
			PredictedTotal: decimal.Zero,
		},
		Expense: core.KindProjection{
			Predicted:      []core.PredictedOccurrence{},
			ActualTotal:    decimal.Zero,
			PredictedTotal: decimal.Zero,
		},
	}

	if p.totals != nil {
		income, expense, err := p.totals.SumByKind(ctx, owner, year, month)
		if err != nil {
			return core.MonthProjection{}, fmt.Errorf("sum actual totals: %w", err)
		}
		summary.Income.ActualTotal = income
		summary.Expense.ActualTotal = expense
	}

	for _, occ := range predicted {
		side := &summary.Expense
		if occ.Kind == core.Income {
			side = &summary.Income
		}
		side.Predicted = append(side.Predicted, occ)
		side.PredictedTotal = side.PredictedTotal.Add(occ.Amount)
	}

	summary.Income.ProjectedTotal = summary.Income.ActualTotal.Add(summary.Income.PredictedTotal)
	summary.Expense.ProjectedTotal = summary.Expense.ActualTotal.Add(summary.Expense.PredictedTotal)

	return summary, nil
}
