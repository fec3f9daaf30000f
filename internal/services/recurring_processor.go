package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mymoney/internal/core"
)

// GenerationReport details the outcome of a bulk generation.
type GenerationReport struct {
	Created []core.Transaction
	Skipped []int64 // rule ids not applicable for the period
	Failed  []int64 // rule ids whose consolidation errored
}

// RecurringProcessor consolidates every active rule of an owner for a period.
type RecurringProcessor struct {
	rules        RuleStore
	consolidator *Consolidator
}

// NewRecurringProcessor creates a new bulk generator
func NewRecurringProcessor(rules RuleStore, consolidator *Consolidator) *RecurringProcessor {
	return &RecurringProcessor{
		rules:        rules,
		consolidator: consolidator,
	}
}

// GenerateForPeriod returns the number of transactions created.
func (p *RecurringProcessor) GenerateForPeriod(ctx context.Context, owner int64, year, month int) (int, error) {
	report, err := p.GenerateReport(ctx, owner, year, month)
	if err != nil {
		return 0, err
	}
	return len(report.Created), nil
}

// GenerateReport consolidates each rule independently. A failing rule is
// logged and recorded; processing continues with the next one.
func (p *RecurringProcessor) GenerateReport(ctx context.Context, owner int64, year, month int) (GenerationReport, error) {
	var report GenerationReport

	if p.rules == nil || p.consolidator == nil {
		return report, fmt.Errorf("processor not properly initialized")
	}
	if err := core.ValidateMonth(month); err != nil {
		return report, err
	}

	rules, err := p.rules.ListActiveRules(ctx, owner)
	if err != nil {
		return report, fmt.Errorf("failed to get active recurrence rules: %w", err)
	}

	slog.InfoContext(ctx, "Generating recurring transactions",
		"owner_id", owner,
		"total_active", len(rules),
		"year", year,
		"month", month)

	for _, rule := range rules {
		tx, err := p.consolidator.Consolidate(ctx, rule, year, month)
		if errors.Is(err, ErrNotApplicable) {
			report.Skipped = append(report.Skipped, rule.ID)
			continue
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to consolidate recurrence",
				"rule_id", rule.ID,
				"description", rule.Description,
				"error", err)
			report.Failed = append(report.Failed, rule.ID)
			continue
		}
		report.Created = append(report.Created, tx)
	}

	slog.InfoContext(ctx, "Recurring generation complete",
		"owner_id", owner,
		"created", len(report.Created),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed))

	return report, nil
}
