package core

import "github.com/shopspring/decimal"

// KindProjection holds the totals of one side (income or expense) of a month.
type KindProjection struct {
	Predicted      []PredictedOccurrence
	ActualTotal    decimal.Decimal
	PredictedTotal decimal.Decimal
	ProjectedTotal decimal.Decimal
}

// MonthProjection is the "what's coming due" view for a specific year+month.
type MonthProjection struct {
	Owner   int64
	Year    int
	Month   int // 1-12
	Income  KindProjection
	Expense KindProjection
}

// Balance returns projected income minus projected expenses.
func (m MonthProjection) Balance() decimal.Decimal {
	return m.Income.ProjectedTotal.Sub(m.Expense.ProjectedTotal)
}
