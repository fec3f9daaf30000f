// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurrence cadences.
// Each cadence (monthly, bimonthly, quarterly, semiannual, annual) has its
// own checker deciding whether a rule falls due in a calendar month.

package services

import (
	"fmt"

	"mymoney/internal/core"
)

// CadenceChecker is the strategy interface for cadence arithmetic.
type CadenceChecker interface {
	// OnCadence reports whether a rule anchored at start falls due in
	// year/month. Callers guarantee year/month is not before start's month.
	OnCadence(start core.Date, year, month int) bool
}

// EveryNMonthsChecker matches every N calendar months counted from the start month.
type EveryNMonthsChecker struct {
	N int
}

// OnCadence returns true when the calendar-month distance is a multiple of N.
func (c EveryNMonthsChecker) OnCadence(start core.Date, year, month int) bool {
	return monthsSince(start, year, month)%c.N == 0
}

// AnnualChecker matches the start month of every year.
type AnnualChecker struct{}

// OnCadence returns true when month is the start month.
func (AnnualChecker) OnCadence(start core.Date, _, month int) bool {
	return month == start.Month()
}

// cadenceStrategies maps cadences to their corresponding checkers.
// It is never written after init.
var cadenceStrategies = map[core.Cadence]CadenceChecker{
	core.Monthly:    EveryNMonthsChecker{N: 1},
	core.Bimonthly:  EveryNMonthsChecker{N: 2},
	core.Quarterly:  EveryNMonthsChecker{N: 3},
	core.Semiannual: EveryNMonthsChecker{N: 6},
	core.Annual:     AnnualChecker{},
}

// GetCadenceChecker returns the checker for a cadence.
func GetCadenceChecker(cadence core.Cadence) (CadenceChecker, error) {
	checker, ok := cadenceStrategies[cadence]
	if !ok {
		return nil, fmt.Errorf("unknown cadence %q: %w", cadence, core.ErrInvalidCadence)
	}
	return checker, nil
}

// monthsSince is the integer calendar-month difference, never elapsed days.
func monthsSince(start core.Date, year, month int) int {
	return (year-start.Year())*12 + (month - start.Month())
}

// inWindow compares at month granularity: the month must not precede the
// start month, and its first day must not be after the end date.
func inWindow(rule core.RecurrenceRule, year, month int) bool {
	if monthsSince(rule.StartDate, year, month) < 0 {
		return false
	}
	if !rule.EndDate.IsEmpty() && core.FirstOfMonth(year, month).After(rule.EndDate.Time) {
		return false
	}
	return true
}

// ShouldOccur reports whether rule has an occurrence in year/month.
func ShouldOccur(rule core.RecurrenceRule, year, month int) (bool, error) {
	if err := core.ValidateMonth(month); err != nil {
		return false, err
	}
	checker, err := GetCadenceChecker(rule.Cadence)
	if err != nil {
		return false, err
	}
	if !inWindow(rule, year, month) {
		return false, nil
	}
	return checker.OnCadence(rule.StartDate, year, month), nil
}

// ResolveDate returns the due date of rule in year/month, clamping the
// due day to the last day of short months.
func ResolveDate(rule core.RecurrenceRule, year, month int) (core.Date, error) {
	if err := core.ValidateMonth(month); err != nil {
		return core.Date{}, err
	}
	day := min(rule.DueDay, core.LastDayOfMonth(year, month))
	if day < 1 {
		return core.Date{}, core.ErrInvalidDueDay
	}
	return core.NewDate(year, month, day), nil
}

// NextDueDate returns the first occurrence strictly after the month of
// reference. The second result is false when the rule has ended.
func NextDueDate(rule core.RecurrenceRule, reference core.Date) (core.Date, bool, error) {
	year, month := reference.Year(), reference.Month()+1
	if month > 12 {
		year, month = year+1, 1
	}
	if monthsSince(rule.StartDate, year, month) < 0 {
		year, month = rule.StartDate.Year(), rule.StartDate.Month()
	}

	// Every cadence repeats within twelve months.
	for i := 0; i < 12; i++ {
		ok, err := ShouldOccur(rule, year, month)
		if err != nil {
			return core.Date{}, false, err
		}
		if ok {
			d, err := ResolveDate(rule, year, month)
			return d, err == nil, err
		}
		if month++; month > 12 {
			year, month = year+1, 1
		}
	}
	return core.Date{}, false, nil
}
