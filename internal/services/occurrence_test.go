package services

import (
	"errors"
	"testing"

	"mymoney/internal/core"
)

func rule(cadence core.Cadence, start core.Date, dueDay int) core.RecurrenceRule {
	return core.RecurrenceRule{
		ID:          1,
		Owner:       1,
		Description: "Rule",
		Kind:        core.Expense,
		Cadence:     cadence,
		DueDay:      dueDay,
		StartDate:   start,
		Active:      true,
		CategoryID:  1,
	}
}

func TestShouldOccur_WindowBoundary(t *testing.T) {
	r := rule(core.Monthly, core.NewDate(2024, 3, 1), 5)

	tests := []struct {
		year, month int
		want        bool
	}{
		{2024, 2, false},
		{2024, 3, true},
		{2023, 12, false},
		{2030, 1, true},
	}

	for _, tt := range tests {
		got, err := ShouldOccur(r, tt.year, tt.month)
		if err != nil {
			t.Fatalf("ShouldOccur(%d,%d) error: %v", tt.year, tt.month, err)
		}
		if got != tt.want {
			t.Errorf("ShouldOccur(%d,%d) = %v, want %v", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestShouldOccur_EndDate(t *testing.T) {
	r := rule(core.Monthly, core.NewDate(2024, 1, 1), 20)
	r.EndDate = core.NewDate(2024, 6, 10)

	tests := []struct {
		month int
		want  bool
	}{
		{5, true},
		{6, true}, // first of June is before the end date
		{7, false},
	}

	for _, tt := range tests {
		got, _ := ShouldOccur(r, 2024, tt.month)
		if got != tt.want {
			t.Errorf("ShouldOccur(2024,%d) = %v, want %v", tt.month, got, tt.want)
		}
	}
}

func TestShouldOccur_Cadences(t *testing.T) {
	start := core.NewDate(2024, 1, 15)

	tests := []struct {
		name    string
		cadence core.Cadence
		year    int
		month   int
		want    bool
	}{
		{"quarterly start month", core.Quarterly, 2024, 1, true},
		{"quarterly +1", core.Quarterly, 2024, 2, false},
		{"quarterly +2", core.Quarterly, 2024, 3, false},
		{"quarterly +3", core.Quarterly, 2024, 4, true},
		{"quarterly +6", core.Quarterly, 2024, 7, true},
		{"quarterly across year", core.Quarterly, 2025, 1, true},
		{"monthly", core.Monthly, 2024, 2, true},
		{"bimonthly +1", core.Bimonthly, 2024, 2, false},
		{"bimonthly +2", core.Bimonthly, 2024, 3, true},
		{"bimonthly across year", core.Bimonthly, 2025, 1, true},
		{"semiannual +6", core.Semiannual, 2024, 7, true},
		{"semiannual +3", core.Semiannual, 2024, 4, false},
		{"annual same month", core.Annual, 2026, 1, true},
		{"annual other month", core.Annual, 2026, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShouldOccur(rule(tt.cadence, start, 15), tt.year, tt.month)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ShouldOccur() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldOccur_InvalidInput(t *testing.T) {
	r := rule(core.Monthly, core.NewDate(2024, 1, 1), 1)

	for _, month := range []int{0, 13, -1} {
		if _, err := ShouldOccur(r, 2024, month); !errors.Is(err, core.ErrInvalidMonth) {
			t.Errorf("month %d: expected ErrInvalidMonth, got %v", month, err)
		}
	}

	r.Cadence = "WEEKLY"
	if _, err := ShouldOccur(r, 2024, 1); !errors.Is(err, core.ErrInvalidCadence) {
		t.Errorf("expected ErrInvalidCadence, got %v", err)
	}
}

func TestResolveDate_Clamping(t *testing.T) {
	r := rule(core.Monthly, core.NewDate(2020, 1, 1), 31)

	tests := []struct {
		year, month int
		want        string
	}{
		{2024, 2, "2024-02-29"},
		{2023, 2, "2023-02-28"},
		{2024, 4, "2024-04-30"},
		{2024, 12, "2024-12-31"},
	}

	for _, tt := range tests {
		got, err := ResolveDate(r, tt.year, tt.month)
		if err != nil {
			t.Fatalf("ResolveDate(%d,%d) error: %v", tt.year, tt.month, err)
		}
		if got.String() != tt.want {
			t.Errorf("ResolveDate(%d,%d) = %s, want %s", tt.year, tt.month, got, tt.want)
		}
	}

	if _, err := ResolveDate(r, 2024, 13); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestNextDueDate(t *testing.T) {
	tests := []struct {
		name      string
		rule      core.RecurrenceRule
		reference core.Date
		want      string
		ok        bool
	}{
		{
			name:      "monthly next month",
			rule:      rule(core.Monthly, core.NewDate(2024, 1, 1), 31),
			reference: core.NewDate(2024, 1, 20),
			want:      "2024-02-29",
			ok:        true,
		},
		{
			name:      "quarterly skips off months",
			rule:      rule(core.Quarterly, core.NewDate(2024, 1, 1), 10),
			reference: core.NewDate(2024, 1, 20),
			want:      "2024-04-10",
			ok:        true,
		},
		{
			name:      "annual wraps year",
			rule:      rule(core.Annual, core.NewDate(2024, 3, 1), 1),
			reference: core.NewDate(2024, 3, 2),
			want:      "2025-03-01",
			ok:        true,
		},
		{
			name:      "future start",
			rule:      rule(core.Monthly, core.NewDate(2025, 6, 1), 5),
			reference: core.NewDate(2024, 1, 1),
			want:      "2025-06-05",
			ok:        true,
		},
		{
			name: "ended",
			rule: func() core.RecurrenceRule {
				r := rule(core.Monthly, core.NewDate(2024, 1, 1), 5)
				r.EndDate = core.NewDate(2024, 3, 31)
				return r
			}(),
			reference: core.NewDate(2024, 3, 10),
			ok:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := NextDueDate(tt.rule, tt.reference)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.String() != tt.want {
				t.Errorf("NextDueDate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCadenceCheckersCoverValidCadences(t *testing.T) {
	for _, c := range []core.Cadence{core.Monthly, core.Bimonthly, core.Quarterly, core.Semiannual, core.Annual} {
		if !c.Valid() {
			t.Fatalf("%s should be valid", c)
		}
		if _, err := GetCadenceChecker(c); err != nil {
			t.Errorf("GetCadenceChecker(%s) error = %v", c, err)
		}
	}

	const unknown core.Cadence = "QUADRIMESTER"
	if unknown.Valid() {
		t.Fatalf("%s should not be valid", unknown)
	}
	if _, err := GetCadenceChecker(unknown); !errors.Is(err, core.ErrInvalidCadence) {
		t.Errorf("GetCadenceChecker(%s) error = %v, want ErrInvalidCadence", unknown, err)
	}
}
