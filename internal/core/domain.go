package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "INCOME"
	Expense Kind = "EXPENSE"
)

const (
	Monthly    Cadence = "MONTHLY"
	Bimonthly  Cadence = "BIMONTHLY"
	Quarterly  Cadence = "QUARTERLY"
	Semiannual Cadence = "SEMIANNUAL"
	Annual     Cadence = "ANNUAL"
)

const (
	// PredictedMarker is appended to the description of projected occurrences.
	PredictedMarker = " (Predicted)"
	// RecurringMarker is appended to the description of consolidated transactions.
	RecurringMarker = " (Recurring)"
)

const (
	// MaxDescriptionLength bounds the description of a ledger entry in bytes.
	MaxDescriptionLength = 200
	// MaxRuleDescriptionLength leaves room for RecurringMarker on consolidation.
	MaxRuleDescriptionLength = MaxDescriptionLength - len(RecurringMarker)
)

const dateLayout = "2006-01-02"

type (
	Kind    string
	Cadence string

	Date struct {
		time.Time
	}

	Category struct {
		ID    int64
		Owner int64
		Name  string
		Kind  Kind
		Color string
	}

	Account struct {
		ID    int64
		Owner int64
		Name  string
		Bank  string
	}

	// RecurrenceRule is the template of a periodic income or expense.
	RecurrenceRule struct {
		ID          int64
		Owner       int64
		Description string
		Amount      decimal.Decimal
		Kind        Kind
		Cadence     Cadence
		DueDay      int // 1-31, clamped to the month length when applied
		StartDate   Date
		EndDate     Date // zero means indefinite
		Active      bool
		CategoryID  int64
		AccountID   *int64
	}

	// Transaction is a persisted ledger entry.
	Transaction struct {
		ID          int64
		Owner       int64
		Description string
		Amount      decimal.Decimal
		Kind        Kind
		Date        Date
		CategoryID  int64
		AccountID   *int64
		OriginTag   string
		Imported    bool
		CreatedAt   time.Time
	}

	// PredictedOccurrence is a computed, never persisted, occurrence of a rule.
	PredictedOccurrence struct {
		RuleID      int64
		Description string
		Amount      decimal.Decimal
		Kind        Kind
		Date        Date
		CategoryID  int64
		AccountID   *int64
		Predicted   bool
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDueDay      = errors.New("due day must be between 1 and 31")
	ErrInvalidKind        = errors.New("invalid kind")
	ErrInvalidCadence     = errors.New("invalid cadence")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long")
	ErrEndBeforeStart     = errors.New("end date must be after start date")
	ErrMissingCategory    = errors.New("missing category")
	ErrRuleNotFound       = errors.New("recurrence rule not found")
	ErrDuplicateOriginTag = errors.New("transaction with the same origin tag already exists")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (used for optional end dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ValidateMonth fails fast on a month outside 1-12.
func ValidateMonth(month int) error {
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// FirstOfMonth returns the first calendar day of year/month.
func FirstOfMonth(year, month int) Date {
	return NewDate(year, month, 1)
}

// LastDayOfMonth returns the number of days in year/month.
func LastDayOfMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

func (c Cadence) Valid() bool {
	switch c {
	case Monthly, Bimonthly, Quarterly, Semiannual, Annual:
		return true
	}
	return false
}

func (rr RecurrenceRule) Validate() error {
	if err := rr.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}

	if !rr.EndDate.IsZero() {
		if err := rr.EndDate.Validate(); err != nil {
			return errors.New("invalid end date: " + err.Error())
		}
		if !rr.EndDate.After(rr.StartDate.Time) {
			return ErrEndBeforeStart
		}
	}

	if !rr.Cadence.Valid() {
		return ErrInvalidCadence
	}
	if !rr.Kind.Valid() {
		return ErrInvalidKind
	}
	if rr.DueDay < 1 || rr.DueDay > 31 {
		return ErrInvalidDueDay
	}

	if len(strings.TrimSpace(rr.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(rr.Description) > MaxRuleDescriptionLength {
		return fmt.Errorf("%w (max %d characters)", ErrDescriptionTooLong, MaxRuleDescriptionLength)
	}

	if rr.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if rr.CategoryID <= 0 {
		return ErrMissingCategory
	}

	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > MaxDescriptionLength {
		return fmt.Errorf("%w (max %d characters)", ErrDescriptionTooLong, MaxDescriptionLength)
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}
