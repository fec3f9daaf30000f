package core

import (
	"errors"
	"strings"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrAccountNotFound  = errors.New("account not found")
)

// RuleFilter narrows a rule listing. Zero values match everything.
type RuleFilter struct {
	Kind   Kind
	Active *bool
	// Query is matched case-insensitively against the description and the
	// category name.
	Query string
}

// Matches reports whether rule passes the filter. categoryName is the name
// of the rule's category, empty when unknown.
func (f RuleFilter) Matches(rule RecurrenceRule, categoryName string) bool {
	if f.Kind != "" && rule.Kind != f.Kind {
		return false
	}
	if f.Active != nil && rule.Active != *f.Active {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(rule.Description), q) ||
		strings.Contains(strings.ToLower(categoryName), q)
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("category name cannot be empty")
	}
	if !c.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("account name cannot be empty")
	}
	return nil
}
