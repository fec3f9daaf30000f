// Package http exposes the recurrence engine as a JSON API.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mymoney/internal/core"
)

// HeaderOwnerID identifies the owner every request acts for.
const HeaderOwnerID = "X-Owner-ID"

const maxBodyBytes = 1 << 20

var (
	errMissingOwner = errors.New("missing or invalid " + HeaderOwnerID + " header")
	errInvalidID    = errors.New("invalid id")
)

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseOwner reads the owner id from the X-Owner-ID header.
func ParseOwner(r *http.Request) (int64, error) {
	owner, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(HeaderOwnerID)), 10, 64)
	if err != nil || owner <= 0 {
		return 0, errMissingOwner
	}
	return owner, nil
}

// ParseMonthParams extracts year and month from query parameters, defaulting
// each missing value to now. A value that is present but malformed, or a
// month outside 1-12, is an error.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, fmt.Errorf("invalid year %q", v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, core.ErrInvalidMonth
		}
		params.Month = m
	}
	if err := core.ValidateMonth(params.Month); err != nil {
		return MonthParams{}, err
	}

	return params, nil
}

// ParseID parses the {id} path value.
func ParseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// ParseRuleFilter reads the kind, active and q list filters.
func ParseRuleFilter(query url.Values) (core.RuleFilter, error) {
	var filter core.RuleFilter

	if v := strings.TrimSpace(query.Get("kind")); v != "" {
		filter.Kind = core.Kind(strings.ToUpper(v))
		if !filter.Kind.Valid() {
			return core.RuleFilter{}, core.ErrInvalidKind
		}
	}
	if v := strings.TrimSpace(query.Get("active")); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return core.RuleFilter{}, fmt.Errorf("invalid active flag %q", v)
		}
		filter.Active = &active
	}
	filter.Query = sanitizeInput(query.Get("q"))

	return filter, nil
}

// DecodeJSON decodes a size-limited JSON body, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("malformed JSON: %w", err)
	}
	return nil
}

// ruleRequest is the body of POST /recurrences and PUT /recurrences/{id}.
// Amount is a decimal string ("12.34" or "12,34").
type ruleRequest struct {
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Kind        string    `json:"kind"`
	Cadence     string    `json:"cadence"`
	DueDay      int       `json:"due_day"`
	StartDate   core.Date `json:"start_date"`
	EndDate     core.Date `json:"end_date"`
	Active      *bool     `json:"active"`
	CategoryID  int64     `json:"category_id"`
	AccountID   *int64    `json:"account_id"`
}

// toRule converts and validates the request. Active defaults to true.
func (req ruleRequest) toRule(owner int64) (core.RecurrenceRule, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.RecurrenceRule{}, err
	}

	rule := core.RecurrenceRule{
		Owner:       owner,
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		Kind:        core.Kind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		Cadence:     core.Cadence(strings.ToUpper(strings.TrimSpace(req.Cadence))),
		DueDay:      req.DueDay,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Active:      true,
		CategoryID:  req.CategoryID,
		AccountID:   req.AccountID,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}

	if err := rule.Validate(); err != nil {
		return core.RecurrenceRule{}, err
	}
	return rule, nil
}

type categoryRequest struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Color string `json:"color"`
}

type accountRequest struct {
	Name string `json:"name"`
	Bank string `json:"bank"`
}

// sanitizeInput removes control characters except tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s))
}
