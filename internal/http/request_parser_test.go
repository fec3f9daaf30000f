package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"mymoney/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		query   string
		want    MonthParams
		wantErr bool
	}{
		{"defaults", "", MonthParams{Year: 2024, Month: 6}, false},
		{"explicit", "year=2023&month=2", MonthParams{Year: 2023, Month: 2}, false},
		{"only month", "month=12", MonthParams{Year: 2024, Month: 12}, false},
		{"whitespace", "year=%202025%20&month=%201", MonthParams{Year: 2025, Month: 1}, false},
		{"month too high", "month=13", MonthParams{}, true},
		{"month zero", "month=0", MonthParams{}, true},
		{"month not a number", "month=june", MonthParams{}, true},
		{"year not a number", "year=abc", MonthParams{}, true},
		{"year out of range", "year=0", MonthParams{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			got, err := ParseMonthParams(q, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMonthParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMonthParams() = %+v, want %+v", got, tt.want)
			}
		})
	}

	q, _ := url.ParseQuery("month=13")
	if _, err := ParseMonthParams(q, now); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestParseOwner(t *testing.T) {
	tests := []struct {
		header  string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{" 7 ", 7, false},
		{"", 0, true},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderOwnerID, tt.header)
		got, err := ParseOwner(r)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOwner(%q) = %d, %v", tt.header, got, err)
		}
	}
}

func TestParseRuleFilter(t *testing.T) {
	q, _ := url.ParseQuery("kind=income&active=true&q=%20rent%20")
	f, err := ParseRuleFilter(q)
	if err != nil {
		t.Fatalf("ParseRuleFilter() error = %v", err)
	}
	if f.Kind != core.Income || f.Active == nil || !*f.Active || f.Query != "rent" {
		t.Errorf("ParseRuleFilter() = %+v", f)
	}

	for _, bad := range []string{"kind=weekly", "active=maybe"} {
		q, _ := url.ParseQuery(bad)
		if _, err := ParseRuleFilter(q); err == nil {
			t.Errorf("ParseRuleFilter(%q) expected error", bad)
		}
	}

	f, err = ParseRuleFilter(url.Values{})
	if err != nil || f.Kind != "" || f.Active != nil || f.Query != "" {
		t.Errorf("empty filter = %+v, %v", f, err)
	}
}

func TestRuleRequestToRule(t *testing.T) {
	inactive := false
	req := ruleRequest{
		Description: "  Gym\x00 ",
		Amount:      "35,5",
		Kind:        "expense",
		Cadence:     "quarterly",
		DueDay:      31,
		StartDate:   core.NewDate(2024, 1, 15),
		Active:      &inactive,
		CategoryID:  3,
	}
	rule, err := req.toRule(9)
	if err != nil {
		t.Fatalf("toRule() error = %v", err)
	}
	if rule.Owner != 9 || rule.Description != "Gym" || rule.Kind != core.Expense || rule.Cadence != core.Quarterly {
		t.Errorf("toRule() = %+v", rule)
	}
	if rule.Amount.StringFixed(2) != "35.50" {
		t.Errorf("amount = %s", rule.Amount.StringFixed(2))
	}
	if rule.Active {
		t.Error("expected explicit active=false to be kept")
	}

	req.Active = nil
	rule, _ = req.toRule(9)
	if !rule.Active {
		t.Error("expected active to default to true")
	}

	req.Amount = "abc"
	if _, err := req.toRule(9); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst accountRequest
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Checking"}`))
	if err := DecodeJSON(httptest.NewRecorder(), r, &dst); err != nil || dst.Name != "Checking" {
		t.Errorf("DecodeJSON() = %+v, %v", dst, err)
	}

	big := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	if err := DecodeJSON(httptest.NewRecorder(), r, &dst); err == nil {
		t.Error("expected oversized body to fail")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x01b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
