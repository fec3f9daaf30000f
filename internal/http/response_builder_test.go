package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"mymoney/internal/core"
	"mymoney/internal/services"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/recurrences/1").
		Body(statusResponse{Status: "ok"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Location"); got != "/recurrences/1" {
		t.Errorf("Location = %q", got)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Body.String() != "{\"status\":\"ok\"}\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body(statusResponse{Status: "x"}).Write(w)
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

func TestErrorFromDomain(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrInvalidMonth, http.StatusBadRequest},
		{fmt.Errorf("get: %w", core.ErrRuleNotFound), http.StatusNotFound},
		{core.ErrCategoryNotFound, http.StatusUnprocessableEntity},
		{core.ErrAccountNotFound, http.StatusUnprocessableEntity},
		{core.ErrEndBeforeStart, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w (max 188 characters)", core.ErrDescriptionTooLong), http.StatusUnprocessableEntity},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		ErrorFromDomain(tt.err).Write(w)
		if w.Code != tt.want {
			t.Errorf("ErrorFromDomain(%v) status = %d, want %d", tt.err, w.Code, tt.want)
		}
		var body errorBody
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Error == "" {
			t.Errorf("ErrorFromDomain(%v) body = %q", tt.err, w.Body.String())
		}
		if tt.want == http.StatusInternalServerError && body.Error != "internal error" {
			t.Errorf("internal error message leaked: %q", body.Error)
		}
	}
}

func TestNewProjectionResponse(t *testing.T) {
	p := core.MonthProjection{
		Owner: 1, Year: 2024, Month: 6,
		Income: core.KindProjection{
			ActualTotal:    decimal.RequireFromString("2000"),
			PredictedTotal: decimal.Zero,
			ProjectedTotal: decimal.RequireFromString("2000"),
		},
		Expense: core.KindProjection{
			Predicted: []core.PredictedOccurrence{{
				RuleID: 3, Description: "Rent (Predicted)", Amount: decimal.RequireFromString("650.5"),
				Kind: core.Expense, Date: core.NewDate(2024, 6, 5), Predicted: true,
			}},
			ActualTotal:    decimal.Zero,
			PredictedTotal: decimal.RequireFromString("650.5"),
			ProjectedTotal: decimal.RequireFromString("650.5"),
		},
	}

	resp := newProjectionResponse(p)
	if resp.Balance != "1349.50" {
		t.Errorf("Balance = %s, want 1349.50", resp.Balance)
	}
	if resp.Income.Predicted == nil || len(resp.Income.Predicted) != 0 {
		t.Errorf("income predicted should be an empty list, got %v", resp.Income.Predicted)
	}
	if len(resp.Expense.Predicted) != 1 || resp.Expense.Predicted[0].Amount != "650.50" {
		t.Errorf("expense predicted = %+v", resp.Expense.Predicted)
	}
}

func TestNewGenerateResponse(t *testing.T) {
	resp := newGenerateResponse(services.GenerationReport{Created: make([]core.Transaction, 2)})
	if resp.Created != 2 || resp.Skipped == nil || resp.Failed == nil {
		t.Errorf("newGenerateResponse() = %+v", resp)
	}
}
