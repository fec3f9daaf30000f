// This file implements the Builder Pattern for JSON responses and maps
// domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mymoney/internal/core"
	"mymoney/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body == nil || b.statusCode == http.StatusNoContent {
		return
	}
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnauthorizedError creates a 401 Unauthorized error response.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

// ServiceUnavailableError creates a 503 Service Unavailable error response.
func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// ErrorFromDomain maps engine and store errors to a response. Unknown
// errors become a 500 without leaking their message.
func ErrorFromDomain(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, core.ErrInvalidMonth):
		return BadRequestError(err.Error())
	case errors.Is(err, core.ErrRuleNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, core.ErrCategoryNotFound),
		errors.Is(err, core.ErrAccountNotFound),
		errors.Is(err, core.ErrInvalidCadence),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDueDay),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrEndBeforeStart),
		errors.Is(err, core.ErrMissingCategory):
		return UnprocessableEntityError(err.Error())
	default:
		return InternalServerError()
	}
}

type ruleResponse struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Kind        core.Kind `json:"kind"`
	Cadence     string    `json:"cadence"`
	DueDay      int       `json:"due_day"`
	StartDate   core.Date `json:"start_date"`
	EndDate     core.Date `json:"end_date"`
	Active      bool      `json:"active"`
	CategoryID  int64     `json:"category_id"`
	AccountID   *int64    `json:"account_id"`
	// NextDueDate is null when the rule has ended or is inactive.
	NextDueDate core.Date `json:"next_due_date"`
}

func newRuleResponse(rule core.RecurrenceRule, today core.Date) ruleResponse {
	resp := ruleResponse{
		ID:          rule.ID,
		Description: rule.Description,
		Amount:      core.FormatAmount(rule.Amount),
		Kind:        rule.Kind,
		Cadence:     string(rule.Cadence),
		DueDay:      rule.DueDay,
		StartDate:   rule.StartDate,
		EndDate:     rule.EndDate,
		Active:      rule.Active,
		CategoryID:  rule.CategoryID,
		AccountID:   rule.AccountID,
	}
	if rule.Active {
		if next, ok, err := services.NextDueDate(rule, today); err == nil && ok {
			resp.NextDueDate = next
		}
	}
	return resp
}

type transactionResponse struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Kind        core.Kind `json:"kind"`
	Date        core.Date `json:"date"`
	CategoryID  int64     `json:"category_id"`
	AccountID   *int64    `json:"account_id"`
	OriginTag   string    `json:"origin_tag,omitempty"`
	Imported    bool      `json:"imported"`
	CreatedAt   time.Time `json:"created_at"`
}

func newTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Description: tx.Description,
		Amount:      core.FormatAmount(tx.Amount),
		Kind:        tx.Kind,
		Date:        tx.Date,
		CategoryID:  tx.CategoryID,
		AccountID:   tx.AccountID,
		OriginTag:   tx.OriginTag,
		Imported:    tx.Imported,
		CreatedAt:   tx.CreatedAt,
	}
}

type occurrenceResponse struct {
	RuleID      int64     `json:"rule_id"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Kind        core.Kind `json:"kind"`
	Date        core.Date `json:"date"`
	CategoryID  int64     `json:"category_id"`
	AccountID   *int64    `json:"account_id"`
	Predicted   bool      `json:"predicted"`
}

type kindProjectionResponse struct {
	Predicted      []occurrenceResponse `json:"predicted"`
	ActualTotal    string               `json:"actual_total"`
	PredictedTotal string               `json:"predicted_total"`
	ProjectedTotal string               `json:"projected_total"`
}

type projectionResponse struct {
	OwnerID int64                  `json:"owner_id"`
	Year    int                    `json:"year"`
	Month   int                    `json:"month"`
	Income  kindProjectionResponse `json:"income"`
	Expense kindProjectionResponse `json:"expense"`
	Balance string                 `json:"balance"`
}

func newKindProjectionResponse(k core.KindProjection) kindProjectionResponse {
	resp := kindProjectionResponse{
		Predicted:      make([]occurrenceResponse, 0, len(k.Predicted)),
		ActualTotal:    core.FormatAmount(k.ActualTotal),
		PredictedTotal: core.FormatAmount(k.PredictedTotal),
		ProjectedTotal: core.FormatAmount(k.ProjectedTotal),
	}
	for _, occ := range k.Predicted {
		resp.Predicted = append(resp.Predicted, occurrenceResponse{
			RuleID:      occ.RuleID,
			Description: occ.Description,
			Amount:      core.FormatAmount(occ.Amount),
			Kind:        occ.Kind,
			Date:        occ.Date,
			CategoryID:  occ.CategoryID,
			AccountID:   occ.AccountID,
			Predicted:   occ.Predicted,
		})
	}
	return resp
}

func newProjectionResponse(p core.MonthProjection) projectionResponse {
	return projectionResponse{
		OwnerID: p.Owner,
		Year:    p.Year,
		Month:   p.Month,
		Income:  newKindProjectionResponse(p.Income),
		Expense: newKindProjectionResponse(p.Expense),
		Balance: core.FormatAmount(p.Balance()),
	}
}

type generateResponse struct {
	Created int     `json:"created"`
	Skipped []int64 `json:"skipped"`
	Failed  []int64 `json:"failed"`
}

func newGenerateResponse(report services.GenerationReport) generateResponse {
	resp := generateResponse{
		Created: len(report.Created),
		Skipped: report.Skipped,
		Failed:  report.Failed,
	}
	if resp.Skipped == nil {
		resp.Skipped = []int64{}
	}
	if resp.Failed == nil {
		resp.Failed = []int64{}
	}
	return resp
}

type statusResponse struct {
	Status string `json:"status"`
}
