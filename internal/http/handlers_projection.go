package http

import (
	"errors"
	"net/http"
	"strconv"

	"mymoney/internal/core"
	applog "mymoney/internal/log"
	"mymoney/internal/services"
)

// handleProjection returns the predicted, actual and projected totals of a month.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request, owner int64) {
	params, err := ParseMonthParams(r.URL.Query(), s.today())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	summary, err := s.engine.Projector.Summarize(r.Context(), owner, params.Year, params.Month)
	if err != nil {
		s.fail(w, r, applog.OpProject, err)
		return
	}

	NewJSONResponse().Body(newProjectionResponse(summary)).Write(w)
}

// handleListTransactions returns the ledger of a month.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, owner int64) {
	params, err := ParseMonthParams(r.URL.Query(), s.today())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	txs, err := s.store.ListTransactions(r.Context(), owner, params.Year, params.Month)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}

	resp := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, newTransactionResponse(tx))
	}
	NewJSONResponse().Body(resp).Write(w)
}

// handleConsolidate materializes one occurrence of a rule. A repeated request
// answers 200 with already_consolidated; an out-of-window or off-cadence one
// answers 200 with not_applicable.
func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request, owner int64) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	params, err := ParseMonthParams(r.URL.Query(), s.today())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	rule, err := s.store.GetRule(r.Context(), owner, id)
	if err != nil {
		s.fail(w, r, applog.OpConsolidate, err)
		return
	}

	tx, err := s.engine.Consolidator.Consolidate(r.Context(), rule, params.Year, params.Month)
	if errors.Is(err, services.ErrNotApplicable) {
		status := "not_applicable"
		if due, _ := services.ShouldOccur(rule, params.Year, params.Month); due {
			status = "already_consolidated"
		}
		NewJSONResponse().Body(statusResponse{Status: status}).Write(w)
		return
	}
	if err != nil {
		s.fail(w, r, applog.OpConsolidate, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/transactions?year="+strconv.Itoa(tx.Date.Year())+"&month="+strconv.Itoa(tx.Date.Month())).
		Body(newTransactionResponse(tx)).
		Write(w)
}

// handleGenerate consolidates every active rule of the owner for a month.
// With async=true the work is queued on the message bus instead.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, owner int64) {
	params, err := ParseMonthParams(r.URL.Query(), s.today())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if s.requester == nil {
			ServiceUnavailableError("asynchronous generation is not configured").Write(w)
			return
		}
		if err := s.requester.PublishGenerateRequest(r.Context(), owner, params.Year, params.Month); err != nil {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to queue generate request",
				applog.FieldOwnerID, owner,
				applog.FieldError, err)
			ServiceUnavailableError("could not queue generate request").Write(w)
			return
		}
		NewJSONResponse().Status(http.StatusAccepted).Body(statusResponse{Status: "queued"}).Write(w)
		return
	}

	report, err := s.engine.Processor.GenerateReport(r.Context(), owner, params.Year, params.Month)
	if err != nil {
		s.fail(w, r, applog.OpGenerate, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Generated recurring transactions",
		append(applog.NewFields().WithPeriod(owner, params.Year, params.Month).ToSlice(),
			"created", len(report.Created))...)

	NewJSONResponse().Body(newGenerateResponse(report)).Write(w)
}

// ruleToday is the reference date for next-due computation.
func (s *Server) ruleToday() core.Date {
	t := s.today()
	return core.NewDate(t.Year(), int(t.Month()), t.Day())
}
