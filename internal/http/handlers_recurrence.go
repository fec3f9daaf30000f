package http

import (
	"net/http"
	"strconv"

	applog "mymoney/internal/log"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request, owner int64) {
	filter, err := ParseRuleFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	rules, err := s.store.ListRules(r.Context(), owner, filter)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}

	today := s.ruleToday()
	resp := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, newRuleResponse(rule, today))
	}
	NewJSONResponse().Body(resp).Write(w)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request, owner int64) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	rule, err := s.store.GetRule(r.Context(), owner, id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(newRuleResponse(rule, s.ruleToday())).Write(w)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request, owner int64) {
	var req ruleRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rule, err := req.toRule(owner)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	created, err := s.store.CreateRule(r.Context(), rule)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Recurrence rule created",
		applog.FieldOwnerID, owner,
		applog.FieldRuleID, created.ID)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/recurrences/"+strconv.FormatInt(created.ID, 10)).
		Body(newRuleResponse(created, s.ruleToday())).
		Write(w)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request, owner int64) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req ruleRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rule, err := req.toRule(owner)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	rule.ID = id

	updated, err := s.store.UpdateRule(r.Context(), rule)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(newRuleResponse(updated, s.ruleToday())).Write(w)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request, owner int64) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if err := s.store.DeleteRule(r.Context(), owner, id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Recurrence rule deleted",
		applog.FieldOwnerID, owner,
		applog.FieldRuleID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
