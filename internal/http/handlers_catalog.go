package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mymoney/internal/cache"
	"mymoney/internal/core"
	applog "mymoney/internal/log"
)

type categoryResponse struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name"`
	Kind   core.Kind `json:"kind"`
	Color  string    `json:"color,omitempty"`
	Shared bool      `json:"shared"`
}

type accountResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Bank string `json:"bank,omitempty"`
}

func newCategoryResponse(c core.Category, owner int64) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Kind: c.Kind, Color: c.Color, Shared: c.Owner != owner}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, owner int64) {
	cats, err := s.listCategories(r.Context(), owner)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}

	kind := core.Kind(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("kind"))))
	resp := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		if kind != "" && c.Kind != kind {
			continue
		}
		resp = append(resp, newCategoryResponse(c, owner))
	}
	NewJSONResponse().Body(resp).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, owner int64) {
	var req categoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c := core.Category{
		Owner: owner,
		Name:  sanitizeInput(req.Name),
		Kind:  core.Kind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		Color: sanitizeInput(req.Color),
	}
	if err := c.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	created, err := s.store.CreateCategory(r.Context(), c)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.categories.Delete(ownerKey(owner))
	NewJSONResponse().Status(http.StatusCreated).Body(newCategoryResponse(created, owner)).Write(w)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, owner int64) {
	accounts, err := s.listAccounts(r.Context(), owner)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, accountResponse{ID: a.ID, Name: a.Name, Bank: a.Bank})
	}
	NewJSONResponse().Body(resp).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request, owner int64) {
	var req accountRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	a := core.Account{Owner: owner, Name: sanitizeInput(req.Name), Bank: sanitizeInput(req.Bank)}
	if err := a.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	created, err := s.store.CreateAccount(r.Context(), a)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.accounts.Delete(ownerKey(owner))
	NewJSONResponse().Status(http.StatusCreated).Body(accountResponse{ID: created.ID, Name: created.Name, Bank: created.Bank}).Write(w)
}

const catalogCacheSize = 256

func (s *Server) initCatalogCache(ttl time.Duration) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	categories := cache.NewLRUCache[[]core.Category](catalogCacheSize, ttl)
	accounts := cache.NewLRUCache[[]core.Account](catalogCacheSize, ttl)
	s.categories, s.accounts = categories, accounts

	s.caches = cache.NewManager(func(removed int) {
		s.logger.Debug("Expired catalog entries removed", "count", removed)
	})
	s.caches.Register(categories)
	s.caches.Register(accounts)
	s.caches.StartCleanup(ttl)
}

func ownerKey(owner int64) string {
	return strconv.FormatInt(owner, 10)
}

func (s *Server) listCategories(ctx context.Context, owner int64) ([]core.Category, error) {
	if cats, ok := s.categories.Get(ownerKey(owner)); ok {
		return cats, nil
	}
	cats, err := s.store.ListCategories(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.categories.Set(ownerKey(owner), cats)
	return cats, nil
}

func (s *Server) listAccounts(ctx context.Context, owner int64) ([]core.Account, error) {
	if accounts, ok := s.accounts.Get(ownerKey(owner)); ok {
		return accounts, nil
	}
	accounts, err := s.store.ListAccounts(ctx, owner)
	if err != nil {
		return nil, err
	}
	s.accounts.Set(ownerKey(owner), accounts)
	return accounts, nil
}
