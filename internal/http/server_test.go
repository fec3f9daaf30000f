package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mymoney/internal/core"
	"mymoney/internal/middleware/ratelimit"
	"mymoney/internal/services"
	"mymoney/internal/sheets/memory"
)

const testOwner int64 = 7

type recordingRequester struct {
	calls []MonthParams
}

func (r *recordingRequester) PublishGenerateRequest(_ context.Context, _ int64, year, month int) error {
	r.calls = append(r.calls, MonthParams{Year: year, Month: month})
	return nil
}

type testServer struct {
	*Server
	store   *memory.Store
	housing int64
	salary  int64
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	store := memory.New([]core.Category{
		{Owner: memory.SharedOwner, Name: "Housing", Kind: core.Expense},
		{Owner: memory.SharedOwner, Name: "Salary", Kind: core.Income},
	})
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) }
	}
	srv := NewServer(":0", store, services.NewEngine(store, nil), opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	ts := &testServer{Server: srv, store: store}
	cats, err := store.ListCategories(context.Background(), testOwner)
	require.NoError(t, err)
	for _, c := range cats {
		switch c.Name {
		case "Housing":
			ts.housing = c.ID
		case "Salary":
			ts.salary = c.ID
		}
	}
	return ts
}

func (ts *testServer) do(method, path string, owner int64, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if owner != 0 {
		req.Header.Set(HeaderOwnerID, strconv.FormatInt(owner, 10))
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createRule(t *testing.T, owner int64, body string) ruleResponse {
	t.Helper()
	rec := ts.do(http.MethodPost, "/recurrences", owner, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rule ruleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rule))
	return rule
}

func (ts *testServer) rentBody() string {
	return `{"description":"Rent","amount":"100.00","kind":"expense","cadence":"MONTHLY",` +
		`"due_day":5,"start_date":"2024-01-01","category_id":` + strconv.FormatInt(ts.housing, 10) + `}`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := ts.do(http.MethodGet, path, 0, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRequiresOwner(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(http.MethodGet, "/projection", 0, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/projection", nil)
	req.Header.Set(HeaderOwnerID, "abc")
	rec = httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProjectConsolidateFlow(t *testing.T) {
	ts := newTestServer(t, Options{})
	rule := ts.createRule(t, testOwner, ts.rentBody())
	assert.Equal(t, "100.00", rule.Amount)
	assert.Equal(t, "2024-07-05", rule.NextDueDate.String())

	rec := ts.do(http.MethodGet, "/projection?year=2024&month=6", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	proj := decode[projectionResponse](t, rec)
	require.Len(t, proj.Expense.Predicted, 1)
	assert.Equal(t, "Rent (Predicted)", proj.Expense.Predicted[0].Description)
	assert.Equal(t, "2024-06-05", proj.Expense.Predicted[0].Date.String())
	assert.True(t, proj.Expense.Predicted[0].Predicted)
	assert.Equal(t, "100.00", proj.Expense.ProjectedTotal)
	assert.Equal(t, "-100.00", proj.Balance)
	assert.Empty(t, proj.Income.Predicted)

	path := "/recurrences/" + strconv.FormatInt(rule.ID, 10) + "/consolidate?year=2024&month=6"
	rec = ts.do(http.MethodPost, path, testOwner, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := decode[transactionResponse](t, rec)
	assert.Equal(t, "Rent (Recurring)", tx.Description)
	assert.Equal(t, services.OriginTag(rule.ID, 2024, 6), tx.OriginTag)
	assert.False(t, tx.Imported)

	rec = ts.do(http.MethodPost, path, testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already_consolidated", decode[statusResponse](t, rec).Status)

	rec = ts.do(http.MethodGet, "/projection?year=2024&month=6", testOwner, "")
	proj = decode[projectionResponse](t, rec)
	assert.Empty(t, proj.Expense.Predicted)
	assert.Equal(t, "100.00", proj.Expense.ActualTotal)
	assert.Equal(t, "100.00", proj.Expense.ProjectedTotal)

	rec = ts.do(http.MethodGet, "/transactions?year=2024&month=6", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]transactionResponse](t, rec), 1)
}

func TestProjectionDefaultsToCurrentMonth(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.createRule(t, testOwner, ts.rentBody())

	rec := ts.do(http.MethodGet, "/projection", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	proj := decode[projectionResponse](t, rec)
	assert.Equal(t, 2024, proj.Year)
	assert.Equal(t, 6, proj.Month)
	assert.Len(t, proj.Expense.Predicted, 1)
}

func TestProjectionInvalidMonth(t *testing.T) {
	ts := newTestServer(t, Options{})
	for _, q := range []string{"month=13", "month=0", "month=abc", "year=x"} {
		rec := ts.do(http.MethodGet, "/projection?"+q, testOwner, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestConsolidateNotFound(t *testing.T) {
	ts := newTestServer(t, Options{})
	rule := ts.createRule(t, testOwner, ts.rentBody())

	rec := ts.do(http.MethodPost, "/recurrences/"+strconv.FormatInt(rule.ID, 10)+"/consolidate?year=2024&month=6", testOwner+1, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/recurrences/999/consolidate?year=2024&month=6", testOwner, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/recurrences/abc/consolidate", testOwner, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsolidateOutOfWindow(t *testing.T) {
	ts := newTestServer(t, Options{})
	rule := ts.createRule(t, testOwner, ts.rentBody())

	rec := ts.do(http.MethodPost, "/recurrences/"+strconv.FormatInt(rule.ID, 10)+"/consolidate?year=2023&month=12", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_applicable", decode[statusResponse](t, rec).Status)

	txs, err := ts.store.ListTransactions(context.Background(), testOwner, 2023, 12)
	require.NoError(t, err)
	assert.Empty(t, txs)

	quarterly := ts.createRule(t, testOwner, strings.Replace(ts.rentBody(), "MONTHLY", "QUARTERLY", 1))
	rec = ts.do(http.MethodPost, "/recurrences/"+strconv.FormatInt(quarterly.ID, 10)+"/consolidate?year=2024&month=2", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_applicable", decode[statusResponse](t, rec).Status)
}

func TestGenerate(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.createRule(t, testOwner, ts.rentBody())
	ts.createRule(t, testOwner, `{"description":"Salary","amount":"2000","kind":"INCOME","cadence":"MONTHLY",`+
		`"due_day":27,"start_date":"2024-01-01","category_id":`+strconv.FormatInt(ts.salary, 10)+`}`)

	rec := ts.do(http.MethodPost, "/recurrences/generate?year=2024&month=3", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[generateResponse](t, rec).Created)

	rec = ts.do(http.MethodPost, "/recurrences/generate?year=2024&month=3", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[generateResponse](t, rec)
	assert.Equal(t, 0, resp.Created)
	assert.Len(t, resp.Skipped, 2)

	rec = ts.do(http.MethodPost, "/recurrences/generate?month=13", testOwner, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateAsync(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(http.MethodPost, "/recurrences/generate?async=true", testOwner, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	requester := &recordingRequester{}
	ts = newTestServer(t, Options{Requester: requester})
	rec = ts.do(http.MethodPost, "/recurrences/generate?async=true&year=2024&month=2", testOwner, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, requester.calls, 1)
	assert.Equal(t, MonthParams{Year: 2024, Month: 2}, requester.calls[0])
}

func TestRuleCRUD(t *testing.T) {
	ts := newTestServer(t, Options{})
	rule := ts.createRule(t, testOwner, ts.rentBody())
	path := "/recurrences/" + strconv.FormatInt(rule.ID, 10)

	rec := ts.do(http.MethodGet, path, testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rent", decode[ruleResponse](t, rec).Description)

	rec = ts.do(http.MethodGet, path, testOwner+1, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	update := strings.Replace(ts.rentBody(), `"Rent"`, `"Rent flat"`, 1)
	update = strings.Replace(update, `"due_day":5`, `"due_day":31,"active":false`, 1)
	rec = ts.do(http.MethodPut, path, testOwner, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[ruleResponse](t, rec)
	assert.Equal(t, "Rent flat", updated.Description)
	assert.Equal(t, 31, updated.DueDay)
	assert.False(t, updated.Active)
	assert.True(t, updated.NextDueDate.IsZero())

	rec = ts.do(http.MethodGet, "/recurrences?active=false&q=flat", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ruleResponse](t, rec), 1)

	rec = ts.do(http.MethodGet, "/recurrences?kind=income", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]ruleResponse](t, rec))

	rec = ts.do(http.MethodGet, "/recurrences?kind=bogus", testOwner, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodDelete, path, testOwner+1, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodDelete, path, testOwner, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodGet, path, testOwner, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRuleValidation(t *testing.T) {
	ts := newTestServer(t, Options{})
	cat := strconv.FormatInt(ts.housing, 10)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"description":`, http.StatusBadRequest},
		{"unknown field", `{"foo":1}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"bad amount", `{"description":"A","amount":"-1","kind":"EXPENSE","cadence":"MONTHLY","due_day":1,"start_date":"2024-01-01","category_id":` + cat + `}`, http.StatusUnprocessableEntity},
		{"due day zero", `{"description":"A","amount":"1","kind":"EXPENSE","cadence":"MONTHLY","due_day":0,"start_date":"2024-01-01","category_id":` + cat + `}`, http.StatusUnprocessableEntity},
		{"end before start", `{"description":"A","amount":"1","kind":"EXPENSE","cadence":"MONTHLY","due_day":1,"start_date":"2024-01-01","end_date":"2023-01-01","category_id":` + cat + `}`, http.StatusUnprocessableEntity},
		{"missing start date", `{"description":"A","amount":"1","kind":"EXPENSE","cadence":"MONTHLY","due_day":1,"category_id":` + cat + `}`, http.StatusUnprocessableEntity},
		{"bad cadence", `{"description":"A","amount":"1","kind":"EXPENSE","cadence":"WEEKLY","due_day":1,"start_date":"2024-01-01","category_id":` + cat + `}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"description":"A","amount":"1","kind":"EXPENSE","cadence":"MONTHLY","due_day":1,"start_date":"2024-01-01","category_id":999}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/recurrences", testOwner, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/categories?kind=income", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[[]categoryResponse](t, rec)
	require.Len(t, cats, 1)
	assert.Equal(t, "Salary", cats[0].Name)
	assert.True(t, cats[0].Shared)

	rec = ts.do(http.MethodPost, "/categories", testOwner, `{"name":"Gym","kind":"expense"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.False(t, decode[categoryResponse](t, rec).Shared)

	// The cached listing is dropped on create.
	rec = ts.do(http.MethodGet, "/categories?kind=expense", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]categoryResponse](t, rec), 2)

	rec = ts.do(http.MethodPost, "/categories", testOwner, `{"name":"","kind":"expense"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodPost, "/accounts", testOwner, `{"name":"Checking","bank":"ACME"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	account := decode[accountResponse](t, rec)

	rec = ts.do(http.MethodGet, "/accounts", testOwner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]accountResponse](t, rec), 1)

	rec = ts.do(http.MethodGet, "/accounts", testOwner+1, "")
	assert.Empty(t, decode[[]accountResponse](t, rec))

	body := strings.TrimSuffix(ts.rentBody(), "}") + `,"account_id":` + strconv.FormatInt(account.ID, 10) + `}`
	rule := ts.createRule(t, testOwner, body)
	require.NotNil(t, rule.AccountID)
	assert.Equal(t, account.ID, *rule.AccountID)
}

func TestMiddlewareStack(t *testing.T) {
	ts := newTestServer(t, Options{RateLimit: ratelimit.Config{RequestsPerWindow: 1, Window: time.Hour}})

	rec := ts.do(http.MethodGet, "/healthz", 0, "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = ts.do(http.MethodPost, "/accounts", testOwner, `{"name":"A"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(http.MethodPost, "/accounts", testOwner, `{"name":"B"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = ts.do(http.MethodGet, "/accounts", testOwner, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/.git/config", testOwner, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
