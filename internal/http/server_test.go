package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockbudget/internal/budget"
	"blockbudget/internal/core"
	"blockbudget/internal/services"
	"blockbudget/internal/storage/memory"
)

// countingBudget counts analyses that reach the service.
type countingBudget struct {
	*services.BudgetService
	analyses int
	failList bool
	// afterAnalyze runs once the analysis is computed, before it is returned.
	afterAnalyze func()
}

func (c *countingBudget) AnalyzeMonth(ctx context.Context, userID string, month core.Month) (budget.Analysis, error) {
	c.analyses++
	a, err := c.BudgetService.AnalyzeMonth(ctx, userID, month)
	if c.afterAnalyze != nil {
		hook := c.afterAnalyze
		c.afterAnalyze = nil
		hook()
	}
	return a, err
}

func (c *countingBudget) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	if c.failList {
		return nil, errors.New("disk on fire")
	}
	return c.BudgetService.ListExpenses(ctx, userID)
}

type testServer struct {
	t      *testing.T
	srv    *Server
	budget *countingBudget
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	b := &countingBudget{BudgetService: services.NewBudgetService(memory.New(), nil)}
	srv := NewServer(":0", b, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{t: t, srv: srv, budget: b}
}

func (ts *testServer) do(method, path, user, body string) *httptest.ResponseRecorder {
	ts.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(headerUserID, user)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) createCategory(user, name, amount string) categoryResponse {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/categories", user, `{"name":"`+name+`","monthly_budget":`+amount+`}`)
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[categoryResponse](ts.t, rec)
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, Options{})
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/readyz", "", "").Code)

	failing := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("db down") }})
	assert.Equal(t, http.StatusServiceUnavailable, failing.do(http.MethodGet, "/readyz", "", "").Code)
}

func TestAPI_RequiresUser(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/api/categories", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/api/categories", "   ", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_SecurityHeaders(t *testing.T) {
	ts := newTestServer(t, Options{})
	rec := ts.do(http.MethodGet, "/api/categories", "u1", "")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCategories_CRUD(t *testing.T) {
	ts := newTestServer(t, Options{})

	c := ts.createCategory("u1", "  rent ", `"1000,5"`)
	assert.Equal(t, "RENT", c.Name)
	assert.Equal(t, "1000.50", c.MonthlyBudget)

	ts.createCategory("u1", "food", `250`)

	list := decode[[]categoryResponse](t, ts.do(http.MethodGet, "/api/categories", "u1", ""))
	require.Len(t, list, 2)
	assert.Equal(t, "RENT", list[0].Name)
	assert.Empty(t, decode[[]categoryResponse](t, ts.do(http.MethodGet, "/api/categories", "u2", "")))

	rec := ts.do(http.MethodPatch, "/api/categories/"+c.ID, "u1", `{"monthly_budget":"1200"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[categoryResponse](t, rec)
	assert.Equal(t, "1200.00", updated.MonthlyBudget)
	assert.Equal(t, "RENT", updated.Name)

	rec = ts.do(http.MethodPost, "/api/categories/"+c.ID+"/archive", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[categoryResponse](t, rec).Archived)

	rec = ts.do(http.MethodPost, "/api/categories/"+c.ID+"/unarchive", "u1", "")
	assert.False(t, decode[categoryResponse](t, rec).Archived)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/categories/"+c.ID, "u1", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/categories/"+c.ID, "u1", "").Code)
}

func TestCategories_StatusCodes(t *testing.T) {
	ts := newTestServer(t, Options{})

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/categories", "u1", `{"name":`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/categories", "u1", `{"name":"a","extra":1}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, "/api/categories", "u1", `{"name":"","monthly_budget":"1"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, "/api/categories", "u1", `{"name":"x","monthly_budget":"-1"}`).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPatch, "/api/categories/missing", "u1", `{"name":"x"}`).Code)
}

func TestExpenses_RecordListDelete(t *testing.T) {
	ts := newTestServer(t, Options{})
	c := ts.createCategory("u1", "food", `"300"`)

	rec := ts.do(http.MethodPost, "/api/expenses", "u1",
		`{"category_id":"`+c.ID+`","amount":"12,345","note":"groceries","date":"2024-03-05"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	e := decode[expenseResponse](t, rec)
	assert.Equal(t, "12.35", e.Amount)
	assert.Equal(t, "2024-03-05", e.Date)

	rec = ts.do(http.MethodPost, "/api/expenses", "u1", `{"category_id":"nope","amount":"1","date":"2024-03-05"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodPost, "/api/expenses", "u1", `{"category_id":"`+c.ID+`","amount":"0","date":"2024-03-05"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	list := decode[[]expenseResponse](t, ts.do(http.MethodGet, "/api/expenses", "u1", ""))
	require.Len(t, list, 1)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/expenses/"+e.ID, "u1", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/expenses/"+e.ID, "u1", "").Code)
}

func TestExpenses_StoreFailureIs500(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.budget.failList = true

	rec := ts.do(http.MethodGet, "/api/expenses", "u1", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

func TestRecurring_CreateToggleDelete(t *testing.T) {
	ts := newTestServer(t, Options{})
	c := ts.createCategory("u1", "gym", `"30"`)

	rec := ts.do(http.MethodPost, "/api/recurring", "u1", `{"category_id":"`+c.ID+`","amount":30,"day_of_month":15}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rule := decode[recurringResponse](t, rec)
	assert.True(t, rule.Active)
	assert.Equal(t, 15, rule.DayOfMonth)

	rec = ts.do(http.MethodPost, "/api/recurring", "u1", `{"category_id":"`+c.ID+`","amount":30,"day_of_month":31}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(http.MethodPost, "/api/recurring/"+rule.ID+"/toggle", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[recurringResponse](t, rec).Active)

	assert.Len(t, decode[[]recurringResponse](t, ts.do(http.MethodGet, "/api/recurring", "u1", "")), 1)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/recurring/"+rule.ID, "u1", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/recurring/"+rule.ID+"/toggle", "u1", "").Code)
}

func TestIncome_SetAndClear(t *testing.T) {
	ts := newTestServer(t, Options{})

	assert.Nil(t, decode[incomeResponse](t, ts.do(http.MethodGet, "/api/income", "u1", "")).Income)

	rec := ts.do(http.MethodPut, "/api/income", "u1", `{"income":"3000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[incomeResponse](t, ts.do(http.MethodGet, "/api/income", "u1", ""))
	require.NotNil(t, got.Income)
	assert.Equal(t, "3000.00", *got.Income)

	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPut, "/api/income", "u1", `{"income":"abc"}`).Code)

	rec = ts.do(http.MethodPut, "/api/income", "u1", `{"income":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[incomeResponse](t, rec).Income)
}

func TestAnalysis(t *testing.T) {
	ts := newTestServer(t, Options{})
	c := ts.createCategory("u1", "rent", `"1000"`)
	ts.do(http.MethodPost, "/api/expenses", "u1", `{"category_id":"`+c.ID+`","amount":"1000","date":"2024-03-02"}`)
	ts.do(http.MethodPut, "/api/income", "u1", `{"income":"2500"}`)

	rec := ts.do(http.MethodGet, "/api/analysis?month=2024-03", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a := decode[analysisResponse](t, rec)

	assert.Equal(t, "2024-03", a.Month)
	require.Len(t, a.Rows, 1)
	assert.Equal(t, budget.StatusEven, a.Rows[0].Status)
	assert.Equal(t, "0.00", a.Rows[0].Delta)
	assert.Equal(t, "1000.00", a.TotalActual)
	assert.Equal(t, int64(40), a.PercentUsed)
	assert.Equal(t, "1500.00", a.Unallocated)
	assert.True(t, a.HasIncome)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/analysis?month=2024-13", "u1", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/analysis", "u1", "").Code)
}

func TestAnalysis_CachedUntilWrite(t *testing.T) {
	ts := newTestServer(t, Options{})
	c := ts.createCategory("u1", "food", `"100"`)

	ts.do(http.MethodGet, "/api/analysis?month=2024-03", "u1", "")
	ts.do(http.MethodGet, "/api/analysis?month=2024-03", "u1", "")
	assert.Equal(t, 1, ts.budget.analyses)

	// Another user's write leaves u1's entry alone.
	ts.createCategory("u2", "misc", `"5"`)
	ts.do(http.MethodGet, "/api/analysis?month=2024-03", "u1", "")
	assert.Equal(t, 1, ts.budget.analyses)

	// Failed writes do not invalidate.
	ts.do(http.MethodPost, "/api/expenses", "u1", `{"category_id":"`+c.ID+`","amount":"-1","date":"2024-03-01"}`)
	ts.do(http.MethodGet, "/api/analysis?month=2024-03", "u1", "")
	assert.Equal(t, 1, ts.budget.analyses)

	ts.do(http.MethodPost, "/api/expenses", "u1", `{"category_id":"`+c.ID+`","amount":"150","date":"2024-03-01"}`)
	a := decode[analysisResponse](t, ts.do(http.MethodGet, "/api/analysis?month=2024-03", "u1", ""))
	assert.Equal(t, 2, ts.budget.analyses)
	assert.Equal(t, budget.StatusOver, a.Rows[0].Status)
}

func TestAnalysis_WriteDuringAnalysisIsNotCached(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.createCategory("u1", "food", `"100"`)

	ts.budget.afterAnalyze = func() {
		rec := ts.do(http.MethodPut, "/api/income", "u1", `{"income":"3000"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	first := decode[analysisResponse](t, ts.do(http.MethodGet, "/api/analysis?month=2024-03", "u1", ""))
	assert.False(t, first.HasIncome)

	second := decode[analysisResponse](t, ts.do(http.MethodGet, "/api/analysis?month=2024-03", "u1", ""))
	assert.Equal(t, 2, ts.budget.analyses)
	assert.True(t, second.HasIncome)
	assert.Equal(t, "2900.00", second.Unallocated)

	ts.do(http.MethodGet, "/api/analysis?month=2024-03", "u1", "")
	assert.Equal(t, 2, ts.budget.analyses)
}

func TestAnalysisCache_SetAfterInvalidateIsDropped(t *testing.T) {
	c := newAnalysisCache(10, time.Minute)
	march := core.Month{Year: 2024, Month: 3}

	gen := c.generation("u1")
	c.invalidate("u1")
	assert.False(t, c.set("u1", march, gen, budget.Analysis{HasIncome: true}))
	_, ok := c.get("u1", march)
	assert.False(t, ok)

	// Other users keep their generation.
	assert.True(t, c.set("u2", march, c.generation("u2"), budget.Analysis{}))
	assert.True(t, c.set("u1", march, c.generation("u1"), budget.Analysis{}))
	assert.Equal(t, 2, c.size())
}

func TestExportCSV(t *testing.T) {
	ts := newTestServer(t, Options{})
	c := ts.createCategory("u1", "food", `"100"`)
	ts.do(http.MethodPost, "/api/expenses", "u1", `{"category_id":"`+c.ID+`","amount":"9.5","note":"say \"hi\"","date":"2024-03-01"}`)

	rec := ts.do(http.MethodGet, "/api/export.csv", "u1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="blockbudget.csv"`)
	assert.Equal(t, "date,category,amount,note\n2024-03-01,FOOD,9.50,\"say \"\"hi\"\"\"\n", rec.Body.String())
}

func TestRateLimit_MutatingRequests(t *testing.T) {
	ts := newTestServer(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/categories", "u1", `{"name":"c","monthly_budget":"1"}`).Code)
	}
	rec := ts.do(http.MethodPost, "/api/categories", "u1", `{"name":"c","monthly_budget":"1"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/categories", "u1", "").Code)
}

func TestAmountField(t *testing.T) {
	tests := map[string]string{
		`"12,50"`: "12,50",
		`12.5`:    "12.5",
		`null`:    "",
		`""`:      "",
	}
	for in, want := range tests {
		var a amountField
		require.NoError(t, json.Unmarshal([]byte(in), &a), in)
		assert.Equal(t, want, string(a), in)
	}

	var a amountField
	assert.Error(t, json.Unmarshal([]byte(`true`), &a))
}
