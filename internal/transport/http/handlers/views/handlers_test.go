package viewshandler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/transport/http/middleware"
)

var testDescriptor = listing.Descriptor{
	Name:          "allowances",
	Entity:        "allowance",
	From:          "payroll_allowances a",
	IDColumn:      "a.id",
	ScopeColumn:   "a.employee_id",
	ScopeRequired: true,
	TypeColumn:    "a.type",
	TypeValues:    []string{"house"},
	StatusColumn:  "a.status",
	StatusValues:  []string{"active", "inactive"},
	SortColumns:   map[string]string{"amount": "a.amount", "effective_date": "a.effective_date"},
	DefaultSort:   "effective_date",
	DefaultDir:    listing.SortDesc,
}

type idSource struct{ ids []string }

func (s idSource) Page(_ context.Context, q listing.Query) (listing.PageResult, error) {
	start := min(q.Offset, len(s.ids))
	end := min(q.Offset+q.Limit, len(s.ids))
	page := append([]string{}, s.ids[start:end]...)
	return listing.PageResult{Items: page, IDs: page, Total: len(s.ids)}, nil
}

func (s idSource) MatchingIDs(_ context.Context, _ listing.Filter, limit int) ([]string, error) {
	if limit > 0 && limit < len(s.ids) {
		return append([]string{}, s.ids[:limit]...), nil
	}
	return append([]string{}, s.ids...), nil
}

type allowAll map[string]bool

func (a allowAll) HasPermission(_ context.Context, roleID, _ string) (bool, error) {
	return a[roleID], nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
	Notice *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"notice"`
}

type viewResult struct {
	Total         int               `json:"total"`
	Page          int               `json:"page"`
	SelectAll     bool              `json:"selectAll"`
	SelectedCount int               `json:"selectedCount"`
	State         listing.ViewState `json:"state"`
}

type harness struct {
	reg    *Registry
	router chi.Router
	ran    [][]string
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("r%02d", i+1)
	}
	return out
}

func newHarness(t *testing.T, rows int, selectionCap int) *harness {
	t.Helper()
	h := &harness{}
	h.reg = NewRegistry(listing.NewSessions(time.Hour), listing.NewConfirmations(time.Minute), allowAll{"r-hr": true}, nil, selectionCap)
	h.reg.Register(View{Descriptor: testDescriptor, Source: idSource{ids: ids(rows)}, Permission: auth.PermPayrollRead})
	h.reg.Handle("bulk_deactivate_allowance", Action{
		Permission: auth.PermPayrollWrite,
		Run: func(_ context.Context, actor audit.Actor, p listing.Pending) (Outcome, error) {
			h.ran = append(h.ran, p.IDs)
			return Outcome{Data: map[string]int{"changed": len(p.IDs)}, Message: "Deactivated."}, nil
		},
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			session := req.Header.Get("X-Test-Session")
			if session == "" {
				next.ServeHTTP(w, req)
				return
			}
			role := req.Header.Get("X-Test-Role")
			if role == "" {
				role = "r-hr"
			}
			user := auth.UserContext{UserID: "u-" + session, RoleID: role, SessionID: session}
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
		})
	})
	h.reg.RegisterRoutes(r)
	r.Post("/test/bulk", func(w http.ResponseWriter, req *http.Request) {
		selected, err := h.reg.Selected(req, "allowances", "emp-1")
		require.NoError(t, err)
		h.reg.Confirm(w, req, "bulk_deactivate_allowance", "allowances", "emp-1", "", selected)
	})
	h.router = r
	return h
}

func (h *harness) do(t *testing.T, method, path, body, session string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("X-Test-Session", session)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func decodeResult(t *testing.T, env envelope) viewResult {
	t.Helper()
	var res viewResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res
}

func TestGetDerivesFirstPage(t *testing.T) {
	h := newHarness(t, 12, 0)
	rec, env := h.do(t, http.MethodGet, "/views/allowances?scope=emp-1", "", "s1")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, env)
	assert.Equal(t, 12, res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, ids(10), res.State.PageIDs)
	assert.Equal(t, "effective_date", res.State.SortField)
	assert.Equal(t, listing.SortDesc, res.State.SortDirection)
}

func TestViewGuards(t *testing.T) {
	h := newHarness(t, 3, 0)

	rec, _ := h.do(t, http.MethodGet, "/views/nope?scope=emp-1", "", "s1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := h.do(t, http.MethodGet, "/views/allowances", "", "s1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "scope_required", env.Error.Code)

	rec, _ = h.do(t, http.MethodGet, "/views/allowances?scope=emp-1", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/views/allowances?scope=emp-1", nil)
	req.Header.Set("X-Test-Session", "s1")
	req.Header.Set("X-Test-Role", "r-employee")
	forbidden := httptest.NewRecorder()
	h.router.ServeHTTP(forbidden, req)
	assert.Equal(t, http.StatusForbidden, forbidden.Code)
}

func TestSortTogglesDirection(t *testing.T) {
	h := newHarness(t, 30, 0)
	_, env := h.do(t, http.MethodPatch, "/views/allowances?scope=emp-1", `{"page":2}`, "s1")
	assert.Equal(t, 2, decodeResult(t, env).Page)

	_, env = h.do(t, http.MethodPost, "/views/allowances/sort?scope=emp-1", `{"field":"amount"}`, "s1")
	first := decodeResult(t, env)
	assert.Equal(t, "amount", first.State.SortField)
	assert.Equal(t, listing.SortAsc, first.State.SortDirection)
	assert.Equal(t, 1, first.Page)

	_, env = h.do(t, http.MethodPost, "/views/allowances/sort?scope=emp-1", `{"field":"amount"}`, "s1")
	second := decodeResult(t, env)
	assert.Equal(t, listing.SortDesc, second.State.SortDirection)

	rec, env := h.do(t, http.MethodPost, "/views/allowances/sort?scope=emp-1", `{"field":"notes"}`, "s1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_sort", env.Error.Code)
}

func TestPatchResetsPageOnlyOnChange(t *testing.T) {
	h := newHarness(t, 30, 0)
	h.do(t, http.MethodPatch, "/views/allowances?scope=emp-1", `{"page":3}`, "s1")

	_, env := h.do(t, http.MethodPatch, "/views/allowances?scope=emp-1", `{"filterStatus":""}`, "s1")
	assert.Equal(t, 3, decodeResult(t, env).Page)

	_, env = h.do(t, http.MethodPatch, "/views/allowances?scope=emp-1", `{"filterStatus":"active"}`, "s1")
	assert.Equal(t, 1, decodeResult(t, env).Page)

	rec, env := h.do(t, http.MethodPatch, "/views/allowances?scope=emp-1", `{"perPage":20}`, "s1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_per_page", env.Error.Code)

	rec, _ = h.do(t, http.MethodPatch, "/views/allowances?scope=emp-1", `{"colour":"red"}`, "s1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectPageTogglesAndDerivesSelectAll(t *testing.T) {
	h := newHarness(t, 12, 0)
	_, env := h.do(t, http.MethodPost, "/views/allowances/select-page?scope=emp-1", "", "s1")
	res := decodeResult(t, env)
	assert.True(t, res.SelectAll)
	assert.Equal(t, 10, res.SelectedCount)

	_, env = h.do(t, http.MethodPost, "/views/allowances/selection/r03?scope=emp-1", "", "s1")
	res = decodeResult(t, env)
	assert.False(t, res.SelectAll)
	assert.Equal(t, 9, res.SelectedCount)

	_, env = h.do(t, http.MethodPost, "/views/allowances/select-page?scope=emp-1", "", "s1")
	res = decodeResult(t, env)
	assert.True(t, res.SelectAll)
	assert.Equal(t, 10, res.SelectedCount)

	_, env = h.do(t, http.MethodPost, "/views/allowances/select-page?scope=emp-1", "", "s1")
	assert.Equal(t, 0, decodeResult(t, env).SelectedCount)
}

func TestSelectAllRespectsCap(t *testing.T) {
	h := newHarness(t, 12, 5)
	rec, env := h.do(t, http.MethodPost, "/views/allowances/select-all?scope=emp-1", "", "s1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "selection_too_large", env.Error.Code)

	h = newHarness(t, 12, 20)
	_, env = h.do(t, http.MethodPost, "/views/allowances/select-all?scope=emp-1", "", "s1")
	assert.Equal(t, 12, decodeResult(t, env).SelectedCount)

	_, env = h.do(t, http.MethodDelete, "/views/allowances/selection?scope=emp-1", "", "s1")
	assert.Equal(t, 0, decodeResult(t, env).SelectedCount)
}

func TestSelectionIsPerSession(t *testing.T) {
	h := newHarness(t, 5, 0)
	h.do(t, http.MethodPost, "/views/allowances/selection/r01?scope=emp-1", "", "s1")
	_, env := h.do(t, http.MethodGet, "/views/allowances?scope=emp-1", "", "s2")
	assert.Equal(t, 0, decodeResult(t, env).SelectedCount)
}

func TestBulkActionRunsOnlyAfterConfirmation(t *testing.T) {
	h := newHarness(t, 5, 0)
	for _, id := range []string{"r01", "r02", "r03"} {
		h.do(t, http.MethodPost, "/views/allowances/selection/"+id+"?scope=emp-1", "", "s1")
	}

	rec, env := h.do(t, http.MethodPost, "/test/bulk", "", "s1")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var pending listing.Pending
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	assert.Equal(t, 3, pending.Count)
	assert.Equal(t, "bulk_deactivate_allowance", pending.Action)
	assert.Empty(t, h.ran)

	rec, _ = h.do(t, http.MethodPost, "/confirmations/"+pending.Token, "", "s2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, h.ran)

	rec, env = h.do(t, http.MethodPost, "/confirmations/"+pending.Token, "", "s1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Notice)
	assert.Equal(t, "success", env.Notice.Type)
	assert.Equal(t, [][]string{{"r01", "r02", "r03"}}, h.ran)

	_, env = h.do(t, http.MethodGet, "/views/allowances?scope=emp-1", "", "s1")
	assert.Equal(t, 0, decodeResult(t, env).SelectedCount)

	rec, _ = h.do(t, http.MethodPost, "/confirmations/"+pending.Token, "", "s1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, h.ran, 1)
}

func TestConfirmRejectsEmptySelection(t *testing.T) {
	h := newHarness(t, 5, 0)
	rec, env := h.do(t, http.MethodPost, "/test/bulk", "", "s1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_selection", env.Error.Code)
}

func TestCancelDropsPendingAction(t *testing.T) {
	h := newHarness(t, 5, 0)
	h.do(t, http.MethodPost, "/views/allowances/selection/r01?scope=emp-1", "", "s1")
	_, env := h.do(t, http.MethodPost, "/test/bulk", "", "s1")
	var pending listing.Pending
	require.NoError(t, json.Unmarshal(env.Data, &pending))

	rec, env := h.do(t, http.MethodDelete, "/confirmations/"+pending.Token, "", "s1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "info", env.Notice.Type)

	rec, _ = h.do(t, http.MethodPost, "/confirmations/"+pending.Token, "", "s1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, h.ran)
}
