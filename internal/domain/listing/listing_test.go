package listing

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDescriptor = Descriptor{
	Name:          "allowances",
	Entity:        "allowance",
	From:          "payroll_allowances a",
	IDColumn:      "a.id",
	ScopeColumn:   "a.employee_id",
	ScopeRequired: true,
	SearchColumns: []string{"a.description", "a.notes"},
	TypeColumn:    "a.type",
	TypeValues:    []string{"house", "transport"},
	StatusColumn:  "a.status",
	StatusValues:  []string{"active", "inactive"},
	SortColumns:   map[string]string{"amount": "a.amount", "effective_date": "a.effective_date"},
	DefaultSort:   "effective_date",
	DefaultDir:    SortDesc,
	ExportColumn:  "a.effective_date",
}

// sliceSource pages over a fixed list of ids.
type sliceSource struct {
	ids   []string
	calls int
}

func (s *sliceSource) Page(_ context.Context, q Query) (PageResult, error) {
	s.calls++
	end := q.Offset + q.Limit
	if q.Offset > len(s.ids) {
		return PageResult{Items: []string{}, Total: len(s.ids)}, nil
	}
	if end > len(s.ids) {
		end = len(s.ids)
	}
	page := append([]string(nil), s.ids[q.Offset:end]...)
	return PageResult{Items: page, IDs: page, Total: len(s.ids)}, nil
}

func (s *sliceSource) MatchingIDs(_ context.Context, _ Filter, limit int) ([]string, error) {
	if limit > 0 && limit < len(s.ids) {
		return append([]string(nil), s.ids[:limit]...), nil
	}
	return append([]string(nil), s.ids...), nil
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("id-%02d", i+1)
	}
	return out
}

func TestSortByTogglesAndResetsPage(t *testing.T) {
	state := NewViewState(testDescriptor)
	state.Page = 3

	require.NoError(t, state.SortBy(testDescriptor, "amount"))
	assert.Equal(t, "amount", state.SortField)
	assert.Equal(t, SortAsc, state.SortDirection)
	assert.Equal(t, 1, state.Page)

	state.SetPage(2)
	require.NoError(t, state.SortBy(testDescriptor, "amount"))
	assert.Equal(t, SortDesc, state.SortDirection)
	assert.Equal(t, 1, state.Page)

	assert.ErrorIs(t, state.SortBy(testDescriptor, "password"), ErrInvalidSortField)
}

func TestFilterChangesResetPage(t *testing.T) {
	state := NewViewState(testDescriptor)

	state.SetPage(4)
	state.SetSearch("  rent ")
	assert.Equal(t, "rent", state.Search)
	assert.Equal(t, 1, state.Page)

	state.SetPage(4)
	require.NoError(t, state.SetFilterType(testDescriptor, "house"))
	assert.Equal(t, 1, state.Page)

	state.SetPage(4)
	require.NoError(t, state.SetFilterStatus(testDescriptor, ""))
	assert.Equal(t, 1, state.Page)

	state.SetPage(4)
	require.NoError(t, state.SetPerPage(25))
	assert.Equal(t, 1, state.Page)

	assert.ErrorIs(t, state.SetPerPage(30), ErrInvalidPerPage)
	assert.ErrorIs(t, state.SetFilterType(testDescriptor, "yacht"), ErrInvalidFilter)
	assert.ErrorIs(t, state.SetFilterStatus(testDescriptor, "deleted"), ErrInvalidFilter)
}

func TestSetPageKeepsSelection(t *testing.T) {
	src := &sliceSource{ids: ids(25)}
	state := NewViewState(testDescriptor)
	_, err := Derive(context.Background(), src, "emp", &state)
	require.NoError(t, err)
	state.ToggleSelectAll()
	assert.True(t, state.SelectAll())

	state.SetPage(2)
	res, err := Derive(context.Background(), src, "emp", &state)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Page)
	assert.False(t, res.SelectAll)
	assert.Equal(t, 10, res.SelectedCount)
}

func TestToggleSelectAll(t *testing.T) {
	state := NewViewState(testDescriptor)
	assert.False(t, state.SelectAll(), "empty page is never all selected")

	state.PageIDs = []string{"a", "b", "c"}
	state.Selected = []string{"x", "b"}
	state.ToggleSelectAll()
	assert.Equal(t, []string{"x", "b", "a", "c"}, state.Selected)
	assert.True(t, state.SelectAll())

	state.ToggleSelectAll()
	assert.Equal(t, []string{"x"}, state.Selected)
	assert.False(t, state.SelectAll())
}

func TestToggleSelected(t *testing.T) {
	state := NewViewState(testDescriptor)
	state.ToggleSelected("a")
	state.ToggleSelected("b")
	state.ToggleSelected("a")
	assert.Equal(t, []string{"b"}, state.Selected)
}

func TestSelectAllDataRespectsCap(t *testing.T) {
	src := &sliceSource{ids: ids(12)}
	state := NewViewState(testDescriptor)

	require.NoError(t, SelectAllData(context.Background(), src, "emp", &state, 20))
	assert.Len(t, state.Selected, 12)

	state.ClearSelection()
	err := SelectAllData(context.Background(), src, "emp", &state, 5)
	assert.ErrorIs(t, err, ErrSelectionTooLarge)
	assert.Empty(t, state.Selected)

	require.NoError(t, state.SelectAllData([]string{"a", "a", "b"}, 0))
	assert.Equal(t, []string{"a", "b"}, state.Selected)
}

func TestDeriveClampsPagePastEnd(t *testing.T) {
	src := &sliceSource{ids: ids(12)}
	state := NewViewState(testDescriptor)
	state.SetPage(5)

	res, err := Derive(context.Background(), src, "emp", &state)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 2, res.LastPage)
	assert.Equal(t, []string{"id-11", "id-12"}, state.PageIDs)
	assert.Equal(t, 2, src.calls)
}

func TestDeriveEmptyResultIsNotAnError(t *testing.T) {
	state := NewViewState(testDescriptor)
	res, err := Derive(context.Background(), &sliceSource{}, "emp", &state)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 1, res.LastPage)
	assert.False(t, res.SelectAll)
	assert.NotNil(t, state.PageIDs)
}

func TestDeriveEmptyResultResetsToFirstPage(t *testing.T) {
	state := NewViewState(testDescriptor)
	state.Page = 3
	res, err := Derive(context.Background(), &sliceSource{}, "emp", &state)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 1, res.LastPage)
	assert.Equal(t, 1, state.Page)
}

func TestWhereCombinesFiltersWithAnd(t *testing.T) {
	where, args := testDescriptor.Where(Filter{Scope: "emp-1", Search: "50%_off", FilterType: "house", FilterStatus: "active"}, nil)
	assert.Equal(t,
		` WHERE a.employee_id::text = $1 AND (a.description ILIKE $2 ESCAPE '\' OR a.notes ILIKE $2 ESCAPE '\') AND a.type = $3 AND a.status = $4`,
		where)
	assert.Equal(t, []any{"emp-1", `%50\%\_off%`, "house", "active"}, args)
}

func TestWhereGlobalCollection(t *testing.T) {
	d := testDescriptor
	d.ScopeColumn = ""
	where, args := d.Where(Filter{}, nil)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestOrderByIsWhitelisted(t *testing.T) {
	assert.Equal(t, " ORDER BY a.amount ASC, a.id ASC", testDescriptor.OrderBy("amount", "asc"))
	assert.Equal(t, " ORDER BY a.effective_date DESC, a.id DESC", testDescriptor.OrderBy("amount; DROP TABLE x", ""))
}

func TestPageSQLPlaceholders(t *testing.T) {
	state := NewViewState(testDescriptor)
	state.SetSearch("rent")
	state.SetPage(3)
	sql, args := testDescriptor.PageSQL("a.id", QueryFor(state, "emp-1"))
	assert.True(t, strings.HasSuffix(sql, "LIMIT $3 OFFSET $4"), sql)
	assert.Equal(t, []any{"emp-1", "%rent%", 10, 20}, args)
}

func TestSelectedSQL(t *testing.T) {
	sql, args := testDescriptor.SelectedSQL("a.id", "emp-1", []string{"x", "y"})
	assert.Contains(t, sql, "a.employee_id::text = $1 AND a.id::text = ANY($2)")
	assert.Contains(t, sql, "ORDER BY a.effective_date DESC, a.id DESC")
	assert.Equal(t, []any{"emp-1", []string{"x", "y"}}, args)
}

func TestIDsSQLLimit(t *testing.T) {
	sql, args := testDescriptor.IDsSQL(Filter{Scope: "emp-1"}, 101)
	assert.True(t, strings.HasSuffix(sql, "LIMIT $2"), sql)
	assert.Equal(t, []any{"emp-1", 101}, args)
}

func TestSessionsIsolatedAndSwept(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s := NewSessions(time.Minute)
	s.now = func() time.Time { return now }

	_, err := s.Update("sess-a", "allowances", "emp-1", testDescriptor, func(v *ViewState) error {
		v.ToggleSelected("r1")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"r1"}, s.Get("sess-a", "allowances", "emp-1", testDescriptor).Selected)
	assert.Empty(t, s.Get("sess-b", "allowances", "emp-1", testDescriptor).Selected)
	assert.Empty(t, s.Get("sess-a", "allowances", "emp-2", testDescriptor).Selected)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Len())
}

func TestSessionsUpdateErrorLeavesStateUntouched(t *testing.T) {
	s := NewSessions(time.Minute)
	s.Put("sess", "allowances", "emp", ViewState{Page: 2, PerPage: 10})
	_, err := s.Update("sess", "allowances", "emp", testDescriptor, func(v *ViewState) error {
		v.Page = 9
		return ErrInvalidPerPage
	})
	assert.ErrorIs(t, err, ErrInvalidPerPage)
	assert.Equal(t, 2, s.Get("sess", "allowances", "emp", testDescriptor).Page)
}

func TestConfirmationsSingleUseAndSessionBound(t *testing.T) {
	c := NewConfirmations(time.Minute)
	p := c.Request("sess-a", "deactivate_allowance", "allowances", "emp-1", []string{"r1"})
	assert.Equal(t, 1, p.Count)

	_, err := c.Take("sess-b", p.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)

	got, err := c.Take("sess-a", p.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, got.IDs)

	_, err = c.Take("sess-a", p.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
}

func TestConfirmationsExpire(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	c := NewConfirmations(time.Minute)
	c.now = func() time.Time { return now }
	expired := c.Request("s", "a", "v", "", []string{"1"})
	kept := c.Request("s", "a", "v", "", []string{"2"})
	_ = kept

	now = now.Add(2 * time.Minute)
	_, err := c.Take("s", expired.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
	assert.Equal(t, 1, c.Sweep())
}

func TestConfirmationsCarryParam(t *testing.T) {
	c := NewConfirmations(time.Minute)
	p := c.RequestParam("s", "bulk_status_application", "applications", "", "shortlisted", []string{"a1", "a2"})
	got, err := c.Take("s", p.Token)
	require.NoError(t, err)
	assert.Equal(t, "shortlisted", got.Param)
	assert.Equal(t, 2, got.Count)
}

func TestConfirmationsDropSession(t *testing.T) {
	c := NewConfirmations(time.Minute)
	mine := c.Request("s1", "delete_payroll", "payrolls", "e1", []string{"p1"})
	theirs := c.Request("s2", "delete_payroll", "payrolls", "e1", []string{"p2"})
	c.DropSession("s1")

	_, err := c.Take("s1", mine.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
	_, err = c.Take("s2", theirs.Token)
	assert.NoError(t, err)
}
