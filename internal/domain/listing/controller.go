package listing

import "context"

type PageResult struct {
	Items any
	IDs   []string
	Total int
}

// Source is implemented by each collection's store.
type Source interface {
	Page(ctx context.Context, q Query) (PageResult, error)
	MatchingIDs(ctx context.Context, f Filter, limit int) ([]string, error)
}

type Result struct {
	Items         any       `json:"items"`
	Total         int       `json:"total"`
	Page          int       `json:"page"`
	PerPage       int       `json:"perPage"`
	LastPage      int       `json:"lastPage"`
	SelectAll     bool      `json:"selectAll"`
	SelectedCount int       `json:"selectedCount"`
	State         ViewState `json:"state"`
}

// Derive loads the current page for state and records its ids on the state.
// A page past the end (for example after deletions) is pulled back to the
// last page.
func Derive(ctx context.Context, src Source, scope string, state *ViewState) (Result, error) {
	if state.PerPage <= 0 {
		state.PerPage = PerPageOptions[0]
	}
	if state.Page < 1 {
		state.Page = 1
	}
	res, err := src.Page(ctx, QueryFor(*state, scope))
	if err != nil {
		return Result{}, err
	}
	last := lastPage(res.Total, state.PerPage)
	if state.Page > last {
		state.Page = last
		if res.Total > 0 {
			res, err = src.Page(ctx, QueryFor(*state, scope))
			if err != nil {
				return Result{}, err
			}
		}
	}
	state.PageIDs = res.IDs
	if state.PageIDs == nil {
		state.PageIDs = []string{}
	}
	if state.Selected == nil {
		state.Selected = []string{}
	}
	return Result{
		Items:         res.Items,
		Total:         res.Total,
		Page:          state.Page,
		PerPage:       state.PerPage,
		LastPage:      last,
		SelectAll:     state.SelectAll(),
		SelectedCount: len(state.Selected),
		State:         state.clone(),
	}, nil
}

// SelectAllData selects every id matching the state's filters, refusing when
// more than limit rows match.
func SelectAllData(ctx context.Context, src Source, scope string, state *ViewState, limit int) error {
	fetch := 0
	if limit > 0 {
		fetch = limit + 1
	}
	ids, err := src.MatchingIDs(ctx, state.Filter(scope), fetch)
	if err != nil {
		return err
	}
	return state.SelectAllData(ids, limit)
}

func lastPage(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}
