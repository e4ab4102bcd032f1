package listing

import "strings"

// ViewState is the per-session query and selection state of one list view.
// SelectAll is derived from PageIDs and Selected and never stored on its own.
type ViewState struct {
	Search        string   `json:"search"`
	FilterType    string   `json:"filterType"`
	FilterStatus  string   `json:"filterStatus"`
	SortField     string   `json:"sortField"`
	SortDirection string   `json:"sortDirection"`
	PerPage       int      `json:"perPage"`
	Page          int      `json:"page"`
	Selected      []string `json:"selected"`
	PageIDs       []string `json:"pageIds"`
}

func NewViewState(d Descriptor) ViewState {
	dir := d.DefaultDir
	if dir == "" {
		dir = SortDesc
	}
	return ViewState{
		SortField:     d.DefaultSort,
		SortDirection: dir,
		PerPage:       PerPageOptions[0],
		Page:          1,
		Selected:      []string{},
	}
}

func (v ViewState) SelectAll() bool {
	if len(v.PageIDs) == 0 {
		return false
	}
	for _, id := range v.PageIDs {
		if !v.IsSelected(id) {
			return false
		}
	}
	return true
}

func (v ViewState) IsSelected(id string) bool {
	for _, s := range v.Selected {
		if s == id {
			return true
		}
	}
	return false
}

func (v *ViewState) SetSearch(search string) {
	v.Search = strings.TrimSpace(search)
	v.Page = 1
}

func (v *ViewState) SetFilterType(d Descriptor, value string) error {
	if !d.allowsType(value) {
		return ErrInvalidFilter
	}
	v.FilterType = value
	v.Page = 1
	return nil
}

func (v *ViewState) SetFilterStatus(d Descriptor, value string) error {
	if !d.allowsStatus(value) {
		return ErrInvalidFilter
	}
	v.FilterStatus = value
	v.Page = 1
	return nil
}

func (v *ViewState) SetPerPage(n int) error {
	for _, allowed := range PerPageOptions {
		if n == allowed {
			v.PerPage = n
			v.Page = 1
			return nil
		}
	}
	return ErrInvalidPerPage
}

func (v *ViewState) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	v.Page = n
}

// SortBy flips the direction when field is already the sort field, otherwise
// sorts ascending by field. The page always resets.
func (v *ViewState) SortBy(d Descriptor, field string) error {
	if !d.Sortable(field) {
		return ErrInvalidSortField
	}
	if v.SortField == field {
		if v.SortDirection == SortAsc {
			v.SortDirection = SortDesc
		} else {
			v.SortDirection = SortAsc
		}
	} else {
		v.SortField = field
		v.SortDirection = SortAsc
	}
	v.Page = 1
	return nil
}

func (v *ViewState) ToggleSelectAll() {
	if v.SelectAll() {
		v.Deselect(v.PageIDs...)
		return
	}
	for _, id := range v.PageIDs {
		v.add(id)
	}
}

func (v *ViewState) ToggleSelected(id string) {
	if v.IsSelected(id) {
		v.Deselect(id)
		return
	}
	v.add(id)
}

// SelectAllData replaces the selection with ids, which must already be every
// id matching the current filters. A non-positive limit disables the cap.
func (v *ViewState) SelectAllData(ids []string, limit int) error {
	if limit > 0 && len(ids) > limit {
		return ErrSelectionTooLarge
	}
	v.Selected = make([]string, 0, len(ids))
	for _, id := range ids {
		v.add(id)
	}
	return nil
}

func (v *ViewState) ClearSelection() {
	v.Selected = []string{}
}

func (v *ViewState) Deselect(ids ...string) {
	if len(ids) == 0 || len(v.Selected) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := v.Selected[:0]
	for _, id := range v.Selected {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	v.Selected = kept
}

func (v *ViewState) add(id string) {
	if id == "" || v.IsSelected(id) {
		return
	}
	v.Selected = append(v.Selected, id)
}

// Filter returns the query part of the state for the given scope.
func (v ViewState) Filter(scope string) Filter {
	return Filter{
		Scope:        scope,
		Search:       v.Search,
		FilterType:   v.FilterType,
		FilterStatus: v.FilterStatus,
	}
}

func (v ViewState) clone() ViewState {
	out := v
	out.Selected = append([]string{}, v.Selected...)
	out.PageIDs = append([]string(nil), v.PageIDs...)
	return out
}
