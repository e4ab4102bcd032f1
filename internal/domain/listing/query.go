package listing

import (
	"fmt"
	"strings"
)

type Filter struct {
	Scope        string
	Search       string
	FilterType   string
	FilterStatus string
}

type Query struct {
	Filter
	SortField     string
	SortDirection string
	Limit         int
	Offset        int
}

// QueryFor turns a view state into a paginated query.
func QueryFor(state ViewState, scope string) Query {
	perPage := state.PerPage
	if perPage <= 0 {
		perPage = PerPageOptions[0]
	}
	page := state.Page
	if page < 1 {
		page = 1
	}
	return Query{
		Filter:        state.Filter(scope),
		SortField:     state.SortField,
		SortDirection: state.SortDirection,
		Limit:         perPage,
		Offset:        (page - 1) * perPage,
	}
}

// Where builds the AND-combined WHERE clause for f, numbering placeholders
// after any args already present.
func (d Descriptor) Where(f Filter, args []any) (string, []any) {
	var conds []string
	if d.ScopeColumn != "" && (d.ScopeRequired || f.Scope != "") {
		args = append(args, f.Scope)
		conds = append(conds, fmt.Sprintf("%s::text = $%d", d.ScopeColumn, len(args)))
	}
	if search := strings.TrimSpace(f.Search); search != "" && len(d.SearchColumns) > 0 {
		args = append(args, "%"+EscapeLike(search)+"%")
		ors := make([]string, 0, len(d.SearchColumns))
		for _, col := range d.SearchColumns {
			ors = append(ors, fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, col, len(args)))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if f.FilterType != "" && d.TypeColumn != "" {
		args = append(args, f.FilterType)
		conds = append(conds, fmt.Sprintf("%s = $%d", d.TypeColumn, len(args)))
	}
	if f.FilterStatus != "" && d.StatusColumn != "" {
		args = append(args, f.FilterStatus)
		conds = append(conds, fmt.Sprintf("%s = $%d", d.StatusColumn, len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// OrderBy only emits whitelisted columns; unknown fields fall back to the
// default sort. The id column breaks ties so pages are stable.
func (d Descriptor) OrderBy(field, direction string) string {
	col, ok := d.SortColumns[field]
	if !ok {
		col, ok = d.SortColumns[d.DefaultSort]
		if !ok {
			col = d.IDColumn
		}
		if direction == "" {
			direction = d.DefaultDir
		}
	}
	dir := "ASC"
	if strings.EqualFold(direction, SortDesc) {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s %s", col, dir, d.IDColumn, dir)
}

func (d Descriptor) CountSQL(f Filter) (string, []any) {
	where, args := d.Where(f, nil)
	return "SELECT COUNT(1) FROM " + d.From + where, args
}

func (d Descriptor) PageSQL(columns string, q Query) (string, []any) {
	where, args := d.Where(q.Filter, nil)
	sql := "SELECT " + columns + " FROM " + d.From + where + d.OrderBy(q.SortField, q.SortDirection)
	args = append(args, q.Limit, q.Offset)
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return sql, args
}

// IDsSQL selects the ids of every matching row. limit <= 0 means no limit.
func (d Descriptor) IDsSQL(f Filter, limit int) (string, []any) {
	where, args := d.Where(f, nil)
	sql := "SELECT " + d.IDColumn + "::text FROM " + d.From + where + d.OrderBy(d.DefaultSort, d.DefaultDir)
	if limit > 0 {
		args = append(args, limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return sql, args
}

// ExportSQL selects every matching row ordered by the export column, newest first.
func (d Descriptor) ExportSQL(columns string, f Filter) (string, []any) {
	where, args := d.Where(f, nil)
	return "SELECT " + columns + " FROM " + d.From + where + d.exportOrder(), args
}

// SelectedSQL selects the rows with the given ids inside the scope.
func (d Descriptor) SelectedSQL(columns, scope string, ids []string) (string, []any) {
	where, args := d.Where(Filter{Scope: scope}, nil)
	args = append(args, ids)
	cond := fmt.Sprintf("%s::text = ANY($%d)", d.IDColumn, len(args))
	if where == "" {
		where = " WHERE " + cond
	} else {
		where += " AND " + cond
	}
	return "SELECT " + columns + " FROM " + d.From + where + d.exportOrder(), args
}

func (d Descriptor) exportOrder() string {
	col := d.ExportColumn
	if col == "" {
		col = d.IDColumn
	}
	return fmt.Sprintf(" ORDER BY %s DESC, %s DESC", col, d.IDColumn)
}

// EscapeLike escapes LIKE metacharacters so search text matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
