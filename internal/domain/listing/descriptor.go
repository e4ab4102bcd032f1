package listing

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

var PerPageOptions = []int{10, 25, 50}

// Descriptor describes one listable collection: which columns can be
// searched, filtered and sorted, and how exports are ordered.
type Descriptor struct {
	Name   string
	Entity string
	// From is the FROM clause including joins, e.g. "payroll_allowances a JOIN employees e ON ...".
	From     string
	IDColumn string
	// ScopeColumn restricts rows to one owner (employee or advert). Empty for global collections.
	ScopeColumn   string
	ScopeRequired bool
	SearchColumns []string
	TypeColumn    string
	TypeValues    []string
	StatusColumn  string
	StatusValues  []string
	SortColumns   map[string]string
	DefaultSort   string
	DefaultDir    string
	ExportColumn  string
}

func (d Descriptor) Sortable(field string) bool {
	_, ok := d.SortColumns[field]
	return ok
}

func (d Descriptor) allowsType(value string) bool {
	return value == "" || contains(d.TypeValues, value)
}

func (d Descriptor) allowsStatus(value string) bool {
	return value == "" || contains(d.StatusValues, value)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
