package export

import (
	"io"

	"hrdesk/internal/domain/listing"
)

// Set names the rows of an export: the explicit selection, or every row
// matching Filter when All is set.
type Set struct {
	All    bool
	IDs    []string
	Filter listing.Filter
}

// Emit writes one row and remembers its id.
type Emit func(id string, fields []string) error

// Stream writes header followed by every row each produces and returns the
// exported ids in output order.
func Stream(w io.Writer, header []string, each func(emit Emit) error) ([]string, error) {
	cw := NewWriter(w)
	if err := cw.Write(header); err != nil {
		return nil, err
	}
	ids := []string{}
	err := each(func(id string, fields []string) error {
		ids = append(ids, id)
		return cw.Write(fields)
	})
	if err != nil {
		return ids, err
	}
	return ids, cw.Flush()
}

// SQL selects the rows of the set from d within scope.
func (s Set) SQL(d listing.Descriptor, columns, scope string) (string, []any) {
	if s.All {
		f := s.Filter
		f.Scope = scope
		return d.ExportSQL(columns, f)
	}
	return d.SelectedSQL(columns, scope, s.IDs)
}
