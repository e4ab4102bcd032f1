package listing

import "errors"

var (
	ErrUnknownView          = errors.New("unknown view")
	ErrInvalidSortField     = errors.New("field is not sortable")
	ErrInvalidFilter        = errors.New("filter value not allowed")
	ErrInvalidPerPage       = errors.New("per page must be one of 10, 25, 50")
	ErrSelectionTooLarge    = errors.New("selection exceeds the allowed maximum")
	ErrEmptySelection       = errors.New("no records selected")
	ErrScopeRequired        = errors.New("view requires a scope")
	ErrConfirmationNotFound = errors.New("confirmation not found or expired")
)
