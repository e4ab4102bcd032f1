package adjustment

import (
	"errors"
	"time"

	"hrdesk/internal/domain/export"
	"hrdesk/internal/platform/validate"
)

var (
	ErrNotFound    = errors.New("adjustment not found")
	ErrInactive    = errors.New("inactive records cannot be edited")
	ErrUnknownKind = errors.New("unknown adjustment kind")
)

type Kind string

const (
	Allowance Kind = "allowance"
	Deduction Kind = "deduction"
)

var (
	AllowanceTypes = []string{"house", "transport", "medical", "overtime", "bonus", "other"}
	DeductionTypes = []string{"insurance", "loan", "tax", "pension", "other"}
)

func ParseKind(view string) (Kind, error) {
	switch view {
	case "allowance", "allowances":
		return Allowance, nil
	case "deduction", "deductions":
		return Deduction, nil
	}
	return "", ErrUnknownKind
}

func (k Kind) Types() []string {
	if k == Deduction {
		return DeductionTypes
	}
	return AllowanceTypes
}

func (k Kind) Table() string {
	if k == Deduction {
		return "payroll_deductions"
	}
	return "payroll_allowances"
}

// View is the plural collection name used for list views and export files.
func (k Kind) View() string {
	return string(k) + "s"
}

func (k Kind) label() string {
	if k == Deduction {
		return "Deduction"
	}
	return "Allowance"
}

// Status is the two-state soft-delete lifecycle.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

var Statuses = []string{string(StatusActive), string(StatusInactive)}

func (s Status) CanEdit() bool {
	return s == StatusActive
}

// Deactivate returns the next status and whether it differs from s.
func (s Status) Deactivate() (Status, bool) {
	if s == StatusActive {
		return StatusInactive, true
	}
	return s, false
}

func (s Status) Reactivate() (Status, bool) {
	if s == StatusInactive {
		return StatusActive, true
	}
	return s, false
}

type Adjustment struct {
	ID            string     `json:"id"`
	Kind          Kind       `json:"kind"`
	EmployeeID    string     `json:"employeeId"`
	EmployeeName  string     `json:"employeeName"`
	PayrollID     string     `json:"payrollId,omitempty"`
	Type          string     `json:"type"`
	Description   string     `json:"description"`
	Amount        float64    `json:"amount"`
	IsRecurring   bool       `json:"isRecurring"`
	EffectiveDate time.Time  `json:"effectiveDate"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	Notes         string     `json:"notes"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

const maxAmount = 9999999999.99

// Input is the create/update form.
type Input struct {
	Type          string   `json:"type"`
	Description   string   `json:"description"`
	Amount        *float64 `json:"amount"`
	IsRecurring   bool     `json:"isRecurring"`
	EffectiveDate string   `json:"effectiveDate"`
	EndDate       string   `json:"endDate"`
	Notes         string   `json:"notes"`
	PayrollID     string   `json:"payrollId"`
}

// Validate checks the form and returns the record fields it describes.
// Nothing is returned when any field is invalid.
func (in Input) Validate(kind Kind) (Adjustment, error) {
	v := validate.New()
	if v.Required("type", in.Type) {
		v.Enum("type", in.Type, kind.Types())
	}
	if v.Required("description", in.Description) {
		v.MaxLen("description", in.Description, 255)
	}
	if in.Amount == nil {
		v.Add("amount", "is required")
	} else {
		v.NonNegative("amount", *in.Amount)
		if *in.Amount > maxAmount {
			v.Add("amount", "is too large")
		}
	}
	effective, _ := v.Date("effectiveDate", in.EffectiveDate)
	end, ok := v.OptionalDate("endDate", in.EndDate)
	if ok && end != nil {
		v.DateOrder("effectiveDate", effective, "endDate", *end)
	}
	v.MaxLen("notes", in.Notes, 1000)
	if err := v.Err(); err != nil {
		return Adjustment{}, err
	}

	return Adjustment{
		Kind:          kind,
		PayrollID:     in.PayrollID,
		Type:          in.Type,
		Description:   in.Description,
		Amount:        *in.Amount,
		IsRecurring:   in.IsRecurring,
		EffectiveDate: effective,
		EndDate:       end,
		Notes:         in.Notes,
	}, nil
}

// fields is the audit representation of the editable attributes.
func (a Adjustment) fields() map[string]any {
	return map[string]any{
		"type":          a.Type,
		"description":   a.Description,
		"amount":        export.Amount(a.Amount),
		"isRecurring":   a.IsRecurring,
		"effectiveDate": export.Date(a.EffectiveDate),
		"endDate":       export.OptionalDate(a.EndDate),
		"notes":         a.Notes,
		"payrollId":     a.PayrollID,
	}
}

func CSVHeader(kind Kind) []string {
	return []string{"ID", "Employee Name", kind.label() + " Type", "Description", "Amount", "Effective Date", "End Date", "Status", "Recurring", "Notes"}
}

func (a Adjustment) CSVRow() []string {
	return []string{
		a.ID,
		a.EmployeeName,
		a.Type,
		a.Description,
		export.Amount(a.Amount),
		export.Date(a.EffectiveDate),
		export.OptionalDate(a.EndDate),
		string(a.Status),
		export.YesNo(a.IsRecurring),
		a.Notes,
	}
}
