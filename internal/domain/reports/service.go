package reports

import (
	"context"

	"hrdesk/internal/domain/adjustment"
	"hrdesk/internal/domain/payroll"
	"hrdesk/internal/domain/recruitment"
)

type AdjustmentTotals interface {
	Totals(ctx context.Context, employeeID string) (adjustment.Totals, error)
}

type PayrollTotals interface {
	StatusTotals(ctx context.Context) ([]payroll.StatusTotal, error)
}

type RecruitmentSummary interface {
	Summary(ctx context.Context) (recruitment.Summary, error)
}

// Dashboard is the HR overview: live adjustment totals, payroll totals by
// status and the recruitment pipeline. Sections the caller may not see are
// left out.
type Dashboard struct {
	Adjustments *adjustment.Totals    `json:"adjustments,omitempty"`
	Payrolls    []payroll.StatusTotal `json:"payrolls,omitempty"`
	Recruitment *recruitment.Summary  `json:"recruitment,omitempty"`
}

// Sections selects what a dashboard includes.
type Sections struct {
	Payroll     bool
	Recruitment bool
}

type Service struct {
	adjustments AdjustmentTotals
	payrolls    PayrollTotals
	recruitment RecruitmentSummary
}

func NewService(adjustments AdjustmentTotals, payrolls PayrollTotals, recruitment RecruitmentSummary) *Service {
	return &Service{adjustments: adjustments, payrolls: payrolls, recruitment: recruitment}
}

// Dashboard aggregates across every employee when employeeID is empty.
func (s *Service) Dashboard(ctx context.Context, employeeID string, sections Sections) (Dashboard, error) {
	var d Dashboard
	if sections.Payroll {
		totals, err := s.adjustments.Totals(ctx, employeeID)
		if err != nil {
			return Dashboard{}, err
		}
		d.Adjustments = &totals
		if d.Payrolls, err = s.payrolls.StatusTotals(ctx); err != nil {
			return Dashboard{}, err
		}
	}
	if sections.Recruitment {
		summary, err := s.recruitment.Summary(ctx)
		if err != nil {
			return Dashboard{}, err
		}
		d.Recruitment = &summary
	}
	return d, nil
}
