package payroll

import (
	"context"
	"io"
	"log/slog"
	"time"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/export"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/platform/storage"
)

type Repository interface {
	GetPayroll(ctx context.Context, employeeID, id string) (Payroll, error)
	PagePayrolls(ctx context.Context, q listing.Query) (listing.PageResult, error)
	MatchingPayrollIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error)
	EachPayroll(ctx context.Context, employeeID string, set export.Set, fn func(Payroll) error) error
	StatusTotals(ctx context.Context) ([]StatusTotal, error)

	GetPayslip(ctx context.Context, employeeID, id string) (Payslip, error)
	PagePayslips(ctx context.Context, q listing.Query) (listing.PageResult, error)
	MatchingPayslipIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error)
	EachPayslip(ctx context.Context, employeeID string, set export.Set, fn func(Payslip) error) error

	WithTx(ctx context.Context, fn func(TxRepository) error) error
}

type TxRepository interface {
	LockPayrolls(ctx context.Context, employeeID string, ids []string) ([]Payroll, error)
	PayslipFiles(ctx context.Context, payrollIDs []string) ([]string, error)
	DeletePayrolls(ctx context.Context, employeeID string, ids []string) error
	SetPayslipFile(ctx context.Context, id, path, name string, downloadedAt *time.Time) error
	MarkPayslipDownloaded(ctx context.Context, id string, at time.Time) error
	MarkPayslipEmailed(ctx context.Context, id string, at time.Time) error
	DeletePayslip(ctx context.Context, employeeID, id string) error
	Audit(ctx context.Context, e audit.Entry) error
}

// DeleteResult reports which payrolls were removed.
type DeleteResult struct {
	Requested int      `json:"requested"`
	Deleted   []string `json:"deleted"`
	Missing   []string `json:"missing"`
}

type Service struct {
	repo  Repository
	files storage.Storage
}

func NewService(repo Repository, files storage.Storage) *Service {
	return &Service{repo: repo, files: files}
}

func (s *Service) Source() listing.Source {
	return payrollSource{repo: s.repo}
}

type payrollSource struct{ repo Repository }

func (p payrollSource) Page(ctx context.Context, q listing.Query) (listing.PageResult, error) {
	return p.repo.PagePayrolls(ctx, q)
}

func (p payrollSource) MatchingIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error) {
	return p.repo.MatchingPayrollIDs(ctx, f, limit)
}

func (s *Service) Get(ctx context.Context, employeeID, id string) (Payroll, Breakdown, error) {
	p, err := s.repo.GetPayroll(ctx, employeeID, id)
	if err != nil {
		return Payroll{}, Breakdown{}, err
	}
	return p, ComputeBreakdown(p), nil
}

func (s *Service) StatusTotals(ctx context.Context) ([]StatusTotal, error) {
	return s.repo.StatusTotals(ctx)
}

func (s *Service) Delete(ctx context.Context, actor audit.Actor, employeeID, id string) error {
	res, err := s.BulkDelete(ctx, actor, employeeID, []string{id})
	if err != nil {
		return err
	}
	if len(res.Deleted) == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkDelete removes the payrolls and their payslips in one transaction.
// Stored payslip files are removed once the rows are gone.
func (s *Service) BulkDelete(ctx context.Context, actor audit.Actor, employeeID string, ids []string) (DeleteResult, error) {
	if len(ids) == 0 {
		return DeleteResult{}, listing.ErrEmptySelection
	}
	res := DeleteResult{Requested: len(ids), Deleted: []string{}, Missing: []string{}}
	var orphans []string
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		locked, err := tx.LockPayrolls(ctx, employeeID, ids)
		if err != nil {
			return err
		}
		found := make(map[string]Payroll, len(locked))
		for _, p := range locked {
			found[p.ID] = p
		}
		var doomed []Payroll
		for _, id := range ids {
			p, ok := found[id]
			if !ok {
				res.Missing = append(res.Missing, id)
				continue
			}
			doomed = append(doomed, p)
			res.Deleted = append(res.Deleted, id)
		}
		if len(doomed) == 0 {
			return nil
		}
		orphans, err = tx.PayslipFiles(ctx, res.Deleted)
		if err != nil {
			return err
		}
		if err := tx.DeletePayrolls(ctx, employeeID, res.Deleted); err != nil {
			return err
		}
		for _, p := range doomed {
			err := tx.Audit(ctx, audit.Entry{
				Actor:      actor,
				Action:     "delete_payroll",
				TargetType: "payroll",
				TargetID:   p.ID,
				Details: map[string]any{
					"periodLabel": p.PeriodLabel,
					"payDate":     export.Date(p.PayDate),
					"netPay":      export.Amount(p.NetPay),
					"status":      string(p.Status),
				},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	for _, path := range orphans {
		if err := s.files.Delete(ctx, path); err != nil {
			slog.Warn("payslip file cleanup failed", "path", path, "err", err)
		}
	}
	return res, nil
}

func (s *Service) Export(ctx context.Context, actor audit.Actor, employeeID string, set export.Set, w io.Writer) (int, error) {
	if !set.All && len(set.IDs) == 0 {
		return 0, listing.ErrEmptySelection
	}
	ids, err := export.Stream(w, PayrollCSVHeader(), func(emit export.Emit) error {
		return s.repo.EachPayroll(ctx, employeeID, set, func(p Payroll) error {
			return emit(p.ID, p.CSVRow())
		})
	})
	if err != nil {
		return len(ids), err
	}
	return len(ids), recordExport(ctx, s.repo, actor, PayrollDescriptor, employeeID, set, ids)
}

func recordExport(ctx context.Context, repo Repository, actor audit.Actor, d listing.Descriptor, employeeID string, set export.Set, ids []string) error {
	return repo.WithTx(ctx, func(tx TxRepository) error {
		return tx.Audit(ctx, audit.Entry{
			Actor:      actor,
			Action:     "export_" + d.Name,
			TargetType: d.Entity,
			Details:    map[string]any{"ids": ids, "count": len(ids), "all": set.All, "employeeId": employeeID},
		})
	})
}
