package payroll

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/employee"
	"hrdesk/internal/domain/export"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/platform/email"
	"hrdesk/internal/platform/storage"
)

const pdfContentType = "application/pdf"

type Company struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
}

// PayslipView is everything printed on one payslip.
type PayslipView struct {
	Company   Company
	Currency  string
	Employee  employee.Employee
	Payslip   Payslip
	Payroll   Payroll
	Breakdown Breakdown
}

type Renderer interface {
	Render(view PayslipView) ([]byte, error)
}

type EmployeeLookup interface {
	Get(ctx context.Context, id string) (employee.Employee, error)
}

type PayslipService struct {
	repo      Repository
	files     storage.Storage
	renderer  Renderer
	employees EmployeeLookup
	mailer    email.Mailer
	company   Company
	currency  string
	now       func() time.Time
}

type PayslipOptions struct {
	Company  Company
	Currency string
	Mailer   email.Mailer
}

func NewPayslipService(repo Repository, files storage.Storage, renderer Renderer, employees EmployeeLookup, opts PayslipOptions) *PayslipService {
	mailer := opts.Mailer
	if mailer == nil {
		mailer = email.Noop()
	}
	return &PayslipService{
		repo:      repo,
		files:     files,
		renderer:  renderer,
		employees: employees,
		mailer:    mailer,
		company:   opts.Company,
		currency:  opts.Currency,
		now:       time.Now,
	}
}

func (s *PayslipService) Source() listing.Source {
	return payslipSource{repo: s.repo}
}

type payslipSource struct{ repo Repository }

func (p payslipSource) Page(ctx context.Context, q listing.Query) (listing.PageResult, error) {
	return p.repo.PagePayslips(ctx, q)
}

func (p payslipSource) MatchingIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error) {
	return p.repo.MatchingPayslipIDs(ctx, f, limit)
}

func (s *PayslipService) Get(ctx context.Context, employeeID, id string) (Payslip, error) {
	return s.repo.GetPayslip(ctx, employeeID, id)
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName derives the stored file name from the payslip number.
func FileName(number string) string {
	name := strings.Trim(unsafeFileChars.ReplaceAllString(strings.TrimSpace(number), "-"), "-.")
	if name == "" {
		name = "payslip"
	}
	return name + ".pdf"
}

// storagePath is the object key for a payslip. Cleaning the number is lossy,
// so a digest of the raw number keeps distinct payslips in distinct objects.
func storagePath(number string) string {
	sum := sha256.Sum256([]byte(number))
	name := strings.TrimSuffix(FileName(number), ".pdf")
	return "payslips/" + name + "-" + hex.EncodeToString(sum[:])[:12] + ".pdf"
}

// Download returns the payslip PDF, rendering and caching it first when no
// stored copy exists. Render and storage failures leave the row untouched.
func (s *PayslipService) Download(ctx context.Context, actor audit.Actor, employeeID, id string) (File, error) {
	ps, err := s.repo.GetPayslip(ctx, employeeID, id)
	if err != nil {
		return File{}, err
	}
	now := s.now().UTC()

	if data, ok, err := s.cached(ctx, ps); err != nil {
		return File{}, err
	} else if ok {
		err := s.repo.WithTx(ctx, func(tx TxRepository) error {
			if err := tx.MarkPayslipDownloaded(ctx, ps.ID, now); err != nil {
				return err
			}
			return tx.Audit(ctx, downloadEntry(actor, ps, ps.FilePath, true))
		})
		if err != nil {
			return File{}, err
		}
		return File{Name: ps.FileName, ContentType: pdfContentType, Data: data}, nil
	}

	data, path, name, err := s.render(ctx, ps)
	if err != nil {
		return File{}, err
	}
	err = s.repo.WithTx(ctx, func(tx TxRepository) error {
		if err := tx.SetPayslipFile(ctx, ps.ID, path, name, &now); err != nil {
			return err
		}
		return tx.Audit(ctx, downloadEntry(actor, ps, path, false))
	})
	if err != nil {
		return File{}, err
	}
	return File{Name: name, ContentType: pdfContentType, Data: data}, nil
}

// Email sends the payslip to the employee as a PDF attachment.
func (s *PayslipService) Email(ctx context.Context, actor audit.Actor, employeeID, id string) error {
	if !s.mailer.Enabled() {
		return ErrEmailDisabled
	}
	ps, err := s.repo.GetPayslip(ctx, employeeID, id)
	if err != nil {
		return err
	}
	emp, err := s.employees.Get(ctx, ps.EmployeeID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(emp.Email) == "" {
		return ErrNoRecipient
	}

	data, ok, err := s.cached(ctx, ps)
	if err != nil {
		return err
	}
	path, name := ps.FilePath, ps.FileName
	rendered := false
	if !ok {
		data, path, name, err = s.render(ctx, ps)
		if err != nil {
			return err
		}
		rendered = true
	}

	err = s.mailer.Send(ctx, email.Message{
		To:      emp.Email,
		Subject: fmt.Sprintf("Payslip %s (%s)", ps.Number, ps.PeriodLabel),
		Body: fmt.Sprintf("Hello %s,\n\nYour payslip for %s is attached.\n\n%s\n",
			emp.FullName(), ps.PeriodLabel, s.company.Name),
		Attachments: []email.Attachment{{Filename: name, ContentType: pdfContentType, Data: data}},
	})
	if err != nil {
		return fmt.Errorf("send payslip: %w", err)
	}

	now := s.now().UTC()
	return s.repo.WithTx(ctx, func(tx TxRepository) error {
		if rendered {
			if err := tx.SetPayslipFile(ctx, ps.ID, path, name, nil); err != nil {
				return err
			}
		}
		if err := tx.MarkPayslipEmailed(ctx, ps.ID, now); err != nil {
			return err
		}
		return tx.Audit(ctx, audit.Entry{
			Actor:      actor,
			Action:     "email_payslip",
			TargetType: "payslip",
			TargetID:   ps.ID,
			Details:    map[string]any{"payslipNumber": ps.Number, "to": emp.Email},
		})
	})
}

// Delete removes the stored file first and then the row.
func (s *PayslipService) Delete(ctx context.Context, actor audit.Actor, employeeID, id string) error {
	ps, err := s.repo.GetPayslip(ctx, employeeID, id)
	if err != nil {
		return err
	}
	if ps.FilePath != "" {
		if err := s.files.Delete(ctx, ps.FilePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrStorageFailed, err)
		}
	}
	return s.repo.WithTx(ctx, func(tx TxRepository) error {
		if err := tx.DeletePayslip(ctx, employeeID, ps.ID); err != nil {
			return err
		}
		return tx.Audit(ctx, audit.Entry{
			Actor:      actor,
			Action:     "delete_payslip",
			TargetType: "payslip",
			TargetID:   ps.ID,
			Details:    map[string]any{"payslipNumber": ps.Number, "filePath": ps.FilePath},
		})
	})
}

func (s *PayslipService) Export(ctx context.Context, actor audit.Actor, employeeID string, set export.Set, w io.Writer) (int, error) {
	if !set.All && len(set.IDs) == 0 {
		return 0, listing.ErrEmptySelection
	}
	ids, err := export.Stream(w, PayslipCSVHeader(), func(emit export.Emit) error {
		return s.repo.EachPayslip(ctx, employeeID, set, func(p Payslip) error {
			return emit(p.ID, p.CSVRow())
		})
	})
	if err != nil {
		return len(ids), err
	}
	return len(ids), recordExport(ctx, s.repo, actor, PayslipDescriptor, employeeID, set, ids)
}

func (s *PayslipService) cached(ctx context.Context, ps Payslip) ([]byte, bool, error) {
	if ps.FilePath == "" {
		return nil, false, nil
	}
	exists, err := s.files.Exists(ctx, ps.FilePath)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	if !exists {
		return nil, false, nil
	}
	data, err := s.files.Get(ctx, ps.FilePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	return data, true, nil
}

func (s *PayslipService) render(ctx context.Context, ps Payslip) ([]byte, string, string, error) {
	p, err := s.repo.GetPayroll(ctx, ps.EmployeeID, ps.PayrollID)
	if err != nil {
		return nil, "", "", err
	}
	emp, err := s.employees.Get(ctx, ps.EmployeeID)
	if err != nil {
		return nil, "", "", err
	}
	data, err := s.renderer.Render(PayslipView{
		Company:   s.company,
		Currency:  s.currency,
		Employee:  emp,
		Payslip:   ps,
		Payroll:   p,
		Breakdown: ComputeBreakdown(p),
	})
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	path := storagePath(ps.Number)
	if err := s.files.Put(ctx, path, data); err != nil {
		return nil, "", "", fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	return data, path, FileName(ps.Number), nil
}

func downloadEntry(actor audit.Actor, ps Payslip, path string, cached bool) audit.Entry {
	return audit.Entry{
		Actor:      actor,
		Action:     "download_payslip",
		TargetType: "payslip",
		TargetID:   ps.ID,
		Details:    map[string]any{"payslipNumber": ps.Number, "filePath": path, "cached": cached},
	}
}
