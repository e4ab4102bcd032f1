package payroll

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/employee"
	"hrdesk/internal/domain/export"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/platform/email"
	"hrdesk/internal/platform/storage"
)

type memRepo struct {
	payrolls  map[string]Payroll
	payslips  map[string]Payslip
	audits    []audit.Entry
	failAudit bool
}

func newMemRepo() *memRepo {
	return &memRepo{payrolls: map[string]Payroll{}, payslips: map[string]Payslip{}}
}

func (m *memRepo) GetPayroll(_ context.Context, employeeID, id string) (Payroll, error) {
	p, ok := m.payrolls[id]
	if !ok || p.EmployeeID != employeeID {
		return Payroll{}, ErrNotFound
	}
	return p, nil
}

func (m *memRepo) sortedPayrolls(employeeID string) []Payroll {
	var out []Payroll
	for _, p := range m.payrolls {
		if p.EmployeeID == employeeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PayDate.After(out[j].PayDate) })
	return out
}

func (m *memRepo) PagePayrolls(_ context.Context, q listing.Query) (listing.PageResult, error) {
	all := m.sortedPayrolls(q.Filter.Scope)
	var ids []string
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	return listing.PageResult{Items: all, IDs: ids, Total: len(all)}, nil
}

func (m *memRepo) MatchingPayrollIDs(_ context.Context, f listing.Filter, _ int) ([]string, error) {
	var ids []string
	for _, p := range m.sortedPayrolls(f.Scope) {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (m *memRepo) EachPayroll(_ context.Context, employeeID string, set export.Set, fn func(Payroll) error) error {
	if set.All {
		for _, p := range m.sortedPayrolls(employeeID) {
			if err := fn(p); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range set.IDs {
		if p, ok := m.payrolls[id]; ok && p.EmployeeID == employeeID {
			if err := fn(p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *memRepo) StatusTotals(context.Context) ([]StatusTotal, error) {
	return nil, nil
}

func (m *memRepo) GetPayslip(_ context.Context, employeeID, id string) (Payslip, error) {
	p, ok := m.payslips[id]
	if !ok || p.EmployeeID != employeeID {
		return Payslip{}, ErrPayslipNotFound
	}
	return p, nil
}

func (m *memRepo) PagePayslips(context.Context, listing.Query) (listing.PageResult, error) {
	return listing.PageResult{}, nil
}

func (m *memRepo) MatchingPayslipIDs(context.Context, listing.Filter, int) ([]string, error) {
	return nil, nil
}

func (m *memRepo) EachPayslip(_ context.Context, employeeID string, set export.Set, fn func(Payslip) error) error {
	for _, id := range set.IDs {
		if p, ok := m.payslips[id]; ok && p.EmployeeID == employeeID {
			if err := fn(p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *memRepo) WithTx(_ context.Context, fn func(TxRepository) error) error {
	payrolls := make(map[string]Payroll, len(m.payrolls))
	for k, v := range m.payrolls {
		payrolls[k] = v
	}
	payslips := make(map[string]Payslip, len(m.payslips))
	for k, v := range m.payslips {
		payslips[k] = v
	}
	audits := len(m.audits)
	if err := fn(m); err != nil {
		m.payrolls = payrolls
		m.payslips = payslips
		m.audits = m.audits[:audits]
		return err
	}
	return nil
}

func (m *memRepo) LockPayrolls(_ context.Context, employeeID string, ids []string) ([]Payroll, error) {
	var out []Payroll
	for _, id := range ids {
		if p, ok := m.payrolls[id]; ok && p.EmployeeID == employeeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) PayslipFiles(_ context.Context, payrollIDs []string) ([]string, error) {
	var out []string
	for _, id := range payrollIDs {
		for _, s := range m.payslips {
			if s.PayrollID == id && s.FilePath != "" {
				out = append(out, s.FilePath)
			}
		}
	}
	return out, nil
}

func (m *memRepo) DeletePayrolls(_ context.Context, _ string, ids []string) error {
	for _, id := range ids {
		delete(m.payrolls, id)
		for sid, s := range m.payslips {
			if s.PayrollID == id {
				delete(m.payslips, sid)
			}
		}
	}
	return nil
}

func (m *memRepo) SetPayslipFile(_ context.Context, id, path, name string, downloadedAt *time.Time) error {
	s := m.payslips[id]
	s.FilePath = path
	s.FileName = name
	if downloadedAt != nil {
		s.IsDownloaded = true
		s.DownloadedAt = downloadedAt
	}
	m.payslips[id] = s
	return nil
}

func (m *memRepo) MarkPayslipDownloaded(_ context.Context, id string, at time.Time) error {
	s := m.payslips[id]
	s.IsDownloaded = true
	s.DownloadedAt = &at
	m.payslips[id] = s
	return nil
}

func (m *memRepo) MarkPayslipEmailed(_ context.Context, id string, at time.Time) error {
	s := m.payslips[id]
	s.IsEmailed = true
	s.EmailedAt = &at
	m.payslips[id] = s
	return nil
}

func (m *memRepo) DeletePayslip(_ context.Context, employeeID, id string) error {
	s, ok := m.payslips[id]
	if !ok || s.EmployeeID != employeeID {
		return ErrPayslipNotFound
	}
	delete(m.payslips, id)
	return nil
}

func (m *memRepo) Audit(_ context.Context, e audit.Entry) error {
	if m.failAudit {
		return errors.New("audit sink unavailable")
	}
	m.audits = append(m.audits, e)
	return nil
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (s *memStorage) Exists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[name]
	return ok, nil
}

func (s *memStorage) Put(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return errors.New("disk full")
	}
	s.objects[name] = append([]byte(nil), data...)
	return nil
}

func (s *memStorage) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (s *memStorage) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, name)
	return nil
}

func (s *memStorage) URL(name string) string { return "mem://" + name }

type stubRenderer struct {
	calls int
	err   error
	views []PayslipView
}

func (r *stubRenderer) Render(view PayslipView) ([]byte, error) {
	r.calls++
	r.views = append(r.views, view)
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 " + view.Payslip.Number), nil
}

type employeeMap map[string]employee.Employee

func (e employeeMap) Get(_ context.Context, id string) (employee.Employee, error) {
	emp, ok := e[id]
	if !ok {
		return employee.Employee{}, employee.ErrNotFound
	}
	return emp, nil
}

type captureMailer struct {
	sent []email.Message
}

func (c *captureMailer) Send(_ context.Context, msg email.Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureMailer) Enabled() bool { return true }
