package adjustment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/listing"
)

// memRepo is an in-memory Repository. WithTx snapshots the records and
// restores them when fn fails, mimicking a rolled back transaction.
type memRepo struct {
	records   map[string]Adjustment
	audits    []audit.Entry
	seq       int
	failAudit bool
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]Adjustment{}}
}

func (m *memRepo) put(a Adjustment) Adjustment {
	m.seq++
	if a.ID == "" {
		a.ID = fmt.Sprintf("adj-%d", m.seq)
	}
	a.CreatedAt = time.Date(2024, 1, 1, 0, 0, m.seq, 0, time.UTC)
	m.records[a.ID] = a
	return a
}

func (m *memRepo) Get(_ context.Context, kind Kind, employeeID, id string) (Adjustment, error) {
	a, ok := m.records[id]
	if !ok || a.Kind != kind || a.EmployeeID != employeeID {
		return Adjustment{}, ErrNotFound
	}
	return a, nil
}

func (m *memRepo) matching(kind Kind, f listing.Filter) []Adjustment {
	var out []Adjustment
	for _, a := range m.records {
		if a.Kind != kind || a.EmployeeID != f.Scope {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(a.Description+" "+a.Notes), strings.ToLower(f.Search)) {
			continue
		}
		if f.FilterType != "" && a.Type != f.FilterType {
			continue
		}
		if f.FilterStatus != "" && string(a.Status) != f.FilterStatus {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memRepo) Page(_ context.Context, kind Kind, q listing.Query) (listing.PageResult, error) {
	all := m.matching(kind, q.Filter)
	end := q.Offset + q.Limit
	if end > len(all) {
		end = len(all)
	}
	var page []Adjustment
	var ids []string
	if q.Offset < len(all) {
		page = all[q.Offset:end]
	}
	for _, a := range page {
		ids = append(ids, a.ID)
	}
	return listing.PageResult{Items: page, IDs: ids, Total: len(all)}, nil
}

func (m *memRepo) MatchingIDs(_ context.Context, kind Kind, f listing.Filter, limit int) ([]string, error) {
	var ids []string
	for _, a := range m.matching(kind, f) {
		ids = append(ids, a.ID)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memRepo) EachSelected(_ context.Context, kind Kind, employeeID string, ids []string, fn func(Adjustment) error) error {
	for _, id := range ids {
		a, ok := m.records[id]
		if !ok || a.Kind != kind || a.EmployeeID != employeeID {
			continue
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

func (m *memRepo) EachMatching(_ context.Context, kind Kind, f listing.Filter, fn func(Adjustment) error) error {
	for _, a := range m.matching(kind, f) {
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

func (m *memRepo) ActiveTotals(_ context.Context, employeeID string) (Totals, error) {
	var t Totals
	for _, a := range m.records {
		if a.Status != StatusActive || (employeeID != "" && a.EmployeeID != employeeID) {
			continue
		}
		if a.Kind == Allowance {
			t.ActiveAllowances++
			t.AllowanceTotal += a.Amount
		} else {
			t.ActiveDeductions++
			t.DeductionTotal += a.Amount
		}
	}
	return t, nil
}

func (m *memRepo) WithTx(_ context.Context, fn func(TxRepository) error) error {
	snapshot := make(map[string]Adjustment, len(m.records))
	for k, v := range m.records {
		snapshot[k] = v
	}
	audits := len(m.audits)
	if err := fn(m); err != nil {
		m.records = snapshot
		m.audits = m.audits[:audits]
		return err
	}
	return nil
}

func (m *memRepo) Insert(_ context.Context, a Adjustment) (Adjustment, error) {
	return m.put(a), nil
}

func (m *memRepo) Update(_ context.Context, a Adjustment) (Adjustment, error) {
	current, ok := m.records[a.ID]
	if !ok || current.Status != StatusActive {
		return Adjustment{}, ErrInactive
	}
	m.records[a.ID] = a
	return a, nil
}

func (m *memRepo) Lock(_ context.Context, kind Kind, employeeID string, ids []string) ([]Adjustment, error) {
	var out []Adjustment
	for _, id := range ids {
		if a, ok := m.records[id]; ok && a.Kind == kind && a.EmployeeID == employeeID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) SetStatus(_ context.Context, _ Kind, _ string, ids []string, status Status) error {
	for _, id := range ids {
		a := m.records[id]
		a.Status = status
		m.records[id] = a
	}
	return nil
}

func (m *memRepo) Audit(_ context.Context, e audit.Entry) error {
	if m.failAudit {
		return errors.New("audit sink unavailable")
	}
	m.audits = append(m.audits, e)
	return nil
}

func (m *memRepo) actions() []string {
	out := make([]string, 0, len(m.audits))
	for _, e := range m.audits {
		out = append(out, e.Action)
	}
	return out
}
