package adjustment

import (
	"context"
	"io"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/export"
	"hrdesk/internal/domain/listing"
)

type Totals struct {
	ActiveAllowances int     `json:"activeAllowances"`
	AllowanceTotal   float64 `json:"allowanceTotal"`
	ActiveDeductions int     `json:"activeDeductions"`
	DeductionTotal   float64 `json:"deductionTotal"`
}

type Repository interface {
	Get(ctx context.Context, kind Kind, employeeID, id string) (Adjustment, error)
	Page(ctx context.Context, kind Kind, q listing.Query) (listing.PageResult, error)
	MatchingIDs(ctx context.Context, kind Kind, f listing.Filter, limit int) ([]string, error)
	EachSelected(ctx context.Context, kind Kind, employeeID string, ids []string, fn func(Adjustment) error) error
	EachMatching(ctx context.Context, kind Kind, f listing.Filter, fn func(Adjustment) error) error
	ActiveTotals(ctx context.Context, employeeID string) (Totals, error)
	WithTx(ctx context.Context, fn func(TxRepository) error) error
}

// TxRepository is the write side, always used inside one transaction so the
// audit rows commit or roll back with the change they describe.
type TxRepository interface {
	Insert(ctx context.Context, a Adjustment) (Adjustment, error)
	Update(ctx context.Context, a Adjustment) (Adjustment, error)
	Lock(ctx context.Context, kind Kind, employeeID string, ids []string) ([]Adjustment, error)
	SetStatus(ctx context.Context, kind Kind, employeeID string, ids []string, status Status) error
	Audit(ctx context.Context, e audit.Entry) error
}

// BulkResult reports which of the requested ids changed status.
type BulkResult struct {
	Requested int      `json:"requested"`
	Changed   []string `json:"changed"`
	Skipped   []string `json:"skipped"`
	Missing   []string `json:"missing"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Source adapts one kind, scoped per request, to the list controller.
func (s *Service) Source(kind Kind) listing.Source {
	return source{repo: s.repo, kind: kind}
}

type source struct {
	repo Repository
	kind Kind
}

func (src source) Page(ctx context.Context, q listing.Query) (listing.PageResult, error) {
	return src.repo.Page(ctx, src.kind, q)
}

func (src source) MatchingIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error) {
	return src.repo.MatchingIDs(ctx, src.kind, f, limit)
}

func (s *Service) Get(ctx context.Context, kind Kind, employeeID, id string) (Adjustment, error) {
	return s.repo.Get(ctx, kind, employeeID, id)
}

func (s *Service) Totals(ctx context.Context, employeeID string) (Totals, error) {
	return s.repo.ActiveTotals(ctx, employeeID)
}

func (s *Service) Create(ctx context.Context, actor audit.Actor, kind Kind, employeeID string, in Input) (Adjustment, error) {
	rec, err := in.Validate(kind)
	if err != nil {
		return Adjustment{}, err
	}
	rec.EmployeeID = employeeID
	rec.Status = StatusActive

	err = s.repo.WithTx(ctx, func(tx TxRepository) error {
		created, err := tx.Insert(ctx, rec)
		if err != nil {
			return err
		}
		rec = created
		return tx.Audit(ctx, audit.Entry{
			Actor:      actor,
			Action:     "create_" + string(kind),
			TargetType: string(kind),
			TargetID:   rec.ID,
			Details:    rec.fields(),
		})
	})
	if err != nil {
		return Adjustment{}, err
	}
	return rec, nil
}

// Update rewrites an active record. Inactive records are refused both here
// and by the storage predicate.
func (s *Service) Update(ctx context.Context, actor audit.Actor, kind Kind, employeeID, id string, in Input) (Adjustment, error) {
	rec, err := in.Validate(kind)
	if err != nil {
		return Adjustment{}, err
	}

	err = s.repo.WithTx(ctx, func(tx TxRepository) error {
		locked, err := tx.Lock(ctx, kind, employeeID, []string{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return ErrNotFound
		}
		current := locked[0]
		if !current.Status.CanEdit() {
			return ErrInactive
		}

		next := current
		next.PayrollID = rec.PayrollID
		next.Type = rec.Type
		next.Description = rec.Description
		next.Amount = rec.Amount
		next.IsRecurring = rec.IsRecurring
		next.EffectiveDate = rec.EffectiveDate
		next.EndDate = rec.EndDate
		next.Notes = rec.Notes

		updated, err := tx.Update(ctx, next)
		if err != nil {
			return err
		}
		rec = updated
		return tx.Audit(ctx, audit.Entry{
			Actor:      actor,
			Action:     "update_" + string(kind),
			TargetType: string(kind),
			TargetID:   id,
			Details:    map[string]any{"before": current.fields(), "after": updated.fields()},
		})
	})
	if err != nil {
		return Adjustment{}, err
	}
	return rec, nil
}

// Deactivate soft-deletes one record. Deactivating an inactive record
// changes nothing and writes no audit row.
func (s *Service) Deactivate(ctx context.Context, actor audit.Actor, kind Kind, employeeID, id string) (bool, error) {
	res, err := s.transition(ctx, actor, kind, employeeID, []string{id}, "deactivate_", Status.Deactivate)
	if err != nil {
		return false, err
	}
	if len(res.Missing) > 0 {
		return false, ErrNotFound
	}
	return len(res.Changed) == 1, nil
}

func (s *Service) Reactivate(ctx context.Context, actor audit.Actor, kind Kind, employeeID, id string) (bool, error) {
	res, err := s.transition(ctx, actor, kind, employeeID, []string{id}, "reactivate_", Status.Reactivate)
	if err != nil {
		return false, err
	}
	if len(res.Missing) > 0 {
		return false, ErrNotFound
	}
	return len(res.Changed) == 1, nil
}

// BulkDeactivate deactivates every id in one transaction and writes one
// audit row per record that changed.
func (s *Service) BulkDeactivate(ctx context.Context, actor audit.Actor, kind Kind, employeeID string, ids []string) (BulkResult, error) {
	if len(ids) == 0 {
		return BulkResult{}, listing.ErrEmptySelection
	}
	return s.transition(ctx, actor, kind, employeeID, ids, "deactivate_", Status.Deactivate)
}

func (s *Service) transition(ctx context.Context, actor audit.Actor, kind Kind, employeeID string, ids []string, actionPrefix string, next func(Status) (Status, bool)) (BulkResult, error) {
	res := BulkResult{Requested: len(ids), Changed: []string{}, Skipped: []string{}, Missing: []string{}}
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		locked, err := tx.Lock(ctx, kind, employeeID, ids)
		if err != nil {
			return err
		}
		found := make(map[string]Adjustment, len(locked))
		for _, a := range locked {
			found[a.ID] = a
		}

		var target Status
		var changed []Adjustment
		for _, id := range ids {
			a, ok := found[id]
			if !ok {
				res.Missing = append(res.Missing, id)
				continue
			}
			status, moved := next(a.Status)
			if !moved {
				res.Skipped = append(res.Skipped, id)
				continue
			}
			target = status
			changed = append(changed, a)
			res.Changed = append(res.Changed, id)
		}
		if len(changed) == 0 {
			return nil
		}

		if err := tx.SetStatus(ctx, kind, employeeID, res.Changed, target); err != nil {
			return err
		}
		for _, a := range changed {
			err := tx.Audit(ctx, audit.Entry{
				Actor:      actor,
				Action:     actionPrefix + string(kind),
				TargetType: string(kind),
				TargetID:   a.ID,
				Details: map[string]any{
					"from":        string(a.Status),
					"to":          string(target),
					"description": a.Description,
					"amount":      export.Amount(a.Amount),
				},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}
	return res, nil
}

// Export streams the set as CSV to w and records one audit row listing the
// exported ids. It never changes the records themselves.
func (s *Service) Export(ctx context.Context, actor audit.Actor, kind Kind, employeeID string, set export.Set, w io.Writer) (int, error) {
	if !set.All && len(set.IDs) == 0 {
		return 0, listing.ErrEmptySelection
	}
	ids, err := export.Stream(w, CSVHeader(kind), func(emit export.Emit) error {
		row := func(a Adjustment) error { return emit(a.ID, a.CSVRow()) }
		if set.All {
			f := set.Filter
			f.Scope = employeeID
			return s.repo.EachMatching(ctx, kind, f, row)
		}
		return s.repo.EachSelected(ctx, kind, employeeID, set.IDs, row)
	})
	if err != nil {
		return len(ids), err
	}
	err = s.repo.WithTx(ctx, func(tx TxRepository) error {
		return tx.Audit(ctx, audit.Entry{
			Actor:      actor,
			Action:     "export_" + kind.View(),
			TargetType: string(kind),
			Details:    map[string]any{"ids": ids, "count": len(ids), "all": set.All, "employeeId": employeeID},
		})
	})
	return len(ids), err
}
