package adjustment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/platform/db"
	"hrdesk/internal/platform/validate"
)

// Descriptor returns the list view description for kind.
func Descriptor(kind Kind) listing.Descriptor {
	return listing.Descriptor{
		Name:          kind.View(),
		Entity:        string(kind),
		From:          kind.Table() + " a JOIN employees e ON e.id = a.employee_id",
		IDColumn:      "a.id",
		ScopeColumn:   "a.employee_id",
		ScopeRequired: true,
		SearchColumns: []string{"a.description", "a.notes"},
		TypeColumn:    "a.type",
		TypeValues:    kind.Types(),
		StatusColumn:  "a.status",
		StatusValues:  Statuses,
		SortColumns: map[string]string{
			"type":           "a.type",
			"description":    "a.description",
			"amount":         "a.amount",
			"effective_date": "a.effective_date",
			"end_date":       "a.end_date",
			"status":         "a.status",
			"created_at":     "a.created_at",
		},
		DefaultSort:  "effective_date",
		DefaultDir:   listing.SortDesc,
		ExportColumn: "a.created_at",
	}
}

const columns = `a.id::text, a.employee_id::text, COALESCE(a.payroll_id::text, ''), a.type, a.description,
  a.amount::float8, a.is_recurring, a.effective_date, a.end_date, a.notes, a.status, a.created_at, a.updated_at,
  e.first_name || ' ' || e.last_name`

// scanner reads rows of columns into adjustments of kind.
func scanner(kind Kind) func(pgx.Row) (Adjustment, error) {
	return func(row pgx.Row) (Adjustment, error) {
		a := Adjustment{Kind: kind}
		err := row.Scan(&a.ID, &a.EmployeeID, &a.PayrollID, &a.Type, &a.Description, &a.Amount, &a.IsRecurring,
			&a.EffectiveDate, &a.EndDate, &a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt, &a.EmployeeName)
		return a, err
	}
}

func adjustmentID(a Adjustment) string { return a.ID }

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) Get(ctx context.Context, kind Kind, employeeID, id string) (Adjustment, error) {
	a, err := scanner(kind)(s.DB.QueryRow(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE a.employee_id::text = $1 AND a.id::text = $2", columns, Descriptor(kind).From),
		employeeID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Adjustment{}, ErrNotFound
	}
	return a, err
}

func (s *Store) Page(ctx context.Context, kind Kind, q listing.Query) (listing.PageResult, error) {
	return listing.FetchPage(ctx, s.DB, Descriptor(kind), columns, q, scanner(kind), adjustmentID)
}

func (s *Store) MatchingIDs(ctx context.Context, kind Kind, f listing.Filter, limit int) ([]string, error) {
	return listing.FetchIDs(ctx, s.DB, Descriptor(kind), f, limit)
}

func (s *Store) EachSelected(ctx context.Context, kind Kind, employeeID string, ids []string, fn func(Adjustment) error) error {
	sql, args := Descriptor(kind).SelectedSQL(columns, employeeID, ids)
	return listing.ForEach(ctx, s.DB, sql, args, scanner(kind), fn)
}

func (s *Store) EachMatching(ctx context.Context, kind Kind, f listing.Filter, fn func(Adjustment) error) error {
	sql, args := Descriptor(kind).ExportSQL(columns, f)
	return listing.ForEach(ctx, s.DB, sql, args, scanner(kind), fn)
}

func (s *Store) ActiveTotals(ctx context.Context, employeeID string) (Totals, error) {
	var t Totals
	err := s.DB.QueryRow(ctx, `
    SELECT
      (SELECT COUNT(1) FROM payroll_allowances WHERE status = 'active' AND ($1 = '' OR employee_id::text = $1)),
      (SELECT COALESCE(SUM(amount), 0)::float8 FROM payroll_allowances WHERE status = 'active' AND ($1 = '' OR employee_id::text = $1)),
      (SELECT COUNT(1) FROM payroll_deductions WHERE status = 'active' AND ($1 = '' OR employee_id::text = $1)),
      (SELECT COALESCE(SUM(amount), 0)::float8 FROM payroll_deductions WHERE status = 'active' AND ($1 = '' OR employee_id::text = $1))
  `, employeeID).Scan(&t.ActiveAllowances, &t.AllowanceTotal, &t.ActiveDeductions, &t.DeductionTotal)
	return t, err
}

func (s *Store) WithTx(ctx context.Context, fn func(TxRepository) error) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) Insert(ctx context.Context, a Adjustment) (Adjustment, error) {
	err := t.tx.QueryRow(ctx, fmt.Sprintf(`
    INSERT INTO %s (employee_id, payroll_id, type, description, amount, is_recurring, effective_date, end_date, notes, status)
    VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8, $9, $10)
    RETURNING id::text, created_at, updated_at
  `, a.Kind.Table()), a.EmployeeID, a.PayrollID, a.Type, a.Description, a.Amount, a.IsRecurring,
		a.EffectiveDate, a.EndDate, a.Notes, string(a.Status)).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return a, mapWriteError(err)
}

func (t *txStore) Update(ctx context.Context, a Adjustment) (Adjustment, error) {
	err := t.tx.QueryRow(ctx, fmt.Sprintf(`
    UPDATE %s
    SET payroll_id = NULLIF($3, '')::uuid, type = $4, description = $5, amount = $6, is_recurring = $7,
        effective_date = $8, end_date = $9, notes = $10, updated_at = now()
    WHERE employee_id::text = $1 AND id::text = $2 AND status = 'active'
    RETURNING updated_at
  `, a.Kind.Table()), a.EmployeeID, a.ID, a.PayrollID, a.Type, a.Description, a.Amount, a.IsRecurring,
		a.EffectiveDate, a.EndDate, a.Notes).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Adjustment{}, ErrInactive
	}
	return a, mapWriteError(err)
}

func (t *txStore) Lock(ctx context.Context, kind Kind, employeeID string, ids []string) ([]Adjustment, error) {
	return listing.Collect(ctx, t.tx, fmt.Sprintf(`
    SELECT %s FROM %s
    WHERE a.employee_id::text = $1 AND a.id::text = ANY($2)
    ORDER BY a.created_at, a.id
    FOR UPDATE OF a
  `, columns, Descriptor(kind).From), []any{employeeID, ids}, scanner(kind))
}

func (t *txStore) SetStatus(ctx context.Context, kind Kind, employeeID string, ids []string, status Status) error {
	_, err := t.tx.Exec(ctx, fmt.Sprintf(`
    UPDATE %s SET status = $3, updated_at = now()
    WHERE employee_id::text = $1 AND id::text = ANY($2)
  `, kind.Table()), employeeID, ids, string(status))
	return err
}

func (t *txStore) Audit(ctx context.Context, e audit.Entry) error {
	return audit.Insert(ctx, t.tx, e)
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		if strings.Contains(pgErr.ConstraintName, "payroll_id") {
			return &validate.Error{Issues: []validate.Issue{{Field: "payrollId", Reason: "does not exist"}}}
		}
		return ErrNotFound
	}
	return err
}
