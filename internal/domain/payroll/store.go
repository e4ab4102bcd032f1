package payroll

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/export"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/platform/db"
)

var PayrollDescriptor = listing.Descriptor{
	Name:          "payrolls",
	Entity:        "payroll",
	From:          "payrolls p JOIN employees e ON e.id = p.employee_id",
	IDColumn:      "p.id",
	ScopeColumn:   "p.employee_id",
	ScopeRequired: true,
	SearchColumns: []string{"p.period_label"},
	StatusColumn:  "p.status",
	StatusValues:  Statuses,
	SortColumns: map[string]string{
		"period_label":     "p.period_label",
		"pay_date":         "p.pay_date",
		"basic_salary":     "p.basic_salary",
		"total_allowances": "p.total_allowances",
		"total_deductions": "p.total_deductions",
		"net_pay":          "p.net_pay",
		"status":           "p.status",
	},
	DefaultSort:  "pay_date",
	DefaultDir:   listing.SortDesc,
	ExportColumn: "p.pay_date",
}

var PayslipDescriptor = listing.Descriptor{
	Name:          "payslips",
	Entity:        "payslip",
	From:          "payslips s JOIN payrolls p ON p.id = s.payroll_id JOIN employees e ON e.id = s.employee_id",
	IDColumn:      "s.id",
	ScopeColumn:   "s.employee_id",
	ScopeRequired: true,
	SearchColumns: []string{"s.payslip_number", "p.period_label"},
	SortColumns: map[string]string{
		"payslip_number": "s.payslip_number",
		"period_label":   "p.period_label",
		"pay_date":       "p.pay_date",
		"emailed_at":     "s.emailed_at",
		"downloaded_at":  "s.downloaded_at",
		"created_at":     "s.created_at",
	},
	DefaultSort:  "created_at",
	DefaultDir:   listing.SortDesc,
	ExportColumn: "s.created_at",
}

const payrollColumns = `p.id::text, p.employee_id::text, e.first_name || ' ' || e.last_name, p.period_label, p.pay_date,
  p.basic_salary::float8,
  p.house_allowance::float8, p.transport_allowance::float8, p.medical_allowance::float8,
  p.overtime_allowance::float8, p.bonus_allowance::float8, p.other_allowance::float8,
  p.tax_deduction::float8, p.pension_deduction::float8, p.insurance_deduction::float8,
  p.loan_deduction::float8, p.other_deduction::float8,
  p.total_allowances::float8, p.total_deductions::float8, p.net_pay::float8, p.status, p.created_at`

const payslipColumns = `s.id::text, s.employee_id::text, e.first_name || ' ' || e.last_name, s.payroll_id::text,
  p.period_label, s.payslip_number, COALESCE(s.file_path, ''), COALESCE(s.file_name, ''),
  s.is_emailed, s.emailed_at, s.is_downloaded, s.downloaded_at, s.created_at`

func scanPayroll(row pgx.Row) (Payroll, error) {
	var p Payroll
	err := row.Scan(&p.ID, &p.EmployeeID, &p.EmployeeName, &p.PeriodLabel, &p.PayDate, &p.BasicSalary,
		&p.Allowances.House, &p.Allowances.Transport, &p.Allowances.Medical,
		&p.Allowances.Overtime, &p.Allowances.Bonus, &p.Allowances.Other,
		&p.Deductions.Tax, &p.Deductions.Pension, &p.Deductions.Insurance,
		&p.Deductions.Loan, &p.Deductions.Other,
		&p.TotalAllowances, &p.TotalDeductions, &p.NetPay, &p.Status, &p.CreatedAt)
	return p, err
}

func scanPayslip(row pgx.Row) (Payslip, error) {
	var s Payslip
	err := row.Scan(&s.ID, &s.EmployeeID, &s.EmployeeName, &s.PayrollID, &s.PeriodLabel, &s.Number,
		&s.FilePath, &s.FileName, &s.IsEmailed, &s.EmailedAt, &s.IsDownloaded, &s.DownloadedAt, &s.CreatedAt)
	return s, err
}

type StatusTotal struct {
	Status Status  `json:"status"`
	Count  int     `json:"count"`
	NetPay float64 `json:"netPay"`
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) GetPayroll(ctx context.Context, employeeID, id string) (Payroll, error) {
	sql, args := PayrollDescriptor.SelectedSQL(payrollColumns, employeeID, []string{id})
	p, err := scanPayroll(s.DB.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payroll{}, ErrNotFound
	}
	return p, err
}

func (s *Store) PagePayrolls(ctx context.Context, q listing.Query) (listing.PageResult, error) {
	return listing.FetchPage(ctx, s.DB, PayrollDescriptor, payrollColumns, q, scanPayroll, func(p Payroll) string { return p.ID })
}

func (s *Store) PagePayslips(ctx context.Context, q listing.Query) (listing.PageResult, error) {
	return listing.FetchPage(ctx, s.DB, PayslipDescriptor, payslipColumns, q, scanPayslip, func(p Payslip) string { return p.ID })
}

func (s *Store) MatchingPayrollIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error) {
	return listing.FetchIDs(ctx, s.DB, PayrollDescriptor, f, limit)
}

func (s *Store) MatchingPayslipIDs(ctx context.Context, f listing.Filter, limit int) ([]string, error) {
	return listing.FetchIDs(ctx, s.DB, PayslipDescriptor, f, limit)
}

func (s *Store) EachPayroll(ctx context.Context, employeeID string, set export.Set, fn func(Payroll) error) error {
	sql, args := set.SQL(PayrollDescriptor, payrollColumns, employeeID)
	return listing.ForEach(ctx, s.DB, sql, args, scanPayroll, fn)
}

func (s *Store) EachPayslip(ctx context.Context, employeeID string, set export.Set, fn func(Payslip) error) error {
	sql, args := set.SQL(PayslipDescriptor, payslipColumns, employeeID)
	return listing.ForEach(ctx, s.DB, sql, args, scanPayslip, fn)
}

func (s *Store) GetPayslip(ctx context.Context, employeeID, id string) (Payslip, error) {
	sql, args := PayslipDescriptor.SelectedSQL(payslipColumns, employeeID, []string{id})
	p, err := scanPayslip(s.DB.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payslip{}, ErrPayslipNotFound
	}
	return p, err
}

func (s *Store) StatusTotals(ctx context.Context) ([]StatusTotal, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT status, COUNT(1), COALESCE(SUM(net_pay), 0)::float8
    FROM payrolls
    GROUP BY status
    ORDER BY status
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StatusTotal{}
	for rows.Next() {
		var t StatusTotal
		if err := rows.Scan(&t.Status, &t.Count, &t.NetPay); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) WithTx(ctx context.Context, fn func(TxRepository) error) error {
	return db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) LockPayrolls(ctx context.Context, employeeID string, ids []string) ([]Payroll, error) {
	sql, args := PayrollDescriptor.SelectedSQL(payrollColumns, employeeID, ids)
	return listing.Collect(ctx, t.tx, sql+" FOR UPDATE OF p", args, scanPayroll)
}

func (t *txStore) PayslipFiles(ctx context.Context, payrollIDs []string) ([]string, error) {
	return listing.Collect(ctx, t.tx, `
    SELECT file_path FROM payslips
    WHERE payroll_id::text = ANY($1) AND file_path IS NOT NULL AND file_path <> ''
  `, []any{payrollIDs}, func(row pgx.Row) (string, error) {
		var path string
		err := row.Scan(&path)
		return path, err
	})
}

func (t *txStore) DeletePayrolls(ctx context.Context, employeeID string, ids []string) error {
	_, err := t.tx.Exec(ctx, "DELETE FROM payrolls WHERE employee_id::text = $1 AND id::text = ANY($2)", employeeID, ids)
	return err
}

func (t *txStore) SetPayslipFile(ctx context.Context, id, path, name string, downloadedAt *time.Time) error {
	_, err := t.tx.Exec(ctx, `
    UPDATE payslips
    SET file_path = $2, file_name = $3,
        is_downloaded = is_downloaded OR $4::timestamptz IS NOT NULL,
        downloaded_at = COALESCE($4::timestamptz, downloaded_at)
    WHERE id::text = $1
  `, id, path, name, downloadedAt)
	return err
}

func (t *txStore) MarkPayslipDownloaded(ctx context.Context, id string, at time.Time) error {
	_, err := t.tx.Exec(ctx, "UPDATE payslips SET is_downloaded = true, downloaded_at = $2 WHERE id::text = $1", id, at)
	return err
}

func (t *txStore) MarkPayslipEmailed(ctx context.Context, id string, at time.Time) error {
	_, err := t.tx.Exec(ctx, "UPDATE payslips SET is_emailed = true, emailed_at = $2 WHERE id::text = $1", id, at)
	return err
}

func (t *txStore) DeletePayslip(ctx context.Context, employeeID, id string) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM payslips WHERE employee_id::text = $1 AND id::text = $2", employeeID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPayslipNotFound
	}
	return nil
}

func (t *txStore) Audit(ctx context.Context, e audit.Entry) error {
	return audit.Insert(ctx, t.tx, e)
}
