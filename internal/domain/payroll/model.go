package payroll

import (
	"errors"
	"time"

	"hrdesk/internal/domain/export"
)

var (
	ErrNotFound        = errors.New("payroll not found")
	ErrPayslipNotFound = errors.New("payslip not found")
	ErrRenderFailed    = errors.New("payslip could not be rendered")
	ErrStorageFailed   = errors.New("payslip could not be stored")
	ErrEmailDisabled   = errors.New("email delivery is not configured")
	ErrNoRecipient     = errors.New("employee has no email address")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusPaid      Status = "paid"
)

var Statuses = []string{string(StatusPending), string(StatusProcessed), string(StatusPaid)}

type Allowances struct {
	House     float64 `json:"house"`
	Transport float64 `json:"transport"`
	Medical   float64 `json:"medical"`
	Overtime  float64 `json:"overtime"`
	Bonus     float64 `json:"bonus"`
	Other     float64 `json:"other"`
}

type Deductions struct {
	Tax       float64 `json:"tax"`
	Pension   float64 `json:"pension"`
	Insurance float64 `json:"insurance"`
	Loan      float64 `json:"loan"`
	Other     float64 `json:"other"`
}

type Payroll struct {
	ID              string     `json:"id"`
	EmployeeID      string     `json:"employeeId"`
	EmployeeName    string     `json:"employeeName"`
	PeriodLabel     string     `json:"periodLabel"`
	PayDate         time.Time  `json:"payDate"`
	BasicSalary     float64    `json:"basicSalary"`
	Allowances      Allowances `json:"allowances"`
	Deductions      Deductions `json:"deductions"`
	TotalAllowances float64    `json:"totalAllowances"`
	TotalDeductions float64    `json:"totalDeductions"`
	NetPay          float64    `json:"netPay"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type Payslip struct {
	ID           string     `json:"id"`
	EmployeeID   string     `json:"employeeId"`
	EmployeeName string     `json:"employeeName"`
	PayrollID    string     `json:"payrollId"`
	PeriodLabel  string     `json:"periodLabel"`
	Number       string     `json:"payslipNumber"`
	FilePath     string     `json:"filePath,omitempty"`
	FileName     string     `json:"fileName,omitempty"`
	IsEmailed    bool       `json:"isEmailed"`
	EmailedAt    *time.Time `json:"emailedAt,omitempty"`
	IsDownloaded bool       `json:"isDownloaded"`
	DownloadedAt *time.Time `json:"downloadedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// File is a rendered payslip ready to be sent to the client.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func PayrollCSVHeader() []string {
	return []string{"ID", "Employee Name", "Period", "Pay Date", "Basic Salary", "Total Allowances", "Total Deductions", "Net Pay", "Status"}
}

func (p Payroll) CSVRow() []string {
	return []string{
		p.ID,
		p.EmployeeName,
		p.PeriodLabel,
		export.Date(p.PayDate),
		export.Amount(p.BasicSalary),
		export.Amount(p.TotalAllowances),
		export.Amount(p.TotalDeductions),
		export.Amount(p.NetPay),
		string(p.Status),
	}
}

func PayslipCSVHeader() []string {
	return []string{"ID", "Employee Name", "Payslip Number", "Period", "Emailed", "Emailed At", "Downloaded", "Downloaded At", "File Name"}
}

func (p Payslip) CSVRow() []string {
	return []string{
		p.ID,
		p.EmployeeName,
		p.Number,
		p.PeriodLabel,
		export.YesNo(p.IsEmailed),
		export.Timestamp(p.EmailedAt),
		export.YesNo(p.IsDownloaded),
		export.Timestamp(p.DownloadedAt),
		p.FileName,
	}
}
