package payroll

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFRenderer lays out payslips on a single A4 page.
type PDFRenderer struct{}

func NewPDFRenderer() PDFRenderer {
	return PDFRenderer{}
}

func (PDFRenderer) Render(view PayslipView) ([]byte, error) {
	money := func(v float64) string {
		if view.Currency == "" {
			return fmt.Sprintf("%.2f", v)
		}
		return fmt.Sprintf("%.2f %s", v, view.Currency)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(view.Company.Name))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	if view.Company.Address != "" {
		pdf.Cell(0, 6, tr(view.Company.Address))
		pdf.Ln(5)
	}
	if view.Company.Email != "" {
		pdf.Cell(0, 6, tr(view.Company.Email))
		pdf.Ln(5)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, "Payslip "+tr(view.Payslip.Number))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s (%s)", tr(view.Employee.FullName()), tr(view.Employee.Number)))
	pdf.Ln(6)
	if view.Employee.Department != "" || view.Employee.JobTitle != "" {
		pdf.Cell(0, 7, fmt.Sprintf("Department: %s  Position: %s", tr(view.Employee.Department), tr(view.Employee.JobTitle)))
		pdf.Ln(6)
	}
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s", tr(view.Payroll.PeriodLabel)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Pay date: %s", view.Payroll.PayDate.Format("2006-01-02")))
	pdf.Ln(10)

	b := view.Breakdown
	row := func(label, amount string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 11)
		pdf.CellFormat(120, 7, label, "B", 0, "L", false, 0, "")
		pdf.CellFormat(60, 7, amount, "B", 1, "R", false, 0, "")
	}

	row("Basic salary", money(b.BasicSalary), false)
	pdf.Ln(3)
	row("Allowances", "", true)
	for _, l := range b.AllowanceLines {
		row("  "+l.Label, money(l.Amount), false)
	}
	row("Total allowances", money(b.TotalAllowances), true)
	pdf.Ln(3)
	row("Deductions", "", true)
	for _, l := range b.DeductionLines {
		row("  "+l.Label, money(l.Amount), false)
	}
	row("Total deductions", money(b.TotalDeductions), true)
	pdf.Ln(3)
	row("Gross pay", money(b.Gross), false)
	row("Net pay", money(b.Net), true)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
