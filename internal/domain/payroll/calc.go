package payroll

type Line struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// Breakdown is the salary summary printed on a payslip.
type Breakdown struct {
	BasicSalary     float64 `json:"basicSalary"`
	AllowanceLines  []Line  `json:"allowanceLines"`
	DeductionLines  []Line  `json:"deductionLines"`
	TotalAllowances float64 `json:"totalAllowances"`
	TotalDeductions float64 `json:"totalDeductions"`
	Gross           float64 `json:"gross"`
	Net             float64 `json:"net"`
}

func (a Allowances) Lines() []Line {
	return []Line{
		{Label: "House", Amount: a.House},
		{Label: "Transport", Amount: a.Transport},
		{Label: "Medical", Amount: a.Medical},
		{Label: "Overtime", Amount: a.Overtime},
		{Label: "Bonus", Amount: a.Bonus},
		{Label: "Other", Amount: a.Other},
	}
}

func (d Deductions) Lines() []Line {
	return []Line{
		{Label: "Tax", Amount: d.Tax},
		{Label: "Pension", Amount: d.Pension},
		{Label: "Insurance", Amount: d.Insurance},
		{Label: "Loan", Amount: d.Loan},
		{Label: "Other", Amount: d.Other},
	}
}

func sum(lines []Line) float64 {
	total := 0.0
	for _, l := range lines {
		total += l.Amount
	}
	return total
}

// ComputeBreakdown totals the fixed sub-fields of a payroll. The stored
// aggregate columns are not consulted.
func ComputeBreakdown(p Payroll) Breakdown {
	allowances := p.Allowances.Lines()
	deductions := p.Deductions.Lines()
	b := Breakdown{
		BasicSalary:     p.BasicSalary,
		AllowanceLines:  allowances,
		DeductionLines:  deductions,
		TotalAllowances: sum(allowances),
		TotalDeductions: sum(deductions),
	}
	b.Gross = b.BasicSalary + b.TotalAllowances
	b.Net = b.Gross - b.TotalDeductions
	return b
}
