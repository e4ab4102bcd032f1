package payroll

import "testing"

func TestComputeBreakdown(t *testing.T) {
	p := Payroll{
		BasicSalary: 1000,
		Allowances:  Allowances{House: 200, Transport: 50},
		Deductions:  Deductions{Tax: 100, Loan: 25},
		// stale aggregates must be ignored
		TotalAllowances: 9999,
		NetPay:          1,
	}

	b := ComputeBreakdown(p)
	if b.TotalAllowances != 250 {
		t.Fatalf("expected allowances 250, got %v", b.TotalAllowances)
	}
	if b.TotalDeductions != 125 {
		t.Fatalf("expected deductions 125, got %v", b.TotalDeductions)
	}
	if b.Gross != 1250 {
		t.Fatalf("expected gross 1250, got %v", b.Gross)
	}
	if b.Net != 1125 {
		t.Fatalf("expected net 1125, got %v", b.Net)
	}
	if len(b.AllowanceLines) != 6 || len(b.DeductionLines) != 5 {
		t.Fatalf("unexpected line counts: %d allowances, %d deductions", len(b.AllowanceLines), len(b.DeductionLines))
	}
}

func TestComputeBreakdownZero(t *testing.T) {
	b := ComputeBreakdown(Payroll{})
	if b.Net != 0 || b.Gross != 0 {
		t.Fatalf("expected zero totals, got %+v", b)
	}
}
