package auth

const (
	RoleHR        = "hr"
	RoleRecruiter = "recruiter"
	RoleEmployee  = "employee"
)

const (
	PermPayrollRead       = "payroll.read"
	PermPayrollWrite      = "payroll.write"
	PermPayrollDelete     = "payroll.delete"
	PermPayslipsRead      = "payslips.read"
	PermPayslipsManage    = "payslips.manage"
	PermRecruitmentRead   = "recruitment.read"
	PermRecruitmentWrite  = "recruitment.write"
	PermRecruitmentDelete = "recruitment.delete"
	PermAuditRead         = "audit.read"
	PermDashboardRead     = "dashboard.read"
)

var DefaultPermissions = []string{
	PermPayrollRead,
	PermPayrollWrite,
	PermPayrollDelete,
	PermPayslipsRead,
	PermPayslipsManage,
	PermRecruitmentRead,
	PermRecruitmentWrite,
	PermRecruitmentDelete,
	PermAuditRead,
	PermDashboardRead,
}

var RolePermissions = map[string][]string{
	RoleHR: {
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollDelete,
		PermPayslipsRead,
		PermPayslipsManage,
		PermRecruitmentRead,
		PermRecruitmentWrite,
		PermRecruitmentDelete,
		PermAuditRead,
		PermDashboardRead,
	},
	RoleRecruiter: {
		PermRecruitmentRead,
		PermRecruitmentWrite,
		PermRecruitmentDelete,
		PermDashboardRead,
	},
	RoleEmployee: {
		PermPayslipsRead,
	},
}
