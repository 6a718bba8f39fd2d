package payroll

type RunStatus string

const (
	RunStatusDraft     RunStatus = "draft"
	RunStatusFinalized RunStatus = "finalized"
	RunStatusExported  RunStatus = "exported"
	RunStatusPaid      RunStatus = "paid"

	AccountTypeChecking = "checking"
	AccountTypeSavings  = "savings"

	TaxFICA           = "fica"
	TaxMedicare       = "medicare"
	TaxFedWithholding = "fed_withholding"

	FieldBaseRate     = "base_rate"
	FieldFringeRate   = "fringe_rate"
	FieldHoursRegular = "hours_regular"
	FieldHoursOT      = "hours_ot"
	FieldDeductions   = "deductions"
	FieldNetPay       = "net_pay"
	FieldWeekEnding   = "week_ending"
	FieldEmployeeName = "employee_name"
	FieldAccountType  = "account_type"
	FieldBankRouting  = "bank_routing"
	FieldBankAccount  = "bank_account"
	FieldComputed     = "computed"
)

// overtimeMultiplier is applied to the base rate for overtime hours.
const overtimeMultiplier = "1.5"

var runTransitions = map[RunStatus][]RunStatus{
	RunStatusDraft:     {RunStatusFinalized},
	RunStatusFinalized: {RunStatusExported},
	RunStatusExported:  {RunStatusExported, RunStatusPaid},
}

func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusDraft, RunStatusFinalized, RunStatusExported, RunStatusPaid:
		return true
	}
	return false
}
