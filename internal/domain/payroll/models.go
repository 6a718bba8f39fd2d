package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

type Run struct {
	ID          string     `json:"id"`
	WeekEnding  time.Time  `json:"weekEnding"`
	Status      RunStatus  `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	FinalizedAt *time.Time `json:"finalizedAt,omitempty"`
}

// Inputs are the caller-owned fields of a line item.
type Inputs struct {
	EmployeeName   string          `json:"employeeName"`
	Classification string          `json:"classification"`
	DavisBacon     bool            `json:"davisBacon"`
	BaseRate       decimal.Decimal `json:"baseRate"`
	FringeRate     decimal.Decimal `json:"fringeRate"`
	HoursRegular   decimal.Decimal `json:"hoursRegular"`
	HoursOT        decimal.Decimal `json:"hoursOt"`
	Deductions     Deductions      `json:"deductions"`
	BankRouting    string          `json:"bankRouting"`
	BankAccount    string          `json:"bankAccount"`
	AccountType    string          `json:"accountType"`
	EmployeeRef    string          `json:"employeeRef"`
}

type LineItem struct {
	ID       string `json:"id"`
	RunID    string `json:"runId"`
	Position int    `json:"position"`
	Inputs   `json:"inputs"`
	Computed *ComputedPay `json:"computed,omitempty"`
}

type TaxLine struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount Money           `json:"amount"`
}

// ComputedPay is written only by the Calculator.
type ComputedPay struct {
	GrossRegular    Money     `json:"grossRegular"`
	GrossOvertime   Money     `json:"grossOvertime"`
	Gross           Money     `json:"gross"`
	Fringe          Money     `json:"fringe"`
	Taxes           Money     `json:"taxes"`
	DeductionsTotal Money     `json:"deductionsTotal"`
	Net             Money     `json:"net"`
	Breakdown       []TaxLine `json:"breakdown"`
}

// Label identifies an item in error messages.
func (i LineItem) Label() string {
	if i.ID != "" {
		return i.ID
	}
	return i.EmployeeName
}

func (i LineItem) Calculated() bool {
	return i.Computed != nil
}

// ApplyInputs replaces the inputs and drops any computed pay.
func (i *LineItem) ApplyInputs(status RunStatus, in Inputs) error {
	if status != RunStatusDraft {
		return ErrItemFrozen
	}
	i.Inputs = in
	i.Computed = nil
	return nil
}

// SetWeekEnding is only allowed while the run is a draft.
func (r *Run) SetWeekEnding(weekEnding time.Time) error {
	if r.Status != RunStatusDraft {
		return ErrWeekEndingFrozen
	}
	r.WeekEnding = dateOnly(weekEnding)
	return nil
}

func (r *Run) Transition(to RunStatus, now time.Time) error {
	for _, allowed := range runTransitions[r.Status] {
		if allowed == to {
			if to == RunStatusFinalized {
				stamped := now.UTC()
				r.FinalizedAt = &stamped
			}
			r.Status = to
			return nil
		}
	}
	return ErrInvalidTransition
}

func (r Run) Exportable() bool {
	return r.Status == RunStatusFinalized || r.Status == RunStatusExported || r.Status == RunStatusPaid
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
