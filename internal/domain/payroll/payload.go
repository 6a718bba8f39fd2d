package payroll

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ItemPayload is the decoded form of a line item request. Numeric inputs keep
// track of presence so an omitted field is not read as zero.
type ItemPayload struct {
	EmployeeName   string              `json:"employeeName"`
	Classification string              `json:"classification"`
	DavisBacon     bool                `json:"davisBacon"`
	BaseRate       decimal.NullDecimal `json:"baseRate"`
	FringeRate     decimal.NullDecimal `json:"fringeRate"`
	HoursRegular   decimal.NullDecimal `json:"hoursRegular"`
	HoursOT        decimal.NullDecimal `json:"hoursOt"`
	Deductions     Deductions          `json:"deductions"`
	BankRouting    string              `json:"bankRouting"`
	BankAccount    string              `json:"bankAccount"`
	AccountType    string              `json:"accountType"`
	EmployeeRef    string              `json:"employeeRef"`
}

// Inputs converts the payload. Every absent or null numeric input is reported.
func (p ItemPayload) Inputs() (Inputs, error) {
	item := strings.TrimSpace(p.EmployeeName)
	var errs ValidationErrors
	value := func(field string, v decimal.NullDecimal) decimal.Decimal {
		if !v.Valid {
			errs = append(errs, &ValidationError{Item: item, Field: field, Reason: "is required"})
			return decimal.Zero
		}
		return v.Decimal
	}
	in := Inputs{
		EmployeeName:   p.EmployeeName,
		Classification: p.Classification,
		DavisBacon:     p.DavisBacon,
		BaseRate:       value(FieldBaseRate, p.BaseRate),
		FringeRate:     value(FieldFringeRate, p.FringeRate),
		HoursRegular:   value(FieldHoursRegular, p.HoursRegular),
		HoursOT:        value(FieldHoursOT, p.HoursOT),
		Deductions:     p.Deductions,
		BankRouting:    p.BankRouting,
		BankAccount:    p.BankAccount,
		AccountType:    p.AccountType,
		EmployeeRef:    p.EmployeeRef,
	}
	if len(errs) > 0 {
		return Inputs{}, errs
	}
	return in, nil
}
