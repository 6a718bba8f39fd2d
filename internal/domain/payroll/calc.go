package payroll

import "github.com/shopspring/decimal"

var otMultiplier = decimal.RequireFromString(overtimeMultiplier)

// Calculator turns line item inputs into computed pay. It holds no mutable state.
type Calculator struct {
	policy TaxPolicy
}

func NewCalculator(policy TaxPolicy) *Calculator {
	if policy == nil {
		policy = DefaultTaxPolicy()
	}
	return &Calculator{policy: policy}
}

// Compute uses the default fixed-rate tax policy.
func Compute(in Inputs) (ComputedPay, error) {
	return NewCalculator(nil).Compute(in)
}

// Compute rounds half away from zero to cents at every step so downstream
// reports reconcile line by line.
func (c *Calculator) Compute(in Inputs) (ComputedPay, error) {
	if err := Validate(in); err != nil {
		return ComputedPay{}, err
	}

	otRate := in.BaseRate.Mul(otMultiplier)
	grossRegular := in.HoursRegular.Mul(in.BaseRate)
	grossOT := in.HoursOT.Mul(otRate)
	gross := Round2(grossRegular.Add(grossOT))

	fringe := decimal.Zero
	if in.DavisBacon {
		fringe = Round2(in.HoursRegular.Add(in.HoursOT).Mul(in.FringeRate))
	}

	components := c.policy.Components()
	breakdown := make([]TaxLine, 0, len(components))
	taxSum := decimal.Zero
	for _, component := range components {
		amount := Round2(gross.Mul(component.Rate))
		taxSum = taxSum.Add(amount)
		breakdown = append(breakdown, TaxLine{Name: component.Name, Rate: component.Rate, Amount: MoneyFromDecimal(amount)})
	}
	taxes := Round2(taxSum)

	deductions := in.Deductions.Total()
	net := Round2(gross.Add(fringe).Sub(taxes).Sub(deductions))
	if net.IsNegative() {
		return ComputedPay{}, &ValidationError{
			Item:   in.EmployeeName,
			Field:  FieldNetPay,
			Reason: "deductions exceed gross plus fringe (net " + net.StringFixed(2) + ")",
		}
	}

	return ComputedPay{
		GrossRegular:    MoneyFromDecimal(grossRegular),
		GrossOvertime:   MoneyFromDecimal(grossOT),
		Gross:           MoneyFromDecimal(gross),
		Fringe:          MoneyFromDecimal(fringe),
		Taxes:           MoneyFromDecimal(taxes),
		DeductionsTotal: MoneyFromDecimal(deductions),
		Net:             MoneyFromDecimal(net),
		Breakdown:       breakdown,
	}, nil
}

// Validate rejects negative numeric inputs. Nothing is clamped.
func Validate(in Inputs) error {
	var errs ValidationErrors
	check := func(field string, value decimal.Decimal) {
		if value.IsNegative() {
			errs = append(errs, &ValidationError{Item: in.EmployeeName, Field: field, Reason: "must not be negative, got " + value.String()})
		}
	}
	check(FieldBaseRate, in.BaseRate)
	check(FieldFringeRate, in.FringeRate)
	check(FieldHoursRegular, in.HoursRegular)
	check(FieldHoursOT, in.HoursOT)
	for _, label := range in.Deductions.Labels() {
		check(FieldDeductions+"."+label, in.Deductions[label])
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Calculate computes pay for an item in place.
func (c *Calculator) Calculate(item *LineItem) error {
	computed, err := c.Compute(item.Inputs)
	if err != nil {
		return err
	}
	item.Computed = &computed
	return nil
}
