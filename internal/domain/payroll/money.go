package payroll

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Money is an amount in cents.
type Money int64

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(Round2(d).Mul(hundred).IntPart())
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	*m = MoneyFromDecimal(d)
	return nil
}

// MarshalCSV satisfies gocsv.TypeMarshaller.
func (m Money) MarshalCSV() (string, error) {
	return m.String(), nil
}
