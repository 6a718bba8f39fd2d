package payroll

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Deductions maps a deduction label (insurance, garnishment, ...) to an amount.
type Deductions map[string]decimal.Decimal

// UnmarshalJSON accepts numbers and numeric strings. Any other value counts as zero.
func (d *Deductions) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = CoerceDeductions(raw)
	return nil
}

func CoerceDeductions(raw map[string]any) Deductions {
	out := make(Deductions, len(raw))
	for label, value := range raw {
		out[label] = coerceAmount(value)
	}
	return out
}

func coerceAmount(value any) decimal.Decimal {
	switch v := value.(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case json.Number:
		if parsed, err := decimal.NewFromString(v.String()); err == nil {
			return parsed
		}
	case string:
		if parsed, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	case decimal.Decimal:
		return v
	}
	return decimal.Zero
}

func (d Deductions) Total() decimal.Decimal {
	total := decimal.Zero
	for _, label := range d.Labels() {
		total = total.Add(d[label])
	}
	return total
}

// Labels returns the deduction labels in a stable order.
func (d Deductions) Labels() []string {
	labels := make([]string, 0, len(d))
	for label := range d {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
