package payroll

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestComputeWorkedExample(t *testing.T) {
	in := Inputs{
		EmployeeName: "Ana Ruiz",
		DavisBacon:   true,
		BaseRate:     dec("25"),
		FringeRate:   dec("5"),
		HoursRegular: dec("40"),
		HoursOT:      dec("5"),
		Deductions:   Deductions{"insurance": dec("50")},
	}

	got, err := Compute(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []struct {
		name string
		got  Money
		want string
	}{
		{"gross_regular", got.GrossRegular, "1000.00"},
		{"gross_ot", got.GrossOvertime, "187.50"},
		{"gross", got.Gross, "1187.50"},
		{"fringe", got.Fringe, "225.00"},
		{"taxes", got.Taxes, "209.60"},
		{"deductions", got.DeductionsTotal, "50.00"},
		{"net", got.Net, "1152.90"},
	}
	for _, c := range checks {
		if c.got.String() != c.want {
			t.Fatalf("expected %s %s, got %s", c.name, c.want, c.got)
		}
	}

	wantTaxes := map[string]string{TaxFICA: "73.63", TaxMedicare: "17.22", TaxFedWithholding: "118.75"}
	if len(got.Breakdown) != len(wantTaxes) {
		t.Fatalf("expected %d tax lines, got %d", len(wantTaxes), len(got.Breakdown))
	}
	for _, line := range got.Breakdown {
		if line.Amount.String() != wantTaxes[line.Name] {
			t.Fatalf("expected %s %s, got %s", line.Name, wantTaxes[line.Name], line.Amount)
		}
	}
}

func TestComputeNoFringeWithoutDavisBacon(t *testing.T) {
	got, err := Compute(Inputs{
		BaseRate:     dec("30"),
		FringeRate:   dec("12.75"),
		HoursRegular: dec("38.5"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Fringe != 0 {
		t.Fatalf("expected zero fringe, got %s", got.Fringe)
	}
}

func TestComputeRejectsNegativeInputs(t *testing.T) {
	_, err := Compute(Inputs{
		EmployeeName: "Sam",
		BaseRate:     dec("-1"),
		HoursOT:      dec("-2"),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 2 || verrs[0].Field != FieldBaseRate || verrs[1].Field != FieldHoursOT {
		t.Fatalf("unexpected fields: %v", verrs)
	}
}

func TestComputeRejectsNegativeDeduction(t *testing.T) {
	_, err := Compute(Inputs{
		BaseRate:     dec("20"),
		HoursRegular: dec("10"),
		Deductions:   Deductions{"refund": dec("-5")},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "deductions.refund" {
		t.Fatalf("unexpected field %q", verr.Field)
	}
}

func TestComputeNegativeNetIsValidationError(t *testing.T) {
	_, err := Compute(Inputs{
		EmployeeName: "Lee",
		BaseRate:     dec("20"),
		HoursRegular: dec("10"),
		Deductions:   Deductions{"garnishment": dec("500")},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != FieldNetPay {
		t.Fatalf("expected net_pay field, got %q", verr.Field)
	}
}

func TestComputeUsesInjectedPolicy(t *testing.T) {
	calc := NewCalculator(FixedRatePolicy{{Name: "flat", Rate: dec("0.2")}})
	got, err := calc.Compute(Inputs{BaseRate: dec("10"), HoursRegular: dec("10")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Taxes.String() != "20.00" || got.Net.String() != "80.00" {
		t.Fatalf("unexpected taxes %s net %s", got.Taxes, got.Net)
	}
}

func TestComputeReconcilesGeneratedItems(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	calc := NewCalculator(nil)
	for i := 0; i < 500; i++ {
		in := Inputs{
			DavisBacon:   rng.Intn(2) == 0,
			BaseRate:     decimal.New(int64(rng.Intn(9000)+1000), -2),
			FringeRate:   decimal.New(int64(rng.Intn(2500)), -2),
			HoursRegular: decimal.New(int64(rng.Intn(160)), -1).Mul(dec("2.5")),
			HoursOT:      decimal.New(int64(rng.Intn(80)), -1).Mul(dec("1.25")),
			Deductions: Deductions{
				"insurance": decimal.New(int64(rng.Intn(3000)), -2),
				"union":     decimal.New(int64(rng.Intn(1500)), -3),
			},
		}
		got, err := calc.Compute(in)
		if errors.Is(err, ErrValidation) {
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantGross := Round2(in.HoursRegular.Mul(in.BaseRate).Add(in.HoursOT.Mul(in.BaseRate).Mul(dec("1.5"))))
		if got.Gross != MoneyFromDecimal(wantGross) {
			t.Fatalf("item %d: gross %s, want %s", i, got.Gross, wantGross.StringFixed(2))
		}
		if !in.DavisBacon && got.Fringe != 0 {
			t.Fatalf("item %d: expected zero fringe, got %s", i, got.Fringe)
		}
		wantNet := Round2(got.Gross.Decimal().Add(got.Fringe.Decimal()).Sub(got.Taxes.Decimal()).Sub(in.Deductions.Total()))
		if got.Net != MoneyFromDecimal(wantNet) {
			t.Fatalf("item %d: net %s, want %s", i, got.Net, wantNet.StringFixed(2))
		}
	}
}

func TestCalculateStoresComputedPay(t *testing.T) {
	item := &LineItem{Inputs: Inputs{BaseRate: dec("10"), HoursRegular: dec("1")}}
	if err := NewCalculator(nil).Calculate(item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !item.Calculated() || item.Computed.Gross.String() != "10.00" {
		t.Fatalf("unexpected computed pay: %+v", item.Computed)
	}
}
