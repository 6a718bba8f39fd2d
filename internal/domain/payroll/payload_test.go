package payroll

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestItemPayloadReportsAbsentNumerics(t *testing.T) {
	var p ItemPayload
	if err := json.Unmarshal([]byte(`{"employeeName":"Ana","hoursRegular":40}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	_, err := p.Inputs()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 3 {
		t.Fatalf("expected three missing fields, got %v", err)
	}
	want := []string{FieldBaseRate, FieldFringeRate, FieldHoursOT}
	for i, field := range want {
		if verrs[i].Field != field || verrs[i].Item != "Ana" {
			t.Fatalf("error %d: expected %s on Ana, got %+v", i, field, verrs[i])
		}
	}
}

func TestItemPayloadKeepsExplicitValues(t *testing.T) {
	var p ItemPayload
	body := `{"employeeName":"Ana","baseRate":"25.00","fringeRate":"5.00","hoursRegular":40,"hoursOt":5,` +
		`"deductions":{"union_dues":"50.00"},"bankRouting":"021000021","bankAccount":"000123456789"}`
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	in, err := p.Inputs()
	if err != nil {
		t.Fatalf("Inputs returned error: %v", err)
	}
	pay, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if pay.Net.String() != "1152.90" {
		t.Fatalf("expected 1152.90, got %s", pay.Net)
	}
}

func TestItemPayloadNullIsAbsent(t *testing.T) {
	var p ItemPayload
	body := `{"employeeName":"Bo","baseRate":null,"fringeRate":0,"hoursRegular":0,"hoursOt":0}`
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	_, err := p.Inputs()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 1 || verrs[0].Field != FieldBaseRate {
		t.Fatalf("expected base_rate only, got %v", err)
	}
}
