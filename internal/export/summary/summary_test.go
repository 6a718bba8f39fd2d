package summary

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"crewpay/internal/domain/payroll"
)

func testRun() payroll.Run {
	return payroll.Run{ID: "run-7", WeekEnding: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), Status: payroll.RunStatusFinalized}
}

func testItems() []payroll.LineItem {
	return []payroll.LineItem{
		{
			ID: "a",
			Inputs: payroll.Inputs{
				EmployeeName: "Ana Ruiz", Classification: "Carpenter", DavisBacon: true,
				HoursRegular: decimal.RequireFromString("40"), HoursOT: decimal.RequireFromString("5"),
			},
			Computed: &payroll.ComputedPay{Gross: 118750, Fringe: 22500, Taxes: 20960, DeductionsTotal: 5000, Net: 115290},
		},
		{
			ID: "b",
			Inputs: payroll.Inputs{
				EmployeeName: "Bo Li", Classification: "Laborer",
				HoursRegular: decimal.RequireFromString("32.5"), HoursOT: decimal.Zero,
			},
			Computed: &payroll.ComputedPay{Gross: 65000, Taxes: 11473, Net: 53527},
		},
	}
}

func readSheet(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != SheetName {
		t.Fatalf("expected single sheet %q, got %v", SheetName, sheets)
	}
	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	return rows
}

func TestExportWorkbook(t *testing.T) {
	data, err := Bytes(testRun(), testItems())
	if err != nil {
		t.Fatalf("Bytes returned error: %v", err)
	}
	rows := readSheet(t, data)
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], "|") != strings.Join(Header, "|") {
		t.Fatalf("unexpected header %v", rows[0])
	}
	want := [][]string{
		{"Ana Ruiz", "Carpenter", "Yes", "40", "5", "1187.5", "225", "209.6", "50", "1152.9"},
		{"Bo Li", "Laborer", "No", "32.5", "0", "650", "0", "114.73", "0", "535.27"},
	}
	for i, row := range want {
		if strings.Join(rows[i+1], "|") != strings.Join(row, "|") {
			t.Fatalf("row %d: expected %v, got %v", i+1, row, rows[i+1])
		}
	}
}

func TestExportEmptyRunHasHeaderOnly(t *testing.T) {
	data, err := Bytes(testRun(), nil)
	if err != nil {
		t.Fatalf("Bytes returned error: %v", err)
	}
	rows := readSheet(t, data)
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportCSV(&buf, testRun(), testItems()); err != nil {
		t.Fatalf("ExportCSV returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != strings.Join(Header, ",") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "Ana Ruiz,Carpenter,Yes,40.00,5.00,1187.50,225.00,209.60,50.00,1152.90" {
		t.Fatalf("unexpected row %q", lines[1])
	}

	buf.Reset()
	if err := ExportCSV(&buf, testRun(), nil); err != nil {
		t.Fatalf("ExportCSV returned error: %v", err)
	}
	if strings.TrimSpace(buf.String()) != strings.Join(Header, ",") {
		t.Fatalf("expected header only, got %q", buf.String())
	}
}

func TestExportFailsOnUncalculatedItem(t *testing.T) {
	items := testItems()
	items[0].Computed = nil
	var buf bytes.Buffer
	err := Export(&buf, testRun(), items)
	var itemErr *ItemError
	if !errors.As(err, &itemErr) || itemErr.Index != 0 {
		t.Fatalf("expected ItemError for first item, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatal("expected nothing written")
	}
	if err := ExportCSV(&buf, testRun(), items); !errors.Is(err, payroll.ErrNotCalculated) {
		t.Fatalf("expected ErrNotCalculated, got %v", err)
	}
}
