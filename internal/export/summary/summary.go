package summary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"crewpay/internal/domain/payroll"
)

const (
	SheetName = "Payroll Summary"

	// built-in number formats: 2 is "0.00", 4 is "#,##0.00"
	hoursNumFmt = 2
	moneyNumFmt = 4
)

var Header = []string{
	"Employee", "Classification", "Davis-Bacon", "Hours Regular", "Hours OT",
	"Gross", "Fringe", "Taxes", "Deductions", "Net",
}

type ItemError = payroll.ItemError

// Row is one summary line. The csv tags match Header.
type Row struct {
	Employee       string        `csv:"Employee"`
	Classification string        `csv:"Classification"`
	DavisBacon     string        `csv:"Davis-Bacon"`
	HoursRegular   string        `csv:"Hours Regular"`
	HoursOT        string        `csv:"Hours OT"`
	Gross          payroll.Money `csv:"Gross"`
	Fringe         payroll.Money `csv:"Fringe"`
	Taxes          payroll.Money `csv:"Taxes"`
	Deductions     payroll.Money `csv:"Deductions"`
	Net            payroll.Money `csv:"Net"`
}

// Rows maps items to summary rows in the given order.
func Rows(items []payroll.LineItem) ([]Row, error) {
	if err := payroll.RequireCalculated(items); err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		c := item.Computed
		davisBacon := "No"
		if item.DavisBacon {
			davisBacon = "Yes"
		}
		rows = append(rows, Row{
			Employee:       item.EmployeeName,
			Classification: item.Classification,
			DavisBacon:     davisBacon,
			HoursRegular:   item.HoursRegular.StringFixed(2),
			HoursOT:        item.HoursOT.StringFixed(2),
			Gross:          c.Gross,
			Fringe:         c.Fringe,
			Taxes:          c.Taxes,
			Deductions:     c.DeductionsTotal,
			Net:            c.Net,
		})
	}
	return rows, nil
}

// Export writes a single-sheet workbook. There is no totals row.
func Export(w io.Writer, run payroll.Run, items []payroll.LineItem) error {
	rows, err := Rows(items)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	stamp := run.WeekEnding.Format("2006-01-02T15:04:05Z")
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:    fmt.Sprintf("Payroll summary, week ending %s", run.WeekEnding.Format("2006-01-02")),
		Subject:  run.ID,
		Creator:  "crewpay",
		Created:  stamp,
		Modified: stamp,
	}); err != nil {
		return fmt.Errorf("summary: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "J1", bold); err != nil {
		return fmt.Errorf("summary: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		item := items[i]
		values := []any{
			row.Employee,
			row.Classification,
			row.DavisBacon,
			item.HoursRegular.InexactFloat64(),
			item.HoursOT.InexactFloat64(),
			row.Gross.Float64(),
			row.Fringe.Float64(),
			row.Taxes.Float64(),
			row.Deductions.Float64(),
			row.Net.Float64(),
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("summary: row %d: %w", i+1, err)
		}
	}

	if len(rows) > 0 {
		last := len(rows) + 1
		hours, err := f.NewStyle(&excelize.Style{NumFmt: hoursNumFmt})
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		money, err := f.NewStyle(&excelize.Style{NumFmt: moneyNumFmt})
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		if err := f.SetCellStyle(SheetName, "D2", fmt.Sprintf("E%d", last), hours); err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		if err := f.SetCellStyle(SheetName, "F2", fmt.Sprintf("J%d", last), money); err != nil {
			return fmt.Errorf("summary: %w", err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "B", 28); err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	if err := f.SetColWidth(SheetName, "C", "J", 14); err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("summary: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("summary: write: %w", err)
	}
	return nil
}

// ExportCSV writes the same rows as comma-separated text.
func ExportCSV(w io.Writer, run payroll.Run, items []payroll.LineItem) error {
	rows, err := Rows(items)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("summary csv: %w", err)
	}
	return nil
}

func Bytes(run payroll.Run, items []payroll.LineItem) ([]byte, error) {
	var buf bytes.Buffer
	if err := Export(&buf, run, items); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
