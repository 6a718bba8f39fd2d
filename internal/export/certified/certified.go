package certified

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"crewpay/internal/domain/payroll"
)

const (
	Title = "Certified Payroll Report (WH-347)"

	dateLayout = "01/02/2006"
	rowHeight  = 6.0
	margin     = 10.0
)

type ItemError = payroll.ItemError

type Options struct {
	ContractorName string
	// Uncompressed leaves page streams readable, mostly for tests.
	Uncompressed bool
}

type column struct {
	title string
	width float64
	align string
}

var columns = []column{
	{"#", 10, "C"},
	{"Employee", 50, "L"},
	{"Classification", 40, "L"},
	{"DB", 12, "C"},
	{"Reg Hrs", 20, "R"},
	{"OT Hrs", 20, "R"},
	{"Gross", 22, "R"},
	{"Fringe", 20, "R"},
	{"Taxes", 20, "R"},
	{"Deductions", 22, "R"},
	{"Net", 23, "R"},
}

// Exporter renders the weekly certified payroll as a landscape letter PDF.
type Exporter struct {
	opts Options
}

func New(opts Options) *Exporter {
	return &Exporter{opts: opts}
}

// Export writes one table row per item in the given order. Every item must
// carry computed pay; otherwise nothing is written.
func (e *Exporter) Export(w io.Writer, run payroll.Run, items []payroll.LineItem) error {
	if err := payroll.RequireCalculated(items); err != nil {
		return err
	}

	pdf := gofpdf.New("L", "mm", "Letter", "")
	pdf.SetCompression(!e.opts.Uncompressed)
	pdf.SetCreationDate(run.WeekEnding)
	pdf.SetModificationDate(run.WeekEnding)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(Title, false)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetHeaderFunc(func() {
		e.header(pdf, tr, run)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 9)
	for i, item := range items {
		c := item.Computed
		marker := ""
		if item.DavisBacon {
			marker = "DB"
		}
		cells := []string{
			fmt.Sprintf("%d", i+1),
			item.EmployeeName,
			item.Classification,
			marker,
			item.HoursRegular.StringFixed(2),
			item.HoursOT.StringFixed(2),
			currency(c.Gross),
			currency(c.Fringe),
			currency(c.Taxes),
			currency(c.DeductionsTotal),
			currency(c.Net),
		}
		for j, col := range columns {
			pdf.CellFormat(col.width, rowHeight, fit(pdf, tr(cells[j]), col.width), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Statement of Compliance", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 5, tr(statement(e.opts.ContractorName, run)), "", "L", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("certified payroll: %w", err)
	}
	return nil
}

func (e *Exporter) Bytes(run payroll.Run, items []payroll.LineItem) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Export(&buf, run, items); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Exporter) header(pdf *gofpdf.Fpdf, tr func(string) string, run payroll.Run) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, Title, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	if e.opts.ContractorName != "" {
		pdf.CellFormat(0, 5, tr("Contractor: "+e.opts.ContractorName), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 5, "Payroll run: "+run.ID, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Week ending: "+run.WeekEnding.Format(dateLayout), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Status: "+string(run.Status), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range columns {
		pdf.CellFormat(col.width, rowHeight, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
}

func statement(contractor string, run payroll.Run) string {
	who := "the contractor"
	if contractor != "" {
		who = contractor
	}
	return fmt.Sprintf("I certify that the payroll for the week ending %s is correct and complete, "+
		"that each laborer or mechanic listed was paid the full weekly wages earned, "+
		"and that no rebates have been or will be made on behalf of %s. "+
		"Where marked DB, fringe benefits were paid in cash at the applicable prevailing rates.",
		run.WeekEnding.Format(dateLayout), who)
}

func currency(m payroll.Money) string {
	return "$" + m.String()
}

// fit trims text so it stays inside a cell of the given width.
func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	limit := width - 2*pdf.GetCellMargin()
	if pdf.GetStringWidth(text) <= limit {
		return text
	}
	for len(text) > 0 && pdf.GetStringWidth(text+"...") > limit {
		text = text[:len(text)-1]
	}
	return text + "..."
}
