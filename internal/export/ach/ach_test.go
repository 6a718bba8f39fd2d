package ach

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"crewpay/internal/domain/payroll"
)

var testRoutings = []string{"021000021", "011000015", "121000358", "091000019"}

func testConfig() Config {
	return Config{
		ImmediateDestination:     "021000021",
		ImmediateDestinationName: "First Test Bank",
		ImmediateOrigin:          "1234567890",
		ImmediateOriginName:      "Acme Builders",
		CompanyName:              "Acme Builders",
		CompanyID:                "1234567890",
		Now: func() time.Time {
			return time.Date(2024, 3, 8, 9, 30, 0, 0, time.UTC)
		},
	}
}

func testRun() payroll.Run {
	return payroll.Run{
		ID:         "run-1",
		WeekEnding: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		Status:     payroll.RunStatusFinalized,
	}
}

func paidItem(i int, net payroll.Money) payroll.LineItem {
	return payroll.LineItem{
		ID:       fmt.Sprintf("item-%d", i),
		Position: i + 1,
		Inputs: payroll.Inputs{
			EmployeeName: fmt.Sprintf("Worker %d", i),
			BankRouting:  testRoutings[i%len(testRoutings)],
			BankAccount:  fmt.Sprintf("%09d", 1000+i),
			EmployeeRef:  fmt.Sprintf("E%04d", i),
		},
		Computed: &payroll.ComputedPay{Net: net},
	}
}

func mustExporter(t *testing.T, cfg Config) *Exporter {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return e
}

func splitLines(t *testing.T, data []byte, ending string) []string {
	t.Helper()
	text := string(data)
	if !strings.HasSuffix(text, ending) {
		t.Fatalf("expected file to end with %q", ending)
	}
	return strings.Split(strings.TrimSuffix(text, ending), ending)
}

func TestExportReconcilesForEveryItemCount(t *testing.T) {
	e := mustExporter(t, testConfig())
	for _, n := range []int{0, 1, 5, 6, 7, 9, 10, 25} {
		items := make([]payroll.LineItem, n)
		var wantHash, wantCredit int64
		for i := range items {
			items[i] = paidItem(i, payroll.Money(100000+i*137))
			wantHash += rdfiID(items[i].BankRouting)
			wantCredit += int64(items[i].Computed.Net)
		}
		wantHash %= entryHashModulus

		data, res, err := e.Bytes(testRun(), items)
		if err != nil {
			t.Fatalf("n=%d: export error: %v", n, err)
		}
		lines := splitLines(t, data, "\n")
		for i, line := range lines {
			if len(line) != RecordLen {
				t.Fatalf("n=%d: line %d has %d characters", n, i+1, len(line))
			}
		}
		if len(lines)%BlockingFactor != 0 || len(lines) != res.LineCount {
			t.Fatalf("n=%d: unexpected line count %d (result %d)", n, len(lines), res.LineCount)
		}
		if res.BlockCount != len(lines)/BlockingFactor {
			t.Fatalf("n=%d: block count %d for %d lines", n, res.BlockCount, len(lines))
		}
		if res.EntryCount != n || res.EntryHash != wantHash || int64(res.TotalCredit) != wantCredit {
			t.Fatalf("n=%d: unexpected result %+v", n, res)
		}

		sum, err := Verify(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("n=%d: Verify rejected exported file: %v", n, err)
		}
		if sum.Entries != n || sum.EntryHash != wantHash || sum.TotalCredit != wantCredit || sum.TotalDebit != 0 {
			t.Fatalf("n=%d: unexpected summary %+v", n, sum)
		}
	}
}

func TestExportZeroItemsPadsOneBlock(t *testing.T) {
	data, res, err := mustExporter(t, testConfig()).Bytes(testRun(), nil)
	if err != nil {
		t.Fatalf("export error: %v", err)
	}
	lines := splitLines(t, data, "\n")
	if len(lines) != 10 || res.BlockCount != 1 {
		t.Fatalf("expected 10 lines in one block, got %d lines %d blocks", len(lines), res.BlockCount)
	}
	types := ""
	for _, line := range lines[:4] {
		types += line[:1]
	}
	if types != "1589" {
		t.Fatalf("unexpected record order %q", types)
	}
	for _, line := range lines[4:] {
		if line != strings.Repeat("9", RecordLen) {
			t.Fatalf("expected filler, got %q", line)
		}
	}
	fc := lines[3]
	if FileControl.Slice(fc, "EntryHash") != "0000000000" || FileControl.Slice(fc, "TotalCredit") != "000000000000" {
		t.Fatalf("unexpected file control %q", fc)
	}
	if FileControl.Slice(fc, "BlockCount") != "000001" || FileControl.Slice(fc, "BatchCount") != "000001" {
		t.Fatalf("unexpected file control counts %q", fc)
	}
}

func TestExportHeaderAndEntryFields(t *testing.T) {
	item := paidItem(0, 115290)
	item.EmployeeName = "José Núñez-García"
	item.AccountType = payroll.AccountTypeSavings
	item.EmployeeRef = "6789"

	data, _, err := mustExporter(t, testConfig()).Bytes(testRun(), []payroll.LineItem{item})
	if err != nil {
		t.Fatalf("export error: %v", err)
	}
	lines := splitLines(t, data, "\n")

	fh, bh, entry := lines[0], lines[1], lines[2]
	fileChecks := map[string]string{
		"ImmediateDestination": " 021000021",
		"ImmediateOrigin":      "1234567890",
		"FileCreationDate":     "240308",
		"FileCreationTime":     "0930",
		"FileIDModifier":       "A",
		"RecordSize":           "094",
	}
	for name, want := range fileChecks {
		if got := FileHeader.Slice(fh, name); got != want {
			t.Fatalf("file header %s: expected %q, got %q", name, want, got)
		}
	}
	batchChecks := map[string]string{
		"ServiceClassCode":        "220",
		"CompanyName":             "ACME BUILDERS   ",
		"StandardEntryClass":      "PPD",
		"CompanyEntryDescription": "PAYROLL   ",
		"CompanyDescriptiveDate":  "240309",
		"EffectiveEntryDate":      "240311",
		"OriginatingDFI":          "02100002",
		"BatchNumber":             "0000001",
	}
	for name, want := range batchChecks {
		if got := BatchHeader.Slice(bh, name); got != want {
			t.Fatalf("batch header %s: expected %q, got %q", name, want, got)
		}
	}
	entryChecks := map[string]string{
		"TransactionCode":          "32",
		"ReceivingDFI":             "02100002",
		"CheckDigit":               "1",
		"DFIAccountNumber":         "000001000        ",
		"Amount":                   "0000115290",
		"IndividualIdentification": "6789           ",
		"IndividualName":           "JOSE NUNEZ-GARCIA     ",
		"AddendaRecordIndicator":   "0",
		"TraceNumber":              "021000020000001",
	}
	for name, want := range entryChecks {
		if got := EntryDetail.Slice(entry, name); got != want {
			t.Fatalf("entry %s: expected %q, got %q", name, want, got)
		}
	}
}

func TestExportExcludesUnpayableItems(t *testing.T) {
	good := paidItem(0, 50000)

	shortRouting := paidItem(1, 50000)
	shortRouting.BankRouting = "02100002"

	badCheckDigit := paidItem(2, 50000)
	badCheckDigit.BankRouting = "021000022"

	noAccount := paidItem(3, 50000)
	noAccount.BankAccount = ""

	badAccount := paidItem(4, 50000)
	badAccount.BankAccount = "12-34"

	uncalculated := paidItem(5, 0)
	uncalculated.Computed = nil

	zero := paidItem(6, 0)

	overflow := paidItem(7, 10_000_000_000)

	alsoGood := paidItem(8, 25000)

	items := []payroll.LineItem{good, shortRouting, badCheckDigit, noAccount, badAccount, uncalculated, zero, overflow, alsoGood}
	data, res, err := mustExporter(t, testConfig()).Bytes(testRun(), items)
	if err != nil {
		t.Fatalf("export error: %v", err)
	}

	want := map[int]error{
		1: ErrInvalidRouting,
		2: ErrInvalidRouting,
		3: ErrMissingBankingInfo,
		4: ErrInvalidAccount,
		5: ErrNotCalculated,
		7: ErrAmountOverflow,
	}
	if len(res.Failures) != len(want) {
		t.Fatalf("expected %d failures, got %d: %v", len(want), len(res.Failures), res.Failures)
	}
	for _, f := range res.Failures {
		if !errors.Is(f, want[f.Index]) {
			t.Fatalf("item %d: expected %v, got %v", f.Index, want[f.Index], f.Err)
		}
		if !errors.Is(f, ErrItemExcluded) {
			t.Fatalf("item %d: expected failure to wrap ErrItemExcluded", f.Index)
		}
		if f.ItemID != items[f.Index].ID {
			t.Fatalf("item %d: failure names %s", f.Index, f.ItemID)
		}
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Index != 6 {
		t.Fatalf("expected zero-net item skipped, got %+v", res.Skipped)
	}
	if res.EntryCount != 2 || res.TotalCredit != 75000 {
		t.Fatalf("unexpected totals %+v", res)
	}
	if _, err := Verify(bytes.NewReader(data)); err != nil {
		t.Fatalf("Verify rejected file with exclusions: %v", err)
	}
}

func TestTraceNumbersStrictlyIncrease(t *testing.T) {
	items := make([]payroll.LineItem, 12)
	for i := range items {
		items[i] = paidItem(i, payroll.Money(1000+i))
	}
	items[3].BankRouting = "bogus"

	data, _, err := mustExporter(t, testConfig()).Bytes(testRun(), items)
	if err != nil {
		t.Fatalf("export error: %v", err)
	}
	prev := int64(-1)
	for _, line := range splitLines(t, data, "\n") {
		if line[0] != '6' {
			continue
		}
		trace, err := strconv.ParseInt(EntryDetail.Slice(line, "TraceNumber"), 10, 64)
		if err != nil {
			t.Fatalf("bad trace in %q", line)
		}
		if trace != prev+1 && prev != -1 {
			t.Fatalf("trace %d does not follow %d", trace, prev)
		}
		prev = trace
	}
	if prev != 21000020000011 {
		t.Fatalf("expected last trace 021000020000011, got %d", prev)
	}
}

func TestExportCRLF(t *testing.T) {
	cfg := testConfig()
	cfg.LineEnding = "\r\n"
	data, res, err := mustExporter(t, cfg).Bytes(testRun(), []payroll.LineItem{paidItem(0, 100)})
	if err != nil {
		t.Fatalf("export error: %v", err)
	}
	if len(data) != res.LineCount*(RecordLen+2) {
		t.Fatalf("expected %d bytes, got %d", res.LineCount*(RecordLen+2), len(data))
	}
	for _, line := range splitLines(t, data, "\r\n") {
		if len(line) != RecordLen {
			t.Fatalf("unexpected line length %d", len(line))
		}
	}
	if _, err := Verify(bytes.NewReader(data)); err != nil {
		t.Fatalf("Verify rejected CRLF file: %v", err)
	}
}

func TestVerifyRejectsTamperedFiles(t *testing.T) {
	items := []payroll.LineItem{paidItem(0, 1000), paidItem(1, 2000), paidItem(2, 3000)}
	data, _, err := mustExporter(t, testConfig()).Bytes(testRun(), items)
	if err != nil {
		t.Fatalf("export error: %v", err)
	}
	lines := splitLines(t, data, "\n")

	tamper := func(index int, field Field, value string) []byte {
		out := append([]string(nil), lines...)
		line := []byte(out[index])
		copy(line[field.Start-1:field.End], value)
		out[index] = string(line)
		return []byte(strings.Join(out, "\n") + "\n")
	}
	hashField, _ := FileControl.Field("EntryHash")
	creditField, _ := BatchControl.Field("TotalCredit")
	amountField, _ := EntryDetail.Field("Amount")
	traceField, _ := EntryDetail.Field("TraceNumber")

	cases := map[string][]byte{
		"file hash":      tamper(6, hashField, "9999999999"),
		"batch credit":   tamper(5, creditField, "000000000001"),
		"entry amount":   tamper(3, amountField, "0000009999"),
		"trace order":    tamper(4, traceField, "021000020000001"),
		"short line":     []byte(strings.Replace(string(data), lines[2], lines[2][:93], 1)),
		"missing filler": []byte(strings.Join(lines[:9], "\n") + "\n"),
	}
	for name, tampered := range cases {
		if _, err := Verify(bytes.NewReader(tampered)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	mutations := map[string]func(*Config){
		"destination":   func(c *Config) { c.ImmediateDestination = "021000022" },
		"company name":  func(c *Config) { c.CompanyName = " " },
		"company id":    func(c *Config) { c.CompanyID = "12345678901" },
		"file modifier": func(c *Config) { c.FileIDModifier = "a" },
		"odfi":          func(c *Config) { c.ODFIRouting = "12345" },
		"line ending":   func(c *Config) { c.LineEnding = "\r" },
		"origin":        func(c *Config) { c.ImmediateOrigin = "12345" },
	}
	for name, mutate := range mutations {
		cfg := testConfig()
		mutate(&cfg)
		if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestLayoutsCoverEveryColumn(t *testing.T) {
	layouts := map[string]Layout{
		"file header":   FileHeader,
		"batch header":  BatchHeader,
		"entry detail":  EntryDetail,
		"batch control": BatchControl,
		"file control":  FileControl,
	}
	for name, layout := range layouts {
		next := 1
		for _, f := range layout {
			if f.Start != next {
				t.Fatalf("%s: field %s starts at %d, want %d", name, f.Name, f.Start, next)
			}
			if f.Type == Fixed && len(f.Value) != f.Len() {
				t.Fatalf("%s: fixed field %s has %d characters, want %d", name, f.Name, len(f.Value), f.Len())
			}
			next = f.End + 1
		}
		if next != RecordLen+1 {
			t.Fatalf("%s: layout ends at %d", name, next-1)
		}
	}
}

func TestRenderRejectsNumericOverflowAndUnknownFields(t *testing.T) {
	if _, err := Render(FileControl, Record{"BatchCount": "1234567"}); err == nil {
		t.Fatal("expected overflow error")
	}
	if _, err := Render(FileControl, Record{"Bogus": "1"}); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestValidRouting(t *testing.T) {
	for _, r := range testRoutings {
		if !ValidRouting(r) {
			t.Fatalf("expected %s to be valid", r)
		}
	}
	for _, r := range []string{"", "02100002", "021000022", "0210000211", "02100002a"} {
		if ValidRouting(r) {
			t.Fatalf("expected %q to be invalid", r)
		}
	}
}

func TestToASCII(t *testing.T) {
	if got := ToASCII("Zoë Ångström, Jr."); got != "ZOE ANGSTROM, JR." {
		t.Fatalf("unexpected transliteration %q", got)
	}
	if got := ToASCII("李 Wei"); got != " WEI" {
		t.Fatalf("unexpected transliteration %q", got)
	}
}

func TestEntryHashWrapsAtTenDigits(t *testing.T) {
	items := make([]payroll.LineItem, 400)
	for i := range items {
		items[i] = paidItem(i, 100000)
		items[i].BankRouting = "322271627"
	}
	// 400 * 32227162 = 12890864800, one digit too many for the field
	const wantHash = 2890864800

	data, res, err := mustExporter(t, testConfig()).Bytes(testRun(), items)
	if err != nil {
		t.Fatalf("export error: %v", err)
	}
	if res.EntryHash != wantHash {
		t.Fatalf("expected hash %d, got %d", wantHash, res.EntryHash)
	}
	lines := splitLines(t, data, "\n")
	batchControl, fileControl := lines[len(items)+2], lines[len(items)+3]
	if batchControl[:1] != "8" || fileControl[:1] != "9" {
		t.Fatalf("unexpected control records %q %q", batchControl[:1], fileControl[:1])
	}
	if got := BatchControl.Slice(batchControl, "EntryHash"); got != "2890864800" {
		t.Fatalf("batch control hash %q", got)
	}
	if got := FileControl.Slice(fileControl, "EntryHash"); got != "2890864800" {
		t.Fatalf("file control hash %q", got)
	}
	if got := FileControl.Slice(fileControl, "TotalCredit"); got != "000040000000" {
		t.Fatalf("file control credit %q", got)
	}

	sum, err := Verify(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Verify rejected wrapped hash: %v", err)
	}
	if sum.Entries != 400 || sum.EntryHash != wantHash {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestExportRejectsLowerCaseAccount(t *testing.T) {
	lower := paidItem(0, 50000)
	lower.BankAccount = "ab12cd"
	upper := paidItem(1, 50000)
	upper.BankAccount = "AB12CD"

	data, res, err := mustExporter(t, testConfig()).Bytes(testRun(), []payroll.LineItem{lower, upper})
	if err != nil {
		t.Fatalf("export error: %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0].Index != 0 || !errors.Is(res.Failures[0], ErrInvalidAccount) {
		t.Fatalf("expected lower-case account rejected, got %v", res.Failures)
	}
	entry := splitLines(t, data, "\n")[2]
	if got := EntryDetail.Slice(entry, "DFIAccountNumber"); got != "AB12CD           " {
		t.Fatalf("unexpected account field %q", got)
	}
}

func TestRenderExactFieldDoesNotFold(t *testing.T) {
	values := Record{"DFIAccountNumber": "ab12cd"}
	if _, err := Render(EntryDetail, values); err == nil {
		t.Fatal("expected lower-case account to be refused")
	}
	values["DFIAccountNumber"] = "123456789012345678"
	if _, err := Render(EntryDetail, values); err == nil {
		t.Fatal("expected 18-character account to be refused")
	}
}

func TestToASCIIFoldsUndecomposedLetters(t *testing.T) {
	cases := map[string]string{
		"Łukasz Øster":    "LUKASZ OSTER",
		"Straße Æsir":     "STRASSE AESIR",
		"Đorđe Þór Œuvre": "DORDE THOR OEUVRE",
	}
	for in, want := range cases {
		if got := ToASCII(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
		if !Transliterable(in) {
			t.Fatalf("%q: expected transliterable", in)
		}
	}
	if Transliterable("Łukasz 王") {
		t.Fatal("expected CJK name to be reported")
	}
	if !Transliterable("O'Neil-Smith Jr. #2") {
		t.Fatal("punctuation alone should not block a name")
	}
}

func TestExportReportsUntransliterableName(t *testing.T) {
	han := paidItem(0, 50000)
	han.EmployeeName = "王伟"
	polish := paidItem(1, 50000)
	polish.EmployeeName = "Łukasz Øster"

	data, res, err := mustExporter(t, testConfig()).Bytes(testRun(), []payroll.LineItem{han, polish})
	if err != nil {
		t.Fatalf("export error: %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0].Field != payroll.FieldEmployeeName || !errors.Is(res.Failures[0], ErrInvalidName) {
		t.Fatalf("expected name failure, got %v", res.Failures)
	}
	entry := splitLines(t, data, "\n")[2]
	if got := strings.TrimSpace(EntryDetail.Slice(entry, "IndividualName")); got != "LUKASZ OSTER" {
		t.Fatalf("unexpected name %q", got)
	}
}
