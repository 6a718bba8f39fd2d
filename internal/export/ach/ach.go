package ach

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"crewpay/internal/domain/payroll"
)

const (
	defaultEntryDescription = "PAYROLL"
	defaultFileIDModifier   = "A"
	batchNumber             = 1
	entryHashModulus        = 10_000_000_000
	maxEntryAmount          = 9_999_999_999
)

var (
	ErrInvalidConfig = errors.New("ach: invalid configuration")

	ErrItemExcluded       = errors.New("ach: item excluded")
	ErrMissingBankingInfo = fmt.Errorf("%w: missing banking info", ErrItemExcluded)
	ErrInvalidRouting     = fmt.Errorf("%w: invalid routing number", ErrItemExcluded)
	ErrInvalidAccount     = fmt.Errorf("%w: invalid account number", ErrItemExcluded)
	ErrInvalidName        = fmt.Errorf("%w: name cannot be written in ASCII", ErrItemExcluded)
	ErrAmountOverflow     = fmt.Errorf("%w: amount does not fit 10 digits", ErrItemExcluded)
	ErrNegativeAmount     = fmt.Errorf("%w: negative amount", ErrItemExcluded)
	ErrNotCalculated      = fmt.Errorf("%w: no computed pay", ErrItemExcluded)
)

type Config struct {
	ImmediateDestination     string
	ImmediateDestinationName string
	ImmediateOrigin          string
	ImmediateOriginName      string
	CompanyName              string
	CompanyID                string
	CompanyDiscretionaryData string
	// ODFIRouting defaults to ImmediateDestination.
	ODFIRouting      string
	EntryDescription string
	FileIDModifier   string
	ReferenceCode    string
	// EffectiveDate defaults to the next business day after file creation.
	EffectiveDate time.Time
	LineEnding    string
	Now           func() time.Time
}

// ItemFailure describes an item left out of the file.
type ItemFailure struct {
	Index    int
	ItemID   string
	Employee string
	Field    string
	Err      error
}

func (f *ItemFailure) Error() string {
	return fmt.Sprintf("item %d (%s): %s: %v", f.Index+1, f.Employee, f.Field, f.Err)
}

func (f *ItemFailure) Unwrap() error { return f.Err }

// SkippedItem is an item with zero net pay. It is not an error.
type SkippedItem struct {
	Index    int    `json:"index"`
	ItemID   string `json:"itemId"`
	Employee string `json:"employee"`
}

type Result struct {
	Failures    []*ItemFailure
	Skipped     []SkippedItem
	EntryCount  int
	EntryHash   int64
	TotalCredit payroll.Money
	LineCount   int
	BlockCount  int
}

type Exporter struct {
	cfg         Config
	destination string
	origin      string
	odfi        string
}

func New(cfg Config) (*Exporter, error) {
	cfg.ImmediateDestination = strings.TrimSpace(cfg.ImmediateDestination)
	if !ValidRouting(cfg.ImmediateDestination) {
		return nil, fmt.Errorf("%w: immediate destination %q is not a valid routing number", ErrInvalidConfig, cfg.ImmediateDestination)
	}

	odfi := strings.TrimSpace(cfg.ODFIRouting)
	if odfi == "" {
		odfi = cfg.ImmediateDestination
	}
	switch {
	case len(odfi) == 9 && ValidRouting(odfi):
		odfi = odfi[:8]
	case len(odfi) == 8 && isDigits(odfi):
	default:
		return nil, fmt.Errorf("%w: ODFI routing %q", ErrInvalidConfig, cfg.ODFIRouting)
	}

	if strings.TrimSpace(cfg.CompanyName) == "" {
		return nil, fmt.Errorf("%w: company name is required", ErrInvalidConfig)
	}
	cfg.CompanyID = strings.TrimSpace(cfg.CompanyID)
	if cfg.CompanyID == "" || len(cfg.CompanyID) > 10 {
		return nil, fmt.Errorf("%w: company id must be 1-10 characters", ErrInvalidConfig)
	}

	origin := strings.TrimSpace(cfg.ImmediateOrigin)
	if origin == "" {
		origin = cfg.CompanyID
	}
	if len(origin) == 9 && isDigits(origin) {
		origin = " " + origin
	}
	if len(origin) != 10 {
		return nil, fmt.Errorf("%w: immediate origin %q must be 10 characters", ErrInvalidConfig, cfg.ImmediateOrigin)
	}

	if cfg.FileIDModifier == "" {
		cfg.FileIDModifier = defaultFileIDModifier
	}
	if len(cfg.FileIDModifier) != 1 || !allowedModifier(cfg.FileIDModifier[0]) {
		return nil, fmt.Errorf("%w: file id modifier %q", ErrInvalidConfig, cfg.FileIDModifier)
	}

	switch cfg.LineEnding {
	case "":
		cfg.LineEnding = "\n"
	case "\n", "\r\n":
	default:
		return nil, fmt.Errorf("%w: line ending %q", ErrInvalidConfig, cfg.LineEnding)
	}
	if strings.TrimSpace(cfg.EntryDescription) == "" {
		cfg.EntryDescription = defaultEntryDescription
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Exporter{
		cfg:         cfg,
		destination: " " + cfg.ImmediateDestination,
		origin:      origin,
		odfi:        odfi,
	}, nil
}

// Export writes one PPD credit batch for the run. Items that cannot be paid
// are reported in Result.Failures and left out; the file is still written.
func (e *Exporter) Export(w io.Writer, run payroll.Run, items []payroll.LineItem) (Result, error) {
	created := e.cfg.Now()
	effective := e.cfg.EffectiveDate
	if effective.IsZero() {
		effective = nextBusinessDay(created)
	}

	var res Result
	var lines []string

	fileHeader, err := Render(FileHeader, Record{
		"ImmediateDestination":     e.destination,
		"ImmediateOrigin":          e.origin,
		"FileCreationDate":         created.Format("060102"),
		"FileCreationTime":         created.Format("1504"),
		"FileIDModifier":           e.cfg.FileIDModifier,
		"ImmediateDestinationName": e.cfg.ImmediateDestinationName,
		"ImmediateOriginName":      e.cfg.ImmediateOriginName,
		"ReferenceCode":            e.cfg.ReferenceCode,
	})
	if err != nil {
		return Result{}, err
	}
	batchHeader, err := Render(BatchHeader, Record{
		"CompanyName":              e.cfg.CompanyName,
		"CompanyDiscretionaryData": e.cfg.CompanyDiscretionaryData,
		"CompanyIdentification":    e.cfg.CompanyID,
		"CompanyEntryDescription":  e.cfg.EntryDescription,
		"CompanyDescriptiveDate":   run.WeekEnding.Format("060102"),
		"EffectiveEntryDate":       effective.Format("060102"),
		"OriginatingDFI":           e.odfi,
		"BatchNumber":              strconv.Itoa(batchNumber),
	})
	if err != nil {
		return Result{}, err
	}
	lines = append(lines, fileHeader, batchHeader)

	var hash, credit int64
	sequence := 0
	for i, item := range items {
		fail := func(field string, err error) {
			res.Failures = append(res.Failures, &ItemFailure{Index: i, ItemID: item.ID, Employee: item.EmployeeName, Field: field, Err: err})
		}
		if !item.Calculated() {
			fail(payroll.FieldComputed, ErrNotCalculated)
			continue
		}
		amount := int64(item.Computed.Net)
		if amount == 0 {
			res.Skipped = append(res.Skipped, SkippedItem{Index: i, ItemID: item.ID, Employee: item.EmployeeName})
			continue
		}

		routing := strings.TrimSpace(item.BankRouting)
		account := strings.TrimSpace(item.BankAccount)
		switch {
		case routing == "":
			fail(payroll.FieldBankRouting, ErrMissingBankingInfo)
			continue
		case account == "":
			fail(payroll.FieldBankAccount, ErrMissingBankingInfo)
			continue
		case !ValidRouting(routing):
			fail(payroll.FieldBankRouting, ErrInvalidRouting)
			continue
		case !validAccount(account):
			fail(payroll.FieldBankAccount, ErrInvalidAccount)
			continue
		case !Transliterable(item.EmployeeName):
			fail(payroll.FieldEmployeeName, ErrInvalidName)
			continue
		case amount < 0:
			fail(payroll.FieldNetPay, ErrNegativeAmount)
			continue
		case amount > maxEntryAmount:
			fail(payroll.FieldNetPay, ErrAmountOverflow)
			continue
		}

		txn := TxnCheckingCredit
		if item.AccountType == payroll.AccountTypeSavings {
			txn = TxnSavingsCredit
		}
		sequence++
		entry, err := Render(EntryDetail, Record{
			"TransactionCode":          txn,
			"ReceivingDFI":             routing[:8],
			"CheckDigit":               routing[8:],
			"DFIAccountNumber":         account,
			"Amount":                   strconv.FormatInt(amount, 10),
			"IndividualIdentification": item.EmployeeRef,
			"IndividualName":           item.EmployeeName,
			"TraceNumber":              e.odfi + fmt.Sprintf("%07d", sequence),
		})
		if err != nil {
			return Result{}, fmt.Errorf("item %d (%s): %w", i+1, item.Label(), err)
		}
		lines = append(lines, entry)
		hash = (hash + rdfiID(routing)) % entryHashModulus
		credit += amount
	}

	res.EntryCount = sequence
	res.EntryHash = hash
	res.TotalCredit = payroll.Money(credit)

	batchControl, err := Render(BatchControl, Record{
		"EntryAddendaCount":     strconv.Itoa(res.EntryCount),
		"EntryHash":             strconv.FormatInt(hash, 10),
		"TotalDebit":            "0",
		"TotalCredit":           strconv.FormatInt(credit, 10),
		"CompanyIdentification": e.cfg.CompanyID,
		"OriginatingDFI":        e.odfi,
		"BatchNumber":           strconv.Itoa(batchNumber),
	})
	if err != nil {
		return Result{}, err
	}
	lines = append(lines, batchControl)

	// File control is the last real record; filler completes the final block.
	res.LineCount = len(lines) + 1
	res.BlockCount = (res.LineCount + BlockingFactor - 1) / BlockingFactor
	fileControl, err := Render(FileControl, Record{
		"BatchCount":        "1",
		"BlockCount":        strconv.Itoa(res.BlockCount),
		"EntryAddendaCount": strconv.Itoa(res.EntryCount),
		"EntryHash":         strconv.FormatInt(hash, 10),
		"TotalDebit":        "0",
		"TotalCredit":       strconv.FormatInt(credit, 10),
	})
	if err != nil {
		return Result{}, err
	}
	lines = append(lines, fileControl)

	filler := strings.Repeat("9", RecordLen)
	for len(lines)%BlockingFactor != 0 {
		lines = append(lines, filler)
	}
	res.LineCount = len(lines)

	var b strings.Builder
	b.Grow(len(lines) * (RecordLen + len(e.cfg.LineEnding)))
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString(e.cfg.LineEnding)
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return Result{}, fmt.Errorf("ach: write: %w", err)
	}
	return res, nil
}

func (e *Exporter) Bytes(run payroll.Run, items []payroll.LineItem) ([]byte, Result, error) {
	var buf bytes.Buffer
	res, err := e.Export(&buf, run, items)
	if err != nil {
		return nil, Result{}, err
	}
	return buf.Bytes(), res, nil
}

func nextBusinessDay(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}

func allowedModifier(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
