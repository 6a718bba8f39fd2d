package ach

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrMalformed = errors.New("ach: malformed file")

// Summary is what Verify recomputed from the entry records.
type Summary struct {
	Lines       int
	Blocks      int
	Batches     int
	Entries     int
	EntryHash   int64
	TotalDebit  int64
	TotalCredit int64
}

type batchTotals struct {
	serviceClass string
	odfi         string
	number       string
	entries      int
	hash         int64
	debit        int64
	credit       int64
	lastTrace    string
}

// Verify parses an ACH file and reconciles every control record against the
// entries it covers. Record order, width, trace order and blocking are checked.
func Verify(r io.Reader) (Summary, error) {
	var sum Summary
	var batch *batchTotals
	var sawHeader, sawControl bool
	traces := map[string]bool{}

	malformed := func(line int, format string, args ...any) error {
		return fmt.Errorf("%w: line %d: %s", ErrMalformed, line, fmt.Sprintf(format, args...))
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		sum.Lines++
		n := sum.Lines
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if len(line) != RecordLen {
			return Summary{}, malformed(n, "record is %d characters, want %d", len(line), RecordLen)
		}

		if sawControl {
			if line != strings.Repeat("9", RecordLen) {
				return Summary{}, malformed(n, "unexpected record after file control")
			}
			continue
		}

		switch line[0] {
		case '1':
			if n != 1 {
				return Summary{}, malformed(n, "file header must be the first record")
			}
			if FileHeader.Slice(line, "RecordSize") != "094" || FileHeader.Slice(line, "BlockingFactor") != "10" {
				return Summary{}, malformed(n, "unsupported record size or blocking factor")
			}
			sawHeader = true
		case '5':
			if !sawHeader || batch != nil {
				return Summary{}, malformed(n, "batch header out of order")
			}
			batch = &batchTotals{
				serviceClass: BatchHeader.Slice(line, "ServiceClassCode"),
				odfi:         BatchHeader.Slice(line, "OriginatingDFI"),
				number:       BatchHeader.Slice(line, "BatchNumber"),
			}
			sum.Batches++
		case '6':
			if batch == nil {
				return Summary{}, malformed(n, "entry outside a batch")
			}
			rdfi, err := parseDigits(EntryDetail.Slice(line, "ReceivingDFI"))
			if err != nil {
				return Summary{}, malformed(n, "receiving DFI: %v", err)
			}
			routing := EntryDetail.Slice(line, "ReceivingDFI") + EntryDetail.Slice(line, "CheckDigit")
			if !ValidRouting(routing) {
				return Summary{}, malformed(n, "routing %s fails the check digit", routing)
			}
			amount, err := parseDigits(EntryDetail.Slice(line, "Amount"))
			if err != nil {
				return Summary{}, malformed(n, "amount: %v", err)
			}
			trace := EntryDetail.Slice(line, "TraceNumber")
			if _, err := parseDigits(trace); err != nil {
				return Summary{}, malformed(n, "trace number: %v", err)
			}
			if traces[trace] {
				return Summary{}, malformed(n, "duplicate trace number %s", trace)
			}
			if batch.lastTrace != "" && trace <= batch.lastTrace {
				return Summary{}, malformed(n, "trace number %s is not increasing", trace)
			}
			if trace[:8] != batch.odfi {
				return Summary{}, malformed(n, "trace number %s does not start with ODFI %s", trace, batch.odfi)
			}
			traces[trace] = true
			batch.lastTrace = trace

			switch code := EntryDetail.Slice(line, "TransactionCode"); code {
			case TxnCheckingCredit, TxnSavingsCredit:
				batch.credit += amount
			case "27", "37":
				batch.debit += amount
			default:
				return Summary{}, malformed(n, "unsupported transaction code %s", code)
			}
			batch.entries++
			batch.hash += rdfi
		case '8':
			if batch == nil {
				return Summary{}, malformed(n, "batch control without header")
			}
			if err := checkBatchControl(line, batch); err != nil {
				return Summary{}, malformed(n, "%v", err)
			}
			sum.Entries += batch.entries
			sum.EntryHash += batch.hash
			sum.TotalDebit += batch.debit
			sum.TotalCredit += batch.credit
			batch = nil
		case '9':
			if !sawHeader || batch != nil {
				return Summary{}, malformed(n, "file control out of order")
			}
			sum.EntryHash %= entryHashModulus
			if err := checkFileControl(line, sum, n); err != nil {
				return Summary{}, malformed(n, "%v", err)
			}
			sawControl = true
		default:
			return Summary{}, malformed(n, "unknown record type %q", line[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return Summary{}, err
	}
	if !sawControl {
		return Summary{}, fmt.Errorf("%w: missing file control record", ErrMalformed)
	}
	if sum.Lines%BlockingFactor != 0 {
		return Summary{}, fmt.Errorf("%w: %d records is not a multiple of %d", ErrMalformed, sum.Lines, BlockingFactor)
	}
	sum.Blocks = sum.Lines / BlockingFactor
	return sum, nil
}

func checkBatchControl(line string, batch *batchTotals) error {
	if got := BatchControl.Slice(line, "ServiceClassCode"); got != batch.serviceClass {
		return fmt.Errorf("service class %s does not match header %s", got, batch.serviceClass)
	}
	if got := BatchControl.Slice(line, "BatchNumber"); got != batch.number {
		return fmt.Errorf("batch number %s does not match header %s", got, batch.number)
	}
	if got := BatchControl.Slice(line, "OriginatingDFI"); got != batch.odfi {
		return fmt.Errorf("ODFI %s does not match header %s", got, batch.odfi)
	}
	checks := []struct {
		name string
		want int64
	}{
		{"EntryAddendaCount", int64(batch.entries)},
		{"EntryHash", batch.hash % entryHashModulus},
		{"TotalDebit", batch.debit},
		{"TotalCredit", batch.credit},
	}
	for _, c := range checks {
		got, err := parseDigits(BatchControl.Slice(line, c.name))
		if err != nil {
			return fmt.Errorf("batch control %s: %v", c.name, err)
		}
		if got != c.want {
			return fmt.Errorf("batch control %s is %d, entries give %d", c.name, got, c.want)
		}
	}
	return nil
}

// checkFileControl runs before filler is read, so the block count is derived
// from the position of the file control record.
func checkFileControl(line string, sum Summary, lineNo int) error {
	checks := []struct {
		name string
		want int64
	}{
		{"BatchCount", int64(sum.Batches)},
		{"BlockCount", int64((lineNo + BlockingFactor - 1) / BlockingFactor)},
		{"EntryAddendaCount", int64(sum.Entries)},
		{"EntryHash", sum.EntryHash},
		{"TotalDebit", sum.TotalDebit},
		{"TotalCredit", sum.TotalCredit},
	}
	for _, c := range checks {
		got, err := parseDigits(FileControl.Slice(line, c.name))
		if err != nil {
			return fmt.Errorf("file control %s: %v", c.name, err)
		}
		if got != c.want {
			return fmt.Errorf("file control %s is %d, records give %d", c.name, got, c.want)
		}
	}
	return nil
}

func parseDigits(value string) (int64, error) {
	if !isDigits(value) {
		return 0, fmt.Errorf("%q is not numeric", value)
	}
	return strconv.ParseInt(value, 10, 64)
}
