package ach

// RecordLen is the fixed width of every NACHA record.
const RecordLen = 94

// BlockingFactor is the number of records per block.
const BlockingFactor = 10

type FieldType int

const (
	Alpha   FieldType = iota // left-justified, space-filled, uppercase
	Numeric                  // right-justified, zero-filled digits only
	Fixed                    // literal constant
	Blank                    // must be spaces
	Exact                    // left-justified, space-filled, A-Z and 0-9 written as given
)

type Field struct {
	Name  string
	Start int
	End   int
	Type  FieldType
	Value string
}

func (f Field) Len() int { return f.End - f.Start + 1 }

type Layout []Field

func (l Layout) Field(name string) (Field, bool) {
	for _, f := range l {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Slice returns the raw column range of a named field from a record.
func (l Layout) Slice(line, name string) string {
	f, ok := l.Field(name)
	if !ok || len(line) < f.End {
		return ""
	}
	return line[f.Start-1 : f.End]
}

// Positions are 1-based and inclusive.

var FileHeader = Layout{
	{Name: "RecordType", Start: 1, End: 1, Type: Fixed, Value: "1"},
	{Name: "PriorityCode", Start: 2, End: 3, Type: Fixed, Value: "01"},
	{Name: "ImmediateDestination", Start: 4, End: 13, Type: Alpha},
	{Name: "ImmediateOrigin", Start: 14, End: 23, Type: Alpha},
	{Name: "FileCreationDate", Start: 24, End: 29, Type: Numeric},
	{Name: "FileCreationTime", Start: 30, End: 33, Type: Numeric},
	{Name: "FileIDModifier", Start: 34, End: 34, Type: Alpha},
	{Name: "RecordSize", Start: 35, End: 37, Type: Fixed, Value: "094"},
	{Name: "BlockingFactor", Start: 38, End: 39, Type: Fixed, Value: "10"},
	{Name: "FormatCode", Start: 40, End: 40, Type: Fixed, Value: "1"},
	{Name: "ImmediateDestinationName", Start: 41, End: 63, Type: Alpha},
	{Name: "ImmediateOriginName", Start: 64, End: 86, Type: Alpha},
	{Name: "ReferenceCode", Start: 87, End: 94, Type: Alpha},
}

var BatchHeader = Layout{
	{Name: "RecordType", Start: 1, End: 1, Type: Fixed, Value: "5"},
	{Name: "ServiceClassCode", Start: 2, End: 4, Type: Fixed, Value: ServiceClassCredits},
	{Name: "CompanyName", Start: 5, End: 20, Type: Alpha},
	{Name: "CompanyDiscretionaryData", Start: 21, End: 40, Type: Alpha},
	{Name: "CompanyIdentification", Start: 41, End: 50, Type: Alpha},
	{Name: "StandardEntryClass", Start: 51, End: 53, Type: Fixed, Value: SECPPD},
	{Name: "CompanyEntryDescription", Start: 54, End: 63, Type: Alpha},
	{Name: "CompanyDescriptiveDate", Start: 64, End: 69, Type: Alpha},
	{Name: "EffectiveEntryDate", Start: 70, End: 75, Type: Numeric},
	{Name: "SettlementDate", Start: 76, End: 78, Type: Blank},
	{Name: "OriginatorStatusCode", Start: 79, End: 79, Type: Fixed, Value: "1"},
	{Name: "OriginatingDFI", Start: 80, End: 87, Type: Numeric},
	{Name: "BatchNumber", Start: 88, End: 94, Type: Numeric},
}

var EntryDetail = Layout{
	{Name: "RecordType", Start: 1, End: 1, Type: Fixed, Value: "6"},
	{Name: "TransactionCode", Start: 2, End: 3, Type: Numeric},
	{Name: "ReceivingDFI", Start: 4, End: 11, Type: Numeric},
	{Name: "CheckDigit", Start: 12, End: 12, Type: Numeric},
	{Name: "DFIAccountNumber", Start: 13, End: 29, Type: Exact},
	{Name: "Amount", Start: 30, End: 39, Type: Numeric},
	{Name: "IndividualIdentification", Start: 40, End: 54, Type: Alpha},
	{Name: "IndividualName", Start: 55, End: 76, Type: Alpha},
	{Name: "DiscretionaryData", Start: 77, End: 78, Type: Blank},
	{Name: "AddendaRecordIndicator", Start: 79, End: 79, Type: Fixed, Value: "0"},
	{Name: "TraceNumber", Start: 80, End: 94, Type: Numeric},
}

var BatchControl = Layout{
	{Name: "RecordType", Start: 1, End: 1, Type: Fixed, Value: "8"},
	{Name: "ServiceClassCode", Start: 2, End: 4, Type: Fixed, Value: ServiceClassCredits},
	{Name: "EntryAddendaCount", Start: 5, End: 10, Type: Numeric},
	{Name: "EntryHash", Start: 11, End: 20, Type: Numeric},
	{Name: "TotalDebit", Start: 21, End: 32, Type: Numeric},
	{Name: "TotalCredit", Start: 33, End: 44, Type: Numeric},
	{Name: "CompanyIdentification", Start: 45, End: 54, Type: Alpha},
	{Name: "MessageAuthenticationCode", Start: 55, End: 73, Type: Blank},
	{Name: "Reserved", Start: 74, End: 79, Type: Blank},
	{Name: "OriginatingDFI", Start: 80, End: 87, Type: Numeric},
	{Name: "BatchNumber", Start: 88, End: 94, Type: Numeric},
}

var FileControl = Layout{
	{Name: "RecordType", Start: 1, End: 1, Type: Fixed, Value: "9"},
	{Name: "BatchCount", Start: 2, End: 7, Type: Numeric},
	{Name: "BlockCount", Start: 8, End: 13, Type: Numeric},
	{Name: "EntryAddendaCount", Start: 14, End: 21, Type: Numeric},
	{Name: "EntryHash", Start: 22, End: 31, Type: Numeric},
	{Name: "TotalDebit", Start: 32, End: 43, Type: Numeric},
	{Name: "TotalCredit", Start: 44, End: 55, Type: Numeric},
	{Name: "Reserved", Start: 56, End: 94, Type: Blank},
}

const (
	ServiceClassCredits = "220"
	SECPPD              = "PPD"

	TxnCheckingCredit = "22"
	TxnSavingsCredit  = "32"
)
