package ach

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Record holds field values keyed by layout field name.
type Record map[string]string

// Render lays a record out into exactly RecordLen characters. Numeric values
// that do not fit their field are an error; alpha values are truncated.
func Render(layout Layout, values Record) (string, error) {
	for name := range values {
		if _, ok := layout.Field(name); !ok {
			return "", fmt.Errorf("ach: unknown field %q", name)
		}
	}

	line := []byte(strings.Repeat(" ", RecordLen))
	for _, f := range layout {
		var text string
		switch f.Type {
		case Fixed:
			text = f.Value
		case Blank:
			text = strings.Repeat(" ", f.Len())
		case Alpha:
			text = formatAlpha(values[f.Name], f.Len())
		case Exact:
			formatted, err := formatExact(values[f.Name], f.Len())
			if err != nil {
				return "", fmt.Errorf("ach: %s: %w", f.Name, err)
			}
			text = formatted
		case Numeric:
			formatted, err := formatNumeric(values[f.Name], f.Len())
			if err != nil {
				return "", fmt.Errorf("ach: %s: %w", f.Name, err)
			}
			text = formatted
		}
		if len(text) != f.Len() {
			return "", fmt.Errorf("ach: %s: rendered %d characters, want %d", f.Name, len(text), f.Len())
		}
		copy(line[f.Start-1:f.End], text)
	}
	return string(line), nil
}

var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Letters with no canonical decomposition.
var letterFold = strings.NewReplacer(
	"Ł", "L", "ł", "l",
	"Ø", "O", "ø", "o",
	"Đ", "D", "đ", "d",
	"Ð", "D", "ð", "d",
	"Ħ", "H", "ħ", "h",
	"ı", "i",
	"ß", "SS", "ẞ", "SS",
	"Æ", "AE", "æ", "ae",
	"Œ", "OE", "œ", "oe",
	"Þ", "TH", "þ", "th",
)

// ToASCII strips diacritics, folds letters such as Ł and ß, and upper-cases.
// Characters outside the NACHA alphanumeric set are dropped.
func ToASCII(value string) string {
	out, _ := fold(value)
	return out
}

// Transliterable reports whether every letter and digit of value survives
// ToASCII.
func Transliterable(value string) bool {
	_, complete := fold(value)
	return complete
}

func fold(value string) (string, bool) {
	folded, _, err := transform.String(asciiFold, letterFold.Replace(value))
	if err != nil {
		folded = value
	}
	var b strings.Builder
	b.Grow(len(folded))
	complete := true
	for _, r := range strings.ToUpper(folded) {
		switch {
		case allowedAlpha(r):
			b.WriteRune(r)
		case unicode.IsLetter(r), unicode.IsDigit(r):
			complete = false
		}
	}
	return b.String(), complete
}

func allowedAlpha(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
		return true
	}
	return strings.ContainsRune("-.,&/'()#", r)
}

func formatAlpha(value string, width int) string {
	value = ToASCII(value)
	if len(value) > width {
		return value[:width]
	}
	return value + strings.Repeat(" ", width-len(value))
}

func formatExact(value string, width int) (string, error) {
	if len(value) > width {
		return "", fmt.Errorf("%q does not fit %d characters", value, width)
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return "", fmt.Errorf("%q has characters outside A-Z and 0-9", value)
		}
	}
	return value + strings.Repeat(" ", width-len(value)), nil
}

func formatNumeric(value string, width int) (string, error) {
	if value == "" {
		value = "0"
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%q is not numeric", value)
		}
	}
	trimmed := strings.TrimLeft(value, "0")
	if len(trimmed) > width {
		return "", fmt.Errorf("%q does not fit %d digits", value, width)
	}
	return strings.Repeat("0", width-len(trimmed)) + trimmed, nil
}
