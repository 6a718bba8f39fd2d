package ach

var abaWeights = [9]int{3, 7, 1, 3, 7, 1, 3, 7, 1}

// ValidRouting reports whether value is a nine-digit ABA routing number with a
// correct check digit.
func ValidRouting(value string) bool {
	if len(value) != 9 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		c := value[i]
		if c < '0' || c > '9' {
			return false
		}
		sum += int(c-'0') * abaWeights[i]
	}
	return sum%10 == 0
}

// validAccount accepts up to 17 digits and upper-case ASCII letters. Lower-case
// letters are rejected rather than folded so the bank sees the stored value.
func validAccount(value string) bool {
	if value == "" || len(value) > 17 {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

// rdfiID returns the first eight routing digits as a number for the entry hash.
func rdfiID(routing string) int64 {
	var n int64
	for i := 0; i < 8; i++ {
		n = n*10 + int64(routing[i]-'0')
	}
	return n
}
