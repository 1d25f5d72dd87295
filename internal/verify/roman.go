package verify

import (
	"regexp"
	"strings"
)

// romanPattern accepts canonical Roman numerals only; non-canonical forms
// like "IIII" do not match. The pattern also matches the empty string, so
// callers must reject that separately.
var romanPattern = regexp.MustCompile(`^(?i)M{0,4}(CM|CD|D?C{0,3})(XC|XL|L?X{0,3})(IX|IV|V?I{0,3})$`)

// isRomanNumeral reports whether s is a well-formed Roman numeral.
func isRomanNumeral(s string) bool {
	return s != "" && romanPattern.MatchString(s)
}

var romanValues = map[byte]int{
	'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000,
}

// romanToInt converts a Roman numeral to an integer, or -1 when a
// character is not a Roman digit.
func romanToInt(roman string) int {
	roman = strings.ToUpper(roman)
	total := 0
	prev := 0

	for i := len(roman) - 1; i >= 0; i-- {
		value, ok := romanValues[roman[i]]
		if !ok {
			return -1
		}
		if value >= prev {
			total += value
		} else {
			total -= value
		}
		prev = value
	}
	return total
}

var romanSymbols = []struct {
	value  int
	symbol string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

// intToRoman converts a positive integer to its canonical Roman numeral.
func intToRoman(num int) string {
	var sb strings.Builder
	for _, entry := range romanSymbols {
		for num >= entry.value {
			sb.WriteString(entry.symbol)
			num -= entry.value
		}
	}
	return sb.String()
}
