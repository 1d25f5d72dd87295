package verify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	uppercaseAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowercaseAlphabet = "abcdefghijklmnopqrstuvwxyz"
)

// SequenceResult reports whether a label sequence is gap-free and, when it
// is not, the repaired sequence.
type SequenceResult struct {
	IsValid       bool     `json:"is_valid"`
	FixedSequence []string `json:"fixed_sequence"`
	Detail        string   `json:"details"`
}

// decoratorPattern matches the characters stripped from labels before
// classification: parentheses, periods and whitespace.
var decoratorPattern = regexp.MustCompile(`[().\s]`)

// romanLabels is the closed set of tokens classified as Roman numerals.
// Panels rarely run past ten; anything longer is treated as letters.
var romanLabels = map[string]bool{
	"I": true, "II": true, "III": true, "IV": true, "V": true,
	"VI": true, "VII": true, "VIII": true, "IX": true, "X": true,
}

// Sequence verifies that labels form a gap-free monotonic run in one of
// the four recognized label alphabets, classified by the first label.
// Letter and digit sequences must match the expected run element for
// element; Roman sequences only need to cover the same integer set. The
// asymmetry is inherited behavior and kept as-is.
func Sequence(labels []string) SequenceResult {
	if len(labels) == 0 {
		return SequenceResult{FixedSequence: []string{}, Detail: "no labels provided"}
	}

	clean := make([]string, len(labels))
	for i, label := range labels {
		clean[i] = decoratorPattern.ReplaceAllString(strings.TrimSpace(label), "")
	}

	first := clean[0]
	switch {
	case romanLabels[first]:
		return verifyRomanSequence(clean)
	case len(first) == 1 && first[0] >= 'A' && first[0] <= 'Z':
		return verifyAlphabetSequence(clean, uppercaseAlphabet)
	case len(first) == 1 && first[0] >= 'a' && first[0] <= 'z':
		return verifyAlphabetSequence(clean, lowercaseAlphabet)
	case isDigits(first):
		return verifyNumericSequence(clean)
	default:
		return SequenceResult{FixedSequence: clean, Detail: "unable to determine sequence type from labels"}
	}
}

// verifyAlphabetSequence compares labels element-wise against the
// contiguous alphabet run from the first to the last label. Only the
// first and last labels anchor the run; a middle label outside the
// alphabet simply fails the element-wise comparison and gets repaired.
func verifyAlphabetSequence(labels []string, alphabet string) SequenceResult {
	startIdx := strings.Index(alphabet, labels[0])
	endIdx := strings.Index(alphabet, labels[len(labels)-1])
	if startIdx < 0 || endIdx < 0 {
		return SequenceResult{FixedSequence: labels, Detail: "labels contain characters not in the expected alphabet"}
	}

	var expected []string
	for i := startIdx; i <= endIdx; i++ {
		expected = append(expected, string(alphabet[i]))
	}

	if equalSequences(labels, expected) {
		return SequenceResult{IsValid: true, FixedSequence: expected, Detail: "sequence is valid"}
	}
	return SequenceResult{
		FixedSequence: expected,
		Detail:        fmt.Sprintf("sequence has gaps, fixed sequence: %s", strings.Join(expected, ", ")),
	}
}

// verifyNumericSequence compares labels element-wise against the
// contiguous integer run from the first to the last value.
func verifyNumericSequence(labels []string) SequenceResult {
	nums := make([]int, len(labels))
	for i, label := range labels {
		n, err := strconv.Atoi(label)
		if err != nil {
			return SequenceResult{FixedSequence: labels, Detail: "invalid numeric value in sequence"}
		}
		nums[i] = n
	}

	var expected []string
	var expectedNums []int
	for n := nums[0]; n <= nums[len(nums)-1]; n++ {
		expectedNums = append(expectedNums, n)
		expected = append(expected, strconv.Itoa(n))
	}

	if equalInts(nums, expectedNums) {
		return SequenceResult{IsValid: true, FixedSequence: expected, Detail: "sequence is valid"}
	}
	return SequenceResult{
		FixedSequence: expected,
		Detail:        fmt.Sprintf("sequence has gaps, fixed sequence: %s", strings.Join(expected, ", ")),
	}
}

// verifyRomanSequence validates every label as a canonical Roman numeral
// and checks set coverage of the integer run from the minimum to the
// maximum observed value. Unlike the letter and digit checks this is
// order-insensitive.
func verifyRomanSequence(labels []string) SequenceResult {
	nums := make([]int, len(labels))
	for i, label := range labels {
		if !isRomanNumeral(label) {
			return SequenceResult{
				FixedSequence: labels,
				Detail:        fmt.Sprintf("invalid Roman numeral %q in sequence", label),
			}
		}
		nums[i] = romanToInt(label)
	}

	minVal, maxVal := nums[0], nums[0]
	observed := make(map[int]bool, len(nums))
	for _, n := range nums {
		observed[n] = true
		if n < minVal {
			minVal = n
		}
		if n > maxVal {
			maxVal = n
		}
	}

	var expected []string
	covered := true
	for n := minVal; n <= maxVal; n++ {
		expected = append(expected, intToRoman(n))
		if !observed[n] {
			covered = false
		}
	}

	if covered {
		return SequenceResult{IsValid: true, FixedSequence: expected, Detail: "sequence is valid"}
	}
	return SequenceResult{
		FixedSequence: expected,
		Detail:        fmt.Sprintf("sequence has gaps, fixed sequence: %s", strings.Join(expected, ", ")),
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func equalSequences(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
