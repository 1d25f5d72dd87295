package verify

import (
	"io"
	"regexp"
	"strings"
	"unicode"

	stdhtml "html"

	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// VerificationResult reports whether an extraction is verbatim.
type VerificationResult struct {
	IsVerbatim bool   `json:"is_verbatim"`
	Detail     string `json:"details"`
}

// Verbatim checks that extracted is a contiguous substring of original
// after both are normalized. The check is deliberately strict: an
// extraction that quotes the start and end of a passage but skips its
// middle is not verbatim.
func Verbatim(extracted, original string) VerificationResult {
	if extracted == "" || original == "" {
		return VerificationResult{Detail: "one or both texts are empty"}
	}

	normalizedExtracted := NormalizeText(extracted)
	normalizedOriginal := NormalizeText(original)
	if normalizedExtracted == "" || normalizedOriginal == "" {
		return VerificationResult{Detail: "one or both texts are empty after normalization"}
	}

	if strings.Contains(normalizedOriginal, normalizedExtracted) {
		return VerificationResult{IsVerbatim: true, Detail: "the extraction is verbatim"}
	}
	return VerificationResult{Detail: "the extraction is NOT verbatim"}
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// NormalizeText applies the fixed normalization pipeline: markup strip,
// entity decode, lowercase, Unicode decomposition with combining-mark
// removal, punctuation strip and whitespace collapse.
func NormalizeText(text string) string {
	text = stripMarkup(text)
	text = stdhtml.UnescapeString(text)
	text = strings.ToLower(text)
	text = decompose(text)

	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r == '_' {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			sb.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}

// stripMarkup extracts the text content of an HTML fragment. Plain text
// passes through unchanged; a tokenizer failure degrades to a regex strip.
func stripMarkup(text string) string {
	if !strings.Contains(text, "<") {
		return text
	}

	var sb strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(text))
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			if tokenizer.Err() == io.EOF {
				return sb.String()
			}
			return tagPattern.ReplaceAllString(text, "")
		}
		if tokenType == html.TextToken {
			sb.Write(tokenizer.Text())
		}
	}
}

func decompose(text string) string {
	// The chained transformer carries internal buffers, so build one per
	// call rather than sharing it across goroutines.
	decomposer := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(decomposer, text)
	if err != nil {
		return text
	}
	return out
}
