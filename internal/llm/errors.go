package llm

import (
	"errors"
	"strings"
)

// contextLengthIndicators are the case-insensitive substrings providers use
// when rejecting a request for exceeding the model's context window.
var contextLengthIndicators = []string{
	"context length",
	"maximum context length",
	"token limit",
	"too long",
	"context window",
	"maximum tokens",
	"input too long",
	"length limit",
	"length was reached",
	"context_length_exceeded",
}

// IsContextLengthError reports whether err is a provider rejection caused
// by context-length limits. These are the only provider errors the
// executor recovers from; everything else is surfaced unchanged.
func IsContextLengthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, indicator := range contextLengthIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// ErrEmptyResponse is returned when a provider answers with no choices or
// no content at all.
var ErrEmptyResponse = errors.New("model returned an empty response")
