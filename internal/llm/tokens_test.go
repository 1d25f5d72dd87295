package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountant_CountTokens(t *testing.T) {
	acct := NewAccountant()

	assert.Equal(t, 0, acct.CountTokens("", "gpt-4o"))

	count := acct.CountTokens("Hello, this is a test string.", "gpt-4o")
	assert.Greater(t, count, 0)

	longer := acct.CountTokens(strings.Repeat("some words here ", 50), "gpt-4o")
	assert.Greater(t, longer, count)
}

func TestAccountant_UnknownModelStillCounts(t *testing.T) {
	acct := NewAccountant()

	count := acct.CountTokens("Hello, this is a test string.", "completely-unknown-model")
	assert.Greater(t, count, 0)
}

func TestAccountant_ConversationOverheads(t *testing.T) {
	acct := NewAccountant()

	assert.Equal(t, 0, acct.CountConversationTokens(nil, "gpt-4o"))

	conv := Conversation{
		{Role: RoleSystem, Content: "You are a helpful assistant."},
		{Role: RoleUser, Content: "Hello, how are you?"},
	}

	total := acct.CountConversationTokens(conv, "gpt-4o")
	perField := acct.CountTokens(conv[0].Content, "gpt-4o") +
		acct.CountTokens(conv[1].Content, "gpt-4o") +
		acct.CountTokens(RoleSystem, "gpt-4o") +
		acct.CountTokens(RoleUser, "gpt-4o")

	assert.Equal(t, perField+2*perMessageOverhead+replyPrimingOverhead, total)
}

func TestAccountant_NilMessagesIgnored(t *testing.T) {
	acct := NewAccountant()

	conv := Conversation{nil, {Role: RoleUser, Content: "hi"}}
	withNil := acct.CountConversationTokens(conv, "gpt-4o")
	withoutNil := acct.CountConversationTokens(Conversation{conv[1]}, "gpt-4o")
	assert.Equal(t, withoutNil, withNil)
}

func TestHeuristicTokens(t *testing.T) {
	assert.Equal(t, 0, heuristicTokens(""))
	assert.Equal(t, 1, heuristicTokens("abc"))
	assert.Equal(t, 1, heuristicTokens("abcd"))
	assert.Equal(t, 2, heuristicTokens("abcde"))
	assert.Equal(t, 25, heuristicTokens(strings.Repeat("x", 100)))
}
