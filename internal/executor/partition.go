package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/curationsuite/modelrelay/internal/llm"
	"github.com/curationsuite/modelrelay/internal/logger"
)

// fileListMarker labels the variable-length block inside a user message.
var fileListMarker = "File list:"

const (
	// safetyMarginTokens is held back from every chunk budget so framing
	// overhead and counting drift cannot push a chunk over the limit.
	safetyMarginTokens = 256
	// prefixLines is how many leading lines count as fixed prefix when a
	// message is nothing but raw lines.
	prefixLines = 1
)

// ErrPartitionInfeasible is reported when the fixed content alone exceeds
// the usable budget, leaving no room for any list lines.
var ErrPartitionInfeasible = errors.New("fixed content alone exceeds the token budget, cannot partition")

// Partitioner splits oversized conversations into token-bounded chunks.
type Partitioner struct {
	acct *llm.Accountant
	log  *logger.Logger
}

// NewPartitioner creates a partitioner using acct for token counting.
func NewPartitioner(acct *llm.Accountant, log *logger.Logger) *Partitioner {
	if log == nil {
		log = logger.Global()
	}
	return &Partitioner{acct: acct, log: log}
}

// Partition splits the variable-length file list inside conv's last user
// message into chunks that each fit within limit for modelID. The fixed
// content (every other message plus the prefix of the split message) is
// replicated into every chunk. Returns the original conversation as a
// single element when nothing needs splitting, or alongside
// ErrPartitionInfeasible when the fixed content leaves no budget.
func (p *Partitioner) Partition(conv llm.Conversation, modelID string, limit int) ([]llm.Conversation, error) {
	userIdx := conv.LastUserIndex()
	if userIdx < 0 {
		return []llm.Conversation{conv}, nil
	}

	prefix, lines := splitVariableContent(conv[userIdx].Content)
	if len(lines) == 0 {
		return []llm.Conversation{conv}, nil
	}

	fixed := conv.Clone()
	fixed[userIdx].Content = prefix
	budget := limit - p.acct.CountConversationTokens(fixed, modelID) - safetyMarginTokens
	if budget <= 0 {
		p.log.Warn("fixed content of %d-message conversation already exceeds the %d token limit for %s",
			len(conv), limit, modelID)
		return []llm.Conversation{conv}, ErrPartitionInfeasible
	}

	groups := p.groupLines(lines, modelID, budget)
	if len(groups) <= 1 {
		return []llm.Conversation{conv}, nil
	}

	chunks := make([]llm.Conversation, 0, len(groups))
	for i, group := range groups {
		chunk := conv.Clone()
		content := joinPrefix(prefix, strings.Join(group, "\n"))
		content += fmt.Sprintf("\n\n(This is part %d of %d of the file list; the remaining parts are sent in separate requests.)",
			i+1, len(groups))
		chunk[userIdx].Content = content
		chunks = append(chunks, chunk)
	}

	p.log.Info("partitioned file list of %d lines into %d chunks for %s (budget %d tokens)",
		len(lines), len(chunks), modelID, budget)
	return chunks, nil
}

// groupLines greedily packs lines into groups within budget. A line that
// alone exceeds the budget still gets its own group; dropping or
// truncating input is never acceptable.
func (p *Partitioner) groupLines(lines []string, modelID string, budget int) [][]string {
	var groups [][]string
	var current []string
	used := 0

	for _, line := range lines {
		cost := p.acct.CountTokens(line+"\n", modelID)
		if cost > budget {
			p.log.Warn("single line of %d tokens exceeds the chunk budget of %d, emitting it as its own oversized chunk", cost, budget)
		}
		if len(current) > 0 && used+cost > budget {
			groups = append(groups, current)
			current = nil
			used = 0
		}
		current = append(current, line)
		used += cost
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// splitVariableContent locates the variable-length list inside a user
// message. Precedence: the "File list:" marker, then the last
// blank-line-separated block, then raw lines after a short fixed prefix.
// Returns the fixed prefix and the list lines; lines is nil when no
// splittable block exists.
func splitVariableContent(content string) (string, []string) {
	if idx := strings.LastIndex(content, fileListMarker); idx >= 0 {
		prefix := content[:idx+len(fileListMarker)]
		return prefix, contentLines(content[idx+len(fileListMarker):])
	}

	if idx := strings.LastIndex(content, "\n\n"); idx >= 0 {
		block := contentLines(content[idx:])
		if len(block) > 1 {
			return content[:idx], block
		}
	}

	lines := contentLines(content)
	if len(lines) <= prefixLines+1 {
		return content, nil
	}
	return strings.Join(lines[:prefixLines], "\n"), lines[prefixLines:]
}

func contentLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func joinPrefix(prefix, list string) string {
	prefix = strings.TrimRight(prefix, "\n")
	if prefix == "" {
		return list
	}
	return prefix + "\n" + list
}
