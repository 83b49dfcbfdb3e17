package hitl

import (
	"strconv"
	"strings"
	"unicode"
)

// Decision is the interpreted intent of a free-text reply.
type Decision int

const (
	Unclear Decision = iota
	Approve
	Reject
	Custom
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	case Custom:
		return "custom"
	default:
		return "unclear"
	}
}

// Classification is the result of ClassifyDecision. Option is set when the reply
// matched one of the offered options.
type Classification struct {
	Decision Decision
	Option   *Option
}

var (
	approvalKeywords  = []string{"yes", "y", "approve", "ok", "okay", "proceed", "go ahead"}
	rejectionKeywords = []string{"no", "n", "reject", "cancel", "stop"}
)

// ClassifyDecision interprets text against the approval and rejection keywords, then
// against options by number, id or label. A keyword matches at the start of a word, so
// "approved" and "nope" count; single letters must stand alone. When both kinds appear,
// approval wins.
func ClassifyDecision(text string, options []Option) Classification {
	input := strings.ToLower(strings.TrimSpace(text))
	if input == "" {
		return Classification{Decision: Unclear}
	}

	words := tokenize(input)
	if containsAny(words, approvalKeywords) {
		return Classification{Decision: Approve}
	}
	if containsAny(words, rejectionKeywords) {
		return Classification{Decision: Reject}
	}

	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(options) {
		opt := &options[n-1]
		return Classification{Decision: decisionForOption(opt.ID), Option: opt}
	}

	for i := range options {
		opt := &options[i]
		id, label := strings.ToLower(opt.ID), strings.ToLower(opt.Label)
		if id == input || label == input || strings.Contains(label, input) {
			return Classification{Decision: decisionForOption(opt.ID), Option: opt}
		}
	}
	return Classification{Decision: Unclear}
}

func decisionForOption(id string) Decision {
	switch strings.ToLower(id) {
	case "approve", "yes":
		return Approve
	case "reject", "no", "cancel":
		return Reject
	default:
		return Custom
	}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsAny reports whether any keyword occurs at the start of a word. A multi-word
// keyword matches a run of words in which the earlier parts are exact.
func containsAny(words, keywords []string) bool {
	for _, kw := range keywords {
		parts := strings.Fields(kw)
		for i := 0; i+len(parts) <= len(words); i++ {
			if matchesAt(words[i:i+len(parts)], parts) {
				return true
			}
		}
	}
	return false
}

func matchesAt(words, parts []string) bool {
	last := len(parts) - 1
	for j, p := range parts {
		if j < last || len([]rune(p)) == 1 {
			if words[j] != p {
				return false
			}
			continue
		}
		if !strings.HasPrefix(words[j], p) {
			return false
		}
	}
	return true
}

// ContainsKeyword reports whether text contains any keyword at the start of a word.
func ContainsKeyword(text string, keywords ...string) bool {
	return containsAny(tokenize(strings.ToLower(text)), keywords)
}
