package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParseKind tags the outcome of recovering structure from model output.
type ParseKind int

const (
	// ParsedObject means a JSON object was recovered.
	ParsedObject ParseKind = iota
	// ParsedList means a JSON array was recovered.
	ParsedList
	// RawText means no JSON could be recovered; Text holds the full reply.
	RawText
)

// ParseOutcome is the explicit result of model-output parsing. Callers
// switch on Kind instead of sniffing for magic keys.
type ParseOutcome struct {
	Kind   ParseKind
	Object map[string]any
	List   []any
	Text   string
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseModelJSON recovers structured JSON from a model reply. Recovery is
// layered: the whole reply, then a fenced code block, then the innermost
// braced region. Anything else degrades to RawText, never to an error.
func parseModelJSON(content string) ParseOutcome {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ParseOutcome{Kind: RawText, Text: content}
	}

	if outcome, ok := tryDecode(trimmed); ok {
		return outcome
	}

	if m := fencedJSONPattern.FindStringSubmatch(trimmed); m != nil {
		if outcome, ok := tryDecode(m[1]); ok {
			return outcome
		}
	}

	// Widest braced region: prose before or after a JSON object is common.
	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		if outcome, ok := tryDecode(trimmed[start : end+1]); ok {
			return outcome
		}
	}

	return ParseOutcome{Kind: RawText, Text: content}
}

func tryDecode(candidate string) (ParseOutcome, bool) {
	var value any
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return ParseOutcome{}, false
	}
	switch v := value.(type) {
	case map[string]any:
		return ParseOutcome{Kind: ParsedObject, Object: v}, true
	case []any:
		return ParseOutcome{Kind: ParsedList, List: v}, true
	default:
		return ParseOutcome{}, false
	}
}

// resultFromContent turns a model reply into a Result, falling back to the
// raw-content envelope when no JSON is recoverable.
func resultFromContent(content string) *Result {
	switch outcome := parseModelJSON(content); outcome.Kind {
	case ParsedObject:
		return resultFromMap(outcome.Object)
	case ParsedList:
		return &Result{Items: outcome.List}
	default:
		return &Result{Raw: true, Content: content}
	}
}
