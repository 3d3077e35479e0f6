package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Reply schema precedence. The oracle contract has two generations: the
// current four-section reflect/strategize/state/act shape and the legacy
// thought/action shape. Both are accepted; when a reply carries both an
// act and an action the configured precedence decides which one drives
// the turn.
const (
	SchemaPrecedenceCurrent = "current"
	SchemaPrecedenceLegacy  = "legacy"
)

// ReflectSection is the oracle's review of the previous turn.
type ReflectSection struct {
	Turn             int    `json:"turn,omitempty"`
	Outcome          string `json:"outcome,omitempty"`
	HypothesisResult string `json:"hypothesis_result,omitempty"`
	Insight          string `json:"insight,omitempty"`
	Diagnostic       string `json:"diagnostic,omitempty"`
	Failure          string `json:"failure,omitempty"`
}

// Hypothesis is a falsifiable claim with the test that would settle it.
type Hypothesis struct {
	Claim  string `json:"claim,omitempty"`
	Test   string `json:"test,omitempty"`
	Signal string `json:"signal,omitempty"`
}

// StrategizeSection is the oracle's plan for the coming turn.
type StrategizeSection struct {
	Reasoning     string      `json:"reasoning,omitempty"`
	Hypothesis    *Hypothesis `json:"hypothesis,omitempty"`
	IfInvalidated string      `json:"if_invalidated,omitempty"`
}

// ActSection names the tool to run and its parameters.
type ActSection struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
	Safe   *bool          `json:"safe,omitempty"`
}

// oracleReply is the raw union of both accepted reply schemas.
type oracleReply struct {
	Reflect    *ReflectSection    `json:"reflect,omitempty"`
	Strategize *StrategizeSection `json:"strategize,omitempty"`
	State      *ProposedState     `json:"state,omitempty"`
	Act        *ActSection        `json:"act,omitempty"`

	// Legacy variant.
	Thought string      `json:"thought,omitempty"`
	Action  *ActSection `json:"action,omitempty"`
}

// Reply is a successfully parsed oracle turn: the resolved action plus
// the optional sections that accompany it.
type Reply struct {
	Reflect    *ReflectSection
	Strategize *StrategizeSection
	State      *ProposedState
	Act        *ActSection

	legacyThought string
}

// Thought returns the best available narration for the turn: the reflect
// insight when present, otherwise the strategize reasoning, otherwise the
// legacy thought field.
func (r *Reply) Thought() string {
	if r.Reflect != nil && r.Reflect.Insight != "" {
		return r.Reflect.Insight
	}
	if r.Strategize != nil && r.Strategize.Reasoning != "" {
		return r.Strategize.Reasoning
	}
	return r.legacyThought
}

// ParseOutcome is the result of parsing one oracle reply. Malformed
// replies never panic or error out of the parser; the engine handles
// them with a corrective retry.
type ParseOutcome struct {
	Reply        *Reply
	Malformed    bool
	ErrorMessage string
}

func malformed(format string, args ...any) ParseOutcome {
	return ParseOutcome{Malformed: true, ErrorMessage: fmt.Sprintf(format, args...)}
}

// ParseReply extracts a structured turn from raw oracle text. It tries,
// in order: the text as-is, the contents of a fenced json block, and the
// widest brace-delimited substring. precedence picks between the act and
// action sections when a reply carries both.
func ParseReply(raw, precedence string) ParseOutcome {
	candidate, ok := extractJSON(raw)
	if !ok {
		return malformed("reply contains no JSON object")
	}

	var reply oracleReply
	if err := json.Unmarshal([]byte(candidate), &reply); err != nil {
		return malformed("reply is not valid JSON: %v", err)
	}

	act := resolveAction(&reply, precedence)
	if act == nil {
		return malformed("reply has neither an act nor an action section")
	}
	if act.Tool == "" {
		return malformed("action names no tool")
	}

	return ParseOutcome{Reply: &Reply{
		Reflect:       reply.Reflect,
		Strategize:    reply.Strategize,
		State:         reply.State,
		Act:           act,
		legacyThought: reply.Thought,
	}}
}

// resolveAction picks the action section per the configured precedence,
// falling back to whichever schema is present when only one is.
func resolveAction(reply *oracleReply, precedence string) *ActSection {
	if precedence == SchemaPrecedenceLegacy {
		if reply.Action != nil {
			return reply.Action
		}
		return reply.Act
	}
	if reply.Act != nil {
		return reply.Act
	}
	return reply.Action
}

// extractJSON returns the most plausible JSON object embedded in raw.
func extractJSON(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return trimmed, true
	}
	if fenced, ok := extractFencedBlock(trimmed); ok && json.Valid([]byte(fenced)) {
		return fenced, true
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		body := trimmed[start : end+1]
		if json.Valid([]byte(body)) {
			return body, true
		}
	}
	return "", false
}

// extractFencedBlock pulls the body of the first ```json (or bare ```)
// fence out of a markdown-flavored reply.
func extractFencedBlock(raw string) (string, bool) {
	for _, marker := range []string{"```json", "```"} {
		start := strings.Index(raw, marker)
		if start < 0 {
			continue
		}
		rest := raw[start+len(marker):]
		end := strings.Index(rest, "```")
		if end < 0 {
			continue
		}
		body := strings.TrimSpace(rest[:end])
		if body != "" {
			return body, true
		}
	}
	return "", false
}
