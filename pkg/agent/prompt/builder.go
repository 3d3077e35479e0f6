// Package prompt renders the oracle conversation for the reasoning
// engine. Composition is a pure function of the turn input; the builder
// itself holds only immutable configuration (template version, tool
// catalog, token limits) so one instance can serve every turn of a run.
package prompt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/ufflow/oats/pkg/agent"
	"github.com/ufflow/oats/pkg/tools"
)

const (
	// TokenWarnThreshold logs a warning when the assembled prompt
	// approaches the cap.
	TokenWarnThreshold = 6000

	// TokenHardCap is the assembled-prompt budget. Crossing it triggers
	// progressive transcript thinning, then dropping of oldest turns.
	TokenHardCap = 12000

	// recentWindow is how many trailing transcript entries survive
	// thinning untouched.
	recentWindow = 5

	// thinnedObservationChars caps old observations at thinning level 1.
	thinnedObservationChars = 400
)

// Options tunes a Builder. Zero values select the defaults.
type Options struct {
	// Version picks the system template. Unknown versions fall back to
	// DefaultVersion with a warning.
	Version string

	// WorkspaceRoot is the directory boundary stated in the security
	// section. The section is omitted when empty.
	WorkspaceRoot string

	// Runbook is operator guidance rendered verbatim under its own
	// heading. Omitted when empty.
	Runbook string

	WarnThreshold int
	HardCap       int

	Logger *slog.Logger
}

// Builder renders system and per-turn prompts for one worker run.
type Builder struct {
	version       string
	system        string
	closing       string
	toolsSection  string
	workspaceRoot string
	runbook       string
	warnThreshold int
	hardCap       int
	logger        *slog.Logger
}

var _ agent.PromptBuilder = (*Builder)(nil)

// NewBuilder compiles a builder over the registered tool catalog. The
// catalog must not be empty: a worker without tools cannot act, so this
// is a wiring bug, not a runtime condition.
func NewBuilder(catalog []*tools.ToolDescriptor, opts Options) *Builder {
	if len(catalog) == 0 {
		panic("prompt: tool catalog must not be empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	version := opts.Version
	if version == "" {
		version = DefaultVersion
	}
	if _, ok := systemTemplates[version]; !ok {
		logger.Warn("unknown prompt version, falling back to default",
			"requested", version, "default", DefaultVersion)
		version = DefaultVersion
	}

	warn := opts.WarnThreshold
	if warn <= 0 {
		warn = TokenWarnThreshold
	}
	hardCap := opts.HardCap
	if hardCap <= 0 {
		hardCap = TokenHardCap
	}

	return &Builder{
		version:       version,
		system:        systemTemplates[version],
		closing:       closingInstructions[version],
		toolsSection:  formatToolCatalog(catalog),
		workspaceRoot: opts.WorkspaceRoot,
		runbook:       opts.Runbook,
		warnThreshold: warn,
		hardCap:       hardCap,
		logger:        logger,
	}
}

// Version reports the template version in effect.
func (b *Builder) Version() string { return b.version }

// System returns the standing instructions for the oracle.
func (b *Builder) System() string { return b.system }

// BuildTurnPrompt renders the per-turn user message. The transcript is
// progressively thinned, then truncated from the front, until the whole
// conversation fits the token cap.
func (b *Builder) BuildTurnPrompt(in *agent.TurnPromptInput) string {
	base := b.baseSections(in)
	directives := directiveSections(in)
	baseTokens := CountTokens(b.system) + CountTokens(base) + CountTokens(directives)

	entries := in.Transcript
	for level := 0; level <= 3; level++ {
		history := formatTranscript(entries, level)
		total := baseTokens + CountTokens(history)
		if total <= b.hardCap {
			if total > b.warnThreshold {
				b.logger.Warn("prompt approaching token cap", "tokens", total, "cap", b.hardCap)
			}
			if level > 0 {
				b.logger.Info("transcript thinning applied", "level", level, "tokens", total)
			}
			return assemble(base, history, directives, b.closingLine(in))
		}
	}

	// Even maximum thinning did not fit: drop oldest turns.
	for len(entries) > 1 {
		entries = entries[1:]
		history := formatTranscript(entries, 3)
		if baseTokens+CountTokens(history) <= b.hardCap {
			b.logger.Warn("transcript truncated to fit token cap",
				"kept", len(entries), "dropped", len(in.Transcript)-len(entries))
			return assemble(base, history, directives, b.closingLine(in))
		}
	}
	return assemble(base, formatTranscript(entries, 3), directives, b.closingLine(in))
}

// baseSections renders everything except the transcript and the closing
// line.
func (b *Builder) baseSections(in *agent.TurnPromptInput) string {
	var sb strings.Builder

	sb.WriteString("AVAILABLE TOOLS:\n")
	sb.WriteString(b.toolsSection)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "**Goal:** %s\n\n", in.Goal)

	if b.runbook != "" {
		sb.WriteString("REFERENCE RUNBOOK:\n")
		sb.WriteString(strings.TrimRight(b.runbook, "\n"))
		sb.WriteString("\n\n")
	}

	sb.WriteString("**State:**\n")
	sb.WriteString(formatState(in.State))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "**Turn Number:** %d of %d\n\n", in.Turn, in.TurnBudget)

	if b.workspaceRoot != "" {
		sb.WriteString("HARD SECURITY BOUNDARIES:\n")
		fmt.Fprintf(&sb, "- You are working within: %s\n", b.workspaceRoot)
		sb.WriteString("- All file operations must stay within this directory.\n")
		sb.WriteString("- Use relative paths when possible (e.g., ./logs/error.log).\n")
		sb.WriteString("- Any attempt to access files outside this workspace terminates the investigation.\n\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// directiveSections renders the steering blocks appended after the
// transcript: corrective feedback following a parse failure, and the
// one-shot forced reflection for a stuck task.
func directiveSections(in *agent.TurnPromptInput) string {
	var sb strings.Builder
	if in.CorrectiveFeedback != "" {
		sb.WriteString("CORRECTIVE FEEDBACK:\n")
		sb.WriteString(in.CorrectiveFeedback)
	}
	if in.ForceReflection {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(forcedReflectionDirective)
	}
	return sb.String()
}

func (b *Builder) closingLine(in *agent.TurnPromptInput) string {
	return fmt.Sprintf("Now execute Turn %d. %s", in.Turn, b.closing)
}

func assemble(base, history, directives, closing string) string {
	parts := []string{base}
	if history != "" {
		parts = append(parts, "**Transcript:**\n"+history)
	}
	if directives != "" {
		parts = append(parts, directives)
	}
	parts = append(parts, closing)
	return strings.Join(parts, "\n\n")
}

// formatState serializes the state document for the prompt. Indented JSON
// keeps it readable for the oracle and diffable in logs.
func formatState(state *agent.State) string {
	if state == nil {
		return "{}"
	}
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(payload)
}

// formatTranscript renders history entries at a thinning level:
//
//	0 - verbatim
//	1 - observations older than the recent window truncated
//	2 - older entries keep thought and action only
//	3 - older entries collapse to a single summary line
func formatTranscript(entries []agent.TranscriptEntry, level int) string {
	if len(entries) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, entry := range entries {
		old := i < len(entries)-recentWindow
		if i > 0 {
			sb.WriteString("\n")
		}
		if old && level >= 3 {
			fmt.Fprintf(&sb, "Turn %d: %s -> %s\n", entry.Turn, entry.Tool, firstLine(entry.Observation, 80))
			continue
		}
		fmt.Fprintf(&sb, "Turn %d:\n", entry.Turn)
		fmt.Fprintf(&sb, "Thought: %s\n", entry.Thought)
		fmt.Fprintf(&sb, "Action: %s %s\n", entry.Tool, formatParams(entry.Params))
		switch {
		case old && level >= 2:
			sb.WriteString("Observation: [elided]\n")
		case old && level >= 1:
			fmt.Fprintf(&sb, "Observation: %s\n", truncateChars(entry.Observation, thinnedObservationChars))
		default:
			fmt.Fprintf(&sb, "Observation: %s\n", entry.Observation)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(payload)
}

// formatToolCatalog renders the registered tools for the prompt, one
// block per tool with its parameters annotated from the schema.
func formatToolCatalog(catalog []*tools.ToolDescriptor) string {
	var sb strings.Builder
	for i, tool := range catalog {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- %s:%s\n", tool.Name, tool.Version)
		fmt.Fprintf(&sb, "  Description: %s\n", tool.Description)
		specs := tool.ParamSpecs()
		if len(specs) == 0 {
			sb.WriteString("  Parameters: none\n")
			continue
		}
		sb.WriteString("  Parameters:\n")
		for _, spec := range specs {
			requirement := "optional"
			if spec.Required {
				requirement = "required"
			}
			desc := spec.Description
			if desc == "" {
				desc = "no description"
			}
			fmt.Fprintf(&sb, "  - %s (%s, %s): %s\n", spec.Name, spec.Type, requirement, desc)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncateChars(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + fmt.Sprintf("... [%d chars truncated]", len(s)-max)
}

func firstLine(s string, max int) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > max {
		s = s[:max]
	}
	return s
}

var (
	tiktokenOnce sync.Once
	tiktokenEnc  *tiktoken.Tiktoken
)

func loadTiktoken() {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Warn("tiktoken encoder unavailable, token counts use a heuristic", "error", err)
		return
	}
	tiktokenEnc = enc
}

// CountTokens returns the cl100k_base token count for text. When the
// encoder cannot be loaded (no network, cold cache) it falls back to a
// word and character heuristic that overestimates rather than under.
func CountTokens(text string) int {
	tiktokenOnce.Do(loadTiktoken)
	if tiktokenEnc != nil {
		return len(tiktokenEnc.EncodeOrdinary(text))
	}
	return estimateTokens(text)
}

func estimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	wordBased := (len(strings.Fields(text))*4 + 2) / 3
	charBased := len(text) / 4
	if wordBased > charBased {
		return wordBased
	}
	return charBased
}
