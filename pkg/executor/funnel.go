package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ufflow/oats/pkg/models"
)

// Funnel thresholds. Output at or below both limits passes through
// untouched; exceeding either one triggers the spill.
const (
	SpillLineThreshold = 50
	SpillCharThreshold = 2000

	previewHeadLines = 10
	previewTailLines = 5
)

// FunnelMarker prefixes every funneled observation. The prompt preamble
// documents the contract so the agent streams the spilled file instead of
// reading it whole.
const FunnelMarker = "LARGE OUTPUT DETECTED"

// matchLine recognizes grep-style output: path:line:content.
var matchLine = regexp.MustCompile(`^([^:\n]+):(\d+):`)

// Funnel spills oversized tool outputs to a per-worker scratch directory
// and replaces them with a summary plus a head/tail preview.
type Funnel struct {
	scratchDir string
	logger     *slog.Logger
}

// NewFunnel creates the scratch directory. Failure here is fatal to
// worker startup: without a spill target every large output would have to
// be dropped.
func NewFunnel(scratchDir string, logger *slog.Logger) (*Funnel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	return &Funnel{scratchDir: scratchDir, logger: logger}, nil
}

// ScratchDir reports the spill target, used by the worker for cleanup at
// exit.
func (f *Funnel) ScratchDir() string { return f.scratchDir }

// Apply funnels output when it exceeds the thresholds. It returns the
// replacement observation text and a summary, or ("", nil) when the
// output passes through. The error is limited to spill I/O failures.
func (f *Funnel) Apply(toolName string, searchTool bool, output string) (string, *models.ObservationSummary, error) {
	totalLines := countLines(output)
	totalChars := len(output)
	if totalLines <= SpillLineThreshold && totalChars <= SpillCharThreshold {
		return "", nil, nil
	}

	path := f.spillPath(toolName, output)
	// 0600: spilled output may quote secrets the masking chain has no
	// pattern for yet.
	if err := os.WriteFile(path, []byte(output), 0o600); err != nil {
		return "", nil, fmt.Errorf("write spill file: %w", err)
	}

	summary := &models.ObservationSummary{
		TotalLines:     totalLines,
		TotalChars:     totalChars,
		FullOutputPath: path,
		Preview:        buildPreview(output, totalLines),
	}
	if searchTool {
		matches, files := extractSearchStats(output)
		summary.TotalMatches = &matches
		summary.FilesWithMatches = &files
	}

	return formatGuidance(summary), summary, nil
}

// spillPath derives <scratch>/<tool>_<timestamp>_<short-hash>.txt.
func (f *Funnel) spillPath(toolName, output string) string {
	sum := sha256.Sum256([]byte(output))
	shortHash := hex.EncodeToString(sum[:4])
	name := fmt.Sprintf("%s_%s_%s.txt", toolName, time.Now().UTC().Format("20060102T150405"), shortHash)
	return filepath.Join(f.scratchDir, name)
}

// buildPreview keeps the first and last lines around a truncation marker.
// Outputs short on lines (funneled by character count alone) are kept
// whole.
func buildPreview(output string, totalLines int) string {
	lines := splitLines(output)
	if totalLines <= previewHeadLines+previewTailLines {
		return strings.Join(lines, "\n")
	}

	truncated := totalLines - previewHeadLines - previewTailLines
	parts := make([]string, 0, previewHeadLines+previewTailLines+1)
	parts = append(parts, lines[:previewHeadLines]...)
	parts = append(parts, fmt.Sprintf("... (%d lines truncated) ...", truncated))
	parts = append(parts, lines[len(lines)-previewTailLines:]...)
	return strings.Join(parts, "\n")
}

// formatGuidance renders the observation that replaces a funneled output.
func formatGuidance(summary *models.ObservationSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d lines, %d chars\n", FunnelMarker, summary.TotalLines, summary.TotalChars)
	if summary.TotalMatches != nil && summary.FilesWithMatches != nil {
		fmt.Fprintf(&sb, "Matches: %d across %d files\n", *summary.TotalMatches, *summary.FilesWithMatches)
	}
	fmt.Fprintf(&sb, "Full output saved to: %s\n", summary.FullOutputPath)
	sb.WriteString("\nPreview (head/tail):\n")
	sb.WriteString(summary.Preview)
	return sb.String()
}

// extractSearchStats parses grep-style match lines (path:line:content)
// best-effort: lines that do not match the shape are ignored.
func extractSearchStats(output string) (matches int, files int) {
	seen := make(map[string]struct{})
	for _, line := range splitLines(output) {
		m := matchLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		matches++
		seen[m[1]] = struct{}{}
	}
	return matches, len(seen)
}

// countLines counts newline-separated segments; a trailing newline does
// not add an empty line.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func splitLines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
