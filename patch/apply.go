package patch

import (
	"fmt"
	"strings"
)

// DefaultWindow is how many lines in either direction a hunk may slide from
// its expected offset before it is declared a conflict.
const DefaultWindow = 3

// Verdict is the per-file outcome of an apply attempt.
type Verdict string

const (
	VerdictApplied  Verdict = "applied"
	VerdictConflict Verdict = "conflict"
)

// HunkResult records where one hunk matched, or why it did not.
type HunkResult struct {
	Index     int  // 1-based position within the file diff
	AppliedAt int  // 1-based line where the old side matched; 0 on conflict
	Offset    int  // lines slid from the expected position
	Conflict  bool
	Skipped   bool   // never attempted because an earlier hunk conflicted
	Reason    string // diagnostic for conflict or skip
}

// FileResult is the outcome of applying one FileDiff. On conflict the
// original content is untouched and Content is empty.
type FileResult struct {
	Path    string
	Verdict Verdict
	Hunks   []HunkResult
	Content string // full post-apply content, only when Verdict is applied
}

// Engine applies parsed diffs to in-memory content. It performs no file IO;
// callers decide whether to persist Content.
type Engine struct {
	// Window bounds the offset search around each hunk's expected
	// position. Zero means exact matches only.
	Window int
}

// NewEngine returns an engine with the default search window.
func NewEngine() *Engine {
	return &Engine{Window: DefaultWindow}
}

// Apply attempts every hunk of fd against content. Hunks are matched in
// order with cumulative drift: once a hunk lands N lines away from where the
// header said, later hunks expect the same shift. A single failed hunk voids
// the whole file; partial application never escapes this function.
//
// Dry-run and real application share this exact code path. The only
// difference is whether the caller writes Content back to disk.
func (e *Engine) Apply(content string, fd FileDiff) FileResult {
	result := FileResult{Path: fd.Path, Verdict: VerdictApplied}

	if fd.IsNew {
		return e.applyNewFile(content, fd)
	}

	lines, trailingNewline := splitLines(content)
	drift := 0

	for i, hunk := range fd.Hunks {
		hr := HunkResult{Index: i + 1}

		oldSide := sideLines(hunk, OpAdd)  // context + deletions
		newSide := sideLines(hunk, OpDelete) // context + additions

		expected := hunk.OldStart - 1 + drift
		at, found := e.locate(lines, oldSide, expected)
		if !found {
			hr.Conflict = true
			hr.Reason = conflictReason(lines, oldSide, expected)
			result.Hunks = append(result.Hunks, hr)
			for j := i + 1; j < len(fd.Hunks); j++ {
				result.Hunks = append(result.Hunks, HunkResult{
					Index:   j + 1,
					Skipped: true,
					Reason:  fmt.Sprintf("not attempted: hunk %d conflicted", i+1),
				})
			}
			result.Verdict = VerdictConflict
			result.Content = ""
			return result
		}

		hr.AppliedAt = at + 1
		hr.Offset = at - (hunk.OldStart - 1)
		result.Hunks = append(result.Hunks, hr)

		spliced := make([]string, 0, len(lines)-len(oldSide)+len(newSide))
		spliced = append(spliced, lines[:at]...)
		spliced = append(spliced, newSide...)
		spliced = append(spliced, lines[at+len(oldSide):]...)
		lines = spliced

		drift = hr.Offset + (len(newSide) - len(oldSide))
	}

	result.Content = joinLines(lines, trailingNewline)
	if fd.IsDelete && len(lines) == 0 {
		result.Content = ""
	}
	return result
}

// applyNewFile handles a creation diff: the target must not already have
// content, and the result is exactly the added lines.
func (e *Engine) applyNewFile(content string, fd FileDiff) FileResult {
	result := FileResult{Path: fd.Path}
	if content != "" {
		result.Verdict = VerdictConflict
		result.Hunks = []HunkResult{{
			Index:    1,
			Conflict: true,
			Reason:   "diff creates the file but it already has content",
		}}
		return result
	}

	var lines []string
	for i, hunk := range fd.Hunks {
		for _, ln := range hunk.Lines {
			if ln.Op != OpAdd {
				result.Verdict = VerdictConflict
				result.Hunks = append(result.Hunks, HunkResult{
					Index:    i + 1,
					Conflict: true,
					Reason:   "creation diff contains non-addition lines",
				})
				return result
			}
			lines = append(lines, ln.Text)
		}
		result.Hunks = append(result.Hunks, HunkResult{Index: i + 1, AppliedAt: 1})
	}
	result.Verdict = VerdictApplied
	result.Content = joinLines(lines, true)
	return result
}

// locate searches for the hunk's old side starting at the expected position
// and widening one line at a time, preferring the nearest offset and, on
// ties, the earlier one.
func (e *Engine) locate(lines, oldSide []string, expected int) (int, bool) {
	if len(oldSide) == 0 {
		// Pure insertion; anchor at the expected point, clamped.
		at := expected
		if at < 0 {
			at = 0
		}
		if at > len(lines) {
			at = len(lines)
		}
		return at, true
	}

	for delta := 0; delta <= e.Window; delta++ {
		for _, candidate := range []int{expected - delta, expected + delta} {
			if matchAt(lines, oldSide, candidate) {
				return candidate, true
			}
			if delta == 0 {
				break
			}
		}
	}
	return 0, false
}

func matchAt(lines, oldSide []string, at int) bool {
	if at < 0 || at+len(oldSide) > len(lines) {
		return false
	}
	for i, want := range oldSide {
		if lines[at+i] != want {
			return false
		}
	}
	return true
}

// conflictReason names the first line that failed to match at the expected
// position, which is usually enough to see why the patch is stale.
func conflictReason(lines, oldSide []string, expected int) string {
	if expected < 0 || expected >= len(lines) {
		return fmt.Sprintf("expected position %d is outside the file (%d lines)", expected+1, len(lines))
	}
	for i, want := range oldSide {
		idx := expected + i
		if idx >= len(lines) {
			return fmt.Sprintf("file ends at line %d but hunk expects %q", len(lines), want)
		}
		if lines[idx] != want {
			return fmt.Sprintf("line %d is %q, hunk expects %q", idx+1, lines[idx], want)
		}
	}
	return "no match within search window"
}

// sideLines extracts the hunk body lines excluding the given op, preserving
// order. Excluding OpAdd yields the old side; excluding OpDelete the new.
func sideLines(hunk Hunk, exclude LineOp) []string {
	out := make([]string, 0, len(hunk.Lines))
	for _, ln := range hunk.Lines {
		if ln.Op == exclude {
			continue
		}
		out = append(out, ln.Text)
	}
	return out
}

func splitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(content, "\n")
	if trailing {
		content = content[:len(content)-1]
	}
	return strings.Split(content, "\n"), trailing
}

func joinLines(lines []string, trailingNewline bool) string {
	if len(lines) == 0 {
		return ""
	}
	joined := strings.Join(lines, "\n")
	if trailingNewline {
		joined += "\n"
	}
	return joined
}
