// Package patch parses unified diffs and applies them to file content with
// offset-tolerant hunk matching. Parsing and structural validation happen
// before any content is touched, so a malformed patch never partially
// applies.
package patch

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// LineOp classifies one line within a hunk body.
type LineOp byte

const (
	OpContext LineOp = ' '
	OpAdd     LineOp = '+'
	OpDelete  LineOp = '-'
)

// Line is one body line of a hunk, without its trailing newline.
type Line struct {
	Op   LineOp
	Text string
}

// Hunk is one contiguous change region. Offsets are 1-based line numbers as
// written in the @@ header.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// FileDiff holds all hunks targeting a single file.
type FileDiff struct {
	Path     string // new-side path, prefix-stripped
	OldPath  string // old-side path, prefix-stripped
	IsNew    bool   // old side is /dev/null
	IsDelete bool   // new side is /dev/null
	Hunks    []Hunk
}

// ParseError reports a structural defect found during parsing or validation.
type ParseError struct {
	Path   string
	Hunk   int // 1-based index within the file, 0 if not hunk-specific
	Reason string
}

func (e *ParseError) Error() string {
	if e.Hunk > 0 {
		return fmt.Sprintf("patch %s: hunk %d: %s", e.Path, e.Hunk, e.Reason)
	}
	if e.Path != "" {
		return fmt.Sprintf("patch %s: %s", e.Path, e.Reason)
	}
	return "patch: " + e.Reason
}

// Parse reads a unified diff covering one or more files and validates each
// hunk: declared header counts must match the body, and hunks within a file
// must appear in strictly increasing old-offset order.
func Parse(text string) ([]FileDiff, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Reason: "empty patch"}
	}

	parsed, err := diff.ParseMultiFileDiff([]byte(text))
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid unified diff: %v", err)}
	}
	if len(parsed) == 0 {
		return nil, &ParseError{Reason: "patch contains no file diffs"}
	}

	out := make([]FileDiff, 0, len(parsed))
	for _, fd := range parsed {
		converted, err := convertFileDiff(fd)
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}
	return out, nil
}

func convertFileDiff(fd *diff.FileDiff) (FileDiff, error) {
	oldPath := stripDiffPrefix(fd.OrigName)
	newPath := stripDiffPrefix(fd.NewName)

	result := FileDiff{
		Path:     newPath,
		OldPath:  oldPath,
		IsNew:    fd.OrigName == "/dev/null",
		IsDelete: fd.NewName == "/dev/null",
	}
	if result.IsDelete {
		result.Path = oldPath
	}
	if result.Path == "" {
		return FileDiff{}, &ParseError{Reason: "file diff has no usable path"}
	}

	prevOldEnd := 0
	prevNewEnd := 0
	for i, h := range fd.Hunks {
		hunk, err := convertHunk(result.Path, i+1, h)
		if err != nil {
			return FileDiff{}, err
		}
		if hunk.OldStart <= prevOldEnd && !result.IsNew {
			return FileDiff{}, &ParseError{
				Path: result.Path, Hunk: i + 1,
				Reason: fmt.Sprintf("old offset %d overlaps or precedes previous hunk ending at %d", hunk.OldStart, prevOldEnd),
			}
		}
		if hunk.NewStart <= prevNewEnd && !result.IsDelete {
			return FileDiff{}, &ParseError{
				Path: result.Path, Hunk: i + 1,
				Reason: fmt.Sprintf("new offset %d overlaps or precedes previous hunk ending at %d", hunk.NewStart, prevNewEnd),
			}
		}
		prevOldEnd = hunk.OldStart + hunk.OldLines - 1
		prevNewEnd = hunk.NewStart + hunk.NewLines - 1
		result.Hunks = append(result.Hunks, hunk)
	}
	if len(result.Hunks) == 0 {
		return FileDiff{}, &ParseError{Path: result.Path, Reason: "file diff has no hunks"}
	}
	return result, nil
}

func convertHunk(path string, index int, h *diff.Hunk) (Hunk, error) {
	hunk := Hunk{
		OldStart: int(h.OrigStartLine),
		OldLines: int(h.OrigLines),
		NewStart: int(h.NewStartLine),
		NewLines: int(h.NewLines),
	}

	body := string(h.Body)
	body = strings.TrimSuffix(body, "\n")
	var oldCount, newCount int
	for _, raw := range strings.Split(body, "\n") {
		if raw == "" {
			// A bare empty body line is a blank context line with its
			// leading space dropped, a form many diff producers emit.
			oldCount++
			newCount++
			hunk.Lines = append(hunk.Lines, Line{Op: OpContext, Text: ""})
			continue
		}
		if strings.HasPrefix(raw, `\`) {
			// "\ No newline at end of file"
			continue
		}
		op := LineOp(raw[0])
		text := raw[1:]
		switch op {
		case OpContext:
			oldCount++
			newCount++
		case OpAdd:
			newCount++
		case OpDelete:
			oldCount++
		default:
			return Hunk{}, &ParseError{
				Path: path, Hunk: index,
				Reason: fmt.Sprintf("unrecognized line prefix %q", string(op)),
			}
		}
		hunk.Lines = append(hunk.Lines, Line{Op: op, Text: text})
	}

	if oldCount != hunk.OldLines {
		return Hunk{}, &ParseError{
			Path: path, Hunk: index,
			Reason: fmt.Sprintf("header declares %d old lines but body has %d", hunk.OldLines, oldCount),
		}
	}
	if newCount != hunk.NewLines {
		return Hunk{}, &ParseError{
			Path: path, Hunk: index,
			Reason: fmt.Sprintf("header declares %d new lines but body has %d", hunk.NewLines, newCount),
		}
	}
	return hunk, nil
}

// stripDiffPrefix removes the conventional a/ and b/ markers.
func stripDiffPrefix(name string) string {
	if name == "/dev/null" {
		return ""
	}
	for _, p := range []string{"a/", "b/"} {
		if strings.HasPrefix(name, p) {
			return name[len(p):]
		}
	}
	return name
}
