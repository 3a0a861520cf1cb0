package tool

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ignoredDirs are skipped by search and find. They dominate walk time and
// almost never hold content the model wants.
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"target":       true,
	"dist":         true,
	"build":        true,
	".venv":        true,
	"__pycache__":  true,
	"vendor":       true,
}

const maxSearchFileSize = 4 << 20 // skip files larger than 4 MiB

// readFile returns file content, optionally restricted to a byte range.
func readFile(args *ReadArgs) (string, error) {
	data, err := os.ReadFile(args.Path)
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	if args.Offset >= len(data) {
		return "", nil
	}
	data = data[args.Offset:]
	if args.Length > 0 && args.Length < len(data) {
		data = data[:args.Length]
	}
	return string(data), nil
}

// writeFile writes full content, honoring the create/overwrite flags. The
// write goes through a temp file plus rename so a crash mid-write cannot
// leave a half-written target.
func writeFile(args *WriteArgs) (string, error) {
	_, statErr := os.Stat(args.Path)
	exists := statErr == nil

	if exists && !args.Overwrite {
		return "", fmt.Errorf("write: %s already exists and overwrite is false", args.Path)
	}
	if !exists && !args.Create {
		return "", fmt.Errorf("write: %s does not exist and create is false", args.Path)
	}

	dir := filepath.Dir(args.Path)
	if args.Create {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("write: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".write-*")
	if err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(args.Content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("write: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmpName, args.Path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("write: %w", err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(args.Content), args.Path), nil
}

// removeFile deletes a file for a deletion diff.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// searchFiles scans text files under root for the pattern and returns
// path:line:content matches.
func searchFiles(root string, args *SearchArgs) (string, error) {
	var matcher func(line string) bool
	if args.Literal {
		needle := args.Pattern
		if !args.CaseSensitive {
			needle = strings.ToLower(needle)
			matcher = func(line string) bool {
				return strings.Contains(strings.ToLower(line), needle)
			}
		} else {
			matcher = func(line string) bool { return strings.Contains(line, needle) }
		}
	} else {
		expr := args.Pattern
		if !args.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return "", fmt.Errorf("search: invalid pattern: %w", err)
		}
		matcher = re.MatchString
	}

	var sb strings.Builder
	count := 0
	capped := false

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if ignoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if capped {
			return filepath.SkipAll
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if args.Glob != "" && !globMatches(args.Glob, rel) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil || info.Size() > maxSearchFileSize {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil || looksBinary(data) {
			return nil
		}

		for i, line := range strings.Split(string(data), "\n") {
			if !matcher(line) {
				continue
			}
			fmt.Fprintf(&sb, "%s:%d: %s\n", rel, i+1, line)
			count++
			if count >= args.MaxResults {
				capped = true
				return filepath.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}

	if count == 0 {
		return "No matches found.", nil
	}
	if capped {
		fmt.Fprintf(&sb, "[Result limit of %d reached; refine the pattern to see more.]\n", args.MaxResults)
	}
	return sb.String(), nil
}

// globMatches applies the pattern to both the base name and the relative
// path, so "*.go" and "cmd/*.go" both behave as expected.
func globMatches(pattern, rel string) bool {
	if ok, _ := filepath.Match(pattern, filepath.Base(rel)); ok {
		return true
	}
	ok, _ := filepath.Match(pattern, rel)
	return ok
}

// matchesAnyPattern reports whether any caller-supplied ignore pattern
// matches the path, by base name or root-relative path.
func matchesAnyPattern(patterns []string, rel string) bool {
	for _, p := range patterns {
		if globMatches(strings.TrimSuffix(p, "/"), rel) {
			return true
		}
	}
	return false
}

func looksBinary(data []byte) bool {
	probe := data
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	return bytes.IndexByte(probe, 0) != -1
}

// scoredPath pairs a candidate file with its fuzzy-match score.
type scoredPath struct {
	Path  string
	Score int
}

// findFiles fuzzy-matches file paths under root against the query. Every
// query character must appear in order in the path; consecutive runs and
// matches at path-segment starts score higher.
func findFiles(root string, args *FindArgs) (string, error) {
	ext := strings.TrimPrefix(args.TypeFilter, ".")

	var scored []scoredPath
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if ignoredDirs[d.Name()] || matchesAnyPattern(args.IgnorePatterns, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesAnyPattern(args.IgnorePatterns, rel) {
			return nil
		}
		if ext != "" && strings.TrimPrefix(filepath.Ext(rel), ".") != ext {
			return nil
		}
		if score, ok := fuzzyScore(args.Query, rel); ok {
			scored = append(scored, scoredPath{Path: rel, Score: score})
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("find: %w", err)
	}

	if len(scored) == 0 {
		return "No files matched the query.", nil
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Path < scored[j].Path
	})
	if len(scored) > args.MaxResults {
		scored = scored[:args.MaxResults]
	}

	var sb strings.Builder
	for _, sp := range scored {
		fmt.Fprintf(&sb, "%s\n", sp.Path)
	}
	return sb.String(), nil
}

// fuzzyScore reports whether query is a case-insensitive subsequence of
// candidate, and how good the match is. Consecutive matched characters earn
// a streak bonus; matching the first character of a path segment earns a
// boundary bonus.
func fuzzyScore(query, candidate string) (int, bool) {
	q := strings.ToLower(query)
	c := strings.ToLower(candidate)

	score := 0
	streak := 0
	qi := 0
	for ci := 0; ci < len(c) && qi < len(q); ci++ {
		if c[ci] != q[qi] {
			streak = 0
			continue
		}
		score++
		if streak > 0 {
			score += 2 * streak
		}
		if ci == 0 || c[ci-1] == '/' || c[ci-1] == '_' || c[ci-1] == '-' || c[ci-1] == '.' {
			score += 3
		}
		streak++
		qi++
	}
	if qi < len(q) {
		return 0, false
	}
	// Shorter candidates rank higher on equal match quality.
	score -= len(c) / 8
	return score, true
}
