package tool

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Symbol is one top-level declaration found in a source file.
type Symbol struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // function, type, class, const, var, ...
	Line int    `json:"line"` // 1-based
}

// SymbolExtractor pulls declarations out of one file's content. Language
// grammars live behind this interface; the executor only owns the dispatch
// by file extension.
type SymbolExtractor interface {
	Extract(path string, content []byte) ([]Symbol, error)
}

// ExtractorRegistry maps file extensions (without the dot) to extractors.
type ExtractorRegistry map[string]SymbolExtractor

// DefaultExtractors covers a handful of common languages with declaration-
// pattern scanning. Callers with real parsers can replace entries.
func DefaultExtractors() ExtractorRegistry {
	return ExtractorRegistry{
		"go": patternExtractor{patterns: []symbolPattern{
			{regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?([A-Za-z_]\w*)`), "function"},
			{regexp.MustCompile(`^type\s+([A-Za-z_]\w*)`), "type"},
			{regexp.MustCompile(`^const\s+([A-Za-z_]\w*)`), "const"},
			{regexp.MustCompile(`^var\s+([A-Za-z_]\w*)`), "var"},
		}},
		"py": patternExtractor{patterns: []symbolPattern{
			{regexp.MustCompile(`^\s*def\s+([A-Za-z_]\w*)`), "function"},
			{regexp.MustCompile(`^\s*class\s+([A-Za-z_]\w*)`), "class"},
		}},
		"rs": patternExtractor{patterns: []symbolPattern{
			{regexp.MustCompile(`^\s*(?:pub\s+)?fn\s+([A-Za-z_]\w*)`), "function"},
			{regexp.MustCompile(`^\s*(?:pub\s+)?struct\s+([A-Za-z_]\w*)`), "struct"},
			{regexp.MustCompile(`^\s*(?:pub\s+)?enum\s+([A-Za-z_]\w*)`), "enum"},
			{regexp.MustCompile(`^\s*(?:pub\s+)?trait\s+([A-Za-z_]\w*)`), "trait"},
		}},
		"js": patternExtractor{patterns: []symbolPattern{
			{regexp.MustCompile(`^\s*(?:export\s+)?function\s+([A-Za-z_$]\w*)`), "function"},
			{regexp.MustCompile(`^\s*(?:export\s+)?class\s+([A-Za-z_$]\w*)`), "class"},
		}},
		"ts": patternExtractor{patterns: []symbolPattern{
			{regexp.MustCompile(`^\s*(?:export\s+)?function\s+([A-Za-z_$]\w*)`), "function"},
			{regexp.MustCompile(`^\s*(?:export\s+)?class\s+([A-Za-z_$]\w*)`), "class"},
			{regexp.MustCompile(`^\s*(?:export\s+)?interface\s+([A-Za-z_$]\w*)`), "interface"},
		}},
	}
}

type symbolPattern struct {
	re   *regexp.Regexp
	kind string
}

// patternExtractor scans line-by-line for declaration patterns. It trades
// grammar fidelity for zero dependencies per language; nested declarations
// in brace languages are ignored by anchoring at column zero where the
// language allows it.
type patternExtractor struct {
	patterns []symbolPattern
}

func (e patternExtractor) Extract(_ string, content []byte) ([]Symbol, error) {
	var symbols []Symbol
	for i, line := range strings.Split(string(content), "\n") {
		for _, p := range e.patterns {
			if m := p.re.FindStringSubmatch(line); m != nil {
				symbols = append(symbols, Symbol{Name: m[1], Kind: p.kind, Line: i + 1})
				break
			}
		}
	}
	return symbols, nil
}

// extractSymbols runs the registered extractor for the file's extension and
// formats one symbol per line.
func extractSymbols(registry ExtractorRegistry, args *SymbolsArgs) (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(args.Path), ".")
	extractor, ok := registry[ext]
	if !ok {
		return "", fmt.Errorf("symbols: no extractor registered for .%s files", ext)
	}

	content, err := os.ReadFile(args.Path)
	if err != nil {
		return "", fmt.Errorf("symbols: %w", err)
	}

	symbols, err := extractor.Extract(args.Path, content)
	if err != nil {
		return "", fmt.Errorf("symbols: %w", err)
	}
	if len(symbols) == 0 {
		return "No symbols found.", nil
	}

	var sb strings.Builder
	for _, s := range symbols {
		fmt.Fprintf(&sb, "%s %s (line %d)\n", s.Kind, s.Name, s.Line)
	}
	return sb.String(), nil
}
