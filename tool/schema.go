package tool

import "coxswain/provider"

// Schemas declares every supported tool in the form sent to model backends.
// The argument shapes mirror the structs in invocation.go.
func Schemas() []provider.ToolSchema {
	return []provider.ToolSchema{
		{
			Name:        string(KindRead),
			Description: "Read a file from the workspace. Optionally restrict to a byte range.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the file, relative to the workspace root.",
					},
					"offset": map[string]any{
						"type":        "integer",
						"description": "Starting byte offset. Default: 0.",
					},
					"length": map[string]any{
						"type":        "integer",
						"description": "Number of bytes to read. Default: to end of file.",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        string(KindWrite),
			Description: "Write full content to a file. Set create to allow new files and overwrite to replace existing ones.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to write, relative to the workspace root.",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "The complete file content.",
					},
					"create": map[string]any{
						"type":        "boolean",
						"description": "Allow creating the file if it does not exist.",
					},
					"overwrite": map[string]any{
						"type":        "boolean",
						"description": "Allow replacing the file if it already exists.",
					},
				},
				"required": []string{"path", "content"},
			},
		},
		{
			Name:        string(KindSearch),
			Description: "Search file contents under the workspace. Returns path:line matches.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pattern": map[string]any{
						"type":        "string",
						"description": "Regex pattern, or a plain substring when literal is true.",
					},
					"glob": map[string]any{
						"type":        "string",
						"description": "File pattern filter (e.g., \"*.go\").",
					},
					"case_sensitive": map[string]any{
						"type":        "boolean",
						"description": "Match case exactly. Default: false.",
					},
					"literal": map[string]any{
						"type":        "boolean",
						"description": "Treat pattern as a plain substring. Default: false.",
					},
					"max_results": map[string]any{
						"type":        "integer",
						"description": "Maximum matches to return. Default: 100.",
					},
				},
				"required": []string{"pattern"},
			},
		},
		{
			Name:        string(KindApplyPatch),
			Description: "Apply a unified diff to workspace files. Use dry_run to preview per-hunk verdicts without writing.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"diff": map[string]any{
						"type":        "string",
						"description": "The unified diff text.",
					},
					"dry_run": map[string]any{
						"type":        "boolean",
						"description": "Report what would happen without modifying files.",
					},
				},
				"required": []string{"diff"},
			},
		},
		{
			Name:        string(KindFind),
			Description: "Fuzzy-find files by path. Query characters must appear in order in the path.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The fuzzy query (e.g., \"tlexec\" matches tool/executor.go).",
					},
					"type_filter": map[string]any{
						"type":        "string",
						"description": "Restrict to one file extension (e.g., \"go\").",
					},
					"max_results": map[string]any{
						"type":        "integer",
						"description": "Maximum paths to return. Default: 25.",
					},
					"ignore_patterns": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Glob patterns to exclude (e.g., \"*.lock\", \"testdata\").",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        string(KindSymbols),
			Description: "List top-level declarations (functions, types, classes) in a source file.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the source file.",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        string(KindShellExec),
			Description: "Execute a shell command in the workspace. Returns combined output and exit code.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{
						"type":        "string",
						"description": "The command to run.",
					},
					"timeout_ms": map[string]any{
						"type":        "integer",
						"description": "Override the default timeout in milliseconds.",
					},
					"env": map[string]any{
						"type":        "object",
						"description": "Extra environment variables for this command.",
					},
				},
				"required": []string{"command"},
			},
		},
	}
}
