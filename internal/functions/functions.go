// Package functions implements the four operations the model may invoke.
// Every operation returns an AI-facing result string and a user-facing result
// string; failures are encoded into those strings rather than returned as
// errors, so a bad call always re-enters the conversation as a function
// result.
package functions

import "strings"

// Name identifies one of the recognized operations. The set is closed;
// dispatch is an exhaustive switch, not a map lookup.
type Name string

const (
	ListDirectory Name = "list-directory"
	ReadFile      Name = "read-file"
	WriteFile     Name = "write-file"
	RunScript     Name = "run-script"
)

// All returns the recognized operation names in a stable order.
func All() []Name {
	return []Name{ListDirectory, ReadFile, WriteFile, RunScript}
}

// Valid reports whether s names a recognized operation.
func Valid(s string) bool {
	switch Name(s) {
	case ListDirectory, ReadFile, WriteFile, RunScript:
		return true
	}
	return false
}

// NameList renders the recognized names for corrective messages.
func NameList() string {
	names := All()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

// Typed argument structures, decoded from the loose argument map the
// extractor recovers.

type ListDirectoryArgs struct {
	Directory string
}

type ReadFileArgs struct {
	FilePath string
}

type WriteFileArgs struct {
	FilePath string
	Content  string
}

type RunScriptArgs struct {
	FilePath string
	Args     []string
}

// Entry describes one directory listing row for tabular display.
type Entry struct {
	Name string
	Type string // "file" or "directory"
	Size string // humanized
}

// Result carries both faces of an operation outcome. AIText goes back into
// the conversation; UserText is what the presentation layer may show; Entries
// is auxiliary data for the directory table.
type Result struct {
	AIText   string
	UserText string
	Entries  []Entry
}

// IsError reports whether the result encodes a failure.
func (r Result) IsError() bool {
	return strings.HasPrefix(r.AIText, errorPrefix)
}

const errorPrefix = "Error:"

func errorResult(msg string) Result {
	text := errorPrefix + " " + msg
	return Result{AIText: text, UserText: text}
}

// --- argument decoding helpers ---

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func stringSliceArg(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
