// Package extract recovers structured function-call instructions from
// unstructured model output. Local models rarely emit clean JSON, so several
// strategies run in order; the first one that succeeds wins and failure is an
// ordinary outcome, never an error.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// FunctionCall is the instruction recovered from model text. Name is not
// validated here; the engine checks it against the recognized set.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Result is the outcome of one extraction attempt. Call is nil when no
// function call could be recovered. FailedAttempt marks text that looks like
// a botched attempt at a call (operation vocabulary present, no parseable
// instruction) rather than a deliberate prose answer; the enforcement policy
// treats it as a failure.
type Result struct {
	Call          *FunctionCall
	FailedAttempt bool
}

// Found reports whether a function call was recovered.
func (r Result) Found() bool { return r.Call != nil }

type strategy func(text string) (FunctionCall, bool)

var strategies = []strategy{
	scanDirectObject,
	scanFencedBlock,
	reconstructLoose,
}

// Extract runs the strategies in order and returns the first success. When all
// fail, text containing operation vocabulary is flagged as a failed attempt.
func Extract(text string) Result {
	for _, s := range strategies {
		if call, ok := s(text); ok {
			call.Name = strings.TrimSpace(call.Name)
			if call.Arguments == nil {
				call.Arguments = map[string]any{}
			}
			return Result{Call: &call}
		}
	}
	if looksLikeAttempt(text) {
		return Result{FailedAttempt: true}
	}
	return Result{}
}

// wrapper matches the wire format: {"function_call": {"name": ..., "arguments": {...}}}.
type wrapper struct {
	FunctionCall *FunctionCall `json:"function_call"`
}

// scanDirectObject walks the text looking for a balanced JSON object that
// carries the function_call wrapper key. Prose before and after the object is
// permitted. Candidate objects are taken leftmost-first and scanned with a
// depth counter, so a wrapper whose arguments contain nested objects is
// captured whole instead of truncated at the first closing brace.
func scanDirectObject(text string) (FunctionCall, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		obj, ok := balancedObject(text[i:])
		if !ok {
			continue
		}
		var w wrapper
		if err := json.Unmarshal([]byte(obj), &w); err == nil && w.FunctionCall != nil {
			return *w.FunctionCall, true
		}
		// A well-formed object without the wrapper key is skipped whole;
		// an unparseable region is re-entered one brace at a time.
		if json.Valid([]byte(obj)) {
			i += len(obj) - 1
		}
	}
	return FunctionCall{}, false
}

var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\n?(.*?)```")

// scanFencedBlock applies the direct-object scan to the contents of the first
// fenced code block only.
func scanFencedBlock(text string) (FunctionCall, bool) {
	m := fenceRe.FindStringSubmatch(text)
	if m == nil {
		return FunctionCall{}, false
	}
	return scanDirectObject(m[1])
}

var (
	// \b keeps the key from matching inside longer words such as "filename:".
	nameRe = regexp.MustCompile(`"?\b(?:function_)?name"?\s*[:=]\s*"?([A-Za-z][A-Za-z0-9_-]*)"?`)
	argsRe = regexp.MustCompile(`"?arguments"?\s*[:=]`)
)

// reconstructLoose recovers a call from near-JSON: a function name token next
// to "name"/"function_name" vocabulary, plus an independently located
// arguments object. Small local models emit trailing commas and mismatched
// braces often enough that a name with no parseable arguments still counts as
// a call with empty arguments.
func reconstructLoose(text string) (FunctionCall, bool) {
	m := nameRe.FindStringSubmatch(text)
	if m == nil {
		return FunctionCall{}, false
	}
	call := FunctionCall{Name: m[1], Arguments: map[string]any{}}

	if loc := argsRe.FindStringIndex(text); loc != nil {
		rest := text[loc[1]:]
		if j := strings.IndexByte(rest, '{'); j >= 0 {
			if obj, ok := balancedObject(rest[j:]); ok {
				var args map[string]any
				if err := json.Unmarshal([]byte(obj), &args); err == nil {
					call.Arguments = args
				}
			}
		}
	}
	return call, true
}

// operationVocab lists terms that indicate the model was trying to act on the
// filesystem. Matching any of them after every parse strategy has failed
// distinguishes "tried to call, bad syntax" from an intentional prose answer.
var operationVocab = []string{
	"create", "write", "read", "list", "run", "execute",
	"file", "directory", "folder", "script",
	"function_call", "arguments",
}

func looksLikeAttempt(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range operationVocab {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// balancedObject returns the shortest prefix of s that forms a brace-balanced
// JSON object, tolerating braces inside string literals. s must start at '{'.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
