// Package enforce decides whether a model reply that carried no function call
// should have carried one, and tracks consecutive failures so the engine knows
// when to inject a reinforcement message.
package enforce

import (
	"regexp"
	"strings"
)

// Terms is the vocabulary the decision rule matches against. It is plain data
// so tests and alternate locales can swap it out without touching the policy.
type Terms struct {
	// Action terms in the user prompt (create, write, run, ...).
	Action []string
	// FileRef terms in the user prompt (file, script, directory, ...).
	FileRef []string
	// Explain phrases in the model text that signal deflection instead of
	// action ("you can", "here's how", ...).
	Explain []string
}

// DefaultTerms returns the built-in English vocabulary.
func DefaultTerms() Terms {
	return Terms{
		Action: []string{
			"create", "write", "make", "generate", "build", "show", "list",
			"display", "read", "view", "run", "execute", "test", "check",
		},
		FileRef: []string{
			"file", "script", "code", "program", "directory", "folder", "content",
		},
		Explain: []string{
			"you can", "you could", "here's how", "here is how", "to create",
			"to write", "to make", "let me explain", "follow these steps",
		},
	}
}

// extRe recognizes a file extension in the user prompt as a file reference.
var extRe = regexp.MustCompile(`\.(py|go|js|ts|jsx|tsx|sh|rb|rs|java|c|cpp|h|cs|php|txt|md|json|ya?ml|toml|html|css|sql)\b`)

// Policy is the pure decision rule. It carries no state; the failure counter
// lives in State and is owned by the engine.
type Policy struct {
	terms     Terms
	threshold int
}

// NewPolicy builds a policy over the given vocabulary. threshold is the number
// of consecutive failures that triggers one reinforcement injection.
func NewPolicy(terms Terms, threshold int) *Policy {
	return &Policy{terms: terms, threshold: threshold}
}

// Threshold returns the consecutive-failure count at which the engine injects
// a reinforcement message.
func (p *Policy) Threshold() int { return p.threshold }

// ShouldHaveCalled reports whether the model's text-only reply avoided a
// function call the user's request demanded. True when the user prompt pairs
// an action term with a file reference, or when the model text contains an
// explaining phrase.
func (p *Policy) ShouldHaveCalled(modelText, userPrompt string) bool {
	prompt := strings.ToLower(userPrompt)
	if containsAny(prompt, p.terms.Action) &&
		(containsAny(prompt, p.terms.FileRef) || extRe.MatchString(prompt)) {
		return true
	}
	return containsAny(strings.ToLower(modelText), p.terms.Explain)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// State counts consecutive turns where a required function call was omitted.
type State struct {
	consecutiveFailures int
}

// RecordFailure notes one more text-only reply that should have been a call.
func (s *State) RecordFailure() { s.consecutiveFailures++ }

// Reset clears the counter. Called after a reinforcement injection, a
// legitimate function call, or a legitimate terminal text answer.
func (s *State) Reset() { s.consecutiveFailures = 0 }

// Failures returns the current consecutive-failure count.
func (s *State) Failures() int { return s.consecutiveFailures }
