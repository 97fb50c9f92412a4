// Package engine drives one conversation turn: call the model, extract a
// function call from the reply, execute it or push back, and stop on a
// terminal text answer, an error, or budget exhaustion.
package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/forgelab/locai/internal/conv"
	"github.com/forgelab/locai/internal/enforce"
	"github.com/forgelab/locai/internal/extract"
	"github.com/forgelab/locai/internal/functions"
)

// ChatClient is the outbound model endpoint. Implementations must not retry;
// the engine treats any error as fatal to the turn.
type ChatClient interface {
	Chat(ctx context.Context, model string, msgs []conv.Message) (string, error)
}

// FunctionExecutor performs a recognized operation. It must encode internal
// failures into the result text rather than panicking or erroring.
type FunctionExecutor interface {
	Execute(ctx context.Context, name functions.Name, args map[string]any) functions.Result
}

// OutcomeKind tags how a turn ended.
type OutcomeKind int

const (
	// OutcomeTerminalText: the model answered in prose and no call was required.
	OutcomeTerminalText OutcomeKind = iota
	// OutcomeFunctionExecuted: at least one function ran and the turn then
	// reached a terminal answer or exhausted its budget.
	OutcomeFunctionExecuted
	// OutcomeAborted: transport failure or budget exhaustion; Err is set.
	OutcomeAborted
)

// EventKind tags the per-round-trip events a presentation layer may observe.
type EventKind int

const (
	EventModelReply EventKind = iota
	EventFunctionCall
	EventInvalidName
	EventEnforcement
	EventReinforcement
)

// Event is one observable step within a turn.
type Event struct {
	Kind     EventKind
	Round    int
	Text     string           // assistant text for EventModelReply
	Function functions.Name   // set for EventFunctionCall
	Args     map[string]any   // set for EventFunctionCall
	Result   functions.Result // set for EventFunctionCall
	BadName  string           // set for EventInvalidName
}

// Turn is the outcome of one user request, with enough structure for a
// presentation layer to render it without reaching into the engine.
type Turn struct {
	Kind   OutcomeKind
	Text   string  // terminal answer for OutcomeTerminalText
	Events []Event // chronological function calls and corrections
	Rounds int     // model round-trips consumed
	Err    error   // set for OutcomeAborted
}

// Config bounds a turn.
type Config struct {
	Model         string
	MaxRoundTrips int // model calls per turn; default 20
	WindowSize    int // context window in messages; default 30
}

const (
	defaultMaxRoundTrips = 20
	defaultWindowSize    = 30
)

// Engine owns one conversation and its enforcement state. It is not safe for
// concurrent use; callers serialize turns (the server wraps it in a per-session
// lock, the REPL is single-threaded by construction).
type Engine struct {
	client ChatClient
	exec   FunctionExecutor
	policy *enforce.Policy

	conversation conv.Conversation
	state        enforce.State
	reinforce    bool

	model         string
	maxRoundTrips int
	windowSize    int

	// Observe, when set, receives events as the turn progresses so an
	// interactive front end can render intermediate steps.
	Observe func(Event)
}

// New builds an engine seeded with systemPrompt.
func New(client ChatClient, exec FunctionExecutor, policy *enforce.Policy, systemPrompt string, cfg Config) *Engine {
	if cfg.MaxRoundTrips <= 0 {
		cfg.MaxRoundTrips = defaultMaxRoundTrips
	}
	if cfg.WindowSize <= 1 {
		cfg.WindowSize = defaultWindowSize
	}
	return &Engine{
		client:        client,
		exec:          exec,
		policy:        policy,
		conversation:  conv.New(systemPrompt),
		model:         cfg.Model,
		maxRoundTrips: cfg.MaxRoundTrips,
		windowSize:    cfg.WindowSize,
	}
}

// Conversation returns a snapshot of the current conversation.
func (e *Engine) Conversation() conv.Conversation { return e.conversation }

// Restore replaces the non-system history, keeping the current system message.
// Used to resume a persisted session. Persisted history carries its own system
// message at index 0; it is dropped so the engine's current prompt stays the
// only one and prompt switches between sessions do not leave stale
// instructions mid-conversation.
func (e *Engine) Restore(history []conv.Message) {
	if len(history) > 0 && history[0].Role == conv.RoleSystem {
		history = history[1:]
	}
	c := conv.New(e.conversation.System().Content)
	e.conversation = c.Append(history...)
}

// Clear drops all history, keeping the system message.
func (e *Engine) Clear() {
	e.conversation = conv.New(e.conversation.System().Content)
	e.state.Reset()
	e.reinforce = false
}

// SetSystemPrompt replaces the system message wholesale.
func (e *Engine) SetSystemPrompt(prompt string) {
	e.conversation = e.conversation.WithSystem(prompt)
}

// Model returns the active model name.
func (e *Engine) Model() string { return e.model }

// SetModel switches the model used for subsequent round-trips.
func (e *Engine) SetModel(model string) { e.model = model }

const (
	invalidNameFmt = "Error: %q is not a recognized function. Valid functions are: %s. " +
		"Respond with a function_call JSON object using one of those names."
	correctiveMsg = "Your previous response should have been a function call. " +
		"Respond with ONLY a JSON object of the form " +
		`{"function_call": {"name": "...", "arguments": {...}}} and no other text.`
	reinforcementMsg = "REMINDER: you MUST use function calls for file and script operations. " +
		"Never describe how to do something with files — do it by responding with a " +
		`{"function_call": {...}} JSON object. Valid functions: %s.`
)

// ProcessTurn resolves one user request. It appends the user message, then
// loops model calls until a terminal answer, a transport error, or the
// round-trip budget runs out. The conversation is left consistent and
// appendable on every path, including cancellation.
func (e *Engine) ProcessTurn(ctx context.Context, userPrompt string) Turn {
	e.conversation = e.conversation.Append(conv.Message{Role: conv.RoleUser, Content: userPrompt})

	turn := Turn{}
	executed := false

	for turn.Rounds < e.maxRoundTrips {
		e.conversation = e.conversation.Trim(e.windowSize)

		// A reinforcement injection pending from the previous round-trip goes
		// in before the next model call and does not consume budget.
		if e.reinforce {
			e.conversation = e.conversation.Append(conv.Message{
				Role:    conv.RoleSystem,
				Content: fmt.Sprintf(reinforcementMsg, functions.NameList()),
			})
			e.state.Reset()
			e.reinforce = false
			e.emit(&turn, Event{Kind: EventReinforcement, Round: turn.Rounds})
		}

		turn.Rounds++
		text, err := e.client.Chat(ctx, e.model, e.conversation.Messages())
		if err != nil {
			terr := classifyTransport(err)
			log.Printf("engine: chat failed on round %d: %v", turn.Rounds, terr)
			turn.Kind = OutcomeAborted
			turn.Err = terr
			return turn
		}
		e.emit(&turn, Event{Kind: EventModelReply, Round: turn.Rounds, Text: text})

		res := extract.Extract(text)
		if res.Found() {
			// Extraction success always beats enforcement: a valid call is
			// executed even when the surrounding prose looks like deflection.
			call := res.Call
			if !functions.Valid(call.Name) {
				log.Printf("engine: model requested unknown function %q", call.Name)
				e.conversation = e.conversation.Append(
					conv.Message{Role: conv.RoleAssistant, Content: text},
					conv.Message{Role: conv.RoleUser, Content: fmt.Sprintf(invalidNameFmt, call.Name, functions.NameList())},
				)
				e.emit(&turn, Event{Kind: EventInvalidName, Round: turn.Rounds, BadName: call.Name})
				continue
			}

			result := e.exec.Execute(ctx, functions.Name(call.Name), call.Arguments)
			e.conversation = e.conversation.Append(
				conv.Message{Role: conv.RoleAssistant, Content: text},
				conv.Message{Role: conv.RoleUser, Content: "Function result: " + result.AIText},
			)
			e.state.Reset()
			executed = true
			e.emit(&turn, Event{Kind: EventFunctionCall, Round: turn.Rounds, Function: functions.Name(call.Name), Args: call.Arguments, Result: result})
			continue
		}

		// No call recovered. A failed attempt at a call, or a prompt that
		// demanded one, pushes the model to retry. Once a function has run
		// this turn the requirement is satisfied and prose is the summary,
		// not a deflection.
		if !executed && (res.FailedAttempt || e.policy.ShouldHaveCalled(text, userPrompt)) {
			e.conversation = e.conversation.Append(
				conv.Message{Role: conv.RoleAssistant, Content: text},
				conv.Message{Role: conv.RoleUser, Content: correctiveMsg},
			)
			e.state.RecordFailure()
			if e.state.Failures() >= e.policy.Threshold() {
				e.reinforce = true
			}
			e.emit(&turn, Event{Kind: EventEnforcement, Round: turn.Rounds})
			continue
		}

		// Legitimate terminal text answer.
		e.conversation = e.conversation.Append(conv.Message{Role: conv.RoleAssistant, Content: text})
		e.state.Reset()
		turn.Text = text
		if executed {
			turn.Kind = OutcomeFunctionExecuted
		} else {
			turn.Kind = OutcomeTerminalText
		}
		return turn
	}

	log.Printf("engine: budget of %d round-trips exhausted", e.maxRoundTrips)
	turn.Kind = OutcomeAborted
	turn.Err = ErrBudgetExhausted
	return turn
}

func (e *Engine) emit(turn *Turn, ev Event) {
	turn.Events = append(turn.Events, ev)
	if e.Observe != nil {
		e.Observe(ev)
	}
}
