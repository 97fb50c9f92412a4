package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgelab/locai/internal/conv"
	"github.com/forgelab/locai/internal/enforce"
	"github.com/forgelab/locai/internal/functions"
)

// scriptedClient replays canned replies and records every request.
type scriptedClient struct {
	replies  []string
	err      error
	calls    int
	requests [][]conv.Message
}

func (c *scriptedClient) Chat(_ context.Context, _ string, msgs []conv.Message) (string, error) {
	c.requests = append(c.requests, msgs)
	if c.err != nil {
		return "", c.err
	}
	if c.calls >= len(c.replies) {
		return "all done", nil
	}
	reply := c.replies[c.calls]
	c.calls++
	return reply, nil
}

// recordingExecutor records invocations and returns a fixed result.
type recordingExecutor struct {
	invocations []functions.Name
}

func (e *recordingExecutor) Execute(_ context.Context, name functions.Name, _ map[string]any) functions.Result {
	e.invocations = append(e.invocations, name)
	return functions.Result{AIText: "ok from " + string(name), UserText: "ok"}
}

func newTestEngine(client ChatClient, exec FunctionExecutor) *Engine {
	policy := enforce.NewPolicy(enforce.DefaultTerms(), 2)
	return New(client, exec, policy, "you are a coding agent", Config{Model: "test-model"})
}

func TestTerminalTextTurn(t *testing.T) {
	client := &scriptedClient{replies: []string{"Paris is the capital of France."}}
	exec := &recordingExecutor{}
	e := newTestEngine(client, exec)

	turn := e.ProcessTurn(context.Background(), "what is the capital of France?")

	assert.Equal(t, OutcomeTerminalText, turn.Kind)
	assert.Equal(t, "Paris is the capital of France.", turn.Text)
	assert.Equal(t, 1, turn.Rounds)
	assert.Empty(t, exec.invocations)

	// system, user, assistant
	msgs := e.Conversation().Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, conv.RoleAssistant, msgs[2].Role)
}

func TestFunctionCallThenTerminal(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"function_call": {"name": "list-directory", "arguments": {"directory": "."}}}`,
		"There are two files in the directory.",
	}}
	exec := &recordingExecutor{}
	e := newTestEngine(client, exec)

	turn := e.ProcessTurn(context.Background(), "list the files here")

	assert.Equal(t, OutcomeFunctionExecuted, turn.Kind)
	assert.Equal(t, 2, turn.Rounds)
	require.Equal(t, []functions.Name{functions.ListDirectory}, exec.invocations)

	// The function result went back in as a user-role message.
	second := client.requests[1]
	resultMsg := second[len(second)-1]
	assert.Equal(t, conv.RoleUser, resultMsg.Role)
	assert.Contains(t, resultMsg.Content, "Function result: ok from list-directory")
}

func TestInvalidNameNeverInvokesExecutor(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"function_call": {"name": "delete-everything", "arguments": {}}}`,
		"Understood.",
	}}
	exec := &recordingExecutor{}
	e := newTestEngine(client, exec)

	turn := e.ProcessTurn(context.Background(), "hello")

	assert.Empty(t, exec.invocations)
	assert.Equal(t, OutcomeTerminalText, turn.Kind)

	// The corrective message names the valid set.
	second := client.requests[1]
	corrective := second[len(second)-1]
	assert.Equal(t, conv.RoleUser, corrective.Role)
	assert.Contains(t, corrective.Content, "delete-everything")
	for _, n := range functions.All() {
		assert.Contains(t, corrective.Content, string(n))
	}
}

func TestTransportErrorAbortsWithoutRetry(t *testing.T) {
	client := &scriptedClient{err: errors.New("connection refused")}
	exec := &recordingExecutor{}
	e := newTestEngine(client, exec)

	turn := e.ProcessTurn(context.Background(), "hi")

	assert.Equal(t, OutcomeAborted, turn.Kind)
	var terr *TransportError
	require.ErrorAs(t, turn.Err, &terr)
	assert.Equal(t, TransportConnection, terr.Kind)
	assert.Equal(t, 1, len(client.requests), "no automatic retry")

	// Conversation stays appendable: the user message is in, nothing dangles.
	last := e.Conversation().Last()
	assert.Equal(t, conv.RoleUser, last.Role)
	assert.Equal(t, "hi", last.Content)
}

func TestBudgetExhaustedIsObservable(t *testing.T) {
	// Every reply is an invalid call, so the loop never terminates on its own.
	replies := make([]string, 30)
	for i := range replies {
		replies[i] = `{"function_call": {"name": "bogus", "arguments": {}}}`
	}
	client := &scriptedClient{replies: replies}
	exec := &recordingExecutor{}
	e := newTestEngine(client, exec)

	turn := e.ProcessTurn(context.Background(), "hello")

	assert.Equal(t, OutcomeAborted, turn.Kind)
	assert.ErrorIs(t, turn.Err, ErrBudgetExhausted)
	assert.Equal(t, 20, turn.Rounds)
}

func TestEnforcementThresholdInjectsOnce(t *testing.T) {
	// Two deflecting replies to a prompt that demands a call, then compliance.
	client := &scriptedClient{replies: []string{
		"You can create one by writing print('hello')",
		"Here's how you would do it yourself.",
		`{"function_call": {"name": "write-file", "arguments": {"file_path": "hello.py", "content": "print('hello')"}}}`,
		"Created hello.py for you.",
	}}
	exec := &recordingExecutor{}
	e := newTestEngine(client, exec)

	turn := e.ProcessTurn(context.Background(), "create a hello world script")
	assert.Equal(t, OutcomeFunctionExecuted, turn.Kind)

	// Exactly one reinforcement system message was injected, and it sits
	// after the second corrective exchange (index 0 stays the original system
	// message).
	reinforcements := 0
	for i, m := range client.requests[2] {
		if i > 0 && m.Role == conv.RoleSystem {
			reinforcements++
		}
	}
	assert.Equal(t, 1, reinforcements)

	var injections int
	for _, ev := range turn.Events {
		if ev.Kind == EventReinforcement {
			injections++
		}
	}
	assert.Equal(t, 1, injections)
}

func TestEnforcementCounterResetsAfterInjection(t *testing.T) {
	// Failures 1 and 2 trigger the injection; failure 3 alone must not.
	client := &scriptedClient{replies: []string{
		"You can create one yourself.",
		"Here's how to do it.",
		"You could also try an editor.",
		`{"function_call": {"name": "write-file", "arguments": {"file_path": "a.py", "content": "x"}}}`,
		"Done.",
	}}
	exec := &recordingExecutor{}
	e := newTestEngine(client, exec)

	turn := e.ProcessTurn(context.Background(), "create a hello world script")
	require.Equal(t, OutcomeFunctionExecuted, turn.Kind)

	var injections int
	for _, ev := range turn.Events {
		if ev.Kind == EventReinforcement {
			injections++
		}
	}
	assert.Equal(t, 1, injections, "third failure after reset must not inject again")
}

func TestExtractionBeatsEnforcement(t *testing.T) {
	// The reply both deflects and carries a valid call; the call wins.
	client := &scriptedClient{replies: []string{
		`You can do this yourself, but here: {"function_call": {"name": "read-file", "arguments": {"file_path": "a.py"}}}`,
		"The file prints hello.",
	}}
	exec := &recordingExecutor{}
	e := newTestEngine(client, exec)

	turn := e.ProcessTurn(context.Background(), "read a.py")

	assert.Equal(t, OutcomeFunctionExecuted, turn.Kind)
	assert.Equal(t, []functions.Name{functions.ReadFile}, exec.invocations)
}

func TestTrimAppliedEachRound(t *testing.T) {
	client := &scriptedClient{replies: []string{"fine."}}
	exec := &recordingExecutor{}
	policy := enforce.NewPolicy(enforce.DefaultTerms(), 2)
	e := New(client, exec, policy, "sys", Config{Model: "m", WindowSize: 4})

	var history []conv.Message
	for i := range 10 {
		history = append(history, conv.Message{Role: conv.RoleUser, Content: fmt.Sprintf("old %d", i)})
	}
	e.Restore(history)

	e.ProcessTurn(context.Background(), "ok?")

	sent := client.requests[0]
	require.Len(t, sent, 4)
	assert.Equal(t, conv.RoleSystem, sent[0].Role)
	assert.Equal(t, "ok?", sent[3].Content)
}

func TestRestoreDropsPersistedSystemMessage(t *testing.T) {
	e := newTestEngine(&scriptedClient{}, &recordingExecutor{})

	// Persisted history is a full snapshot, system message included.
	e.Restore([]conv.Message{
		{Role: conv.RoleSystem, Content: "you are a coding agent"},
		{Role: conv.RoleUser, Content: "hi"},
		{Role: conv.RoleAssistant, Content: "hello"},
	})

	msgs := e.Conversation().Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, conv.RoleSystem, msgs[0].Role)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.NotEqual(t, conv.RoleSystem, msgs[1].Role)
}

func TestRestoreKeepsCurrentSystemPrompt(t *testing.T) {
	e := newTestEngine(&scriptedClient{}, &recordingExecutor{})
	e.SetSystemPrompt("strict mode")

	// History saved under a previous prompt must not resurrect it.
	e.Restore([]conv.Message{
		{Role: conv.RoleSystem, Content: "old relaxed instructions"},
		{Role: conv.RoleUser, Content: "hi"},
	})

	msgs := e.Conversation().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "strict mode", msgs[0].Content)
}

func TestClearKeepsSystemMessage(t *testing.T) {
	client := &scriptedClient{replies: []string{"hello!"}}
	e := newTestEngine(client, &recordingExecutor{})

	e.ProcessTurn(context.Background(), "hey")
	require.Greater(t, e.Conversation().Len(), 1)

	e.Clear()
	assert.Equal(t, 1, e.Conversation().Len())
	assert.Equal(t, "you are a coding agent", e.Conversation().System().Content)
}

func TestSetSystemPromptReplacesWholesale(t *testing.T) {
	client := &scriptedClient{replies: []string{"hello!"}}
	e := newTestEngine(client, &recordingExecutor{})

	e.SetSystemPrompt("strict mode")
	assert.Equal(t, "strict mode", e.Conversation().System().Content)
	assert.Equal(t, 1, e.Conversation().Len())
}
