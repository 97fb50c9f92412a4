package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectObjectWithSurroundingProse(t *testing.T) {
	res := Extract(`Sure! {"function_call": {"name": "list-directory", "arguments": {"directory": "."}}}`)
	require.True(t, res.Found())
	assert.Equal(t, "list-directory", res.Call.Name)
	assert.Equal(t, map[string]any{"directory": "."}, res.Call.Arguments)
}

func TestFencedBlock(t *testing.T) {
	text := "```json\n{\"function_call\": {\"name\": \"read-file\", \"arguments\": {\"file_path\": \"a.py\"}}}\n```"
	res := Extract(text)
	require.True(t, res.Found())
	assert.Equal(t, "read-file", res.Call.Name)
	assert.Equal(t, map[string]any{"file_path": "a.py"}, res.Call.Arguments)
}

func TestFencedBlockWithoutLanguageTag(t *testing.T) {
	text := "Here you go:\n```\n{\"function_call\": {\"name\": \"list-directory\", \"arguments\": {\"directory\": \"src\"}}}\n```"
	res := Extract(text)
	require.True(t, res.Found())
	assert.Equal(t, "list-directory", res.Call.Name)
}

func TestLeftmostBalancedNestedObject(t *testing.T) {
	// The outer object carries function_call; its arguments contain a nested
	// object. A non-greedy regex would truncate at the inner closing brace.
	text := `{"function_call": {"name": "write-file", "arguments": {"file_path": "cfg.json", "content": "{\"a\": 1}"}}}`
	res := Extract(text)
	require.True(t, res.Found())
	assert.Equal(t, "write-file", res.Call.Name)
	assert.Equal(t, `{"a": 1}`, res.Call.Arguments["content"])
}

func TestSkipsObjectWithoutWrapperKey(t *testing.T) {
	// The first balanced object lacks function_call and must not match; the
	// second one must.
	text := `{"note": "not a call"} then {"function_call": {"name": "read-file", "arguments": {"file_path": "x"}}}`
	res := Extract(text)
	require.True(t, res.Found())
	assert.Equal(t, "read-file", res.Call.Name)
}

func TestToleratesWhitespaceInsideJSON(t *testing.T) {
	text := "{\n  \"function_call\" : {\n    \"name\" :  \"run-script\" ,\n    \"arguments\" : {\n      \"file_path\" : \"t.py\"\n    }\n  }\n}"
	res := Extract(text)
	require.True(t, res.Found())
	assert.Equal(t, "run-script", res.Call.Name)
}

func TestLooseReconstructionWithBrokenJSON(t *testing.T) {
	// Trailing comma makes the object unparseable; the name token and the
	// arguments object are recovered independently.
	text := `{"function_call": {"name": "list-directory", "arguments": {"directory": "."},}}`
	res := Extract(text)
	require.True(t, res.Found())
	assert.Equal(t, "list-directory", res.Call.Name)
	assert.Equal(t, map[string]any{"directory": "."}, res.Call.Arguments)
}

func TestLooseReconstructionNameOnly(t *testing.T) {
	text := `I'll use function_name = read-file to do that`
	res := Extract(text)
	require.True(t, res.Found())
	assert.Equal(t, "read-file", res.Call.Name)
	assert.Empty(t, res.Call.Arguments)
}

func TestLooseReconstructionIgnoresFilenameWord(t *testing.T) {
	// "filename:" contains the name token inside a longer word; it must not
	// fabricate a call out of prose.
	res := Extract("The filename: output.txt is where the results go.")
	assert.False(t, res.Found())
}

func TestStrategyOrderingFencedBeatsLoose(t *testing.T) {
	// Loose tokens name run-script, but the fenced block names read-file; the
	// earlier strategy must win.
	text := "maybe function_name = run-script? Actually:\n```json\n{\"function_call\": {\"name\": \"read-file\", \"arguments\": {\"file_path\": \"a.txt\"}}}\n```"
	res := Extract(text)
	require.True(t, res.Found())
	assert.Equal(t, "read-file", res.Call.Name)
}

func TestRefusalHeuristicFlagsFailedAttempt(t *testing.T) {
	res := Extract("To create the file you could open an editor and write the content yourself.")
	assert.False(t, res.Found())
	assert.True(t, res.FailedAttempt)
}

func TestPlainProseIsNotFound(t *testing.T) {
	res := Extract("The capital of France is Paris.")
	assert.False(t, res.Found())
	assert.False(t, res.FailedAttempt)
}

func TestEmptyArgumentsDefaultsToEmptyMap(t *testing.T) {
	res := Extract(`{"function_call": {"name": "list-directory"}}`)
	require.True(t, res.Found())
	assert.NotNil(t, res.Call.Arguments)
	assert.Empty(t, res.Call.Arguments)
}
