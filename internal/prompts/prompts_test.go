package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDirWritesBuiltins(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	m := NewManager(dir)

	require.NoError(t, m.EnsureDir())

	for _, name := range []string{"default", "strict", "flexible", "minimal"} {
		data, err := os.ReadFile(filepath.Join(dir, name+".md"))
		require.NoError(t, err, "missing builtin prompt %s", name)
		assert.Contains(t, string(data), "function_call")
	}
}

func TestEnsureDirDoesNotOverwrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	m := NewManager(dir)
	require.NoError(t, m.EnsureDir())

	custom := filepath.Join(dir, "default.md")
	require.NoError(t, os.WriteFile(custom, []byte("my edited prompt\n"), 0o644))

	require.NoError(t, m.EnsureDir())
	data, err := os.ReadFile(custom)
	require.NoError(t, err)
	assert.Equal(t, "my edited prompt\n", string(data))
}

func TestGetCaseInsensitive(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "prompts"))
	require.NoError(t, m.Load())

	content, ok := m.Get("STRICT")
	require.True(t, ok)
	assert.Contains(t, content, "function call")

	_, ok = m.Get("nope")
	assert.False(t, ok)
}

func TestListSortedWithPreviews(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "prompts"))

	infos, err := m.List()
	require.NoError(t, err)
	require.Len(t, infos, 4)

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
		assert.NotEmpty(t, info.Preview)
		assert.Positive(t, info.Length)
	}
	assert.Equal(t, []string{"default", "flexible", "minimal", "strict"}, names)
}

func TestSaveAndReload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	m := NewManager(dir)
	require.NoError(t, m.Save("custom", "You are a pirate."))

	content, ok := m.Get("custom")
	require.True(t, ok)
	assert.Equal(t, "You are a pirate.", content)

	fresh := NewManager(dir)
	content, ok = fresh.Get("custom")
	require.True(t, ok)
	assert.Equal(t, "You are a pirate.\n", content)
}

func TestPreviewTruncates(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "prompts"))
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = "line"
	}
	require.NoError(t, m.Save("long", strings.Join(lines, "\n")))

	preview, ok := m.Preview("long", 10)
	require.True(t, ok)
	assert.Contains(t, preview, "[20 more lines]")
	assert.Equal(t, 10, strings.Count(strings.SplitN(preview, "\n\n", 2)[0], "\n")+1)
}

func TestLoadSkipsNonPromptFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	m := NewManager(dir)
	require.NoError(t, m.EnsureDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o644))

	require.NoError(t, m.Load())
	_, ok := m.Get("notes")
	assert.False(t, ok)
}

func TestCurrentTracking(t *testing.T) {
	m := NewManager(t.TempDir())
	assert.Equal(t, "default", m.Current())
	m.SetCurrent("strict")
	assert.Equal(t, "strict", m.Current())
}
