// Package prompts manages the on-disk library of system prompts. Prompt files
// live in a directory created on first run; switching prompts replaces the
// conversation's system message wholesale.
package prompts

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Info summarizes one stored prompt for listings.
type Info struct {
	Name    string
	Preview string
	Length  int
}

// Manager loads and saves named prompts from a directory. Supported
// extensions: .md, .txt, .prompt.
type Manager struct {
	dir     string
	cache   map[string]string
	current string
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir, cache: make(map[string]string), current: "default"}
}

// EnsureDir creates the prompt directory with the built-in prompt set when it
// does not exist yet.
func (m *Manager) EnsureDir() error {
	if _, err := os.Stat(m.dir); err == nil {
		return nil
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating prompts directory: %w", err)
	}
	for name, content := range builtinPrompts {
		path := filepath.Join(m.dir, name+".md")
		if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	log.Printf("prompts: created %s with %d default prompts", m.dir, len(builtinPrompts))
	return nil
}

var promptExtensions = map[string]bool{".md": true, ".txt": true, ".prompt": true}

// Load reads every prompt file in the directory into the cache.
func (m *Manager) Load() error {
	if err := m.EnsureDir(); err != nil {
		return err
	}
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("reading prompts directory: %w", err)
	}

	m.cache = make(map[string]string)
	for _, ent := range entries {
		if ent.IsDir() || !promptExtensions[filepath.Ext(ent.Name())] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, ent.Name()))
		if err != nil {
			log.Printf("prompts: skipping %s: %v", ent.Name(), err)
			continue
		}
		name := strings.TrimSuffix(ent.Name(), filepath.Ext(ent.Name()))
		m.cache[name] = string(data)
	}
	return nil
}

// List returns prompt summaries sorted by name.
func (m *Manager) List() ([]Info, error) {
	if err := m.Load(); err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(m.cache))
	for name, content := range m.cache {
		first := strings.SplitN(strings.TrimSpace(content), "\n", 2)[0]
		if len(first) > 80 {
			first = first[:80] + "..."
		}
		infos = append(infos, Info{Name: name, Preview: first, Length: len(content)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Get returns the prompt with the given name, matching case-insensitively
// when no exact match exists.
func (m *Manager) Get(name string) (string, bool) {
	if len(m.cache) == 0 {
		if err := m.Load(); err != nil {
			return "", false
		}
	}
	if content, ok := m.cache[name]; ok {
		return content, true
	}
	for cached, content := range m.cache {
		if strings.EqualFold(cached, name) {
			return content, true
		}
	}
	return "", false
}

// Preview returns the first maxLines lines of a prompt.
func (m *Manager) Preview(name string, maxLines int) (string, bool) {
	content, ok := m.Get(name)
	if !ok {
		return "", false
	}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) <= maxLines {
		return content, true
	}
	return strings.Join(lines[:maxLines], "\n") +
		fmt.Sprintf("\n\n... [%d more lines]", len(lines)-maxLines), true
}

// Save writes a prompt to disk and updates the cache.
func (m *Manager) Save(name, content string) error {
	if err := m.EnsureDir(); err != nil {
		return err
	}
	path := filepath.Join(m.dir, name+".md")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
		return fmt.Errorf("saving prompt %s: %w", name, err)
	}
	m.cache[name] = content
	return nil
}

// Current returns the name of the active prompt.
func (m *Manager) Current() string { return m.current }

// SetCurrent records the name of the active prompt.
func (m *Manager) SetCurrent(name string) { m.current = name }

// Default returns the built-in default system prompt, used when the prompt
// directory is unavailable.
func Default() string { return strings.TrimSpace(builtinPrompts["default"]) }
