// Package display renders engine output for the terminal: styled text,
// tables, syntax-highlighted file contents and the typewriter effect.
package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/forgelab/locai/internal/functions"
	"github.com/forgelab/locai/internal/prompts"
)

// Options control presentation. All fields may be toggled at runtime via the
// Renderer setters.
type Options struct {
	Color       bool
	Syntax      bool
	Typing      bool
	TypingSpeed time.Duration
	Verbose     bool
}

type Renderer struct {
	out  io.Writer
	opts Options

	assistantStyle lipgloss.Style
	dimStyle       lipgloss.Style
	errorStyle     lipgloss.Style
	headerStyle    lipgloss.Style
	borderStyle    lipgloss.Style
}

func New(out io.Writer, opts Options) *Renderer {
	r := &Renderer{out: out, opts: opts}
	if opts.Color {
		r.assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
		r.dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		r.errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
		r.headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
		r.borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	} else {
		plain := lipgloss.NewStyle()
		r.assistantStyle = plain
		r.dimStyle = plain
		r.errorStyle = plain
		r.headerStyle = plain
		r.borderStyle = plain
	}
	return r
}

func (r *Renderer) Verbose() bool       { return r.opts.Verbose }
func (r *Renderer) SetVerbose(v bool)   { r.opts.Verbose = v }
func (r *Renderer) TypingEnabled() bool { return r.opts.Typing }
func (r *Renderer) SetTyping(v bool)    { r.opts.Typing = v }
func (r *Renderer) SyntaxEnabled() bool { return r.opts.Syntax }
func (r *Renderer) SetSyntax(v bool)    { r.opts.Syntax = v }

// Assistant prints model text, character by character when typing is enabled.
// The typewriter path emits the raw text: styling wraps it in escape
// sequences, and typing those rune by rune would sleep on escape bytes and
// show partial sequences.
func (r *Renderer) Assistant(text string) {
	if !r.opts.Typing {
		fmt.Fprintln(r.out, r.assistantStyle.Render(text))
		return
	}
	for _, ch := range text {
		fmt.Fprintf(r.out, "%c", ch)
		time.Sleep(r.opts.TypingSpeed)
	}
	fmt.Fprintln(r.out)
}

// Info prints a dimmed status line.
func (r *Renderer) Info(format string, args ...any) {
	fmt.Fprintln(r.out, r.dimStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (r *Renderer) Error(format string, args ...any) {
	fmt.Fprintln(r.out, r.errorStyle.Render(fmt.Sprintf(format, args...)))
}

// ShouldShowResult decides whether a function's user-facing output is
// printed. Listings, writes and script runs always show; file reads show only
// when the prompt asked to see the content, unless verbose is on.
func (r *Renderer) ShouldShowResult(name functions.Name, userPrompt string) bool {
	if r.opts.Verbose {
		return true
	}
	switch name {
	case functions.ListDirectory, functions.WriteFile, functions.RunScript:
		return true
	case functions.ReadFile:
		lower := strings.ToLower(userPrompt)
		for _, kw := range showKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

var showKeywords = []string{
	"show", "display", "view", "see", "content", "contents", "read",
	"what is", "what's", "tell me about", "examine", "look at", "open",
	"check", "inspect",
}

// FunctionResult renders an operation outcome according to the visibility
// policy. path is the file the operation touched, used for highlighting.
func (r *Renderer) FunctionResult(name functions.Name, path, userPrompt string, res functions.Result) {
	if !r.ShouldShowResult(name, userPrompt) {
		return
	}
	if res.IsError() {
		r.Error("%s", res.UserText)
		return
	}

	switch name {
	case functions.ListDirectory:
		fmt.Fprintln(r.out, r.FileTable(res.Entries))
	case functions.ReadFile:
		r.Code(res.UserText, LanguageForPath(path))
	default:
		fmt.Fprintln(r.out, res.UserText)
	}
}

// Code prints source text, syntax highlighted when enabled.
func (r *Renderer) Code(code, language string) {
	if r.opts.Syntax && r.opts.Color {
		var buf strings.Builder
		if err := quick.Highlight(&buf, code, language, "terminal256", "monokai"); err == nil {
			fmt.Fprintln(r.out, buf.String())
			return
		}
	}
	fmt.Fprintln(r.out, code)
}

func (r *Renderer) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

// FileTable renders a directory listing.
func (r *Renderer) FileTable(entries []functions.Entry) string {
	t := r.newTable("Name", "Type", "Size")
	for _, e := range entries {
		t.Row(e.Name, e.Type, e.Size)
	}
	return t.Render()
}

// StatusTable renders setting/value pairs.
func (r *Renderer) StatusTable(rows [][2]string) string {
	t := r.newTable("Setting", "Value")
	for _, row := range rows {
		t.Row(row[0], row[1])
	}
	return t.Render()
}

// ModelsTable renders available models, marking the active one.
func (r *Renderer) ModelsTable(models []string, current string) string {
	t := r.newTable("Model", "Active")
	for _, m := range models {
		active := ""
		if m == current {
			active = "*"
		}
		t.Row(m, active)
	}
	return t.Render()
}

// PromptsTable renders the stored prompt library, marking the active prompt.
func (r *Renderer) PromptsTable(infos []prompts.Info, current string) string {
	t := r.newTable("Prompt", "Preview", "Length")
	for _, info := range infos {
		name := info.Name
		if name == current {
			name += " *"
		}
		t.Row(name, info.Preview, fmt.Sprintf("%d", info.Length))
	}
	return t.Render()
}

// Banner prints the startup banner.
func (r *Renderer) Banner(model, apiBase string) {
	title := r.headerStyle.Render("locai")
	fmt.Fprintf(r.out, "%s  local coding assistant\n", title)
	r.Info("model: %s   api: %s", model, apiBase)
	r.Info("type /help for commands, /quit to exit")
	fmt.Fprintln(r.out)
}

// Help prints the slash command reference.
func (r *Renderer) Help() {
	lines := []string{
		"/help              show this help",
		"/quit, /exit, /q   leave the session",
		"/clear             reset the conversation",
		"/verbose           toggle verbose output",
		"/typing            toggle the typewriter effect",
		"/syntax            toggle syntax highlighting",
		"/model <name>      switch model",
		"/listmodels        list available models",
		"/status            show current settings",
		"/prompts           list system prompts",
		"/prompt <name>     switch system prompt",
		"/pwd               print the working directory",
		"/ls [dir]          list a directory",
		"/cat <file>        print a file",
	}
	fmt.Fprintln(r.out, r.headerStyle.Render("Commands"))
	for _, l := range lines {
		fmt.Fprintln(r.out, "  "+l)
	}
}
