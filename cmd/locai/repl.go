package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	goprompt "github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/forgelab/locai/internal/config"
	"github.com/forgelab/locai/internal/display"
	"github.com/forgelab/locai/internal/engine"
	"github.com/forgelab/locai/internal/functions"
	"github.com/forgelab/locai/internal/ollama"
	"github.com/forgelab/locai/internal/prompts"
	"github.com/forgelab/locai/internal/store"
)

const replSession = "default"

type repl struct {
	cfg       *config.Config
	client    *ollama.Client
	db        store.Store
	eng       *engine.Engine
	renderer  *display.Renderer
	promptLib *prompts.Manager
	workDir   string

	mu        sync.Mutex
	lastCtrlC time.Time
	exiting   bool
}

// promptExit unwinds the go-prompt run loop.
type promptExit struct{}

var commandSuggestions = []goprompt.Suggest{
	{Text: "/help", Description: "show available commands"},
	{Text: "/quit", Description: "leave the session"},
	{Text: "/exit", Description: "leave the session"},
	{Text: "/clear", Description: "reset the conversation"},
	{Text: "/verbose", Description: "toggle verbose output"},
	{Text: "/typing", Description: "toggle the typewriter effect"},
	{Text: "/syntax", Description: "toggle syntax highlighting"},
	{Text: "/model", Description: "switch model"},
	{Text: "/listmodels", Description: "list available models"},
	{Text: "/status", Description: "show current settings"},
	{Text: "/prompts", Description: "list system prompts"},
	{Text: "/prompt", Description: "switch system prompt"},
	{Text: "/pwd", Description: "print the working directory"},
	{Text: "/ls", Description: "list a directory"},
	{Text: "/cat", Description: "print a file"},
}

func (r *repl) run() {
	if history, err := r.db.GetConversation(replSession); err == nil && len(history) > 0 {
		r.eng.Restore(history)
		r.renderer.Info("restored %d messages from the previous session", len(history))
	}

	r.renderer.Banner(r.eng.Model(), r.cfg.APIBase)

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		r.runPiped()
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			if _, ok := rec.(promptExit); ok {
				return
			}
			panic(rec)
		}
	}()

	inputs, err := r.db.GetInputs(replSession)
	if err != nil {
		log.Printf("repl: loading input history: %v", err)
	}

	p := goprompt.New(
		r.execute,
		r.complete,
		goprompt.OptionHistory(inputs),
		goprompt.OptionTitle("locai"),
		goprompt.OptionPrefix("> "),
		goprompt.OptionAddKeyBind(
			goprompt.KeyBind{Key: goprompt.ControlC, Fn: r.handleCtrlC},
			goprompt.KeyBind{
				Key: goprompt.ControlD,
				Fn: func(buf *goprompt.Buffer) {
					if buf.Text() == "" {
						r.quit()
					}
				},
			},
		),
		goprompt.OptionSetExitCheckerOnInput(func(string, bool) bool {
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.exiting
		}),
	)
	p.Run()
}

// runPiped reads prompts line by line when stdin is not a terminal.
func (r *repl) runPiped() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if exit := r.handleCommand(line); exit {
				return
			}
			continue
		}
		r.processPrompt(line)
	}
}

func (r *repl) execute(in string) {
	line := strings.TrimSpace(in)
	if line == "" {
		return
	}
	if err := r.db.AppendInput(replSession, line); err != nil {
		log.Printf("repl: saving input: %v", err)
	}

	if strings.HasPrefix(line, "/") {
		if exit := r.handleCommand(line); exit {
			r.quit()
		}
		return
	}
	r.processPrompt(line)
}

func (r *repl) complete(doc goprompt.Document) []goprompt.Suggest {
	prefix := strings.TrimLeft(doc.TextBeforeCursor(), " \t")
	if !strings.HasPrefix(prefix, "/") {
		return nil
	}
	return goprompt.FilterHasPrefix(commandSuggestions, doc.GetWordBeforeCursor(), true)
}

// handleCtrlC fires while go-prompt is reading input. Mid-turn interrupts
// never reach it; those arrive as SIGINT and are handled by watchInterrupt.
func (r *repl) handleCtrlC(_ *goprompt.Buffer) {
	r.mu.Lock()
	second := time.Since(r.lastCtrlC) < 2*time.Second
	r.lastCtrlC = time.Now()
	r.mu.Unlock()
	if second {
		fmt.Println()
		r.quit()
		return
	}
	fmt.Println("\n(press Ctrl+C again within 2s to exit)")
}

func (r *repl) quit() {
	r.persist()
	r.mu.Lock()
	r.exiting = true
	r.mu.Unlock()
	panic(promptExit{})
}

func (r *repl) persist() {
	if err := r.db.SaveConversation(replSession, r.eng.Conversation().Messages()); err != nil {
		log.Printf("repl: persisting conversation: %v", err)
	}
}

func (r *repl) processPrompt(prompt string) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := watchInterrupt(cancel)
	defer stop()

	turn := r.eng.ProcessTurn(ctx, prompt)
	renderTurn(r.renderer, prompt, turn)
	r.persist()
}

// watchInterrupt cancels the in-flight turn on Ctrl+C. go-prompt parks its own
// signal handling and restores the terminal while the executor runs, so a
// mid-turn Ctrl+C is delivered as SIGINT, not as a key binding. The returned
// stop func deregisters the listener and must be called when the turn ends.
func watchInterrupt(cancel context.CancelFunc) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n(request cancelled)")
			cancel()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
}

// handleCommand dispatches a slash command. Returns true when the session
// should end.
func (r *repl) handleCommand(line string) bool {
	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "/quit", "/exit", "/q":
		return true

	case "/help":
		r.renderer.Help()

	case "/clear":
		r.eng.Clear()
		if err := r.db.ClearConversation(replSession); err != nil {
			log.Printf("repl: clearing conversation: %v", err)
		}
		r.renderer.Info("conversation cleared")

	case "/verbose":
		r.renderer.SetVerbose(!r.renderer.Verbose())
		r.renderer.Info("verbose: %v", r.renderer.Verbose())

	case "/typing":
		r.renderer.SetTyping(!r.renderer.TypingEnabled())
		r.renderer.Info("typing effect: %v", r.renderer.TypingEnabled())

	case "/syntax":
		r.renderer.SetSyntax(!r.renderer.SyntaxEnabled())
		r.renderer.Info("syntax highlighting: %v", r.renderer.SyntaxEnabled())

	case "/model":
		if len(args) == 0 {
			r.renderer.Info("current model: %s", r.eng.Model())
			break
		}
		r.eng.SetModel(args[0])
		r.renderer.Info("model set to %s", args[0])

	case "/listmodels":
		models, err := r.client.ListModels(context.Background())
		if err != nil {
			r.renderer.Error("listing models: %v", err)
			break
		}
		fmt.Println(r.renderer.ModelsTable(models, r.eng.Model()))

	case "/status":
		fmt.Println(r.renderer.StatusTable([][2]string{
			{"model", r.eng.Model()},
			{"api", r.cfg.APIBase},
			{"working dir", r.absWorkDir()},
			{"system prompt", r.promptLib.Current()},
			{"messages", fmt.Sprintf("%d", r.eng.Conversation().Len())},
			{"verbose", fmt.Sprintf("%v", r.renderer.Verbose())},
			{"typing", fmt.Sprintf("%v", r.renderer.TypingEnabled())},
			{"syntax", fmt.Sprintf("%v", r.renderer.SyntaxEnabled())},
		}))

	case "/prompts":
		infos, err := r.promptLib.List()
		if err != nil {
			r.renderer.Error("listing prompts: %v", err)
			break
		}
		fmt.Println(r.renderer.PromptsTable(infos, r.promptLib.Current()))

	case "/prompt":
		if len(args) == 0 {
			preview, ok := r.promptLib.Preview(r.promptLib.Current(), 10)
			if ok {
				fmt.Println(preview)
			}
			break
		}
		content, ok := r.promptLib.Get(args[0])
		if !ok {
			r.renderer.Error("no prompt named %q", args[0])
			break
		}
		r.promptLib.SetCurrent(args[0])
		r.eng.SetSystemPrompt(content)
		r.renderer.Info("system prompt set to %s", args[0])

	case "/pwd":
		fmt.Println(r.absWorkDir())

	case "/ls":
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		res := r.execDirect(functions.ListDirectory, map[string]any{"directory": dir})
		if res.IsError() {
			r.renderer.Error("%s", res.UserText)
			break
		}
		fmt.Println(r.renderer.FileTable(res.Entries))

	case "/cat":
		if len(args) == 0 {
			r.renderer.Error("usage: /cat <file>")
			break
		}
		res := r.execDirect(functions.ReadFile, map[string]any{"file_path": args[0]})
		if res.IsError() {
			r.renderer.Error("%s", res.UserText)
			break
		}
		r.renderer.Code(res.UserText, display.LanguageForPath(args[0]))

	default:
		r.renderer.Error("unknown command %s (try /help)", cmd)
	}
	return false
}

// execDirect runs an operation locally, bypassing the model.
func (r *repl) execDirect(name functions.Name, args map[string]any) functions.Result {
	exec := functions.NewExecutor(r.workDir, r.cfg.RunTimeout)
	return exec.Execute(context.Background(), name, args)
}

func (r *repl) absWorkDir() string {
	abs, err := filepath.Abs(r.workDir)
	if err != nil {
		return r.workDir
	}
	return abs
}
