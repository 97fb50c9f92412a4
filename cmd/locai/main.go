package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/forgelab/locai/internal/config"
	"github.com/forgelab/locai/internal/display"
	"github.com/forgelab/locai/internal/enforce"
	"github.com/forgelab/locai/internal/engine"
	"github.com/forgelab/locai/internal/functions"
	"github.com/forgelab/locai/internal/ollama"
	"github.com/forgelab/locai/internal/prompts"
	"github.com/forgelab/locai/internal/server"
	"github.com/forgelab/locai/internal/session"
	"github.com/forgelab/locai/internal/store"
)

func main() {
	var (
		oneShot     = pflag.StringP("prompt", "p", "", "run a single prompt and exit")
		interactive = pflag.BoolP("interactive", "i", false, "start the interactive session (default when no prompt given)")
		serve       = pflag.Bool("serve", false, "expose the engine over local HTTP instead of a terminal session")
		model       = pflag.StringP("model", "m", "", "model to use")
		verbose     = pflag.BoolP("verbose", "v", false, "show every function result")
		listModels  = pflag.Bool("list-models", false, "list available models and exit")
		typingSpeed = pflag.Float64("typing-speed", 0, "seconds per character for the typewriter effect")
		noTyping    = pflag.Bool("no-typing", false, "disable the typewriter effect")
		noSyntax    = pflag.Bool("no-syntax", false, "disable syntax highlighting")
		noColor     = pflag.Bool("no-color", false, "disable colored output")
		workDir     = pflag.StringP("workdir", "w", ".", "directory file operations run in")
	)
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *verbose {
		cfg.Verbose = true
	}
	if *typingSpeed != 0 {
		cfg.TypingSpeed = *typingSpeed
	}
	if *noTyping {
		cfg.TypingEnabled = false
	}
	if *noSyntax {
		cfg.SyntaxHighlight = false
	}
	if *noColor {
		cfg.ColorEnabled = false
	}
	if cfg.TypingSpeed < 0.005 || cfg.TypingSpeed > 0.2 {
		log.Fatalf("typing speed must be between 0.005 and 0.2, got %g", cfg.TypingSpeed)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	client := ollama.NewClient(cfg.APIBase, ollama.DefaultOptions(), cfg.ChatTimeout)
	renderer := display.New(os.Stdout, display.Options{
		Color:       cfg.ColorEnabled,
		Syntax:      cfg.SyntaxHighlight,
		Typing:      cfg.TypingEnabled,
		TypingSpeed: time.Duration(cfg.TypingSpeed * float64(time.Second)),
		Verbose:     cfg.Verbose,
	})

	if *listModels {
		models, err := client.ListModels(context.Background())
		if err != nil {
			log.Fatalf("listing models: %v", err)
		}
		fmt.Println(renderer.ModelsTable(models, cfg.Model))
		return
	}

	if err := client.Ping(context.Background()); err != nil {
		log.Fatalf("cannot reach %s: %v (is ollama running?)", cfg.APIBase, err)
	}

	db, err := store.NewBoltStore(filepath.Join(cfg.DataDir, "locai.db"))
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer db.Close()

	promptLib := prompts.NewManager(cfg.PromptsDir)
	if err := promptLib.Load(); err != nil {
		log.Fatalf("prompts: %v", err)
	}
	systemPrompt, ok := promptLib.Get(promptLib.Current())
	if !ok {
		systemPrompt = prompts.Default()
	}

	executor := functions.NewExecutor(*workDir, cfg.RunTimeout)
	policy := enforce.NewPolicy(enforce.DefaultTerms(), 2)
	newEngine := func() *engine.Engine {
		return engine.New(client, executor, policy, systemPrompt, engine.Config{
			Model:         cfg.Model,
			MaxRoundTrips: cfg.MaxRoundTrips,
			WindowSize:    cfg.WindowSize,
		})
	}

	switch {
	case *serve:
		runServer(cfg, client, db, newEngine)
	case *oneShot != "" && !*interactive:
		runOnce(cfg, db, newEngine(), renderer, *oneShot)
	default:
		r := &repl{
			cfg:       cfg,
			client:    client,
			db:        db,
			eng:       newEngine(),
			renderer:  renderer,
			promptLib: promptLib,
			workDir:   *workDir,
		}
		r.run()
	}
}

// runOnce processes a single prompt against persisted history and exits.
func runOnce(cfg *config.Config, db store.Store, eng *engine.Engine, renderer *display.Renderer, prompt string) {
	if history, err := db.GetConversation("default"); err == nil && len(history) > 0 {
		eng.Restore(history)
	}

	turn := eng.ProcessTurn(context.Background(), prompt)
	renderTurn(renderer, prompt, turn)

	if err := db.SaveConversation("default", eng.Conversation().Messages()); err != nil {
		log.Printf("main: persisting conversation: %v", err)
	}
	if turn.Kind == engine.OutcomeAborted {
		os.Exit(1)
	}
}

// renderTurn prints a completed turn: function results per the visibility
// policy, then the terminal answer.
func renderTurn(r *display.Renderer, userPrompt string, turn engine.Turn) {
	for _, ev := range turn.Events {
		switch ev.Kind {
		case engine.EventFunctionCall:
			path, _ := ev.Args["file_path"].(string)
			r.Info("[%s]", ev.Function)
			r.FunctionResult(ev.Function, path, userPrompt, ev.Result)
		case engine.EventInvalidName:
			if r.Verbose() {
				r.Info("[unknown function %q, asking model to retry]", ev.BadName)
			}
		case engine.EventEnforcement:
			if r.Verbose() {
				r.Info("[expected a function call, asking model to retry]")
			}
		case engine.EventReinforcement:
			if r.Verbose() {
				r.Info("[reinforcing function call format]")
			}
		}
	}

	switch turn.Kind {
	case engine.OutcomeAborted:
		r.Error("request failed: %v", turn.Err)
	default:
		if turn.Text != "" {
			r.Assistant(turn.Text)
		}
	}
}

// runServer exposes the engine over HTTP with graceful shutdown.
func runServer(cfg *config.Config, client *ollama.Client, db store.Store, factory server.EngineFactory) {
	sessionMgr := session.NewManager()

	// Periodic cleanup of stale per-session locks to prevent memory leaks
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			sessionMgr.Cleanup(1 * time.Hour)
		}
	}()

	handler := server.NewHandler(client, db, sessionMgr, factory)

	srv := &http.Server{
		Addr:         cfg.ServeAddr,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("locai: listening on %s", cfg.ServeAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("locai: shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	log.Println("locai: stopped")
}
