package functions

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// AI-facing read results are capped to keep token usage bounded.
	maxAIContentLen = 2000
	// Default ceiling for script execution.
	defaultRunTimeout = 30 * time.Second
)

// Executor performs the four operations relative to a working directory.
type Executor struct {
	workDir    string
	runTimeout time.Duration
}

// NewExecutor returns an executor rooted at workDir. A zero runTimeout gets
// the 30 second default.
func NewExecutor(workDir string, runTimeout time.Duration) *Executor {
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	return &Executor{workDir: workDir, runTimeout: runTimeout}
}

// Execute runs the named operation. Internal failures never escape as errors;
// they come back as result text starting with an error indicator. name must
// already be validated against the recognized set.
func (e *Executor) Execute(ctx context.Context, name Name, args map[string]any) Result {
	start := time.Now()
	var res Result
	switch name {
	case ListDirectory:
		res = e.listDirectory(args)
	case ReadFile:
		res = e.readFile(args)
	case WriteFile:
		res = e.writeFile(args)
	case RunScript:
		res = e.runScript(ctx, args)
	default:
		res = errorResult(fmt.Sprintf("unknown function %q", name))
	}
	log.Printf("functions: %s completed in %dms", name, time.Since(start).Milliseconds())
	return res
}

func (e *Executor) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.workDir, path)
}

func (e *Executor) listDirectory(args map[string]any) Result {
	directory, ok := stringArg(args, "directory")
	if !ok {
		directory = "."
	}

	entries, err := os.ReadDir(e.resolve(directory))
	if err != nil {
		if os.IsNotExist(err) {
			return errorResult(fmt.Sprintf("directory %q not found", directory))
		}
		if os.IsPermission(err) {
			return errorResult(fmt.Sprintf("permission denied accessing %q", directory))
		}
		return errorResult(fmt.Sprintf("listing %q: %v", directory, err))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var lines []string
	var rows []Entry
	for _, ent := range entries {
		kind := "file"
		if ent.IsDir() {
			kind = "directory"
		}
		info, err := ent.Info()
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s (unknown)", ent.Name()))
			rows = append(rows, Entry{Name: ent.Name(), Type: "unknown", Size: "unknown"})
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (%s, %d bytes)", ent.Name(), kind, info.Size()))
		rows = append(rows, Entry{Name: ent.Name(), Type: kind, Size: humanSize(info.Size())})
	}

	return Result{
		AIText:   fmt.Sprintf("Files in %q:\n%s", directory, strings.Join(lines, "\n")),
		UserText: fmt.Sprintf("Files in %q", directory),
		Entries:  rows,
	}
}

func (e *Executor) readFile(args map[string]any) Result {
	filePath, ok := stringArg(args, "file_path")
	if !ok {
		return errorResult("file_path parameter required")
	}

	data, err := os.ReadFile(e.resolve(filePath))
	if err != nil {
		if os.IsNotExist(err) {
			return errorResult(fmt.Sprintf("file %q not found", filePath))
		}
		if os.IsPermission(err) {
			return errorResult(fmt.Sprintf("permission denied reading %q", filePath))
		}
		return errorResult(fmt.Sprintf("reading %q: %v", filePath, err))
	}
	if !utf8.Valid(data) {
		return errorResult(fmt.Sprintf("cannot read %q: binary file or encoding issue", filePath))
	}

	content := string(data)
	aiContent := content
	if len(aiContent) > maxAIContentLen {
		aiContent = aiContent[:maxAIContentLen] +
			fmt.Sprintf("\n[Note: this file has %d total characters. The excerpt above should be sufficient for most questions about it.]", len(content))
	}

	return Result{
		AIText:   fmt.Sprintf("Content of %q:\n%s", filePath, aiContent),
		UserText: content,
	}
}

func (e *Executor) writeFile(args map[string]any) Result {
	filePath, ok := stringArg(args, "file_path")
	if !ok {
		return errorResult("file_path parameter required")
	}
	content, _ := args["content"].(string)

	if err := os.WriteFile(e.resolve(filePath), []byte(content), 0o644); err != nil {
		if os.IsPermission(err) {
			return errorResult(fmt.Sprintf("permission denied writing to %q", filePath))
		}
		return errorResult(fmt.Sprintf("writing to %q: %v", filePath, err))
	}

	text := fmt.Sprintf("Successfully wrote %d characters to %q", len(content), filePath)
	return Result{AIText: text, UserText: text}
}

func (e *Executor) runScript(ctx context.Context, args map[string]any) Result {
	filePath, ok := stringArg(args, "file_path")
	if !ok {
		return errorResult("file_path parameter required")
	}
	scriptArgs := stringSliceArg(args, "args")

	full := e.resolve(filePath)
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return errorResult(fmt.Sprintf("script %q not found", filePath))
		}
		return errorResult(fmt.Sprintf("stat %q: %v", filePath, err))
	}

	runCtx, cancel := context.WithTimeout(ctx, e.runTimeout)
	defer cancel()

	var cmd *exec.Cmd
	switch strings.ToLower(filepath.Ext(full)) {
	case ".py":
		cmd = exec.CommandContext(runCtx, "python3", append([]string{full}, scriptArgs...)...)
	case ".sh":
		cmd = exec.CommandContext(runCtx, "sh", append([]string{full}, scriptArgs...)...)
	default:
		cmd = exec.CommandContext(runCtx, full, scriptArgs...)
	}
	cmd.Dir = e.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return errorResult(fmt.Sprintf("script %q timed out after %s", filePath, e.runTimeout))
	}

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return errorResult(fmt.Sprintf("running %q: %v", filePath, err))
		}
	}

	var out strings.Builder
	if stdout.Len() > 0 {
		fmt.Fprintf(&out, "STDOUT:\n%s\n", stdout.String())
	}
	if stderr.Len() > 0 {
		fmt.Fprintf(&out, "STDERR:\n%s\n", stderr.String())
	}
	fmt.Fprintf(&out, "Return code: %d", exitCode)

	text := out.String()
	return Result{AIText: text, UserText: text}
}

func humanSize(size int64) string {
	switch {
	case size > 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size > 1<<10:
		return fmt.Sprintf("%.1f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
