package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgelab/locai/internal/config"
	"github.com/forgelab/locai/internal/conv"
	"github.com/forgelab/locai/internal/display"
	"github.com/forgelab/locai/internal/enforce"
	"github.com/forgelab/locai/internal/engine"
	"github.com/forgelab/locai/internal/functions"
	"github.com/forgelab/locai/internal/store"
)

// blockingClient parks in Chat until the context is cancelled, signalling
// started so the test knows the request is in flight.
type blockingClient struct {
	started chan struct{}
}

func (c *blockingClient) Chat(ctx context.Context, _ string, _ []conv.Message) (string, error) {
	close(c.started)
	<-ctx.Done()
	return "", ctx.Err()
}

func TestInterruptCancelsInFlightTurn(t *testing.T) {
	db, err := store.NewBoltStore(filepath.Join(t.TempDir(), "locai.db"))
	require.NoError(t, err)
	defer db.Close()

	client := &blockingClient{started: make(chan struct{})}
	eng := engine.New(
		client,
		functions.NewExecutor(t.TempDir(), 0),
		enforce.NewPolicy(enforce.DefaultTerms(), 2),
		"you are helpful",
		engine.Config{Model: "qwen2.5-coder:7b"},
	)

	var out bytes.Buffer
	r := &repl{
		cfg:      &config.Config{},
		db:       db,
		eng:      eng,
		renderer: display.New(&out, display.Options{}),
	}

	done := make(chan struct{})
	go func() {
		r.processPrompt("list the files in this directory")
		close(done)
	}()

	select {
	case <-client.started:
	case <-time.After(2 * time.Second):
		t.Fatal("chat request never started")
	}
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("turn did not stop after interrupt")
	}

	// The conversation stays consistent and appendable: the user message is
	// recorded, no assistant message dangles after it.
	msgs := eng.Conversation().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, conv.RoleUser, msgs[1].Role)
	assert.Equal(t, "list the files in this directory", msgs[1].Content)
	assert.Contains(t, out.String(), "request failed")
}

func TestWatchInterruptStopDeregisters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := watchInterrupt(cancel)
	stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("stop did not release the turn context")
	}
}
