package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressflow/internal/config"
	"pressflow/internal/notify"
)

func TestOpenWiresEngine(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := Open(context.Background(), t.TempDir(), nil, logger)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Engine.Dispatch)
	assert.NotNil(t, a.Engine.Nudges)
	assert.Nil(t, a.Engine.Drafts)
	assert.IsType(t, notify.LogNotifier{}, a.Notifier)
	_, err = a.Engine.Repo.ListClients(context.Background())
	require.NoError(t, err)
}

func TestWireWithLLMAndRelay(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "sk-test"
	cfg.Email.RelayURL = "https://relay.example.com/send"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	n := NewNotifier(cfg, logger)
	assert.IsType(t, &notify.RelayNotifier{}, n)
	eng := Wire(nil, cfg, n, logger)
	assert.NotNil(t, eng.Drafts)
	assert.NotNil(t, eng.Critic)
	assert.NotNil(t, eng.Rewriter)
}
