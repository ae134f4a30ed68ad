package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	after, err := cfg.NudgeAfter()
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, after)
	assert.Equal(t, 10*time.Second, cfg.DispatchTimeout())
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
server:
  addr: 0.0.0.0:9000
log:
  level: debug
webhooks:
  - url: https://hooks.example.com/pf
    events: [release.published]
    enabled: false
`))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Webhooks, 1)
	assert.False(t, cfg.Webhooks[0].IsEnabled())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad level":      "log:\n  level: loud\n",
		"relay no from":  "email:\n  relay_url: https://relay.example.com\n  from: \"\"\n",
		"bad nudge":      "nudge:\n  after: soon\n",
		"hook no url":    "webhooks:\n  - secret: x\n",
		"hook bad url":   "webhooks:\n  - url: ftp://x\n",
		"base path":      "server:\n  base_path: v0\n",
		"llm no model":   "llm:\n  model: \"\"\n",
		"negative nudge": "nudge:\n  after: -1h\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "pressflow.yml"), []byte("nudge:\n  enabled: true\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Nudge.Enabled)
}
