package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZonesCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("zones:\n  count: 2\n  points: [\"10,20\", \"30,40\"]\n  actuators: [\"lamp\", \"fan\"]\n"), 0644))

	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"zones", "--config", path})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "(10,20)")
	assert.Contains(t, lines[1], "lamp")
	assert.Contains(t, lines[2], "(30,40)")
	assert.Contains(t, lines[2], "fan")
}

func TestZonesCommandRejectsBadTransport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("zones:\n  count: 4\n"), 0644))

	cmd := rootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"zones", "--config", path, "--transport", "zigbee"})
	assert.Error(t, cmd.Execute())
}
