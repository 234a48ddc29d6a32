package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/tableflow/internal/cli"
)

func TestParsePositionalConfigPath(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	cfg, exit, err := cli.Parse([]string{"grid.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "grid.hcl", cfg.ConfigPath)
	assert.Equal(t, "tableflow", cfg.Plugin)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseConfigFlags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		args []string
	}{
		{"long flag", []string{"-config", "grid.hcl"}},
		{"short flag", []string{"-c", "grid.hcl"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			cfg, exit, err := cli.Parse(tc.args, &out)
			require.NoError(t, err)
			require.False(t, exit)
			assert.Equal(t, "grid.hcl", cfg.ConfigPath)
		})
	}
}

func TestParseOverrides(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	cfg, exit, err := cli.Parse([]string{
		"-host", "ws://example:9000",
		"-plugin-name", "myflow",
		"-healthcheck-port", "8090",
		"-log-format", "text",
		"-log-level", "debug",
		"grid.hcl",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "ws://example:9000", cfg.HostURL)
	assert.Equal(t, "myflow", cfg.Plugin)
	assert.Equal(t, 8090, cfg.HealthcheckPort)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseNoArgsPrintsUsage(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	cfg, exit, err := cli.Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseHelpFlag(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	cfg, exit, err := cli.Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
}

func TestParseInvalidValues(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"bad log format", []string{"-log-format", "xml", "grid.hcl"}, "invalid log-format"},
		{"bad log level", []string{"-log-level", "loud", "grid.hcl"}, "invalid log-level"},
		{"unknown flag", []string{"-frobnicate", "grid.hcl"}, "flag provided but not defined"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			_, _, err := cli.Parse(tc.args, &out)
			var exitErr *cli.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}
