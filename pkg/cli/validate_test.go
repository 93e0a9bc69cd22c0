package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfigCommand(t *testing.T) {
	t.Setenv("GRAPH_URL", "")
	t.Setenv("METRICS_URL", "")

	t.Run("valid configuration prints a summary", func(t *testing.T) {
		dir := writeConfigDir(t)

		stdout, _, err := runCommand(t, "--config-dir", dir, "validate-config")
		require.NoError(t, err)

		assert.Contains(t, stdout, "Configuration valid")
		assert.Contains(t, stdout, "1 declared, 1 enabled")
		assert.Contains(t, stdout, "neo4j://localhost:7687")
		assert.Contains(t, stdout, "ops-webhook")
		assert.Contains(t, stdout, "not configured")
	})

	t.Run("missing config dir is a configuration error", func(t *testing.T) {
		_, _, err := runCommand(t, "--config-dir", filepath.Join(t.TempDir(), "nope"), "validate-config")
		require.Error(t, err)
		assert.Equal(t, exitConfig, ExitCode(err))
	})

	t.Run("broken yaml is a configuration error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "strands.yaml"),
			[]byte("providers: [not, a, map"), 0644))

		_, _, err := runCommand(t, "--config-dir", dir, "validate-config")
		require.Error(t, err)
		assert.Equal(t, exitConfig, ExitCode(err))
	})

	t.Run("validation failure is a configuration error", func(t *testing.T) {
		dir := t.TempDir()
		// No graph section and no providers.
		require.NoError(t, os.WriteFile(filepath.Join(dir, "strands.yaml"),
			[]byte("system:\n  http_port: 9999\n"), 0644))

		_, _, err := runCommand(t, "--config-dir", dir, "validate-config")
		require.Error(t, err)
		assert.Equal(t, exitConfig, ExitCode(err))
	})
}
