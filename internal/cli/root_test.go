package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeConfig points every path of a config file into dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "botcsync.yaml")
	content := "data_dir: " + filepath.Join(dir, "data") + "\n" +
		"dist_dir: " + filepath.Join(dir, "dist") + "\n" +
		"history_db: " + filepath.Join(dir, "history.db") + "\n" +
		"fetch:\n  batch_delay: 0s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "botcsync", cmd.Use)
	assert.Contains(t, cmd.Long, "content hash")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"sync", "package", "verify", "check-update", "validate", "history"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("data-dir"))
}

func TestSyncCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	sync, _, err := cmd.Find([]string{"sync"})
	require.NoError(t, err)

	for _, name := range []string{"input", "reminders", "flavor", "force", "dry-run", "strict", "no-history"} {
		assert.NotNil(t, sync.Flags().Lookup(name), name)
	}
	assert.Equal(t, "i", sync.Flags().Lookup("input").Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fetch:\n  concurrency: 0\n"), 0o644))

	_, err := execute(t, "--config", path, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
