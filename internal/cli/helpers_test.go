package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	configPath  string
	dataDir     string
	sessionsDir string
}

// newTestEnv writes a config rooted in a temp dir with the admin server off.
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		configPath:  filepath.Join(dir, "authvault.json"),
		dataDir:     filepath.Join(dir, "data"),
		sessionsDir: filepath.Join(dir, "data", "sessions"),
	}

	raw, err := json.Marshal(map[string]any{
		"data_dir": env.dataDir,
		"sessions": map[string]any{"dir": env.sessionsDir},
		"admin":    map[string]any{"enabled": false},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.configPath, raw, 0600))
	return env
}

// run executes the root command with --config pointing at the env.
func (e testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath}, args...)...)
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag to its default; cobra keeps parsed values
// on the package-level command tree between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Value.Type() != "stringToString" {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
	createClaims = map[string]string{}
}
