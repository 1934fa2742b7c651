package cmds

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func runConfig(t *testing.T, args ...string) map[string]any {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetArgs(append([]string{"config", "--log-format", "json"}, args...))
	require.NoError(t, root.Execute())

	var cfg map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &cfg))
	return cfg
}

func TestConfig_Defaults(t *testing.T) {
	cfg := runConfig(t)
	require.Equal(t, ":8080", cfg["addr"])
	require.Equal(t, "1s", cfg["delay"])
	require.Equal(t, "lifecycle", cfg["topic"])
	require.Equal(t, 1000, cfg["journal-size"])
	require.Equal(t, false, cfg["redis-enabled"])
	require.Equal(t, "info", cfg["log-level"])
	require.NotContains(t, cfg, "journal-db")
}

func TestConfig_FlagsOverrideFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "end-demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9090\"\ndelay: 250ms\nredis-enabled: true\n"), 0o600))

	cfg := runConfig(t, "--config", path, "--delay", "2s")
	require.Equal(t, ":9090", cfg["addr"])
	require.Equal(t, "2s", cfg["delay"])
	require.Equal(t, true, cfg["redis-enabled"])
}

func TestConfig_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("END_DEMO_JOURNAL_DB", "/tmp/journal.db")
	t.Setenv("END_DEMO_TOPIC", "other")
	cfg := runConfig(t)
	require.Equal(t, "/tmp/journal.db", cfg["journal-db"])
	require.Equal(t, "other", cfg["topic"])
}

func TestConfig_MissingFileFails(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--config", filepath.Join(t.TempDir(), "nope.yaml")})
	require.ErrorContains(t, root.Execute(), "read config file")
}

func TestServe_RejectsArgs(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"serve", "--log-format", "json", "extra"})
	require.Error(t, root.Execute())
}
