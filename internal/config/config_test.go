package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes into dir for the duration of the test, restoring the
// previous working directory on cleanup. (testing.T.Chdir needs Go 1.24.)
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Errorf("restoring working directory: %v", err)
		}
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, []string{"TODO", "FIXME", "HACK", "XXX", "NOTE"}, cfg.Markers)
	assert.Contains(t, cfg.IgnoredDirs, ".git")
	assert.Contains(t, cfg.IgnoredDirs, "node_modules")
	assert.Equal(t, 2, cfg.ContextLines)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.MaxFileSize)
	assert.Equal(t, 30*time.Second, cfg.BlameTimeoutDuration())
	require.NoError(t, cfg.Validate())
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	content := `markers:
  - TODO
  - WONTFIX
context_lines: 4
max_file_size: 1024
workers: 2
blame_timeout: 5s
severity:
  WONTFIX: low
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"TODO", "WONTFIX"}, cfg.Markers)
	assert.Equal(t, 4, cfg.ContextLines)
	assert.Equal(t, int64(1024), cfg.MaxFileSize)
	assert.Equal(t, 2, cfg.WorkerCount())
	assert.Equal(t, 5*time.Second, cfg.BlameTimeoutDuration())
	assert.Equal(t, "low", cfg.Severity["WONTFIX"])

	// Unset fields come from defaults.
	assert.Contains(t, cfg.IgnoredDirs, "vendor")
}

func TestLoadExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("markers: [FIXME]\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"FIXME"}, cfg.Markers)
	assert.Equal(t, 2, cfg.ContextLines)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.MaxFileSize)
	assert.Equal(t, "30s", cfg.BlameTimeout)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("markers: [unclosed\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	// Run from an empty directory with HOME pointed somewhere empty so
	// no config file on the machine can leak into the test.
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Markers, cfg.Markers)
}

func TestLoadPrefersWorkingDirectory(t *testing.T) {
	work := t.TempDir()
	home := t.TempDir()
	chdir(t, work)
	t.Setenv("HOME", home)

	require.NoError(t, os.WriteFile(filepath.Join(work, FileName), []byte("context_lines: 7\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(home, FileName), []byte("context_lines: 9\n"), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.ContextLines)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	orig := Default()
	orig.Workers = 3
	orig.Severity = map[string]string{"HACK": "high"}
	require.NoError(t, orig.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, orig, loaded)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"no markers":            func(c *Config) { c.Markers = nil },
		"negative context":      func(c *Config) { c.ContextLines = -1 },
		"negative max size":     func(c *Config) { c.MaxFileSize = -1 },
		"negative workers":      func(c *Config) { c.Workers = -2 },
		"malformed blame limit": func(c *Config) { c.BlameTimeout = "soon" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWorkerCountDefaultsToCPUs(t *testing.T) {
	cfg := Default()
	assert.Greater(t, cfg.WorkerCount(), 0)
}

func TestParseAge(t *testing.T) {
	cases := []struct {
		in   string
		days int
	}{
		{"30d", 30},
		{"2w", 14},
		{"6m", 180},
		{"1y", 365},
		{"0d", 0},
	}
	for _, tc := range cases {
		got, err := ParseAge(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.days, got, tc.in)
	}

	for _, in := range []string{"", "d", "30", "30x", "-5d", "w2"} {
		_, err := ParseAge(in)
		assert.Error(t, err, in)
	}
}
