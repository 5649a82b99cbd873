package rvmenv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFile creates fn (and its parent directories) with content.
func writeFile(t *testing.T, fn, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(fn), 0o755))
	require.NoError(t, os.WriteFile(fn, []byte(content), 0o644))
}

func mkdir(t *testing.T, dirs ...string) {
	t.Helper()

	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
}

// fixture is a prefix with installed environments and a project tree.
type fixture struct {
	root    string
	prefix  string
	project string
}

func newFixture(t *testing.T, installed ...string) fixture {
	t.Helper()

	root := t.TempDir()
	// macOS hands out symlinked temp dirs
	root, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	f := fixture{
		root:    root,
		prefix:  filepath.Join(root, "rubies"),
		project: filepath.Join(root, "src", "app"),
	}
	mkdir(t, f.prefix, f.project)
	for _, id := range installed {
		mkdir(t, filepath.Join(f.prefix, id, "bin"), filepath.Join(f.prefix, id, "gems"))
	}

	return f
}

func (f fixture) markers(t *testing.T, dir, version, gemset string) {
	t.Helper()

	if version != "" {
		writeFile(t, filepath.Join(dir, DefaultVersionMarker), version)
	}
	if gemset != "" {
		writeFile(t, filepath.Join(dir, DefaultGemsetMarker), gemset)
	}
}

func (f fixture) resolver() *Resolver {
	return &Resolver{
		Markers: DefaultMarkers(),
		Workdir: func() (string, error) { return f.project, nil },
	}
}

// service returns a service working on an in-memory host with a stubbed
// version manager and collected notifications.
func (f fixture) service(t *testing.T, path string) (*Service, *MemHost, *[]string) {
	t.Helper()

	settings := NewSettings()
	settings.Preset = NewSettingsFromMap(map[string]string{
		KeyPrefix: f.prefix,
		KeyTool:   "rvm",
	})

	h := NewMemHost(map[string]string{EnvPath: path})
	svc := New(settings, h)
	svc.Resolver.Workdir = func() (string, error) { return f.project, nil }

	var msgs []string
	svc.Hooks = Hooks{
		LookPath: func(string) (string, error) { return "/usr/bin/rvm", nil },
		Select: func(string, []string) (string, error) {
			return "", ErrNoSelection
		},
		Open:   func(string) error { return nil },
		Notify: func(msg string) { msgs = append(msgs, msg) },
	}

	return svc, h, &msgs
}

func joinList(dirs ...string) string {
	return strings.Join(dirs, string(os.PathListSeparator))
}
