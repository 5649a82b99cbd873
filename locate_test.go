package rvmenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	deep := filepath.Join(f.project, "lib", "models")
	mkdir(t, deep)
	writeFile(t, filepath.Join(f.root, "src", ".ruby-version"), "2.5.0")
	writeFile(t, filepath.Join(f.project, ".ruby-version"), "2.6.3")

	for _, tc := range []struct {
		name  string
		start string
		want  string
		found bool
	}{
		{
			name:  "closest ancestor wins",
			start: deep,
			want:  filepath.Join(f.project, ".ruby-version"),
			found: true,
		},
		{
			name:  "start directory itself",
			start: f.project,
			want:  filepath.Join(f.project, ".ruby-version"),
			found: true,
		},
		{
			name:  "file does not need to exist",
			start: filepath.Join(deep, "not-yet-saved.rb"),
			want:  filepath.Join(f.project, ".ruby-version"),
			found: true,
		},
		{
			name:  "parent of project",
			start: filepath.Join(f.root, "src"),
			want:  filepath.Join(f.root, "src", ".ruby-version"),
			found: true,
		},
		{
			name:  "nothing above",
			start: f.prefix,
		},
		{
			name: "empty start",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, found := Locate(".ruby-version", tc.start)
			assert.Equal(t, tc.found, found)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLocateFromFile(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	fn := filepath.Join(f.project, "Gemfile")
	writeFile(t, fn, "source 'https://rubygems.org'\n")
	writeFile(t, filepath.Join(f.project, ".ruby-gemset"), "app")

	got, found := Locate(".ruby-gemset", fn)
	assert.True(t, found)
	assert.Equal(t, filepath.Join(f.project, ".ruby-gemset"), got)
}

func TestLocateNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	start := filepath.Join(f.project, "a", "b", "c")

	for _, name := range []string{".does-not-exist-anywhere-4711", ""} {
		got, found := Locate(name, start)
		assert.False(t, found, name)
		assert.Empty(t, got, name)
	}
}

func TestLocateAll(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.markers(t, f.project, "2.6.3", "")

	got := LocateAll(f.project, DefaultVersionMarker, DefaultGemsetMarker)
	assert.Equal(t, map[string]string{
		DefaultVersionMarker: filepath.Join(f.project, DefaultVersionMarker),
	}, got)
}

func TestLocateSymlinks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	shared := filepath.Join(f.root, "shared-version")
	writeFile(t, shared, "3.2.2")
	writeFile(t, filepath.Join(f.root, "src", DefaultVersionMarker), "2.5.0")

	sub := filepath.Join(f.project, "engines", "billing")
	mkdir(t, sub)
	require.NoError(t, os.Symlink(shared, filepath.Join(f.project, DefaultVersionMarker)))
	require.NoError(t, os.Symlink(filepath.Join(f.root, "gone"), filepath.Join(sub, DefaultVersionMarker)))

	// the dangling link in sub is skipped, the valid one in project is used
	got, found := Locate(DefaultVersionMarker, sub)
	assert.True(t, found)
	assert.Equal(t, filepath.Join(f.project, DefaultVersionMarker), got)

	require.NoError(t, os.Remove(shared))
	got, found = Locate(DefaultVersionMarker, sub)
	assert.True(t, found)
	assert.Equal(t, filepath.Join(f.root, "src", DefaultVersionMarker), got)
}
