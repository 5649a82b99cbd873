package rvmenv

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// settingsFixture writes a system, a global and a local settings file and
// returns settings pointing at them plus the project workdir.
func settingsFixture(t *testing.T) (*Settings, string) {
	t.Helper()

	td := t.TempDir()
	t.Setenv("HOME", td)
	t.Setenv("GOPASS_HOMEDIR", td)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(td, ".config"))

	system := filepath.Join(td, "etc", "rvmenv", "config")
	writeFile(t, system, "[core]\n\tprefix = /sys/rubies\n\ttool = systool\n")
	writeFile(t, filepath.Join(td, globalSettings), "[core]\n\tprefix = /global/rubies\n[list]\n\tfilter = 2.*\n")
	writeFile(t, filepath.Join(td, "src", "app", localSettings), "[core]\n\tprefix = ~/rubies\n[markers]\n\tgemset = .gemset\n")

	workdir := filepath.Join(td, "src", "app", "lib")
	mkdir(t, workdir)

	s := NewSettings()
	s.SystemSettings = system
	s.EnvPrefix = fmt.Sprintf("RVTEST%d", rand.Int31n(8192))

	return s, workdir
}

func TestSettingsScopes(t *testing.T) {
	s, workdir := settingsFixture(t)
	home := filepath.Dir(filepath.Dir(filepath.Dir(workdir)))

	t.Setenv(s.EnvPrefix+"_COUNT", "1")
	t.Setenv(s.EnvPrefix+"_KEY_0", "core.verbose")
	t.Setenv(s.EnvPrefix+"_VALUE_0", "off")

	s.LoadAll(workdir)

	assert.Equal(t, "~/rubies", s.Get(KeyPrefix))
	assert.Equal(t, filepath.Join(home, "rubies"), s.Prefix())
	assert.Equal(t, "systool", s.Tool())
	assert.Equal(t, "2.*", s.Get(KeyListFilter))
	assert.False(t, s.Verbose())

	m := s.Markers()
	assert.Equal(t, DefaultVersionMarker, m.Version)
	assert.Equal(t, ".gemset", m.Gemset)
	assert.Equal(t, DefaultLocalMarker, m.Local)

	for scope, want := range map[string]string{
		"local":  "~/rubies",
		"global": "/global/rubies",
		"system": "/sys/rubies",
	} {
		v, ok := s.GetFrom(KeyPrefix, scope)
		assert.True(t, ok, scope)
		assert.Equal(t, want, v, scope)
	}
	v, ok := s.GetFrom(KeyVerbose, "env")
	assert.True(t, ok)
	assert.Equal(t, "off", v)
	v, ok = s.GetFrom(KeyVerbose, "preset")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	_, ok = s.GetFrom(KeyPrefix, "worktree")
	assert.False(t, ok)

	assert.True(t, s.IsSet(KeyListFilter))
	assert.False(t, s.IsSet("core.editor"))
	assert.Equal(t, []string{KeyGemsetMarker, KeyLocalMarker, KeyVersionMarker}, s.List("markers."))
	assert.Contains(t, s.Keys(), KeyListFilter)
	assert.Contains(t, s.String(), workdir)
}

func TestSettingsNoSystem(t *testing.T) {
	s, workdir := settingsFixture(t)
	t.Setenv(s.EnvPrefix+"_NOSYSTEM", "true")

	s.LoadAll(workdir)

	assert.Equal(t, DefaultTool, s.Tool())
	_, ok := s.GetFrom(KeyPrefix, "system")
	assert.False(t, ok)
}

func TestSettingsWithoutWorkdir(t *testing.T) {
	s, _ := settingsFixture(t)

	s.LoadAll("")

	assert.Equal(t, "/global/rubies", s.Prefix())
	assert.Equal(t, DefaultGemsetMarker, s.Markers().Gemset)
}

func TestSettingsReload(t *testing.T) {
	s, workdir := settingsFixture(t)
	s.LoadAll(workdir)
	require.Equal(t, ".gemset", s.Markers().Gemset)

	local := filepath.Join(filepath.Dir(workdir), localSettings)
	writeFile(t, local, "[markers]\n\tgemset = .other-gemset\n")
	s.Reload()

	assert.Equal(t, ".other-gemset", s.Markers().Gemset)
	assert.Equal(t, "/global/rubies", s.Prefix())
}

func TestSettingsPresets(t *testing.T) {
	t.Parallel()

	s := NewSettings()

	assert.Equal(t, DefaultTool, s.Tool())
	assert.True(t, s.Verbose())
	assert.Equal(t, DefaultMarkers(), s.Markers())
	assert.Equal(t, ".rvm", filepath.Base(filepath.Dir(s.Prefix())))

	s.Preset = nil
	assert.Empty(t, s.Prefix())
	assert.Equal(t, DefaultTool, s.Tool())
}

func TestSettingsSetEnv(t *testing.T) {
	t.Parallel()

	s := NewSettings()

	require.NoError(t, s.SetEnv("Core.Prefix", "/opt/rubies"))
	assert.Equal(t, "/opt/rubies", s.Prefix())

	v, ok := s.GetFrom(KeyPrefix, "env")
	assert.True(t, ok)
	assert.Equal(t, "/opt/rubies", v)

	err := s.SetEnv("prefix", "/opt/rubies")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSettingsGetBool(t *testing.T) {
	t.Parallel()

	s := NewSettings()

	for _, tc := range []struct {
		value string
		def   bool
		want  bool
	}{
		{value: "true", want: true},
		{value: "yes", want: true},
		{value: "On", want: true},
		{value: "1", want: true},
		{value: "false", def: true, want: false},
		{value: "no", def: true, want: false},
		{value: "off", def: true, want: false},
		{value: "0", def: true, want: false},
		{value: "maybe", def: true, want: true},
		{value: "", def: true, want: true},
	} {
		require.NoError(t, s.SetEnv("test.flag", tc.value))
		assert.Equal(t, tc.want, s.GetBool("test.flag", tc.def), tc.value)
	}
}
