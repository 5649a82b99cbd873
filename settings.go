package rvmenv

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gopasspw/gopass/pkg/appdir"
	"github.com/gopasspw/gopass/pkg/debug"
	"github.com/gopasspw/gopass/pkg/set"
)

const (
	name           = "rvmenv"
	systemSettings = "/etc/rvmenv/config"
	globalSettings = ".rvmenvrc"
	localSettings  = ".rvmenv"
	envPrefix      = "RVMENV_CONFIG"
)

// Settings keys.
const (
	KeyPrefix        = "core.prefix"
	KeyTool          = "core.tool"
	KeyVerbose       = "core.verbose"
	KeyVersionMarker = "markers.version"
	KeyGemsetMarker  = "markers.gemset"
	KeyLocalMarker   = "markers.local"
	KeyListFilter    = "list.filter"
)

// DefaultTool is the version manager executable that must be installed.
const DefaultTool = "rvm"

// Settings merges settings from all scopes.
//
// Scope priority (highest to lowest):
// 1. Environment variables (RVMENV_CONFIG_*)
// 2. Local settings (<workdir>/.rvmenv)
// 3. Global settings ($XDG_CONFIG_HOME/rvmenv/config or ~/.rvmenvrc)
// 4. System settings (/etc/rvmenv/config)
// 5. Presets
//
// Usage:
//
//	s := NewSettings()
//	s.LoadAll(".")
//	prefix := s.Prefix()
type Settings struct {
	Preset *SettingsFile
	system *SettingsFile
	global *SettingsFile
	local  *SettingsFile
	env    *SettingsFile

	workdir string

	Name           string
	SystemSettings string
	GlobalSettings string
	LocalSettings  string
	EnvPrefix      string
}

// NewSettings creates settings with the default locations and presets. Call
// LoadAll to read files from disk.
func NewSettings() *Settings {
	return &Settings{
		Preset:         DefaultPreset(),
		Name:           name,
		SystemSettings: systemSettings,
		GlobalSettings: globalSettings,
		LocalSettings:  localSettings,
		EnvPrefix:      envPrefix,
	}
}

// DefaultPreset returns the built-in defaults.
func DefaultPreset() *SettingsFile {
	return NewSettingsFromMap(map[string]string{
		KeyPrefix:        filepath.Join(appdir.UserHome(), ".rvm", "gems"),
		KeyTool:          DefaultTool,
		KeyVerbose:       "true",
		KeyVersionMarker: DefaultVersionMarker,
		KeyGemsetMarker:  DefaultGemsetMarker,
		KeyLocalMarker:   DefaultLocalMarker,
	})
}

// String implements fmt.Stringer for debugging.
func (s *Settings) String() string {
	return fmt.Sprintf("Settings{Name: %s - Workdir: %s - Env: %s - System: %s - Global: %s - Local: %s}", s.Name, s.workdir, s.EnvPrefix, s.SystemSettings, s.GlobalSettings, s.LocalSettings)
}

// LoadAll loads all settings files. Missing or unreadable files are skipped.
// workdir is optional; without it no local settings are read.
func (s *Settings) LoadAll(workdir string) *Settings {
	s.workdir = workdir

	debug.Log("Loading settings for %s", s.Name)

	if os.Getenv(s.EnvPrefix+"_NOSYSTEM") == "" && s.SystemSettings != "" {
		f, err := LoadSettingsFile(s.SystemSettings)
		if err != nil {
			debug.V(1).Log("[%s] failed to load system settings: %s", s.Name, err)
		} else {
			debug.V(1).Log("[%s] loaded system settings from %s", s.Name, s.SystemSettings)
			s.system = f
		}
	}

	s.global = nil
	for _, p := range s.globalLocations() {
		f, err := LoadSettingsFile(p)
		if err != nil {
			debug.V(1).Log("[%s] failed to load global settings from %s: %s", s.Name, p, err)

			continue
		}
		debug.V(1).Log("[%s] loaded global settings from %s", s.Name, p)
		s.global = f

		break
	}

	s.local = nil
	if workdir != "" && s.LocalSettings != "" {
		if p, ok := Locate(s.LocalSettings, workdir); ok && !isDir(p) {
			f, err := LoadSettingsFile(p)
			if err != nil {
				debug.V(1).Log("[%s] failed to load local settings from %s: %s", s.Name, p, err)
			} else {
				debug.V(1).Log("[%s] loaded local settings from %s", s.Name, p)
				s.local = f
			}
		}
	}

	s.env = LoadSettingsFromEnv(s.EnvPrefix)

	return s
}

// Reload reloads all settings using the last workdir.
func (s *Settings) Reload() {
	s.LoadAll(s.workdir)
}

func (s *Settings) globalLocations() []string {
	locs := []string{
		filepath.Join(appdir.New(s.Name).UserConfig(), "config"),
	}
	if s.GlobalSettings != "" {
		locs = append(locs, filepath.Join(appdir.UserHome(), s.GlobalSettings))
	}

	return locs
}

func (s *Settings) scopes() []*SettingsFile {
	return []*SettingsFile{
		s.env,
		s.local,
		s.global,
		s.system,
		s.Preset,
	}
}

// Get returns the value from the highest priority scope that has the key.
func (s *Settings) Get(key string) string {
	for _, f := range s.scopes() {
		if v, found := f.Get(key); found {
			return v
		}
	}

	debug.V(3).Log("[%s] no value for %s found", s.Name, key)

	return ""
}

// GetFrom returns the value for key from one scope: env, local, global,
// system or preset.
func (s *Settings) GetFrom(key, scope string) (string, bool) {
	switch strings.ToLower(scope) {
	case "env":
		return s.env.Get(key)
	case "local":
		return s.local.Get(key)
	case "global":
		return s.global.Get(key)
	case "system":
		return s.system.Get(key)
	case "preset":
		return s.Preset.Get(key)
	default:
		debug.V(3).Log("[%s] unknown settings scope %s for key %s", s.Name, scope, key)

		return "", false
	}
}

// GetBool parses the value of key as a boolean. Unset or invalid values
// yield def.
func (s *Settings) GetBool(key string, def bool) bool {
	v := s.Get(key)
	if v == "" {
		return def
	}

	switch strings.ToLower(v) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		debug.V(1).Log("[%s] invalid boolean %q for %s", s.Name, v, key)

		return def
	}

	return b
}

// IsSet returns true if the key is set in any scope.
func (s *Settings) IsSet(key string) bool {
	for _, f := range s.scopes() {
		if f.IsSet(key) {
			return true
		}
	}

	return false
}

// SetEnv sets a key in the per-process overlay, e.g. from a command line flag.
func (s *Settings) SetEnv(key, value string) error {
	ck := canonicalizeKey(key)
	if ck == "" {
		return fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}

	if s.env == nil {
		s.env = &SettingsFile{}
	}
	if s.env.vars == nil {
		s.env.vars = make(map[string][]string, 4)
	}
	s.env.vars[ck] = []string{value}

	return nil
}

// Keys returns all keys from all scopes, sorted.
func (s *Settings) Keys() []string {
	keys := make([]string, 0, 32)
	for _, f := range s.scopes() {
		if f == nil {
			continue
		}
		for k := range f.vars {
			keys = append(keys, k)
		}
	}

	return set.Sorted(keys)
}

// List returns all keys matching the given prefix.
func (s *Settings) List(prefix string) []string {
	return set.SortedFiltered(s.Keys(), func(k string) bool {
		return strings.HasPrefix(k, prefix)
	})
}

// Prefix returns the global installation prefix with "~" expanded.
func (s *Settings) Prefix() string {
	p := s.Get(KeyPrefix)
	if p == "" {
		return ""
	}

	return expandPath(p, s.workdir)
}

// Tool returns the version manager executable name.
func (s *Settings) Tool() string {
	if t := s.Get(KeyTool); t != "" {
		return t
	}

	return DefaultTool
}

// Verbose reports whether status messages should be shown.
func (s *Settings) Verbose() bool {
	return s.GetBool(KeyVerbose, true)
}

// Markers returns the configured marker names.
func (s *Settings) Markers() Markers {
	m := DefaultMarkers()
	if v := s.Get(KeyVersionMarker); v != "" {
		m.Version = v
	}
	if v := s.Get(KeyGemsetMarker); v != "" {
		m.Gemset = v
	}
	if v := s.Get(KeyLocalMarker); v != "" {
		m.Local = v
	}

	return m
}
