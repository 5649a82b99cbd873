package rvmenv

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gopasspw/gopass/pkg/debug"
)

// Environment variables written by the switcher.
const (
	EnvPath       = "PATH"
	EnvGemHome    = "GEM_HOME"
	EnvGemPath    = "GEM_PATH"
	EnvBundlePath = "BUNDLE_PATH"
)

// State records what the switcher injected into a host. RubyBins and GemBins
// are exactly the directories currently present in PATH and the exec path
// because of the last activation.
type State struct {
	RubyBins []string
	GemBins  []string
	Version  string
	Gemset   string
	Local    bool
}

// Identifier returns the active identifier, the zero value if none.
func (s *State) Identifier() Identifier {
	if s == nil {
		return Identifier{}
	}

	return Identifier{Version: s.Version, Gemset: s.Gemset, Local: s.Local}
}

// Switcher applies resolved environments to a host.
type Switcher struct {
	Host   Host
	State  *State
	Notify func(msg string)
}

// NewSwitcher creates a switcher with empty state.
func NewSwitcher(h Host) *Switcher {
	return &Switcher{
		Host:  h,
		State: &State{},
	}
}

// Apply switches the host to info. The directories injected by the previous
// activation are removed first. A zero info clears the environment: gem
// variables are set to empty strings and no new directories are injected.
func (s *Switcher) Apply(id Identifier, info Info) error {
	if s.State == nil {
		s.State = &State{}
	}

	var rubyBins []string
	if info.Ruby != "" {
		rubyBins = []string{filepath.Dir(info.Ruby)}
	}
	if err := s.swap(s.State.RubyBins, rubyBins); err != nil {
		return err
	}
	s.State.RubyBins = rubyBins

	for _, k := range []string{EnvGemHome, EnvGemPath} {
		v := info.GemHome
		if k == EnvGemPath {
			v = info.GemPath
		}
		if err := s.Host.Setenv(k, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", k, err)
		}
	}
	if err := s.Host.Setenv(EnvBundlePath, info.GemHome); err != nil {
		return fmt.Errorf("failed to set %s: %w", EnvBundlePath, err)
	}

	// with the prefix layout the gem bin dir is the ruby bin dir, inject it once
	gemBins := removeAll(gemBinDirs(info.GemPath), rubyBins)
	if err := s.swap(s.State.GemBins, gemBins); err != nil {
		return err
	}
	s.State.GemBins = gemBins

	s.State.Version = id.Version
	s.State.Gemset = id.Gemset
	s.State.Local = id.Local

	debug.Log("switched to %q (ruby bins %v, gem bins %v)", id, rubyBins, gemBins)

	if s.Notify != nil {
		s.Notify(statusMessage(id))
	}

	return nil
}

func statusMessage(id Identifier) string {
	if id.IsZero() {
		return "Ruby: none"
	}
	if id.Local {
		return fmt.Sprintf("Ruby: local environment %s", id.Version)
	}

	return fmt.Sprintf("Ruby: %s Gemset: %s", id.Version, id.Gemset)
}

// swap replaces the old directories with the new ones in PATH and in the
// host's exec path.
func (s *Switcher) swap(old, dirs []string) error {
	path := filepath.SplitList(s.Host.Getenv(EnvPath))
	path = replaceEntries(path, old, dirs)
	if err := s.Host.Setenv(EnvPath, strings.Join(path, string(os.PathListSeparator))); err != nil {
		return fmt.Errorf("failed to set %s: %w", EnvPath, err)
	}

	s.Host.SetExecPath(updateExecPath(s.Host.ExecPath(), old, dirs))

	return nil
}

// replaceEntries removes old from list and inserts dirs. When old still forms
// a contiguous run in list the new directories take its place, so untouched
// entries keep their position. Otherwise the old entries are dropped one by
// one and dirs are prepended. Copies of dirs already in list are dropped, so
// every dir appears exactly once.
func replaceEntries(list, old, dirs []string) []string {
	if len(old) > 0 {
		if i := indexRun(list, old); i >= 0 {
			out := make([]string, 0, len(list)-len(old)+len(dirs))
			out = append(out, removeAll(list[:i], dirs)...)
			out = append(out, dirs...)

			return append(out, removeAll(list[i+len(old):], dirs)...)
		}
		list = removeAll(list, old)
	}

	return append(slices.Clone(dirs), removeAll(list, dirs)...)
}

func updateExecPath(list, old, dirs []string) []string {
	list = removeAll(list, old)

	return append(slices.Clone(dirs), removeAll(list, dirs)...)
}

func indexRun(list, run []string) int {
	if len(run) == 0 || len(run) > len(list) {
		return -1
	}
	for i := 0; i+len(run) <= len(list); i++ {
		if slices.Equal(list[i:i+len(run)], run) {
			return i
		}
	}

	return -1
}

func removeAll(list, drop []string) []string {
	return slices.DeleteFunc(slices.Clone(list), func(e string) bool {
		return slices.Contains(drop, e)
	})
}

// gemBinDirs derives the gem executable directories from a GEM_PATH value.
func gemBinDirs(gemPath string) []string {
	if gemPath == "" {
		return nil
	}

	var out []string
	for _, p := range filepath.SplitList(gemPath) {
		if p == "" {
			continue
		}
		if d := filepath.Join(p, "bin"); !slices.Contains(out, d) {
			out = append(out, d)
		}
	}

	return out
}

// Variables used to carry State across processes, e.g. from one CLI
// invocation to the next in the same shell.
const (
	EnvStateActive   = "RVMENV_ACTIVE"
	EnvStateLocal    = "RVMENV_LOCAL"
	EnvStateRubyBins = "RVMENV_RUBY_BINS"
	EnvStateGemBins  = "RVMENV_GEM_BINS"
)

// LoadState restores a State saved by SaveState. A host without saved state
// yields an empty State.
func LoadState(h Host) *State {
	s := &State{
		RubyBins: filepath.SplitList(h.Getenv(EnvStateRubyBins)),
		GemBins:  filepath.SplitList(h.Getenv(EnvStateGemBins)),
	}

	if active := h.Getenv(EnvStateActive); active != "" {
		if h.Getenv(EnvStateLocal) != "" {
			s.Version, s.Local = active, true
		} else {
			id := ParseIdentifier(active)
			s.Version, s.Gemset = id.Version, id.Gemset
		}
	}

	return s
}

// SaveState records s in the host so LoadState can pick it up later.
func SaveState(h Host, s *State) error {
	local := ""
	if s.Local {
		local = "1"
	}

	sep := string(os.PathListSeparator)
	for k, v := range map[string]string{
		EnvStateActive:   s.Identifier().String(),
		EnvStateLocal:    local,
		EnvStateRubyBins: strings.Join(s.RubyBins, sep),
		EnvStateGemBins:  strings.Join(s.GemBins, sep),
	} {
		if err := h.Setenv(k, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", k, err)
		}
	}

	return nil
}
