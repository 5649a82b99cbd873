package rvmenv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopasspw/gopass/pkg/debug"
)

const (
	// DefaultVersionMarker is the file holding the ruby version.
	DefaultVersionMarker = ".ruby-version"
	// DefaultGemsetMarker is the file holding the gemset name.
	DefaultGemsetMarker = ".ruby-gemset"
	// DefaultLocalMarker is the directory of a self-contained local environment.
	DefaultLocalMarker = ".redenv"

	gemsetSep = "@"
)

// Identifier names a ruby environment. For a local environment Version holds
// the environment directory and Gemset is empty.
type Identifier struct {
	Version string
	Gemset  string
	Local   bool
}

// ParseIdentifier splits "version@gemset". A missing gemset is left empty.
func ParseIdentifier(s string) Identifier {
	s = strings.TrimSpace(s)
	version, gemset, _ := strings.Cut(s, gemsetSep)

	return Identifier{
		Version: strings.TrimSpace(version),
		Gemset:  strings.TrimSpace(gemset),
	}
}

// String returns "version@gemset" or the bare version when no gemset is set.
func (id Identifier) String() string {
	if id.Gemset == "" || id.Local {
		return id.Version
	}

	return id.Version + gemsetSep + id.Gemset
}

// IsZero reports whether id names no environment at all.
func (id Identifier) IsZero() bool {
	return id.Version == "" && id.Gemset == ""
}

// Markers holds the file names the resolver looks for.
type Markers struct {
	Version string
	Gemset  string
	Local   string
}

// DefaultMarkers returns the conventional marker names.
func DefaultMarkers() Markers {
	return Markers{
		Version: DefaultVersionMarker,
		Gemset:  DefaultGemsetMarker,
		Local:   DefaultLocalMarker,
	}
}

// Resolver turns a file path into an Identifier by looking at marker files.
//
// The local environment marker is searched from Workdir (the project the
// editor is working in), while the version and gemset markers are searched
// from the path being resolved.
type Resolver struct {
	Markers Markers
	Workdir func() (string, error)
}

// NewResolver creates a resolver with the default markers that uses the
// process working directory as project root.
func NewResolver() *Resolver {
	return &Resolver{
		Markers: DefaultMarkers(),
		Workdir: os.Getwd,
	}
}

// Resolve returns the identifier that applies to start. A valid local
// environment always wins over a version and gemset pair. Both the version
// and the gemset marker must be present; if only one of them can be found
// ErrNotFound is returned.
func (r *Resolver) Resolve(start string) (Identifier, error) {
	markers := r.Markers
	if markers == (Markers{}) {
		markers = DefaultMarkers()
	}

	if id, ok := r.resolveLocal(markers.Local); ok {
		return id, nil
	}

	found := LocateAll(start, markers.Version, markers.Gemset)
	versionFile, hasVersion := found[markers.Version]
	gemsetFile, hasGemset := found[markers.Gemset]
	if !hasVersion || !hasGemset {
		debug.V(1).Log("no complete marker pair for %s (version: %q, gemset: %q)", start, versionFile, gemsetFile)

		return Identifier{}, ErrNotFound
	}

	version, err := readMarker(versionFile)
	if err != nil {
		return Identifier{}, err
	}
	gemset, err := readMarker(gemsetFile)
	if err != nil {
		return Identifier{}, err
	}
	if version == "" || gemset == "" {
		debug.V(1).Log("empty marker file for %s (version: %q, gemset: %q)", start, version, gemset)

		return Identifier{}, ErrNotFound
	}

	debug.Log("resolved %s to %s@%s", start, version, gemset)

	return Identifier{Version: version, Gemset: gemset}, nil
}

func (r *Resolver) resolveLocal(marker string) (Identifier, bool) {
	if marker == "" || r.Workdir == nil {
		return Identifier{}, false
	}

	wd, err := r.Workdir()
	if err != nil {
		debug.V(1).Log("failed to determine workdir: %s", err)

		return Identifier{}, false
	}

	p, ok := Locate(marker, wd)
	if !ok || !IsLocalEnv(p, marker) {
		return Identifier{}, false
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}

	debug.Log("using local environment %s", abs)

	return Identifier{Version: abs, Local: true}, true
}

func readMarker(fn string) (string, error) {
	buf, err := os.ReadFile(fn)
	if err != nil {
		return "", fmt.Errorf("failed to read marker %s: %w", fn, err)
	}

	return strings.TrimSpace(string(buf)), nil
}
