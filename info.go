package rvmenv

import (
	"os"
	"path/filepath"

	"github.com/gopasspw/gopass/pkg/debug"
)

// Keys of the map returned by Info.Map.
const (
	KeyRuby    = "ruby"
	KeyGemHome = "GEM_HOME"
	KeyGemPath = "GEM_PATH"
)

// Info holds the filesystem locations of a resolved environment.
// GemHome and GemPath are always the same directory.
type Info struct {
	Ruby    string
	GemHome string
	GemPath string
}

// Map returns the info keyed by "ruby", "GEM_HOME" and "GEM_PATH".
func (i Info) Map() map[string]string {
	return map[string]string{
		KeyRuby:    i.Ruby,
		KeyGemHome: i.GemHome,
		KeyGemPath: i.GemPath,
	}
}

// IsZero reports whether the info describes no environment.
func (i Info) IsZero() bool {
	return i == Info{}
}

// IsLocalEnv reports whether path is a local environment: its base name is
// the marker and it contains a gems directory.
func IsLocalEnv(path, marker string) bool {
	if path == "" || marker == "" || filepath.Base(path) != marker {
		return false
	}

	return isDir(filepath.Join(path, "gems"))
}

// NewInfo maps an identifier to the interpreter and gem locations. Local
// environments are used in place, everything else lives below prefix.
func NewInfo(id Identifier, prefix, localMarker string) (Info, error) {
	if id.Local || IsLocalEnv(id.Version, localMarker) {
		root, err := canonical(id.Version)
		if err != nil || !isDir(root) {
			return Info{}, &NotInstalledError{Identifier: id}
		}

		return infoFor(root), nil
	}

	if id.Version == "" || prefix == "" || !isDir(prefix) {
		debug.V(1).Log("can not resolve %s: prefix %q unusable", id, prefix)

		return Info{}, &NotInstalledError{Identifier: id, Prefix: prefix}
	}

	return infoFor(filepath.Join(prefix, id.String())), nil
}

func infoFor(root string) Info {
	return Info{
		Ruby:    filepath.Join(root, "bin", "ruby"),
		GemHome: root,
		GemPath: root,
	}
}

func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	return filepath.EvalSymlinks(abs)
}

func isDir(p string) bool {
	fi, err := os.Stat(p)

	return err == nil && fi.IsDir()
}
