package rvmenv

import (
	"os"
	"path/filepath"

	"github.com/gopasspw/gopass/pkg/debug"
)

// Locate searches start and each of its parent directories for an entry
// called name. It returns the full path of the closest match.
//
// start does not need to exist. If it names an existing regular file the
// search begins in the directory containing it. Relative starts are made
// absolute first. The search stops at the filesystem root. An empty start
// yields not found. Symlinks are followed, a dangling one does not count.
func Locate(name, start string) (string, bool) {
	if name == "" || start == "" {
		return "", false
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		debug.V(1).Log("failed to make %s absolute: %s", start, err)

		return "", false
	}
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			debug.V(3).Log("found %s at %s", name, candidate)

			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	debug.V(3).Log("%s not found above %s", name, start)

	return "", false
}

// LocateAll looks up every name independently, starting from start. The
// result only contains names that were found.
func LocateAll(start string, names ...string) map[string]string {
	found := make(map[string]string, len(names))
	for _, n := range names {
		if p, ok := Locate(n, start); ok {
			found[n] = p
		}
	}

	return found
}
