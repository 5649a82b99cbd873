package rvmenv

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gopasspw/gopass/pkg/debug"
)

// GemCommand is the executable used to install gems.
var GemCommand = "gem"

// FindGemDir returns the source directory of the named gem below gemHome,
// i.e. gemHome/gems/<name>-<version>. If several versions are installed the
// highest one wins.
func FindGemDir(gemHome, gem string) (string, error) {
	if gemHome == "" {
		return "", ErrNoEnvironment
	}

	entries, err := os.ReadDir(filepath.Join(gemHome, "gems"))
	if err != nil {
		return "", fmt.Errorf("%w: %s in %s: %w", ErrGemNotFound, gem, gemHome, err)
	}

	var best, bestVersion string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, ok := gemVersion(e.Name(), gem)
		if !ok {
			continue
		}
		if best == "" || compareVersions(v, bestVersion) > 0 {
			best, bestVersion = e.Name(), v
		}
	}

	if best == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrGemNotFound, gem, gemHome)
	}

	return filepath.Join(gemHome, "gems", best), nil
}

// gemVersion extracts the version from a "<name>-<version>" directory name.
// Gem names may contain dashes, so the name has to match exactly.
func gemVersion(dir, gem string) (string, bool) {
	v, found := strings.CutPrefix(dir, gem+"-")
	if !found || v == "" || !isDigit(v[0]) {
		return "", false
	}

	return v, true
}

// gemName strips the version (and platform) from a gem directory name.
func gemName(dir string) string {
	for i := 1; i+1 < len(dir); i++ {
		if dir[i] == '-' && isDigit(dir[i+1]) {
			return dir[:i]
		}
	}

	return dir
}

// ListGems returns the names of all gems installed below gemHome.
func ListGems(gemHome string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(gemHome, "gems"))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n := gemName(e.Name())
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}

	return out, nil
}

// StartGemInstall launches "gem install <gem>" with the given environment and
// returns without waiting for it. Output goes to out. The process is reaped in
// the background; its result is only visible in out.
func StartGemInstall(ctx context.Context, gem string, environ []string, out io.Writer) error {
	if gem == "" {
		return fmt.Errorf("%w: empty gem name", ErrGemNotFound)
	}

	cmd := exec.CommandContext(ctx, GemCommand, "install", gem)
	cmd.Env = environ
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s install %s: %w", GemCommand, gem, err)
	}

	debug.Log("started %s install %s (pid %d)", GemCommand, gem, cmd.Process.Pid)

	go func() {
		if err := cmd.Wait(); err != nil {
			debug.V(1).Log("%s install %s finished: %s", GemCommand, gem, err)

			return
		}
		debug.V(1).Log("%s install %s finished", GemCommand, gem)
	}()

	return nil
}
