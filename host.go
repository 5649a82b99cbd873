package rvmenv

import (
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/gopasspw/gopass/pkg/set"
)

// Host is the environment an activation is applied to. Besides environment
// variables it keeps an executable search list, the host's own notion of
// where programs are looked up.
type Host interface {
	Getenv(key string) string
	Setenv(key, value string) error
	ExecPath() []string
	SetExecPath(dirs []string)
	// Environ returns the variables as KEY=VALUE pairs for subprocesses.
	Environ() []string
}

// ProcessHost applies changes to the environment of the running process.
type ProcessHost struct {
	mu       sync.Mutex
	execPath []string
}

// NewProcessHost creates a host whose exec path starts out as the current PATH.
func NewProcessHost() *ProcessHost {
	return &ProcessHost{
		execPath: filepath.SplitList(os.Getenv("PATH")),
	}
}

// Getenv implements Host.
func (h *ProcessHost) Getenv(key string) string {
	return os.Getenv(key)
}

// Setenv implements Host.
func (h *ProcessHost) Setenv(key, value string) error {
	return os.Setenv(key, value)
}

// Environ implements Host.
func (h *ProcessHost) Environ() []string {
	return os.Environ()
}

// ExecPath implements Host.
func (h *ProcessHost) ExecPath() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return slices.Clone(h.execPath)
}

// SetExecPath implements Host.
func (h *ProcessHost) SetExecPath(dirs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.execPath = slices.Clone(dirs)
}

// MemHost is a Host that never touches the process. It is used to compute
// an environment for subprocesses or shell exports, and in tests.
type MemHost struct {
	mu       sync.Mutex
	env      map[string]string
	execPath []string
}

// NewMemHost creates an in-memory host seeded with env. The exec path is
// seeded from env["PATH"].
func NewMemHost(env map[string]string) *MemHost {
	h := &MemHost{
		env: make(map[string]string, len(env)),
	}
	for k, v := range env {
		h.env[k] = v
	}
	h.execPath = filepath.SplitList(h.env["PATH"])

	return h
}

// NewMemHostFromEnviron creates an in-memory host from a KEY=VALUE list
// like the one returned by os.Environ.
func NewMemHostFromEnviron(environ []string) *MemHost {
	return NewMemHost(parseEnviron(environ))
}

// Getenv implements Host.
func (h *MemHost) Getenv(key string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.env[key]
}

// Setenv implements Host.
func (h *MemHost) Setenv(key, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.env[key] = value

	return nil
}

// ExecPath implements Host.
func (h *MemHost) ExecPath() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return slices.Clone(h.execPath)
}

// SetExecPath implements Host.
func (h *MemHost) SetExecPath(dirs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.execPath = slices.Clone(dirs)
}

// Vars returns a copy of all variables.
func (h *MemHost) Vars() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]string, len(h.env))
	for k, v := range h.env {
		out[k] = v
	}

	return out
}

// Environ implements Host. The pairs are sorted by key.
func (h *MemHost) Environ() []string {
	vars := h.Vars()
	out := make([]string, 0, len(vars))
	for _, k := range set.SortedKeys(vars) {
		out = append(out, k+"="+vars[k])
	}

	return out
}

func parseEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, found := cutEnv(kv)
		if !found {
			continue
		}
		env[k] = v
	}

	return env
}

// cutEnv splits KEY=VALUE. Windows keeps per-drive variables like "=C:"
// so a leading '=' belongs to the key.
func cutEnv(kv string) (string, string, bool) {
	for i := 1; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}

	return "", "", false
}
