package rvmenv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/gopasspw/gopass/pkg/debug"
)

// Hooks are the interactive parts of the service. Every field has a default
// (see DefaultHooks) and can be replaced by an editor integration or a test.
type Hooks struct {
	// LookPath finds the version manager executable. Default: exec.LookPath.
	LookPath func(file string) (string, error)
	// Select asks the user to pick one of choices. Default: a numbered
	// prompt on stdin/stdout.
	Select func(prompt string, choices []string) (string, error)
	// Open shows a directory to the user. Default: $VISUAL or $EDITOR, or
	// print the directory if neither is set.
	Open func(dir string) error
	// Notify shows a status message. Default: print to stderr. It is called
	// after the service lock is released and may call back into the service.
	Notify func(msg string)
}

// DefaultHooks returns the terminal based hooks.
func DefaultHooks() Hooks {
	return Hooks{
		LookPath: exec.LookPath,
		Select:   PromptSelect(os.Stdin, os.Stdout),
		Open:     OpenInEditor(os.Stdout),
		Notify: func(msg string) {
			fmt.Fprintln(os.Stderr, msg)
		},
	}
}

// Service activates ruby environments for files. It owns the switcher state;
// activations are serialised so the state always reflects the last completed
// activation.
type Service struct {
	Settings *Settings
	Resolver *Resolver
	Switcher *Switcher
	Hooks    Hooks
	// Quiet suppresses status messages regardless of the settings.
	Quiet bool

	mu         sync.Mutex
	autoSource EventSource
	autoID     int

	nmu     sync.Mutex
	pending []string
}

// New creates a service that applies activations to h.
func New(settings *Settings, h Host) *Service {
	if settings == nil {
		settings = NewSettings()
	}

	s := &Service{
		Settings: settings,
		Resolver: &Resolver{
			Markers: settings.Markers(),
			Workdir: os.Getwd,
		},
		Switcher: NewSwitcher(h),
		Hooks:    DefaultHooks(),
	}
	s.Switcher.Notify = s.queue

	return s
}

// queue records a status message. Messages are delivered by flush, outside
// of s.mu.
func (s *Service) queue(msg string) {
	s.nmu.Lock()
	defer s.nmu.Unlock()

	s.pending = append(s.pending, msg)
}

// flush delivers the queued messages. It must not be called with s.mu held.
func (s *Service) flush() {
	s.nmu.Lock()
	msgs := s.pending
	s.pending = nil
	s.nmu.Unlock()

	if s.Quiet || !s.Settings.Verbose() || s.Hooks.Notify == nil {
		return
	}

	for _, msg := range msgs {
		s.Hooks.Notify(msg)
	}
}

// ToolAvailable reports whether the version manager executable can be found.
func (s *Service) ToolAvailable() bool {
	lookPath := s.Hooks.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	_, err := lookPath(s.Settings.Tool())

	return err == nil
}

// checkTool is called first by every entry point. A missing tool turns the
// operation into a no-op.
func (s *Service) checkTool() bool {
	if s.ToolAvailable() {
		return true
	}

	debug.Log("%s: %s", ErrToolUnavailable, s.Settings.Tool())
	s.queue(fmt.Sprintf("%s: %s", ErrToolUnavailable, s.Settings.Tool()))

	return false
}

// Activate resolves the environment for path and switches to it. Finding no
// configuration is not an error and leaves the environment alone, as does a
// missing version manager.
func (s *Service) Activate(path string) error {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.checkTool() {
		return nil
	}

	_, err := s.activate(path)

	return err
}

// activate returns whether the environment was switched.
func (s *Service) activate(path string) (bool, error) {
	id, err := s.Resolver.Resolve(path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			debug.V(1).Log("no ruby configuration for %s", path)

			return false, nil
		}

		return false, err
	}

	if err := s.use(id); err != nil {
		return false, err
	}

	return true, nil
}

// Use switches to an explicitly given identifier.
func (s *Service) Use(id Identifier) error {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.checkTool() {
		return nil
	}

	return s.use(id)
}

func (s *Service) use(id Identifier) error {
	if id.IsZero() {
		return s.Switcher.Apply(Identifier{}, Info{})
	}

	info, err := NewInfo(id, s.Settings.Prefix(), s.Resolver.Markers.Local)
	if err != nil {
		return err
	}

	return s.Switcher.Apply(id, info)
}

// Clear removes the active environment.
func (s *Service) Clear() error {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Switcher.Apply(Identifier{}, Info{})
}

// Current returns the active identifier.
func (s *Service) Current() Identifier {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Switcher.State.Identifier()
}

// WithActivated activates the environment for path, runs fn and restores the
// previously active environment afterwards, even if fn fails or panics.
// If the target environment can not be resolved fn is not run.
//
// Restoring means switching back to the previous identifier. If none was
// active, the gem variables end up empty; values inherited from the parent
// process (e.g. a GEM_HOME set by the user) are not brought back.
func (s *Service) WithActivated(path string, fn func() error) (err error) { //nolint:nonamedreturns
	s.mu.Lock()
	prev := s.Switcher.State.Identifier()
	switched := false
	if s.checkTool() {
		switched, err = s.activate(path)
	}
	s.mu.Unlock()
	s.flush()

	if err != nil {
		return err
	}

	if switched {
		defer func() {
			s.mu.Lock()
			rerr := s.use(prev)
			s.mu.Unlock()
			s.flush()

			if rerr != nil {
				err = errors.Join(err, fmt.Errorf("failed to restore %s: %w", prev, rerr))
			}
		}()
	}

	return fn()
}

// ListVersions lists the installed environments. An empty pattern falls
// back to the list.filter setting.
func (s *Service) ListVersions(pattern string) ([]Identifier, error) {
	if pattern == "" {
		pattern = s.Settings.Get(KeyListFilter)
	}

	return ListVersions(s.Settings.Prefix(), pattern)
}

// SelectAndUse lets the user pick an installed environment and switches to it.
func (s *Service) SelectAndUse() (Identifier, error) {
	defer s.flush()

	if !s.checkTool() {
		return Identifier{}, nil
	}

	ids, err := s.ListVersions("")
	if err != nil {
		return Identifier{}, err
	}
	if len(ids) == 0 {
		return Identifier{}, fmt.Errorf("%w: nothing installed below %s", ErrNotInstalled, s.Settings.Prefix())
	}

	choices := make([]string, 0, len(ids))
	for _, id := range ids {
		choices = append(choices, id.String())
	}

	choice, err := s.Hooks.Select("Ruby version", choices)
	if err != nil {
		return Identifier{}, err
	}

	id := ParseIdentifier(choice)

	s.mu.Lock()
	defer s.mu.Unlock()

	return id, s.use(id)
}

// GemDir returns the source directory of a gem in the active environment.
func (s *Service) GemDir(gem string) (string, error) {
	return FindGemDir(s.Switcher.Host.Getenv(EnvGemHome), gem)
}

// OpenGem opens the source directory of a gem. Without a name the user is
// asked to pick one of the installed gems.
func (s *Service) OpenGem(gem string) error {
	gemHome := s.Switcher.Host.Getenv(EnvGemHome)
	if gemHome == "" {
		return ErrNoEnvironment
	}

	if gem == "" {
		gems, err := ListGems(gemHome)
		if err != nil {
			return err
		}
		gem, err = s.Hooks.Select("Gem", gems)
		if err != nil {
			return err
		}
	}

	dir, err := FindGemDir(gemHome, gem)
	if err != nil {
		return err
	}

	return s.Hooks.Open(dir)
}

// InstallGem starts installing a gem into the active environment and returns
// right away. The installer output is written to out.
func (s *Service) InstallGem(ctx context.Context, gem string, out io.Writer) error {
	defer s.flush()

	if !s.checkTool() {
		return nil
	}

	if s.Switcher.Host.Getenv(EnvGemHome) == "" {
		return ErrNoEnvironment
	}

	s.queue(fmt.Sprintf("Installing %s into %s", gem, s.Current()))

	return StartGemInstall(ctx, gem, s.Environ(), out)
}

// Environ returns the host environment for subprocesses.
func (s *Service) Environ() []string {
	return s.Switcher.Host.Environ()
}

// StartAutodetect activates the matching environment whenever src reports a
// file event. A previous subscription is cancelled.
func (s *Service) StartAutodetect(src EventSource) {
	s.StopAutodetect()

	id := src.Subscribe(s.handleEvent)

	s.mu.Lock()
	s.autoSource, s.autoID = src, id
	s.mu.Unlock()

	debug.Log("autodetect started")
}

// StopAutodetect cancels the autodetect subscription, if any.
func (s *Service) StopAutodetect() {
	s.mu.Lock()
	src, id := s.autoSource, s.autoID
	s.autoSource, s.autoID = nil, 0
	s.mu.Unlock()

	if src == nil {
		return
	}

	src.Unsubscribe(id)
	debug.Log("autodetect stopped")
}

// Autodetecting reports whether an autodetect subscription is active.
func (s *Service) Autodetecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.autoSource != nil
}

func (s *Service) handleEvent(ev Event) {
	debug.V(1).Log("autodetect: %s %s", ev.Op, ev.Path)

	if err := s.Activate(ev.Path); err != nil {
		debug.Log("autodetect for %s failed: %s", ev.Path, err)
		s.queue(err.Error())
		s.flush()
	}
}

// PromptSelect returns a Select hook that prints a numbered list to out and
// reads the answer from in. The answer may be the number or the choice itself.
func PromptSelect(in io.Reader, out io.Writer) func(string, []string) (string, error) {
	r := bufio.NewReader(in)

	return func(prompt string, choices []string) (string, error) {
		if len(choices) == 0 {
			return "", ErrNoSelection
		}

		for i, c := range choices {
			fmt.Fprintf(out, "%3d) %s\n", i+1, c)
		}
		fmt.Fprintf(out, "%s: ", prompt)

		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return "", ErrNoSelection
		}

		if n, err := strconv.Atoi(line); err == nil {
			if n < 1 || n > len(choices) {
				return "", fmt.Errorf("%w: %d out of range", ErrNoSelection, n)
			}

			return choices[n-1], nil
		}

		for _, c := range choices {
			if c == line {
				return c, nil
			}
		}

		return "", fmt.Errorf("%w: %q is not a choice", ErrNoSelection, line)
	}
}

// OpenInEditor returns an Open hook that runs $VISUAL or $EDITOR on the
// directory. Without an editor the directory is printed to out.
func OpenInEditor(out io.Writer) func(string) error {
	return func(dir string) error {
		editor := os.Getenv("VISUAL")
		if editor == "" {
			editor = os.Getenv("EDITOR")
		}

		args := strings.Fields(editor)
		if len(args) == 0 {
			_, err := fmt.Fprintln(out, dir)

			return err
		}

		cmd := exec.Command(args[0], append(args[1:], dir)...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		return cmd.Run()
	}
}
