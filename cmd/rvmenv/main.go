// Command rvmenv prints the shell statements that switch to the Ruby
// environment configured for a directory. Use it from a shell hook:
//
//	eval "$(rvmenv env)"
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gopasspw/gopass/pkg/debug"
	"github.com/gopasspw/rvmenv"
	"github.com/spf13/pflag"
)

const version = "0.3.0"

// app carries everything a command needs from the outside world.
type app struct {
	environ  []string
	workdir  string
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	lookPath func(string) (string, error)

	quiet  bool
	shell  string
	prefix string
}

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	a := &app{
		environ:  os.Environ(),
		workdir:  wd,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		lookPath: exec.LookPath,
	}

	os.Exit(a.run(os.Args[1:]))
}

func (a *app) usage(fs *pflag.FlagSet) {
	fmt.Fprintf(a.stderr, "Usage: rvmenv [options] <command> [args]\n\n")
	fmt.Fprintf(a.stderr, "rvmenv switches Ruby and gem environments based on .ruby-version,\n")
	fmt.Fprintf(a.stderr, ".ruby-gemset and .redenv markers. Commands that change the environment\n")
	fmt.Fprintf(a.stderr, "print shell statements, evaluate them in your shell.\n\n")
	fmt.Fprintf(a.stderr, "Commands:\n")
	fmt.Fprintf(a.stderr, "  env [path]          Activate the environment configured for path\n")
	fmt.Fprintf(a.stderr, "  use <version@gemset|none|dir>\n")
	fmt.Fprintf(a.stderr, "                      Activate an explicit environment\n")
	fmt.Fprintf(a.stderr, "  select              Pick an installed environment\n")
	fmt.Fprintf(a.stderr, "  list [pattern]      List installed environments\n")
	fmt.Fprintf(a.stderr, "  gemdir <gem>        Print the source directory of a gem\n")
	fmt.Fprintf(a.stderr, "  open [gem]          Open the source directory of a gem in $EDITOR\n")
	fmt.Fprintf(a.stderr, "  install-gem <gem>   Install a gem in the background\n")
	fmt.Fprintf(a.stderr, "  exec [--dir d] -- cmd [args]\n")
	fmt.Fprintf(a.stderr, "                      Run cmd in the environment configured for d\n")
	fmt.Fprintf(a.stderr, "  watch [dir]         Print statements whenever markers in dir change\n")
	fmt.Fprintf(a.stderr, "  settings [prefix]   Show the effective settings\n")
	fmt.Fprintf(a.stderr, "  version             Print version information\n\n")
	fmt.Fprintf(a.stderr, "Options:\n")
	fmt.Fprint(a.stderr, fs.FlagUsages())
	fmt.Fprintf(a.stderr, "\nExamples:\n")
	fmt.Fprintf(a.stderr, "  eval \"$(rvmenv env)\"              # posix shells\n")
	fmt.Fprintf(a.stderr, "  rvmenv -s fish env | source       # fish\n")
	fmt.Fprintf(a.stderr, "  rvmenv exec --dir ../api -- rake  # run rake with the api project's ruby\n")
}

func (a *app) run(args []string) int {
	fs := pflag.NewFlagSet("rvmenv", pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.SetInterspersed(false)
	fs.BoolVarP(&a.quiet, "quiet", "q", false, "Do not print status messages")
	fs.StringVarP(&a.shell, "shell", "s", defaultShell(a.getenv("SHELL")), "Shell dialect of the printed statements (posix, fish)")
	fs.StringVar(&a.prefix, "prefix", "", "Override the installation prefix (core.prefix)")
	helpFlag := fs.BoolP("help", "h", false, "Show this help message")
	fs.Usage = func() { a.usage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}

		return 2
	}

	if *helpFlag || fs.NArg() < 1 {
		a.usage(fs)

		return 0
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	debug.Log("running %s %v", cmd, rest)

	var err error
	switch cmd {
	case "env":
		err = a.cmdEnv(rest)
	case "use":
		err = a.cmdUse(rest)
	case "select":
		err = a.cmdSelect()
	case "list", "ls":
		err = a.cmdList(rest)
	case "gemdir":
		err = a.cmdGemDir(rest)
	case "open":
		err = a.cmdOpen(rest)
	case "install-gem":
		err = a.cmdInstallGem(rest)
	case "exec":
		return a.cmdExec(rest)
	case "watch":
		err = a.cmdWatch(rest)
	case "settings", "config":
		err = a.cmdSettings(rest)
	case "version":
		fmt.Fprintf(a.stdout, "rvmenv version %s\n", version)
	default:
		fmt.Fprintf(a.stderr, "Error: unknown command %q\n\n", cmd)
		a.usage(fs)

		return 2
	}

	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %s\n", err)

		return 1
	}

	return 0
}

func defaultShell(sh string) string {
	if filepath.Base(sh) == "fish" {
		return rvmenv.ShellFish
	}

	return rvmenv.ShellPosix
}

func (a *app) getenv(key string) string {
	for _, kv := range a.environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}

	return ""
}

// service creates a service working on a copy of the caller's environment.
// The state of earlier invocations is picked up from that environment.
func (a *app) service() (*rvmenv.Service, *rvmenv.MemHost, error) {
	settings := rvmenv.NewSettings().LoadAll(a.workdir)
	if a.prefix != "" {
		if err := settings.SetEnv(rvmenv.KeyPrefix, a.prefix); err != nil {
			return nil, nil, err
		}
	}

	host := rvmenv.NewMemHostFromEnviron(a.environ)
	svc := rvmenv.New(settings, host)
	svc.Switcher.State = rvmenv.LoadState(host)
	svc.Resolver.Workdir = func() (string, error) { return a.workdir, nil }
	svc.Quiet = a.quiet
	svc.Hooks = rvmenv.Hooks{
		LookPath: a.lookPath,
		// stdout is evaluated by the shell, talk to the user on stderr
		Select: rvmenv.PromptSelect(a.stdin, a.stderr),
		Open:   rvmenv.OpenInEditor(a.stdout),
		Notify: func(msg string) {
			fmt.Fprintln(a.stderr, msg)
		},
	}

	return svc, host, nil
}

func (a *app) abs(p string) string {
	if p == "" {
		return a.workdir
	}
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(a.workdir, p)
}

// printExports writes the statements that turn before into the host's
// current environment.
func (a *app) printExports(svc *rvmenv.Service, host *rvmenv.MemHost, before map[string]string) error {
	if err := rvmenv.SaveState(host, svc.Switcher.State); err != nil {
		return err
	}

	out, err := rvmenv.FormatExports(a.shell, rvmenv.Diff(before, host.Vars()))
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(a.stdout, out)

	return err
}

func (a *app) cmdEnv(args []string) error {
	svc, host, err := a.service()
	if err != nil {
		return err
	}
	before := host.Vars()

	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	if err := svc.Activate(a.abs(path)); err != nil {
		return err
	}

	return a.printExports(svc, host, before)
}

func (a *app) cmdUse(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rvmenv use <version@gemset|none|dir>")
	}

	svc, host, err := a.service()
	if err != nil {
		return err
	}
	before := host.Vars()

	if err := svc.Use(a.identifier(svc, args[0])); err != nil {
		return err
	}

	return a.printExports(svc, host, before)
}

// identifier parses a command line argument. "none" clears the environment,
// a directory that is a local environment selects it.
func (a *app) identifier(svc *rvmenv.Service, arg string) rvmenv.Identifier {
	if arg == "none" {
		return rvmenv.Identifier{}
	}
	if p := a.abs(arg); rvmenv.IsLocalEnv(p, svc.Resolver.Markers.Local) {
		return rvmenv.Identifier{Version: p, Local: true}
	}

	return rvmenv.ParseIdentifier(arg)
}

func (a *app) cmdSelect() error {
	svc, host, err := a.service()
	if err != nil {
		return err
	}
	before := host.Vars()

	if _, err := svc.SelectAndUse(); err != nil {
		return err
	}

	return a.printExports(svc, host, before)
}

func (a *app) cmdList(args []string) error {
	svc, _, err := a.service()
	if err != nil {
		return err
	}

	pattern := ""
	if len(args) > 0 {
		pattern = args[0]
	}

	ids, err := svc.ListVersions(pattern)
	if err != nil {
		return err
	}

	current := svc.Current()
	for _, id := range ids {
		mark := " "
		if id == current {
			mark = "*"
		}
		fmt.Fprintf(a.stdout, "%s %s\n", mark, id)
	}

	return nil
}

// activateWorkdir switches the service to the environment of the working
// directory, keeping an inherited environment if none is configured.
func (a *app) activateWorkdir() (*rvmenv.Service, error) {
	svc, _, err := a.service()
	if err != nil {
		return nil, err
	}

	if err := svc.Activate(a.workdir); err != nil {
		return nil, err
	}

	return svc, nil
}

func (a *app) cmdGemDir(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rvmenv gemdir <gem>")
	}

	svc, err := a.activateWorkdir()
	if err != nil {
		return err
	}

	dir, err := svc.GemDir(args[0])
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(a.stdout, dir)

	return err
}

func (a *app) cmdOpen(args []string) error {
	svc, err := a.activateWorkdir()
	if err != nil {
		return err
	}

	gem := ""
	if len(args) > 0 {
		gem = args[0]
	}

	return svc.OpenGem(gem)
}

func (a *app) cmdInstallGem(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rvmenv install-gem <gem>")
	}

	svc, err := a.activateWorkdir()
	if err != nil {
		return err
	}

	// the installer keeps running after rvmenv exits
	return svc.InstallGem(context.Background(), args[0], os.Stdout)
}

func (a *app) cmdExec(args []string) int {
	fs := pflag.NewFlagSet("exec", pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	dir := fs.StringP("dir", "d", "", "Directory whose environment is used (default: working directory)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(a.stderr, "Error: usage: rvmenv exec [--dir d] -- cmd [args]\n")

		return 2
	}

	svc, _, err := a.service()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %s\n", err)

		return 1
	}

	code := 0
	err = svc.WithActivated(a.abs(*dir), func() error {
		cmd := exec.Command(fs.Arg(0), fs.Args()[1:]...)
		cmd.Env = svc.Environ()
		cmd.Stdin = a.stdin
		cmd.Stdout = a.stdout
		cmd.Stderr = a.stderr

		return cmd.Run()
	})

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		code = exitErr.ExitCode()
	default:
		fmt.Fprintf(a.stderr, "Error: %s\n", err)
		code = 1
	}

	return code
}

func (a *app) cmdWatch(args []string) error {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	}
	dir = a.abs(dir)

	svc, host, err := a.service()
	if err != nil {
		return err
	}

	m := svc.Resolver.Markers
	w, err := rvmenv.NewFSWatcher(m.Version, m.Gemset)
	if err != nil {
		return err
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(dir); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// the service subscribes first, so this handler sees the switched host
	svc.StartAutodetect(w)
	defer svc.StopAutodetect()

	before := host.Vars()
	if err := svc.Activate(dir); err != nil {
		fmt.Fprintf(a.stderr, "Error: %s\n", err)
	}
	if err := a.printExports(svc, host, before); err != nil {
		return err
	}

	last := host.Vars()
	w.Subscribe(func(rvmenv.Event) {
		if err := a.printExports(svc, host, last); err != nil {
			fmt.Fprintf(a.stderr, "Error: %s\n", err)
		}
		last = host.Vars()
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(a.stderr, "Error: %s\n", err)
		}
	}
}

func (a *app) cmdSettings(args []string) error {
	svc, _, err := a.service()
	if err != nil {
		return err
	}

	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}

	for _, k := range svc.Settings.List(prefix) {
		fmt.Fprintf(a.stdout, "%s = %s\n", k, svc.Settings.Get(k))
	}

	return nil
}
