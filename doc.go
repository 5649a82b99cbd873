// Package rvmenv switches the active Ruby interpreter and gem environment
// based on per-project marker files. It is meant to be embedded into editors
// and shells: given the file being edited it finds the version and gemset
// declaration next to it, maps it to an installed Ruby and updates PATH,
// GEM_HOME, GEM_PATH and BUNDLE_PATH so that subprocesses use that Ruby.
//
// rvmenv does not install or manage Rubies. It only reads the directory
// layout a version manager (rvm by default) leaves behind:
//
//	<prefix>/<version>@<gemset>/bin/ruby
//	<prefix>/<version>@<gemset>/gems/...
//
// # Resolution
//
// For a path the following locations are checked, the first match wins:
//
//   - `.redenv` - a self-contained local environment (a directory with a
//     `gems` subdirectory), searched upwards from the working directory
//   - `.ruby-version` and `.ruby-gemset` - searched upwards from the path.
//     Both files must be found, a version without a gemset does not resolve.
//
// No match is reported as ErrNotFound, which callers treat as "leave the
// environment alone".
//
// # Usage
//
//	settings := rvmenv.NewSettings().LoadAll(".")
//	svc := rvmenv.New(settings, rvmenv.NewProcessHost())
//	if err := svc.Activate("app/models/user.rb"); err != nil {
//		log.Fatal(err)
//	}
//
// Run something in another project's environment and switch back afterwards:
//
//	err := svc.WithActivated("../other/Rakefile", func() error {
//		return exec.Command("rake", "test").Run()
//	})
//
// # Settings
//
// Settings use the gitconfig syntax and are read from these locations
// (later ones take precedence):
//
//   - `system` - /etc/rvmenv/config
//   - `global` - `$XDG_CONFIG_HOME/rvmenv/config` or `~/.rvmenvrc`
//   - `local` - the closest `.rvmenv` file above the workdir
//   - `env` - RVMENV_CONFIG_{COUNT,KEY_<n>,VALUE_<n>} environment variables
//
// Known keys are core.prefix, core.tool, core.verbose, markers.version,
// markers.gemset, markers.local and list.filter.
//
// # Error Handling
//
//	if err := svc.Use(id); err != nil {
//		if errors.Is(err, rvmenv.ErrNotInstalled) {
//			// unknown version, nothing was changed
//		}
//	}
package rvmenv
