package rvmenv

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gopasspw/gopass/pkg/appdir"
	"github.com/gopasspw/gopass/pkg/debug"
)

// reValidKey matches key names: alphanumeric characters and -, starting with a letter.
var reValidKey = regexp.MustCompile(`^[a-z]+[a-z0-9-]*$`)

// SettingsFile is a single settings file in gitconfig syntax. It is read only.
//
// Supported syntax:
//
//	# comment
//	; comment
//	[core]
//		prefix = ~/.rvm/gems
//	[markers "project"]
//		version = ".ruby-version" ; trailing comment
//	[include]
//		path = other.conf
type SettingsFile struct {
	path string
	vars map[string][]string
}

// Path returns the file the settings were loaded from, if any.
func (f *SettingsFile) Path() string {
	if f == nil {
		return ""
	}

	return f.path
}

// IsEmpty returns true if nothing was loaded.
func (f *SettingsFile) IsEmpty() bool {
	return f == nil || len(f.vars) == 0
}

// Get returns the last value of the key. Later assignments override earlier ones.
func (f *SettingsFile) Get(key string) (string, bool) {
	vs, found := f.GetAll(key)
	if !found || len(vs) < 1 {
		return "", false
	}

	return vs[len(vs)-1], true
}

// GetAll returns all values of the key in file order.
func (f *SettingsFile) GetAll(key string) ([]string, bool) {
	if f == nil || f.vars == nil {
		return nil, false
	}

	vs, found := f.vars[canonicalizeKey(key)]

	return vs, found
}

// IsSet returns true if the key was assigned in this file.
func (f *SettingsFile) IsSet(key string) bool {
	_, found := f.GetAll(key)

	return found
}

// NewSettingsFromMap creates a preset from a map of keys to values.
func NewSettingsFromMap(data map[string]string) *SettingsFile {
	f := &SettingsFile{
		vars: make(map[string][]string, len(data)),
	}
	for k, v := range data {
		if ck := canonicalizeKey(k); ck != "" {
			f.vars[ck] = []string{v}
		}
	}

	return f
}

// ParseSettings parses settings from r. It never fails, invalid lines are skipped.
func ParseSettings(r io.Reader) *SettingsFile {
	f := &SettingsFile{
		vars: make(map[string][]string, 16),
	}

	s := bufio.NewScanner(r)
	var section, subsection string
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			sec, subs, skip := parseSectionHeader(line)
			if skip {
				debug.V(3).Log("invalid section header: %q", line)

				continue
			}
			section, subsection = strings.ToLower(sec), subs

			continue
		}

		if section == "" {
			debug.V(3).Log("key outside of section: %q", line)

			continue
		}

		k, v, found := strings.Cut(line, "=")
		if !found {
			// bare boolean
			k, v = parseValue(line), "true"
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if !reValidKey.MatchString(k) {
			debug.V(3).Log("invalid key %q in line: %q", k, line)

			continue
		}

		fKey := section + "."
		if subsection != "" {
			fKey += subsection + "."
		}
		fKey += k

		f.vars[fKey] = append(f.vars[fKey], parseValue(strings.TrimSpace(v)))
	}

	if err := s.Err(); err != nil {
		debug.V(1).Log("failed to read settings: %s", err)
	}

	debug.V(3).Log("parsed settings: %+v", f.vars)

	return f
}

// LoadSettingsFile loads a settings file and all files it includes. Include
// loops are broken by loading every file only once.
func LoadSettingsFile(fn string) (*SettingsFile, error) {
	f, err := loadSettingsFile(fn)
	if err != nil {
		return nil, err
	}

	loaded := map[string]struct{}{fn: {}}
	queue := includePaths(f, fn)
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]

		if _, seen := loaded[head]; seen {
			debug.V(3).Log("skipping already loaded settings %q", head)

			continue
		}
		loaded[head] = struct{}{}

		debug.V(2).Log("loading included settings %q", head)
		inc, err := loadSettingsFile(head)
		if err != nil {
			return nil, fmt.Errorf("failed to load include %s from %s: %w", head, fn, err)
		}

		f.merge(inc)
		queue = append(queue, includePaths(inc, head)...)
	}

	return f, nil
}

func loadSettingsFile(fn string) (*SettingsFile, error) {
	fh, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fh.Close() //nolint:errcheck

	f := ParseSettings(fh)
	f.path = fn

	return f, nil
}

// merge appends the values of other, so included values take precedence.
func (f *SettingsFile) merge(other *SettingsFile) {
	for k, vs := range other.vars {
		if k == "include.path" {
			continue
		}
		f.vars[k] = append(f.vars[k], vs...)
	}
}

// includePaths returns the absolute include paths of f. Relative paths are
// relative to the including file, "~/" is expanded to the home directory.
func includePaths(f *SettingsFile, base string) []string {
	paths, _ := f.GetAll("include.path")
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, expandPath(p, filepath.Dir(base)))
	}

	return out
}

func expandPath(p, dir string) string {
	switch {
	case p == "~":
		return appdir.UserHome()
	case strings.HasPrefix(p, "~/"):
		return filepath.Join(appdir.UserHome(), p[2:])
	case filepath.IsAbs(p) || dir == "":
		return filepath.Clean(p)
	default:
		return filepath.Clean(filepath.Join(dir, p))
	}
}

// LoadSettingsFromEnv builds an overlay from PREFIX_COUNT, PREFIX_KEY_<n> and
// PREFIX_VALUE_<n>. An incomplete set of variables yields an empty overlay.
func LoadSettingsFromEnv(envPrefix string) *SettingsFile {
	count, err := strconv.Atoi(os.Getenv(envPrefix + "_COUNT"))
	if err != nil || count < 1 {
		return &SettingsFile{}
	}

	f := &SettingsFile{
		vars: make(map[string][]string, count),
	}
	for i := range count {
		key := os.Getenv(fmt.Sprintf("%s_KEY_%d", envPrefix, i))
		value, found := os.LookupEnv(fmt.Sprintf("%s_VALUE_%d", envPrefix, i))
		ck := canonicalizeKey(key)
		if ck == "" || !found {
			debug.V(1).Log("incomplete settings env overlay at index %d", i)

			return &SettingsFile{}
		}
		f.vars[ck] = append(f.vars[ck], value)
		debug.V(3).Log("added %s from env", ck)
	}

	return f
}
