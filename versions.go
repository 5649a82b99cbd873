package rvmenv

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/gopasspw/gopass/pkg/debug"
	"github.com/gopasspw/gopass/pkg/set"
	"github.com/hashicorp/go-version"
)

// ListVersions returns the environments installed below prefix, i.e. the
// directories named "<version>@<gemset>" or "<version>". pattern is a glob
// matched against the full directory name; empty matches all.
//
// Versions are ordered semantically ("ruby-2.10.0" after "ruby-2.9.1"),
// names that are not versions come last in lexical order. Gemsets of one
// version are sorted alphabetically.
func ListVersions(prefix, pattern string) ([]Identifier, error) {
	g, err := compileGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(prefix)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			debug.V(1).Log("prefix %s does not exist", prefix)

			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	names = set.SortedFiltered(names, g.Match)

	ids := make([]Identifier, 0, len(names))
	for _, n := range names {
		ids = append(ids, ParseIdentifier(n))
	}
	SortIdentifiers(ids)

	return ids, nil
}

// SortIdentifiers sorts by version, then gemset.
func SortIdentifiers(ids []Identifier) {
	slices.SortStableFunc(ids, func(a, b Identifier) int {
		if c := compareVersions(a.Version, b.Version); c != 0 {
			return c
		}

		return strings.Compare(a.Gemset, b.Gemset)
	})
}

// compareVersions orders version names. An interpreter prefix such as
// "ruby-" is ignored.
func compareVersions(a, b string) int {
	va, errA := parseVersion(a)
	vb, errB := parseVersion(b)

	switch {
	case errA == nil && errB == nil:
		if c := va.Compare(vb); c != 0 {
			return c
		}

		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func parseVersion(s string) (*version.Version, error) {
	if s != "" && !isDigit(s[0]) {
		for i := 0; i+1 < len(s); i++ {
			if s[i] == '-' && isDigit(s[i+1]) {
				s = s[i+1:]

				break
			}
		}
	}

	return version.NewVersion(s)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
