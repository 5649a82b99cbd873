package rvmenv

import (
	"strings"

	"github.com/gobwas/glob"
)

// compileGlob compiles a version pattern. Empty patterns match everything.
func compileGlob(pattern string) (glob.Glob, error) {
	if pattern == "" {
		pattern = "*"
	}

	return glob.Compile(pattern)
}

// splitKey splits a settings key into section, subsection and key. The
// subsection might contain dots itself.
//
// Valid examples:
// - core.prefix
// - markers.project.with.dots.version
func splitKey(key string) (section, subsection, skey string) { //nolint:nonamedreturns
	n := strings.Index(key, ".")
	if n < 0 {
		return "", "", key
	}
	section = key[:n]

	if m := strings.LastIndex(key, "."); n != m && m > 0 && len(key) > m+1 {
		return section, key[n+1 : m], key[m+1:]
	}

	return section, "", key[n+1:]
}

// canonicalizeKey lower cases section and key name. Subsections are case
// sensitive. Invalid keys yield an empty string.
func canonicalizeKey(key string) string {
	section, subsection, skey := splitKey(key)
	section = strings.ToLower(section)
	skey = strings.ToLower(skey)

	if section == "" || skey == "" {
		return ""
	}

	if subsection == "" {
		return section + "." + skey
	}

	return section + "." + subsection + "." + skey
}

func parseSectionHeader(line string) (section, subsection string, skip bool) { //nolint:nonamedreturns
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") || !strings.Contains(line, "]") {
		return "", "", true
	}
	line = line[1:strings.Index(line, "]")]
	if strings.TrimSpace(line) == "" {
		return "", "", true
	}

	section, subsection, found := strings.Cut(line, " ")
	if !found {
		return line, "", false
	}

	subsection = strings.ReplaceAll(subsection, "\\", "")
	subsection = strings.TrimPrefix(subsection, "\"")
	subsection = strings.TrimSuffix(subsection, "\"")

	return section, subsection, false
}

// parseValue strips a trailing comment and surrounding quotes. Comment
// characters inside double quotes are kept.
func parseValue(v string) string {
	inQuotes := false
	for i, r := range v {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case '#', ';':
			if !inQuotes {
				v = v[:i]

				return unquote(strings.TrimSpace(v))
			}
		}
	}

	return unquote(strings.TrimSpace(v))
}

func unquote(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		v = v[1 : len(v)-1]
	}

	return strings.ReplaceAll(v, `\"`, `"`)
}
