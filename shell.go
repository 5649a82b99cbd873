package rvmenv

import (
	"fmt"
	"strings"

	"github.com/gopasspw/gopass/pkg/set"
)

// Shell dialects understood by FormatExports.
const (
	ShellPosix = "posix"
	ShellFish  = "fish"
)

// Change is a single environment variable update. Unset is true when the
// variable disappeared.
type Change struct {
	Key   string
	Value string
	Unset bool
}

// Diff returns the changes needed to turn before into after, sorted by key.
func Diff(before, after map[string]string) []Change {
	keys := make([]string, 0, len(before)+len(after))
	for k := range before {
		keys = append(keys, k)
	}
	for k := range after {
		keys = append(keys, k)
	}

	var out []Change
	for _, k := range set.Sorted(keys) {
		bv, inBefore := before[k]
		av, inAfter := after[k]
		switch {
		case inAfter && (!inBefore || av != bv):
			out = append(out, Change{Key: k, Value: av})
		case inBefore && !inAfter:
			out = append(out, Change{Key: k, Unset: true})
		}
	}

	return out
}

// FormatExports renders changes as shell statements for the given dialect.
func FormatExports(shell string, changes []Change) (string, error) {
	var sb strings.Builder
	for _, c := range changes {
		switch shell {
		case ShellPosix, "", "sh", "bash", "zsh":
			if c.Unset {
				fmt.Fprintf(&sb, "unset %s;\n", c.Key)

				continue
			}
			fmt.Fprintf(&sb, "export %s=%s;\n", c.Key, quotePosix(c.Value))
		case ShellFish:
			if c.Unset {
				fmt.Fprintf(&sb, "set -e %s;\n", c.Key)

				continue
			}
			if c.Key == EnvPath {
				fmt.Fprintf(&sb, "set -gx %s %s;\n", c.Key, quoteFishList(c.Value))

				continue
			}
			fmt.Fprintf(&sb, "set -gx %s %s;\n", c.Key, quoteFish(c.Value))
		default:
			return "", fmt.Errorf("unsupported shell %q", shell)
		}
	}

	return sb.String(), nil
}

func quotePosix(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func quoteFish(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)

	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func quoteFishList(s string) string {
	parts := strings.Split(s, ":")
	for i, p := range parts {
		parts[i] = quoteFish(p)
	}

	return strings.Join(parts, " ")
}
