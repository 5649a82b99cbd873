package rvmenv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idStrings(ids []Identifier) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}

	return out
}

func TestListVersions(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		"ruby-2.10.0@default",
		"ruby-2.9.1@default",
		"ruby-2.9.1@app",
		"3.2.2",
		"jruby-9.4.5.0@global",
		"system",
		".hidden@x",
	)
	writeFile(t, filepath.Join(f.prefix, "README"), "not an environment")

	ids, err := ListVersions(f.prefix, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"ruby-2.9.1@app",
		"ruby-2.9.1@default",
		"ruby-2.10.0@default",
		"3.2.2",
		"jruby-9.4.5.0@global",
		"system",
	}, idStrings(ids))

	ids, err = ListVersions(f.prefix, "ruby-2.*@default")
	require.NoError(t, err)
	assert.Equal(t, []string{"ruby-2.9.1@default", "ruby-2.10.0@default"}, idStrings(ids))

	_, err = ListVersions(f.prefix, "[broken")
	assert.Error(t, err)
}

func TestListVersionsMissingPrefix(t *testing.T) {
	t.Parallel()

	ids, err := ListVersions(filepath.Join(t.TempDir(), "nope"), "")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCompareVersions(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		a, b string
		want int
	}{
		{a: "2.6.3", b: "2.6.3", want: 0},
		{a: "2.6.3", b: "2.10.0", want: -1},
		{a: "ruby-2.10.0", b: "ruby-2.9.1", want: 1},
		{a: "ruby-3.0.0", b: "3.0.0", want: 1},
		{a: "3.0.0-preview1", b: "3.0.0", want: -1},
		{a: "system", b: "2.6.3", want: 1},
		{a: "2.6.3", b: "system", want: -1},
		{a: "head", b: "system", want: -1},
	} {
		assert.Equal(t, tc.want, compareVersions(tc.a, tc.b), "%s <=> %s", tc.a, tc.b)
	}
}

func TestSortIdentifiers(t *testing.T) {
	t.Parallel()

	ids := []Identifier{
		ParseIdentifier("3.2.2@rails"),
		ParseIdentifier("2.7.8@b"),
		ParseIdentifier("2.7.8@a"),
		ParseIdentifier("2.7.10"),
	}
	SortIdentifiers(ids)

	assert.Equal(t, []string{"2.7.8@a", "2.7.8@b", "2.7.10", "3.2.2@rails"}, idStrings(ids))
}
