package ctu

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeFnMaps_UnionsFragmentsWithoutDuplicatesAndRemovesTmpDir(t *testing.T) {
	t.Parallel()

	ctuDir := t.TempDir()
	fragDir := filepath.Join(ctuDir, "x86_64", tmpFnMapDirName)
	require.NoError(t, os.MkdirAll(fragDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(fragDir, "a.map"), []byte("foo /p/a.c\nbar /p/a.c\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(fragDir, "b.map"), []byte("foo /p/a.c\nbaz /p/b.c\n"), 0o644))

	c := NewCollector(Config{CTUDir: ctuDir})
	require.NoError(t, c.mergeFnMaps("x86_64"))

	data, err := os.ReadFile(filepath.Join(ctuDir, "x86_64", finalFnMapName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	sort.Strings(lines)
	assert.Equal(t, []string{"bar /p/a.c", "baz /p/b.c", "foo /p/a.c"}, lines)

	_, statErr := os.Stat(fragDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMergeFnMaps_NoFragmentDirIsNotAnError(t *testing.T) {
	t.Parallel()

	c := NewCollector(Config{CTUDir: t.TempDir()})
	assert.NoError(t, c.mergeFnMaps("missing-triple"))
}

func TestFilterRelevant_DropsBelowMinSamplesAndBelowThreshold(t *testing.T) {
	t.Parallel()

	counts := map[string]int{"a": 10, "b": 1, "c": 5}

	out := filterRelevant(counts, 2, 0.4)
	assert.Equal(t, []string{"a"}, out)
}

func TestAstPathFor_MirrorsAbsoluteSourcePath(t *testing.T) {
	t.Parallel()

	got := astPathFor("/ctu/x86_64/ast", "/p/sub/a.c")
	assert.Equal(t, "/ctu/x86_64/ast/p/sub/a.c.ast", got)
}

func TestPostprocessExtDefLines(t *testing.T) {
	t.Parallel()

	stdout := "c:@F@foo /p/a.c\n\nmalformed-line\nc:@F@bar /p/a.c\n"

	astLines := postprocessExtDefLines(stdout, ModeAST, "/p/a.c")
	assert.Equal(t, []string{"c:@F@foo ast/p/a.c.ast", "c:@F@bar ast/p/a.c.ast"}, astLines)

	invLines := postprocessExtDefLines(stdout, ModeInvocation, "/p/a.c")
	assert.Equal(t, []string{"c:@F@foo /p/a.c", "c:@F@bar /p/a.c"}, invLines)
}
