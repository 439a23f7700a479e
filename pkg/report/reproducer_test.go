package report

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
)

func newReproducerAction(t *testing.T, source string) *action.Action {
	t.Helper()

	act, err := action.New(action.Fields{
		OriginalCommand: "gcc -c " + source + " -o a.o",
		Source:          source,
		Kind:            action.KindCompile,
	})
	require.NoError(t, err)

	return act
}

func TestWriteReproducerZip_EmbedsTheSourceFileItself(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(source, []byte("int main(){}"), 0o644))

	act := newReproducerAction(t, source)
	zipPath := filepath.Join(dir, "out.zip")

	require.NoError(t, writeReproducerZip(zipPath, reproducerInputs{
		Action:     act,
		Argv:       []string{"clang", "--analyze", source},
		ReturnCode: 1,
	}))

	names := zipEntryNames(t, zipPath)
	assert.Contains(t, names, source[1:]) // rooted at zip root, leading "/" stripped.
}

func TestWriteReproducerZip_FiltersMentionedFilesThroughBuildActionMap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "a.c")
	known := filepath.Join(dir, "known.h")
	unknown := filepath.Join(dir, "unknown.h")

	require.NoError(t, os.WriteFile(source, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(known, []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(unknown, []byte("z"), 0o644))

	act := newReproducerAction(t, source)
	knownAct := newReproducerAction(t, known)
	buildMap := action.NewMap([]*action.Action{act, knownAct}, func(existing, _ *action.Action) *action.Action { return existing })

	zipPath := filepath.Join(dir, "out.zip")

	require.NoError(t, writeReproducerZip(zipPath, reproducerInputs{
		Action:         act,
		Argv:           []string{"clang", "--analyze", source},
		ReturnCode:     1,
		MentionedFiles: []string{known, unknown},
		BuildActionMap: buildMap,
	}))

	names := zipEntryNames(t, zipPath)
	assert.Contains(t, names, known[1:])
	assert.NotContains(t, names, unknown[1:])
}

func TestWriteReproducerZip_SkipsSourceFilesOverSizeLimit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "a.c")
	big := filepath.Join(dir, "big.h")

	require.NoError(t, os.WriteFile(source, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(big, make([]byte, 128), 0o644))

	act := newReproducerAction(t, source)
	zipPath := filepath.Join(dir, "out.zip")

	require.NoError(t, writeReproducerZip(zipPath, reproducerInputs{
		Action:         act,
		Argv:           []string{"clang", "--analyze", source},
		ReturnCode:     1,
		MentionedFiles: []string{big},
		SizeLimit:      64,
	}))

	names := zipEntryNames(t, zipPath)
	assert.Contains(t, names, source[1:])
	assert.NotContains(t, names, big[1:])
	assert.Contains(t, names, "build-action", "fixed entries are never size-limited")
}

func zipEntryNames(t *testing.T, path string) map[string]bool {
	t.Helper()

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}

	return names
}
