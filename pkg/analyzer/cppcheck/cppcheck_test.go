package cppcheck_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer/cppcheck"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/checkers"
)

func newAction(t *testing.T) *action.Action {
	t.Helper()

	a, err := action.New(action.Fields{
		OriginalCommand: "gcc -c a.c -o a.o",
		Directory:       "/p",
		Source:          "/p/a.c",
		Language:        action.LangC,
		AnalyzerOptions: []string{"-DFOO"},
		Output:          "a.o",
		Kind:            action.KindCompile,
	})
	require.NoError(t, err)

	return a
}

func TestBuildCommand_IncludesEnableAndPlistOutput(t *testing.T) {
	t.Parallel()

	a := cppcheck.New()
	act := newAction(t)
	outDir := t.TempDir()

	rh := a.NewResultHandler(act, outDir)
	cmd, err := a.BuildCommand("/usr/bin/cppcheck", act, rh, analyzer.ConfigHandler{})
	require.NoError(t, err)

	assert.Contains(t, cmd.Argv, "--enable=warning,style,performance,portability")
	assert.Contains(t, cmd.Argv, "--plist-output="+outDir)
	assert.Contains(t, cmd.Argv, "-DFOO")
	assert.Contains(t, cmd.Argv, act.Source())
}

func TestBuildCommand_SuppressesDisabledCheckers(t *testing.T) {
	t.Parallel()

	a := cppcheck.New()
	act := newAction(t)
	outDir := t.TempDir()

	reg := checkers.NewRegistry([]checkers.Checker{{Name: "nullPointer"}})
	_, err := reg.Apply([]checkers.Override{{Identifier: "nullPointer", Enable: false}})
	require.NoError(t, err)

	rh := a.NewResultHandler(act, outDir)
	cmd, err := a.BuildCommand("/usr/bin/cppcheck", act, rh, analyzer.ConfigHandler{Registry: reg})
	require.NoError(t, err)

	assert.Contains(t, cmd.Argv, "--suppress=nullPointer")
}

func TestNewResultHandler_ArtifactNamedWithAnalyzerAndHash(t *testing.T) {
	t.Parallel()

	a := cppcheck.New()
	act := newAction(t)

	rh := a.NewResultHandler(act, "/out")
	assert.Equal(t, "/out", filepath.Dir(rh.ArtifactPath()))
	assert.Contains(t, rh.ArtifactPath(), "cppcheck")
	assert.Contains(t, rh.ArtifactPath(), ".plist")
}
