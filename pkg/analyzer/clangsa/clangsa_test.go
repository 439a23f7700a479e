package clangsa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer/clangsa"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/checkers"
)

func newAction(t *testing.T) *action.Action {
	t.Helper()

	a, err := action.New(action.Fields{
		OriginalCommand: "gcc -c a.c -o a.o",
		Directory:       "/p",
		Source:          "/p/a.c",
		Language:        action.LangC,
		Target:          "x86_64-unknown-linux-gnu",
		AnalyzerOptions: []string{"-Wall"},
		Output:          "a.o",
		Kind:            action.KindCompile,
	})
	require.NoError(t, err)

	return a
}

func TestBuildCommand_IncludesCheckerAndTargetFlags(t *testing.T) {
	t.Parallel()

	a := clangsa.New()
	act := newAction(t)

	reg := checkers.NewRegistry([]checkers.Checker{{Name: "core.NullDereference"}, {Name: "alpha.core.CastSize"}})
	_, err := reg.Apply([]checkers.Override{{Identifier: "core", Enable: true}, {Identifier: "alpha", Enable: false}})
	require.NoError(t, err)

	rh := a.NewResultHandler(act, "/out")
	cmd, err := a.BuildCommand("/usr/bin/clang", act, rh, analyzer.ConfigHandler{Registry: reg})
	require.NoError(t, err)

	assert.Contains(t, cmd.Argv, "--analyze")
	assert.Contains(t, cmd.Argv, "-analyzer-checker=core.NullDereference")
	assert.Contains(t, cmd.Argv, "-analyzer-disable-checker=alpha.core.CastSize")
	assert.Contains(t, cmd.Argv, "-target")
	assert.Contains(t, cmd.Argv, "x86_64-unknown-linux-gnu")
	assert.Contains(t, cmd.Argv, "/p/a.c")
}

func TestBuildCommand_RejectsZ3Conflict(t *testing.T) {
	t.Parallel()

	a := clangsa.New()
	act := newAction(t)
	rh := a.NewResultHandler(act, "/out")

	_, err := a.BuildCommand("/usr/bin/clang", act, rh, analyzer.ConfigHandler{Z3: true, Z3Refutation: true})
	assert.ErrorIs(t, err, analyzer.ErrZ3Conflict)
}

func TestBuildCommand_AddsCTUFlagsWhenEnabled(t *testing.T) {
	t.Parallel()

	a := clangsa.New()
	act := newAction(t)
	rh := a.NewResultHandler(act, "/out")

	cmd, err := a.BuildCommand("/usr/bin/clang", act, rh, analyzer.ConfigHandler{
		CTUDir: "/ctu", CTUEnabled: true,
	})
	require.NoError(t, err)
	assert.Contains(t, cmd.Argv, "ctu-dir=/ctu/x86_64-unknown-linux-gnu")
}

func TestBuildCommand_SkipsCTUFlagsWhenLocallyDisabled(t *testing.T) {
	t.Parallel()

	a := clangsa.New()
	act := newAction(t)
	rh := a.NewResultHandler(act, "/out")

	cmd, err := a.BuildCommand("/usr/bin/clang", act, rh, analyzer.ConfigHandler{
		CTUDir: "/ctu", CTUEnabled: true, CTULocalDisabled: true,
	})
	require.NoError(t, err)

	for _, arg := range cmd.Argv {
		assert.NotContains(t, arg, "ctu-dir")
	}
}
