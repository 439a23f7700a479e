package clangtidy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer/clangtidy"
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

func TestBuildCommand_ComputesChecksFromRegistry(t *testing.T) {
	t.Parallel()

	a := clangtidy.New()
	act := newAction(t)

	reg := checkers.NewRegistry([]checkers.Checker{{Name: "bugprone-foo"}, {Name: "modernize-bar"}})
	_, err := reg.Apply([]checkers.Override{{Identifier: "bugprone", Enable: true}, {Identifier: "modernize", Enable: false}})
	require.NoError(t, err)

	rh := a.NewResultHandler(act, "/out")
	cmd, err := a.BuildCommand("/usr/bin/clang-tidy", act, rh, analyzer.ConfigHandler{Registry: reg})
	require.NoError(t, err)

	found := false
	for _, arg := range cmd.Argv {
		if arg == "-checks=-*,+bugprone-foo,-modernize-bar" {
			found = true
		}
	}
	assert.True(t, found, "argv: %v", cmd.Argv)
	assert.Contains(t, cmd.Argv, "--")
	assert.Contains(t, cmd.Argv, act.Source())
}

func TestBuildCommand_ConfigOverrideWinsOverChecks(t *testing.T) {
	t.Parallel()

	a := clangtidy.New()
	act := newAction(t)
	rh := a.NewResultHandler(act, "/out")

	cmd, err := a.BuildCommand("/usr/bin/clang-tidy", act, rh, analyzer.ConfigHandler{
		ClangTidyConfigOverride: "{Checks: 'bugprone-*'}",
	})
	require.NoError(t, err)

	assert.Contains(t, cmd.Argv, "-config={Checks: 'bugprone-*'}")

	for _, arg := range cmd.Argv {
		assert.NotContains(t, arg, "-checks=")
	}
}

func TestExtractConfigOverride(t *testing.T) {
	t.Parallel()

	override, rest := clangtidy.ExtractConfigOverride([]string{
		"-extra-arg=-Wall", "-config={Checks: 'bugprone-*'}", "-p=build",
	})
	assert.Equal(t, "{Checks: 'bugprone-*'}", override)
	assert.Equal(t, []string{"-extra-arg=-Wall", "-p=build"}, rest)

	override, rest = clangtidy.ExtractConfigOverride([]string{"-p=build"})
	assert.Empty(t, override)
	assert.Equal(t, []string{"-p=build"}, rest)
}

func TestBuildCommand_IncludesTargetAndStandard(t *testing.T) {
	t.Parallel()

	a := clangtidy.New()
	act, err := action.New(action.Fields{
		OriginalCommand: "gcc -c a.c -o a.o",
		Directory:       "/p",
		Source:          "/p/a.c",
		Target:          "x86_64-unknown-linux-gnu",
		DefaultStandard: "-std=gnu17",
		Kind:            action.KindCompile,
	})
	require.NoError(t, err)

	rh := a.NewResultHandler(act, "/out")
	cmd, err := a.BuildCommand("/usr/bin/clang-tidy", act, rh, analyzer.ConfigHandler{})
	require.NoError(t, err)

	assert.Contains(t, cmd.Argv, "-target")
	assert.Contains(t, cmd.Argv, "x86_64-unknown-linux-gnu")
	assert.Contains(t, cmd.Argv, "-std=gnu17")
}
