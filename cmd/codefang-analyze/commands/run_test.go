package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang-analyze/internal/config"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer/clangsa"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer/clangtidy"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/checkers"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/logparser"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/report"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/scheduler"
)

func TestApplyOverrides_FlagsWinOverConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Jobs:      4,
		OutputDir: "./from-config",
		Timeout:   0,
		CTU:       config.CTUConfig{Mode: config.CTUModeOff},
	}

	ro := &runOptions{
		outputDir: "./from-flag",
		jobs:      8,
		timeout:   30,
		ctuMode:   string(config.CTUModeCollect),
	}

	ro.applyOverrides(cfg)

	assert.Equal(t, "./from-flag", cfg.OutputDir)
	assert.Equal(t, 8, cfg.Jobs)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, config.CTUModeCollect, cfg.CTU.Mode)
}

func TestApplyOverrides_ZeroJobsFallsBackToCPUCount(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Jobs: 0, OutputDir: "./out"}
	ro := &runOptions{}

	ro.applyOverrides(cfg)

	assert.Positive(t, cfg.Jobs)
}

func TestApplyOverrides_LeavesConfigValuesWhenFlagsUnset(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Jobs: 4, OutputDir: "./from-config", Timeout: 5 * time.Second}
	ro := &runOptions{}

	ro.applyOverrides(cfg)

	assert.Equal(t, "./from-config", cfg.OutputDir)
	assert.Equal(t, 4, cfg.Jobs)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestNewDedupPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.DedupConfig
		want    logparser.DedupPolicy
		wantErr bool
	}{
		{name: "none", cfg: config.DedupConfig{Policy: config.DedupNone}, want: logparser.DedupPolicyNone{}},
		{name: "empty defaults to none", cfg: config.DedupConfig{}, want: logparser.DedupPolicyNone{}},
		{name: "strict", cfg: config.DedupConfig{Policy: config.DedupStrict}, want: logparser.DedupPolicyStrict{}},
		{name: "alpha", cfg: config.DedupConfig{Policy: config.DedupAlpha}, want: logparser.DedupPolicyAlpha{}},
		{name: "regex with invalid pattern errors", cfg: config.DedupConfig{Policy: config.DedupRegex, Regex: "("}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := newDedupPolicy(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadCompileCommands(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "compile_commands.json")
	doc := `[{"directory":"/p","command":"gcc -c a.c -o a.o","file":"a.c"}]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	entries, raw, err := loadCompileCommands(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte(doc), raw)
	assert.Equal(t, "/p", entries[0].Directory)
	assert.Equal(t, "a.c", entries[0].File)
	require.NotNil(t, entries[0].Command)
	assert.Equal(t, "gcc -c a.c -o a.o", *entries[0].Command)
}

func TestLoadCompileCommands_MissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := loadCompileCommands(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestSkipPredicate_NilSkipListNeverSkips(t *testing.T) {
	t.Parallel()

	pred := skipPredicate(nil)
	assert.Nil(t, pred)
}

func TestAnalyzedCount(t *testing.T) {
	t.Parallel()

	ran := scheduler.Summary{Results: []scheduler.TaskResult{
		{Source: "a.c", Succeeded: true},
		{Source: "b.c", Succeeded: false},
		{Source: "c.c", Skipped: true},
		{}, // slot never dispatched
	}}
	assert.Equal(t, 2, analyzedCount(ran))

	assert.Zero(t, analyzedCount(scheduler.Summary{}))
}

func TestWriteMetadata_WritesEvenWhenNoTools(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	err := writeMetadata(dir, &report.Metadata{}, metadataStamp{Args: []string{"codefang-analyze", "run"}})
	require.NoError(t, err)

	data, readErr := os.ReadFile(filepath.Join(dir, "metadata.json"))
	require.NoError(t, readErr)
	assert.Contains(t, string(data), `"version": 2`)
}

func TestWriteMetadata_StampsRunContextAndRemovesSidecars(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	artifact := filepath.Join(dir, "a.c_clangsa.plist")
	require.NoError(t, os.WriteFile(artifact, []byte("<plist/>"), 0o644))
	require.NoError(t, os.WriteFile(artifact+".source", []byte("/p/a.c"), 0o644))

	meta := &report.Metadata{Version: 2, Tools: []report.ToolMetadata{{
		Name:               "clangsa",
		AnalyzerStatistics: map[string]*report.AnalyzerStats{"clangsa": {Successful: 1}},
		ResultSourceFiles:  map[string]string{artifact: "/p/a.c"},
	}}}

	begin := time.Now().Add(-time.Minute)
	stamp := metadataStamp{
		Args:             []string{"codefang-analyze", "run", "--jobs", "4"},
		Begin:            begin,
		End:              time.Now(),
		SkipListData:     []string{"-*/vendor/*"},
		AnalyzerVersions: map[string]string{"clangsa": "17.0.1"},
		EnabledCheckers:  map[string][]string{"clangsa": {"core.DivideZero"}},
	}

	err := writeMetadata(dir, meta, stamp)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "clangsa")
	assert.Contains(t, string(data), "--jobs")
	assert.Contains(t, string(data), "17.0.1")
	assert.Contains(t, string(data), "core.DivideZero")
	assert.Contains(t, string(data), "-*/vendor/*")

	_, statErr := os.Stat(artifact + ".source")
	assert.True(t, os.IsNotExist(statErr), "sidecar should be removed once folded into metadata")
}

func TestAllAdapters_NamesAreUniqueAndStable(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, ad := range allAdapters() {
		name := ad.Name()
		require.False(t, seen[name], "duplicate adapter name %q", name)
		seen[name] = true
	}

	assert.Len(t, seen, 5)
}

func TestAdapterByName(t *testing.T) {
	t.Parallel()

	ad := adapterByName("clangsa")
	require.NotNil(t, ad)
	assert.Equal(t, "clangsa", ad.Name())

	assert.Nil(t, adapterByName("not-a-real-analyzer"))
}

func TestAdapterNamesJoined_ListsEveryAdapter(t *testing.T) {
	t.Parallel()

	joined := adapterNamesJoined()
	for _, ad := range allAdapters() {
		assert.Contains(t, joined, ad.Name())
	}
}

func TestApplyCheckerOverrides_DisablesThenEnables(t *testing.T) {
	t.Parallel()

	reg := checkers.NewRegistry([]checkers.Checker{{Name: "core.NullDereference"}, {Name: "core.DivideZero"}})
	reg.EnableAll(false, false)

	registries := map[string]*checkers.Registry{"clangsa": reg}

	err := applyCheckerOverrides(registries, []string{"checker:core.NullDereference"}, []string{"checker:core.DivideZero"}, nil)
	require.NoError(t, err)

	assert.Equal(t, checkers.StateDisabled, reg.State("core.NullDereference"))
	assert.Equal(t, checkers.StateEnabled, reg.State("core.DivideZero"))
}

func TestApplyCheckerOverrides_CannotUndoClangTidyAdjustment(t *testing.T) {
	t.Parallel()

	reg := checkers.NewRegistry([]checkers.Checker{
		{Name: "clang-analyzer-core.NullDereference"},
		{Name: "clang-diagnostic-unused-variable"},
		{Name: "bugprone-use-after-move"},
	})
	checkers.AdjustForClangTidy(reg)

	registries := map[string]*checkers.Registry{clangtidy.Name: reg}

	err := applyCheckerOverrides(registries,
		[]string{"checker:clang-diagnostic-unused-variable"},
		[]string{"checker:clang-analyzer-core.NullDereference"},
		slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.Equal(t, checkers.StateDisabled, reg.State("clang-analyzer-core.NullDereference"))
	assert.Equal(t, checkers.StateEnabled, reg.State("clang-diagnostic-unused-variable"))
}

func TestApplyCheckerOverrides_NoOverridesIsNoop(t *testing.T) {
	t.Parallel()

	reg := checkers.NewRegistry([]checkers.Checker{{Name: "core.NullDereference"}})
	reg.EnableAll(false, false)

	registries := map[string]*checkers.Registry{"clangsa": reg}

	err := applyCheckerOverrides(registries, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, checkers.StateEnabled, reg.State("core.NullDereference"))
}

func TestBuildTasks_WiresAnalyzerSpecificConfig(t *testing.T) {
	t.Parallel()

	act, err := action.New(action.Fields{OriginalCommand: "gcc -c a.c", Directory: "/p", Source: "/p/a.c"})
	require.NoError(t, err)

	bindings := map[string]analyzerBinding{
		clangsa.Name:   {adapter: clangsa.New(), bin: "/usr/bin/clang"},
		clangtidy.Name: {adapter: clangtidy.New(), bin: "/usr/bin/clang-tidy"},
	}

	cfg := &config.Config{CTU: config.CTUConfig{Mode: config.CTUModeOff}}
	ro := &runOptions{
		analyzerArgs: []string{"-config={Checks: 'bugprone-*'}", "-fno-color-diagnostics"},
		z3:           true,
	}

	tasks := ro.buildTasks([]*action.Action{act}, bindings, map[string]*checkers.Registry{}, cfg)
	require.Len(t, tasks, 2)

	for _, task := range tasks {
		switch task.Analyzer.Name() {
		case clangsa.Name:
			assert.True(t, task.Config.Z3)
			assert.Equal(t, []string{"-config={Checks: 'bugprone-*'}", "-fno-color-diagnostics"}, task.Config.ExtraArgs)
		case clangtidy.Name:
			assert.Equal(t, "{Checks: 'bugprone-*'}", task.Config.ClangTidyConfigOverride)
			assert.Equal(t, []string{"-fno-color-diagnostics"}, task.Config.ExtraArgs)
		}
	}
}

func TestConfigOptions_CoversEveryTopLevelKey(t *testing.T) {
	t.Parallel()

	opts := configOptions()
	names := make(map[string]bool, len(opts))

	for _, o := range opts {
		names[o.Name] = true
		assert.NotEmpty(t, o.Flag)
		assert.NotEmpty(t, o.Description)
	}

	for _, want := range []string{"jobs", "output_dir", "timeout", "ctu.mode", "dedup.policy", "analyzers.enabled"} {
		assert.True(t, names[want], "missing configOptions entry for %q", want)
	}
}
