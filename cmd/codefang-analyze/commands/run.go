// Package commands provides CLI command implementations for
// codefang-analyze.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer/clangsa"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer/clangtidy"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer/cppcheck"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer/gccanalyzer"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer/infer"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/checkers"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/ctu"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/logparser"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/logparser/skiplist"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/report"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/scheduler"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/version"

	"github.com/Sumatoshi-tech/codefang-analyze/internal/config"
	"github.com/Sumatoshi-tech/codefang-analyze/internal/observability"
)

// runOptions holds the run command's flags.
type runOptions struct {
	configPath        string
	compileDBPath     string
	outputDir         string
	jobs              int
	timeout           int
	skipListPath      string
	analyzersEnabled  []string
	analyzersDisabled []string
	checkerEnable     []string
	checkerDisable    []string
	checkerProfile    string
	enableAll         bool
	strictCheckers    bool
	analyzerArgs      []string
	z3                bool
	z3Refutation      bool
	ctuMode           string
	statsCollect      bool
	reproducerAlways  bool
	reproducerLimit   string
	captureOutput     bool
	compilerInfoPath  string
	otlpEndpoint      string
	otlpInsecure      bool
	diagnosticsAddr   string

	verbose *bool
	quiet   *bool
}

// NewRunCommand builds the "run" command: the driver's single entrypoint
// from a compilation database to a populated output directory, per
// spec.md §4.6's numbered pipeline.
func NewRunCommand(verbose, quiet *bool) *cobra.Command {
	ro := &runOptions{verbose: verbose, quiet: quiet}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run static analysis over a compilation database",
		RunE:  ro.run,
	}

	cmd.Flags().StringVar(&ro.configPath, "config", "", "path to a .codefang-analyze.yaml config file")
	cmd.Flags().StringVar(&ro.compileDBPath, "compile-commands", "compile_commands.json", "path to the compilation database")
	cmd.Flags().StringVarP(&ro.outputDir, "output", "o", "", "output directory (overrides config)")
	cmd.Flags().IntVarP(&ro.jobs, "jobs", "j", 0, "worker pool size (0: use config/CPU count)")
	cmd.Flags().IntVar(&ro.timeout, "timeout", 0, "per-task watchdog timeout in seconds (0: disabled)")
	cmd.Flags().StringVar(&ro.skipListPath, "ignore", "", "skip-list file (overrides config)")
	cmd.Flags().StringSliceVar(&ro.analyzersEnabled, "analyzers", nil, "analyzers to run (default: every discovered, compatible analyzer)")
	cmd.Flags().StringSliceVar(&ro.analyzersDisabled, "disable-analyzer", nil, "analyzers to exclude")
	cmd.Flags().StringArrayVar(&ro.checkerEnable, "enable", nil, "checker, prefix, or profile identifier to enable (repeatable, order matters)")
	cmd.Flags().StringArrayVar(&ro.checkerDisable, "disable", nil, "checker, prefix, or profile identifier to disable (repeatable, order matters)")
	cmd.Flags().StringVar(&ro.checkerProfile, "checker-profile", "", "YAML profile/guideline description file seeding the default profile (overrides config)")
	cmd.Flags().BoolVar(&ro.enableAll, "enable-all", false, "enable every checker except the alpha./debug. families")
	cmd.Flags().BoolVar(&ro.strictCheckers, "strict-checkers", false, "treat an --enable/--disable identifier that resolves to no checker as fatal")
	cmd.Flags().StringArrayVar(&ro.analyzerArgs, "analyzer-arg", nil, "extra argument appended to every analyzer invocation (repeatable; a clang-tidy -config= value overrides the computed -checks)")
	cmd.Flags().BoolVar(&ro.z3, "z3", false, "use the Z3 solver as the Clang SA constraint manager")
	cmd.Flags().BoolVar(&ro.z3Refutation, "z3-refutation", false, "crosscheck Clang SA reports with Z3 (mutually exclusive with --z3)")
	cmd.Flags().StringVar(&ro.reproducerLimit, "reproducer-size-limit", "", "largest source file embedded into a reproducer zip, e.g. 256MB (overrides config)")
	cmd.Flags().StringVar(&ro.ctuMode, "ctu", "", "cross-translation-unit mode: off, collect, analyze (overrides config)")
	cmd.Flags().BoolVar(&ro.statsCollect, "stats", false, "collect Clang SA statistics for relevance filtering")
	cmd.Flags().BoolVar(&ro.reproducerAlways, "generate-reproducer-always", false, "package a reproducer archive even for successful analyses")
	cmd.Flags().BoolVar(&ro.captureOutput, "capture-output", false, "save raw stdout/stderr beside successful artifacts")
	cmd.Flags().StringVar(&ro.compilerInfoPath, "compiler-info-cache", "", "compiler-info cache JSON path, created/updated as compilers are probed")
	cmd.Flags().StringVar(&ro.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address; empty disables export")
	cmd.Flags().BoolVar(&ro.otlpInsecure, "otlp-insecure", false, "disable TLS for the OTLP gRPC connection")
	cmd.Flags().StringVar(&ro.diagnosticsAddr, "diagnostics-addr", "", "listen address for /healthz, /readyz, and /metrics (empty: disabled)")

	return cmd
}

func (ro *runOptions) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(ro.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ro.applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = ro.otlpEndpoint
	obsCfg.OTLPInsecure = ro.otlpInsecure

	if ro.verbose != nil && *ro.verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	if ro.quiet != nil && *ro.quiet {
		obsCfg.LogLevel = slog.LevelError
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownCtx := context.Background()
		if shutdownErr := providers.Shutdown(shutdownCtx); shutdownErr != nil {
			providers.Logger.Error("observability shutdown failed", slog.String("error", shutdownErr.Error()))
		}
	}()

	if ro.diagnosticsAddr != "" {
		diagServer, diagErr := observability.NewDiagnosticsServer(ro.diagnosticsAddr, providers.Tracer, providers.Logger)
		if diagErr != nil {
			return fmt.Errorf("start diagnostics server: %w", diagErr)
		}

		providers.Logger.Info("diagnostics server listening", slog.String("addr", diagServer.Addr()))

		defer func() {
			if closeErr := diagServer.Close(); closeErr != nil {
				providers.Logger.Warn("diagnostics server shutdown failed", slog.String("error", closeErr.Error()))
			}
		}()
	}

	ctx, cancel, receivedSignal := interruptContext(cmd.Context())
	defer cancel()

	exitCode, runErr := ro.execute(ctx, cfg, providers, receivedSignal)
	if runErr != nil {
		providers.Logger.Error("run failed", slog.String("error", runErr.Error()))
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}

	return nil
}

// applyOverrides layers CLI flags over the loaded config, flag-wins, per
// spec.md §4.1's configuration precedence.
func (ro *runOptions) applyOverrides(cfg *config.Config) {
	if ro.outputDir != "" {
		cfg.OutputDir = ro.outputDir
	}

	if ro.jobs > 0 {
		cfg.Jobs = ro.jobs
	}

	if cfg.Jobs <= 0 {
		cfg.Jobs = runtime.NumCPU()
	}

	if ro.timeout > 0 {
		cfg.Timeout = time.Duration(ro.timeout) * time.Second
	}

	if ro.skipListPath != "" {
		cfg.SkipListPath = ro.skipListPath
	}

	if len(ro.analyzersEnabled) > 0 {
		cfg.Analyzers.Enabled = ro.analyzersEnabled
	}

	if len(ro.analyzersDisabled) > 0 {
		cfg.Analyzers.Disabled = ro.analyzersDisabled
	}

	if ro.ctuMode != "" {
		cfg.CTU.Mode = config.CTUMode(ro.ctuMode)
	}

	if ro.statsCollect {
		cfg.Statistics.Collect = true
	}

	if ro.reproducerAlways {
		cfg.Reproducer.Always = true
	}

	if ro.reproducerLimit != "" {
		cfg.Reproducer.SizeLimit = ro.reproducerLimit
	}

	if ro.checkerProfile != "" {
		cfg.Checkers.ProfilePath = ro.checkerProfile
	}

	if ro.enableAll {
		cfg.Checkers.EnableAll = true
	}

	if ro.strictCheckers {
		cfg.Checkers.Strict = true
	}
}

// interruptContext returns a context cancelled on SIGINT/SIGTERM plus a
// function reporting the received signal's number (0 when none arrived),
// so the caller can exit with 128+N for the signal that actually fired.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc, func() int) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var received atomic.Int64

	go func() {
		select {
		case sig := <-sigCh:
			if num, ok := sig.(syscall.Signal); ok {
				received.Store(int64(num))
			}

			cancel()
		case <-ctx.Done():
		}

		signal.Stop(sigCh)
	}()

	return ctx, cancel, func() int { return int(received.Load()) }
}

// execute runs the full pipeline and returns the process exit code per
// spec.md §6's 0/1/128+N convention.
func (ro *runOptions) execute(ctx context.Context, cfg *config.Config, providers observability.Providers, receivedSignal func() int) (int, error) {
	logger := providers.Logger

	if ro.z3 && ro.z3Refutation {
		return 1, analyzer.ErrZ3Conflict
	}

	entries, rawDB, err := loadCompileCommands(ro.compileDBPath)
	if err != nil {
		return 1, err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil { //nolint:gosec // report dir, not secret.
		return 1, fmt.Errorf("create output directory: %w", err)
	}

	// The consumed database is copied beside the results so a stored run
	// can always be traced back to the exact compile commands it analyzed.
	if err := os.WriteFile(filepath.Join(cfg.OutputDir, "compile_cmd.json"), rawDB, 0o644); err != nil { //nolint:gosec
		return 1, fmt.Errorf("copy compilation database: %w", err)
	}

	var skipList *skiplist.SkipList
	if cfg.SkipListPath != "" {
		skipList, err = skiplist.Load(cfg.SkipListPath, logger)
		if err != nil {
			return 1, fmt.Errorf("load skip list: %w", err)
		}
	}

	dedupPolicy, err := newDedupPolicy(cfg.Dedup)
	if err != nil {
		return 1, err
	}

	if ro.compilerInfoPath == "" {
		ro.compilerInfoPath = filepath.Join(cfg.OutputDir, "compiler_info.json")
	}

	compilerCache, err := logparser.LoadCompilerInfoCache(ro.compilerInfoPath)
	if err != nil {
		return 1, fmt.Errorf("load compiler-info cache: %w", err)
	}

	parseResult, err := logparser.Parse(ctx, entries, logparser.ParseOptions{
		Skip:   skipPredicate(skipList),
		Cache:  compilerCache,
		Dedup:  dedupPolicy,
		Logger: logger,
	})
	if err != nil {
		return 1, fmt.Errorf("parse compilation database: %w", err)
	}

	if compilerCache != nil {
		if err := compilerCache.Save(); err != nil {
			logger.Warn("save compiler-info cache failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("parsed compilation database",
		slog.Int("actions", len(parseResult.Actions)), slog.Int("skipped", parseResult.Skipped))

	var profiles checkers.ProfileSet

	if cfg.Checkers.ProfilePath != "" {
		profiles, err = checkers.LoadProfileSet(cfg.Checkers.ProfilePath)
		if err != nil {
			return 1, fmt.Errorf("load checker profiles: %w", err)
		}
	}

	registry, adapters, err := discoverAnalyzers(ctx, cfg, profiles, logger)
	if err != nil {
		return 1, err
	}

	if err := applyCheckerOverrides(registry, ro.checkerDisable, ro.checkerEnable, logger); err != nil {
		return 1, err
	}

	if len(adapters) == 0 {
		return 1, fmt.Errorf("run: no compatible analyzer found on PATH")
	}

	buildActionMap := action.NewMap(parseResult.Actions, func(existing, _ *action.Action) *action.Action { return existing })

	if err := runCTUPrePass(ctx, cfg, adapters, parseResult.Actions, logger); err != nil {
		return 1, err
	}

	metrics, err := observability.NewAnalysisMetrics(providers.Meter)
	if err != nil {
		return 1, fmt.Errorf("init analysis metrics: %w", err)
	}

	progress := &scheduler.ProgressCounters{}

	if reg, regErr := metrics.RegisterProgressCallback(providers.Meter, func() (int64, int64) {
		return progress.Checked.Load(), progress.Total.Load()
	}); regErr == nil && reg != nil {
		defer reg.Unregister() //nolint:errcheck // best-effort metrics cleanup.
	}

	tasks := ro.buildTasks(parseResult.Actions, adapters, registry, cfg)

	sizeLimit, err := cfg.ReproducerSizeLimitBytes()
	if err != nil {
		return 1, err
	}

	beginTime := time.Now()

	summary, runErr := scheduler.Run(ctx, tasks, scheduler.RunConfig{
		Jobs:                     cfg.Jobs,
		OutputDir:                cfg.OutputDir,
		Timeout:                  cfg.Timeout,
		RetryWithoutCTU:          cfg.CTU.RetryWithoutCTU,
		GenerateReproducerAlways: cfg.Reproducer.Always,
		Progress:                 progress,
		BuildActionMap:           buildActionMap,
		CaptureOutput:            ro.captureOutput,
		CompilerInfoPath:         ro.compilerInfoPath,
		Skipped:                  parseResult.Skipped,
		ReproducerSizeLimit:      sizeLimit,
		Logger:                   logger,
		Metrics:                  metrics,
	})

	stamp := metadataStamp{
		Args:             os.Args,
		Begin:            beginTime,
		End:              time.Now(),
		SkipListData:     skipList.Lines(),
		AnalyzerVersions: map[string]string{},
		EnabledCheckers:  map[string][]string{},
	}

	for name, b := range adapters {
		stamp.AnalyzerVersions[name] = b.version.String()
	}

	for name, reg := range registry {
		stamp.EnabledCheckers[name] = reg.EnabledNames()
	}

	if err := writeMetadata(cfg.OutputDir, summary.Metadata, stamp); err != nil {
		return 1, err
	}

	printSummary(summary, ro.quiet != nil && *ro.quiet)

	if runErr != nil {
		if errors.Is(runErr, scheduler.ErrInterrupted) {
			sig := receivedSignal()
			if sig == 0 {
				sig = int(syscall.SIGINT)
			}

			return 128 + sig, nil
		}

		return 1, runErr
	}

	if analyzedCount(summary) == 0 {
		// Completion without a single analyzed TU is the empty-input case
		// of spec.md §6's exit-code table.
		return 1, nil
	}

	return 0, nil
}

func loadCompileCommands(path string) ([]logparser.CompileCommandEntry, []byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied compilation database path.
	if err != nil {
		return nil, nil, fmt.Errorf("read compilation database: %w", err)
	}

	var raw []struct {
		Directory string   `json:"directory"`
		Command   *string  `json:"command"`
		Arguments []string `json:"arguments"`
		File      string   `json:"file"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse compilation database: %w", err)
	}

	entries := make([]logparser.CompileCommandEntry, 0, len(raw))
	for _, r := range raw {
		entries = append(entries, logparser.CompileCommandEntry{
			Command:   r.Command,
			Arguments: r.Arguments,
			Directory: r.Directory,
			File:      r.File,
		})
	}

	return entries, data, nil
}

func skipPredicate(sl *skiplist.SkipList) logparser.SkipPredicate {
	if sl == nil {
		return nil
	}

	return sl.Skip
}

func newDedupPolicy(cfg config.DedupConfig) (logparser.DedupPolicy, error) {
	switch cfg.Policy {
	case config.DedupStrict:
		return logparser.DedupPolicyStrict{}, nil
	case config.DedupAlpha:
		return logparser.DedupPolicyAlpha{}, nil
	case config.DedupRegex:
		return logparser.NewDedupPolicyRegex(cfg.Regex)
	case config.DedupNone:
		fallthrough
	default:
		return logparser.DedupPolicyNone{}, nil
	}
}

// allAdapters lists every analyzer the driver knows how to drive, in a
// fixed, deterministic order.
func allAdapters() []analyzer.Adapter {
	return []analyzer.Adapter{
		clangsa.New(),
		clangtidy.New(),
		cppcheck.New(),
		gccanalyzer.New(),
		infer.New(),
	}
}

// discoverAnalyzers resolves, version-checks, and builds a checker
// Registry for every enabled analyzer that is actually present on PATH.
// Each registry is seeded per spec.md §4.3: every discovered checker at
// default, the default profile's members enabled, then enable-all on
// request.
func discoverAnalyzers(ctx context.Context, cfg *config.Config, profiles checkers.ProfileSet, logger *slog.Logger) (map[string]*checkers.Registry, map[string]analyzerBinding, error) {
	registries := make(map[string]*checkers.Registry)
	bindings := make(map[string]analyzerBinding)

	for _, ad := range allAdapters() {
		name := ad.Name()
		if !cfg.AnalyzerEnabled(name) {
			continue
		}

		bin, err := ad.ResolveBinary(name)
		if err != nil {
			logger.Warn("analyzer not found, skipping", slog.String("analyzer", name), slog.String("error", err.Error()))

			continue
		}

		v, err := ad.VersionShort(ctx, bin)
		if err != nil {
			logger.Warn("analyzer version probe failed, skipping", slog.String("analyzer", name), slog.String("error", err.Error()))

			continue
		}

		if err := ad.CheckCompatible(v); err != nil {
			logger.Warn("analyzer incompatible, skipping", slog.String("analyzer", name), slog.String("version", v.String()), slog.String("error", err.Error()))

			continue
		}

		discovered, err := ad.DiscoverCheckers(ctx, bin)
		if err != nil {
			logger.Warn("checker discovery failed, skipping", slog.String("analyzer", name), slog.String("error", err.Error()))

			continue
		}

		reg := checkers.NewRegistry(discovered)
		reg.SetStrict(cfg.Checkers.Strict)
		reg.ApplyDefaultProfile(profiles)

		if cfg.Checkers.EnableAll {
			reg.EnableAll(false, runtime.GOOS == "darwin")
		}

		if name == clangtidy.Name {
			checkers.AdjustForClangTidy(reg)
		}

		registries[name] = reg
		bindings[name] = analyzerBinding{adapter: ad, bin: bin, version: v}
	}

	return registries, bindings, nil
}

// applyCheckerOverrides replays --disable then --enable against every
// discovered analyzer's Registry. cobra's repeatable string-array flags do
// not preserve relative ordering between two distinct flag names, so
// disables are always resolved before enables; within each flag, the
// command-line order is preserved.
func applyCheckerOverrides(registries map[string]*checkers.Registry, disable, enable []string, logger *slog.Logger) error {
	if len(disable) == 0 && len(enable) == 0 {
		return nil
	}

	var overrides []checkers.Override
	for _, id := range disable {
		overrides = append(overrides, checkers.Override{Identifier: id, Enable: false})
	}

	for _, id := range enable {
		overrides = append(overrides, checkers.Override{Identifier: id, Enable: true})
	}

	for name, reg := range registries {
		warnings, err := reg.Apply(overrides)
		if err != nil {
			return fmt.Errorf("apply checker overrides for %s: %w", name, err)
		}

		for _, w := range warnings {
			logger.Warn("checker override did not resolve", slog.String("analyzer", name), slog.String("identifier", w.Identifier), slog.String("reason", w.Reason))
		}

		// The clang-analyzer-*/clang-diagnostic-* split always holds, even
		// against an explicit user override.
		if name == clangtidy.Name {
			checkers.AdjustForClangTidy(reg)
		}
	}

	return nil
}

type analyzerBinding struct {
	adapter analyzer.Adapter
	bin     string
	version analyzer.Version
}

func runCTUPrePass(ctx context.Context, cfg *config.Config, bindings map[string]analyzerBinding, actions []*action.Action, logger *slog.Logger) error {
	if cfg.CTU.Mode == config.CTUModeOff && !cfg.Statistics.Collect {
		return nil
	}

	saBinding, ok := bindings[clangsa.Name]
	if !ok {
		return nil
	}

	var clangsaActions []*action.Action

	for _, a := range actions {
		if a.AnalyzerName() == "" || a.AnalyzerName() == clangsa.Name {
			clangsaActions = append(clangsaActions, a)
		}
	}

	mode := ctu.ModeAST
	if cfg.CTU.Mode == config.CTUModeAnalyze {
		mode = ctu.ModeInvocation
	}

	collector := ctu.NewCollector(ctu.Config{
		ClangBin:         saBinding.bin,
		ExtDefMapToolBin: "clang-extdef-mapping",
		CTUDir:           cfg.CTU.Dir,
		Mode:             mode,
		Jobs:             cfg.Jobs,
		Statistics: ctu.StatisticsConfig{
			Collect:            cfg.Statistics.Collect,
			MinSampleCount:     cfg.Statistics.MinSampleCount,
			RelevanceThreshold: cfg.Statistics.RelevanceThreshold,
		},
	})

	result, err := collector.Run(ctx, clangsaActions)
	if err != nil {
		return fmt.Errorf("ctu pre-analysis: %w", err)
	}

	logger.Info("ctu pre-analysis complete", slog.Int("actions", result.ActionsHandled), slog.Int("triples", len(result.Triples)))

	return nil
}

func (ro *runOptions) buildTasks(actions []*action.Action, bindings map[string]analyzerBinding, registries map[string]*checkers.Registry, cfg *config.Config) []scheduler.Task {
	tasks := make([]scheduler.Task, 0, len(actions)*len(bindings))

	tidyConfigOverride, tidyArgs := clangtidy.ExtractConfigOverride(ro.analyzerArgs)

	for _, act := range actions {
		for name, b := range bindings {
			acfg := analyzer.ConfigHandler{
				Registry:         registries[name],
				ExtraArgs:        ro.analyzerArgs,
				CTUDir:           cfg.CTU.Dir,
				CTUEnabled:       cfg.CTU.Mode != config.CTUModeOff && name == clangsa.Name,
				CTULocalDisabled: false,
			}

			switch name {
			case clangsa.Name:
				acfg.Z3 = ro.z3
				acfg.Z3Refutation = ro.z3Refutation
			case clangtidy.Name:
				acfg.ExtraArgs = tidyArgs
				acfg.ClangTidyConfigOverride = tidyConfigOverride
			}

			tasks = append(tasks, scheduler.Task{
				Action:   act,
				Analyzer: b.adapter,
				Config:   acfg,
				Bin:      b.bin,
			})
		}
	}

	return tasks
}

// metadataStamp carries the per-run context folded into every tool slice
// of the metadata document before it is written.
type metadataStamp struct {
	Args             []string
	Begin            time.Time
	End              time.Time
	SkipListData     []string
	AnalyzerVersions map[string]string
	EnabledCheckers  map[string][]string
}

func writeMetadata(outputDir string, meta *report.Metadata, stamp metadataStamp) error {
	if meta == nil {
		return nil
	}

	for i := range meta.Tools {
		tool := &meta.Tools[i]
		tool.Command = stamp.Args
		tool.ToolVersion = version.Version
		tool.BeginTime = stamp.Begin
		tool.EndTime = stamp.End
		tool.SkipListData = stamp.SkipListData

		if stats := tool.AnalyzerStatistics[tool.Name]; stats != nil {
			stats.Version = stamp.AnalyzerVersions[tool.Name]
			stats.EnabledCheckers = stamp.EnabledCheckers[tool.Name]
		}
	}

	if err := meta.WriteFile(filepath.Join(outputDir, "metadata.json")); err != nil {
		return err
	}

	// The sidecars' content now lives in the metadata document.
	return meta.RemoveSidecars()
}

// analyzedCount reports how many tasks actually ran, successfully or not.
func analyzedCount(summary scheduler.Summary) int {
	count := 0

	for _, r := range summary.Results {
		if r.Source != "" && !r.Skipped {
			count++
		}
	}

	return count
}

func printSummary(summary scheduler.Summary, quiet bool) {
	if quiet {
		return
	}

	ran := 0
	failed := 0

	for _, r := range summary.Results {
		if r.Source == "" || r.Skipped {
			continue
		}

		ran++

		if !r.Succeeded {
			failed++
		}
	}

	if failed == 0 {
		fmt.Fprintln(os.Stdout, color.GreenString("Analysis finished: %d task(s), 0 failures.", ran))
		return
	}

	fmt.Fprintln(os.Stdout, color.RedString("Analysis finished: %d task(s), %d failure(s).", ran, failed))
}
