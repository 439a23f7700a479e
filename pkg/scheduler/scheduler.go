// Package scheduler runs the main analysis phase: a fixed-size worker pool
// that invokes one analyzer per Action, routes each outcome through
// pkg/report, and aggregates per-analyzer run metadata, per spec.md §4.6.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer/clangsa"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/procsup"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/report"

	"github.com/Sumatoshi-tech/codefang-analyze/internal/observability"
)

// Task is one scheduled analyzer invocation. Bin is the analyzer binary
// path already resolved (and version-checked) by the caller via
// Adapter.ResolveBinary/CheckCompatible before scheduling.
type Task struct {
	Action   *action.Action
	Analyzer analyzer.Adapter
	Config   analyzer.ConfigHandler
	Bin      string
}

// TaskResult is a completed task's outcome, per spec.md §4.6's "task
// return value" tuple.
type TaskResult struct {
	ReturnCode int
	Skipped    bool
	Reanalyzed bool
	Analyzer   string
	Artifact   *string
	Source     string
	Succeeded  bool
}

// ProgressCounters are two lock-free monotonic counters exposed to the
// observability progress-gauge callback, per spec.md §5's ordering
// guarantee.
type ProgressCounters struct {
	Checked atomic.Int64
	Total   atomic.Int64
}

// RunConfig configures one Run.
type RunConfig struct {
	Jobs                     int
	OutputDir                string
	Timeout                  time.Duration
	RetryWithoutCTU          bool
	GenerateReproducerAlways bool
	Progress                 *ProgressCounters
	BuildActionMap           *action.Map
	CompilerInfoPath         string
	CaptureOutput            bool
	// Skipped is the number of actions the caller pre-filtered before
	// scheduling; it is folded into the run metadata, never re-counted
	// here.
	Skipped             int
	ReproducerSizeLimit uint64
	Logger              *slog.Logger
	Metrics             *observability.AnalysisMetrics
}

// Summary aggregates a Run's outcome.
type Summary struct {
	Results  []TaskResult
	Metadata *report.Metadata
	Skipped  int
}

// ErrInterrupted is returned by Run when ctx is cancelled before every
// task completes; the caller should translate it into exit code
// 128+signal per spec.md §5.
var ErrInterrupted = fmt.Errorf("scheduler: run interrupted")

// handleRegistry tracks every subprocess Handle currently in flight, so a
// top-level interrupt can kill each process group directly:
// exec.CommandContext's default Cancel hook only signals the direct
// child, not the process group procsup.Spawn creates with Setpgid.
type handleRegistry struct {
	mu      sync.Mutex
	handles map[*procsup.Handle]struct{}
}

func newHandleRegistry() *handleRegistry {
	return &handleRegistry{handles: make(map[*procsup.Handle]struct{})}
}

func (r *handleRegistry) add(h *procsup.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handles[h] = struct{}{}
}

func (r *handleRegistry) remove(h *procsup.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handles, h)
}

// killAll terminates every outstanding handle's process group, per
// spec.md §5's "every in-flight subprocess tree to be killed" and
// Testable Property 9 ("no subprocess ... still alive 15 seconds after
// the signal").
func (r *handleRegistry) killAll(grace time.Duration) {
	r.mu.Lock()
	handles := make([]*procsup.Handle, 0, len(r.handles))

	for h := range r.handles {
		handles = append(handles, h)
	}

	r.mu.Unlock()

	for _, h := range handles {
		_ = h.Kill(grace)
	}
}

// Run executes tasks across a fixed-size worker pool, routing each result
// through pkg/report and folding per-analyzer counters into the returned
// Summary's Metadata, per spec.md §4.6.
func Run(ctx context.Context, tasks []Task, cfg RunConfig) (Summary, error) {
	if cfg.Jobs <= 0 {
		cfg.Jobs = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Progress != nil {
		cfg.Progress.Total.Store(int64(len(tasks)))
	}

	rt := report.NewRouter(cfg.OutputDir)
	rt.CompilerInfoPath = cfg.CompilerInfoPath
	rt.CaptureOutput = cfg.CaptureOutput
	rt.BuildActionMap = cfg.BuildActionMap
	rt.ReproducerSizeLimit = cfg.ReproducerSizeLimit

	results := make([]TaskResult, len(tasks))

	var (
		wg          sync.WaitGroup
		sem         = make(chan struct{}, cfg.Jobs)
		mu          sync.Mutex
		interrupted bool
	)

	registry := newHandleRegistry()
	runDone := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			registry.killAll(procsup.KillGrace)
		case <-runDone:
		}
	}()

	total := len(tasks)

	for i, task := range tasks {
		i, task := i, task

		select {
		case <-ctx.Done():
			mu.Lock()
			interrupted = true
			mu.Unlock()
		default:
		}

		mu.Lock()
		stop := interrupted
		mu.Unlock()

		if stop {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			res := runTask(ctx, rt, task, cfg, logger, registry)
			results[i] = res

			checked := int64(0)
			if cfg.Progress != nil {
				checked = cfg.Progress.Checked.Add(1)
			}

			logProgress(logger, checked, int64(total), task, res)
		}()
	}

	wg.Wait()
	close(runDone)

	if ctx.Err() != nil {
		mu.Lock()
		interrupted = true
		mu.Unlock()
	}

	if err := rt.PruneEmptyDirs(); err != nil {
		return Summary{}, err
	}

	var outcomes []report.TaskOutcome

	for _, r := range results {
		if r.Source == "" {
			continue // slot never ran, due to interrupt before dispatch.
		}

		oc := report.TaskOutcome{
			Analyzer:  r.Analyzer,
			Source:    r.Source,
			Succeeded: r.Succeeded,
			Skipped:   r.Skipped,
		}

		if r.Artifact != nil {
			oc.Artifact = *r.Artifact
		}

		outcomes = append(outcomes, oc)
	}

	meta := &report.Metadata{}
	meta.Finalize(outcomes, cfg.Skipped)

	summary := Summary{Results: results, Metadata: meta, Skipped: cfg.Skipped}

	mu.Lock()
	wasInterrupted := interrupted
	mu.Unlock()

	if wasInterrupted {
		return summary, ErrInterrupted
	}

	return summary, nil
}

func logProgress(logger *slog.Logger, checked, total int64, task Task, res TaskResult) {
	if res.Succeeded {
		logger.Info(fmt.Sprintf("[%d/%d] %s analyzed %s successfully.", checked, total, task.Analyzer.Name(), task.Action.Source()))
		return
	}

	logger.Error(fmt.Sprintf("[%d/%d] %s failed to analyze %s.", checked, total, task.Analyzer.Name(), task.Action.Source()),
		slog.Int("exit_code", res.ReturnCode))
}

// runTask performs steps 1-12 of spec.md §4.6 for one task, including the
// optional CTU-retry-without-CTU pass (step 10).
func runTask(ctx context.Context, rt *report.Router, task Task, cfg RunConfig, logger *slog.Logger, registry *handleRegistry) TaskResult {
	start := time.Now()

	rh := task.Analyzer.NewResultHandler(task.Action, cfg.OutputDir)
	reanalyzed := artifactExists(rh.ArtifactPath())

	attemptCfg := task.Config

	outcome := attempt(ctx, rt, task.Analyzer, task.Bin, task.Action, rh, attemptCfg, cfg, logger, registry)

	if cfg.RetryWithoutCTU && attemptCfg.CTUEnabled && !outcome.success {
		// The first attempt's reproducer stays under its CTU-suffixed
		// name; the retry gets a fresh result handler so its artifact
		// lands at the canonical (non-suffixed) path and overwrites it
		// on success, per spec.md §4.6 step 10.
		retryCfg := attemptCfg
		retryCfg.CTULocalDisabled = true

		retryRH := task.Analyzer.NewResultHandler(task.Action, cfg.OutputDir)
		retryOutcome := attempt(ctx, rt, task.Analyzer, task.Bin, task.Action, retryRH, retryCfg, cfg, logger, registry)

		if retryOutcome.success {
			outcome = retryOutcome
			rh = retryRH
		}
	}

	artifactRecorded := rh.ArtifactPath()

	result := TaskResult{
		ReturnCode: outcome.returnCode,
		Reanalyzed: reanalyzed,
		Analyzer:   task.Analyzer.Name(),
		Source:     task.Action.Source(),
		Succeeded:  outcome.success,
	}

	if outcome.success {
		result.Artifact = &artifactRecorded
	}

	if cfg.Metrics != nil {
		res := "failed"
		if outcome.success {
			res = "success"
		} else if outcome.returnCode == -1 {
			res = "timed_out"
		}

		cfg.Metrics.RecordTask(ctx, observability.TaskOutcome{
			Analyzer: task.Analyzer.Name(),
			Result:   res,
			Seconds:  time.Since(start).Seconds(),
		})

		if outcome.returnCode == -1 {
			cfg.Metrics.RecordWatchdogStall(ctx, task.Analyzer.Name())
		}
	}

	return result
}

type attemptOutcome struct {
	success    bool
	returnCode int
	stdout     []byte
	stderr     []byte
}

// attempt runs one spawn/wait/postprocess/route cycle: steps 3-9 of
// spec.md §4.6. The spawned Handle is registered for the duration of the
// wait so a top-level interrupt can kill its process group even while
// this task is still running.
func attempt(ctx context.Context, rt *report.Router, ad analyzer.Adapter, bin string, act *action.Action, rh analyzer.ResultHandler, acfg analyzer.ConfigHandler, cfg RunConfig, logger *slog.Logger, registry *handleRegistry) attemptOutcome {
	binCmd, err := ad.BuildCommand(bin, act, rh, acfg)
	if err != nil {
		logger.Error("build analyzer command failed", slog.String("source", act.Source()), slog.String("error", err.Error()))

		return attemptOutcome{success: false, returnCode: -1}
	}

	h, err := procsup.Spawn(ctx, logger, procsup.Spec{
		Argv:    binCmd.Argv,
		Dir:     binCmd.Dir,
		Env:     binCmd.Env,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		logger.Error("spawn analyzer failed", slog.String("source", act.Source()), slog.String("error", err.Error()))

		return attemptOutcome{success: false, returnCode: -1}
	}

	registry.add(h)
	defer registry.remove(h)

	res, err := h.Wait()

	stdout, stderr := res.Stdout, res.Stderr
	returnCode := res.ReturnCode

	if res.Killed {
		stderr = append([]byte("analysis timed out: killed by watchdog\n"), stderr...)
	}

	if err != nil && !res.Killed {
		logger.Error("wait analyzer failed", slog.String("source", act.Source()), slog.String("error", err.Error()))
	}

	rh.SetOutcome(returnCode, stdout, stderr)

	class := report.FailureClassFor(returnCode)
	success := class == report.ClassSuccess

	if success {
		if rerr := rt.RouteSuccess(ctx, act, rh, stdout, stderr); rerr != nil {
			logger.Error("route success failed", slog.String("source", act.Source()), slog.String("error", rerr.Error()))

			return attemptOutcome{success: false, returnCode: returnCode, stdout: stdout, stderr: stderr}
		}

		if ad.Name() == clangsa.Name && acfg.CTUEnabled {
			if rerr := writeCTUConnections(rt, act, stdout, stderr); rerr != nil {
				logger.Error("write ctu connections failed", slog.String("source", act.Source()), slog.String("error", rerr.Error()))
			}
		}

		if cfg.GenerateReproducerAlways {
			mentioned := ad.MentionedFiles(stdout, stderr)
			if _, rerr := rt.RouteReproducer(ctx, act, rh, binCmd.Argv, returnCode, stdout, stderr, mentioned, class, ""); rerr != nil {
				logger.Error("route reproducer failed", slog.String("source", act.Source()), slog.String("error", rerr.Error()))
			}
		}

		return attemptOutcome{success: true, returnCode: returnCode, stdout: stdout, stderr: stderr}
	}

	mentioned := ad.MentionedFiles(stdout, stderr)

	ctuSuffix := ""
	if acfg.CTUEnabled && !acfg.CTULocalDisabled {
		ctuSuffix = "_ctu"
	}

	if _, rerr := rt.RouteFailure(ctx, act, rh, binCmd.Argv, returnCode, stdout, stderr, mentioned, class, ctuSuffix); rerr != nil {
		logger.Error("route failure failed", slog.String("source", act.Source()), slog.String("error", rerr.Error()))
	}

	if cfg.Metrics != nil {
		cfg.Metrics.RecordReproducer(ctx, ad.Name())
	}

	return attemptOutcome{success: false, returnCode: returnCode, stdout: stdout, stderr: stderr}
}

func artifactExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// writeCTUConnections writes the AST-file references a clangsa
// invocation's combined stdout/stderr mentions to
// ctu_connections/<action-key>, per spec.md §4.6 step 11.
func writeCTUConnections(rt *report.Router, act *action.Action, stdout, stderr []byte) error {
	refs := clangsa.ExtractASTReferences(stdout, stderr)

	path, err := rt.CTUConnectionPath(action.Key(act))
	if err != nil {
		return err
	}

	return os.WriteFile(path, []byte(strings.Join(refs, "\n")+"\n"), 0o644) //nolint:gosec // report artifact, not secret.
}
