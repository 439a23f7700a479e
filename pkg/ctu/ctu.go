// Package ctu implements the Clang SA pre-analysis scheduler (spec.md
// §4.5): a worker pool that, per action, emits an AST dump or invocation
// entry, invokes the extdef-mapping tool, and optionally collects
// statistics, then merges every triple's fn-map fragments into one file
// and removes the scratch directory. It runs only for clangsa actions
// when CTU collection or statistics collection is requested.
package ctu

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/procsup"
)

// Mode selects how the AST/invocation emission step writes its per-action
// artifact.
type Mode int

// Modes.
const (
	// ModeAST serializes a full AST dump per action under ast/.
	ModeAST Mode = iota
	// ModeInvocation appends the compile argv to invocation-list.yml,
	// deferring AST generation to analysis time ("on-demand" parsing).
	ModeInvocation
)

const (
	tmpFnMapDirName    = "tmp-fnmap"
	finalFnMapName     = "externalFnMap.txt"
	invocationListName = "invocation-list.yml"
)

// Config configures one Collector run.
type Config struct {
	ClangBin         string
	ExtDefMapToolBin string
	CTUDir           string
	Mode             Mode
	Jobs             int
	Statistics       StatisticsConfig
}

// StatisticsConfig configures the optional statistics-collection pre-pass.
type StatisticsConfig struct {
	Collect            bool
	MinSampleCount     int
	RelevanceThreshold float64
}

// Result summarizes one Collector run.
type Result struct {
	Triples        []string
	ActionsHandled int
}

// Collector runs the Clang SA pre-analysis pre-pass.
type Collector struct {
	cfg Config
}

// NewCollector builds a Collector from cfg.
func NewCollector(cfg Config) *Collector {
	if cfg.Jobs <= 0 {
		cfg.Jobs = 1
	}

	return &Collector{cfg: cfg}
}

// Run executes the pre-analysis pre-pass over actions: AST/invocation
// emission plus extdef mapping per action (concurrently, each task
// writing to a unique UUID-suffixed output file), then a single-writer
// merge per triple after the pool drains.
func (c *Collector) Run(ctx context.Context, actions []*action.Action) (Result, error) {
	triples := make(map[string]struct{})
	tasks := make([]func(ctx context.Context) error, 0, len(actions))

	for _, act := range actions {
		act := act
		triples[act.Target()] = struct{}{}

		tasks = append(tasks, func(ctx context.Context) error {
			return c.runOne(ctx, act)
		})
	}

	if err := procsup.NewPool(c.cfg.Jobs).Run(ctx, tasks); err != nil {
		return Result{}, err
	}

	sortedTriples := make([]string, 0, len(triples))
	for t := range triples {
		sortedTriples = append(sortedTriples, t)
	}

	sort.Strings(sortedTriples)

	for _, triple := range sortedTriples {
		if err := c.mergeFnMaps(triple); err != nil {
			return Result{}, fmt.Errorf("ctu: merge fn-map for %s: %w", triple, err)
		}
	}

	if c.cfg.Statistics.Collect {
		if err := c.postprocessStatistics(); err != nil {
			return Result{}, fmt.Errorf("ctu: postprocess statistics: %w", err)
		}
	}

	return Result{Triples: sortedTriples, ActionsHandled: len(actions)}, nil
}

func (c *Collector) runOne(ctx context.Context, act *action.Action) error {
	tripleDir := filepath.Join(c.cfg.CTUDir, act.Target())

	if err := c.emit(tripleDir, act); err != nil {
		return fmt.Errorf("ctu: emit %s: %w", act.Source(), err)
	}

	if err := c.extDefMap(ctx, tripleDir, act); err != nil {
		return fmt.Errorf("ctu: extdef map %s: %w", act.Source(), err)
	}

	if c.cfg.Statistics.Collect {
		if err := c.collectStatistics(ctx, act); err != nil {
			return fmt.Errorf("ctu: statistics %s: %w", act.Source(), err)
		}
	}

	return nil
}

// emit writes the per-action AST dump or invocation-list entry, per
// spec.md §4.5 step 1.
func (c *Collector) emit(tripleDir string, act *action.Action) error {
	switch c.cfg.Mode {
	case ModeAST:
		return c.emitAST(tripleDir, act)
	default:
		return c.emitInvocation(tripleDir, act)
	}
}

func (c *Collector) emitAST(tripleDir string, act *action.Action) error {
	astDir := filepath.Join(tripleDir, "ast")
	if err := os.MkdirAll(astDir, 0o755); err != nil { //nolint:gosec // report dir, not secret.
		return fmt.Errorf("mkdir %s: %w", astDir, err)
	}

	astPath := astPathFor(astDir, act.Source())
	if err := os.MkdirAll(filepath.Dir(astPath), 0o755); err != nil { //nolint:gosec // report dir, not secret.
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(astPath), err)
	}

	argv := append([]string{c.cfg.ClangBin, "-emit-ast", "-D__clang_analyzer__", "-w"}, act.AnalyzerOptions()...)
	argv = append(argv, "-o", astPath, act.Source())

	return runAndDiscard(argv, act.Directory())
}

func (c *Collector) emitInvocation(tripleDir string, act *action.Action) error {
	if err := os.MkdirAll(tripleDir, 0o755); err != nil { //nolint:gosec // report dir, not secret.
		return fmt.Errorf("mkdir %s: %w", tripleDir, err)
	}

	argv := append([]string{c.cfg.ClangBin, "-D__clang_analyzer__", "-w"}, act.AnalyzerOptions()...)
	argv = append(argv, act.Source())

	line := fmt.Sprintf("%s: %s\n", act.Source(), strings.Join(argv, " "))

	f, err := os.OpenFile(filepath.Join(tripleDir, invocationListName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // report artifact, not secret.
	if err != nil {
		return fmt.Errorf("open invocation list: %w", err)
	}
	defer f.Close()

	_, err = f.WriteString(line)
	if err != nil {
		return fmt.Errorf("append invocation list: %w", err)
	}

	return nil
}

// astPathFor mirrors the absolute source path under astDir, per spec.md
// §6's "ast/... mirroring absolute source paths".
func astPathFor(astDir, source string) string {
	stripped := strings.TrimPrefix(source, string(filepath.Separator))

	return filepath.Join(astDir, stripped+".ast")
}

// extDefMap invokes the extdef-mapping tool and writes its postprocessed
// output to a unique fragment file, per spec.md §4.5 step 2.
func (c *Collector) extDefMap(ctx context.Context, tripleDir string, act *action.Action) error {
	fragDir := filepath.Join(tripleDir, tmpFnMapDirName)
	if err := os.MkdirAll(fragDir, 0o755); err != nil { //nolint:gosec // report dir, not secret.
		return fmt.Errorf("mkdir %s: %w", fragDir, err)
	}

	argv := append([]string{c.cfg.ExtDefMapToolBin}, act.AnalyzerOptions()...)
	argv = append(argv, act.Source())

	h, err := procsup.Spawn(ctx, nil, procsup.Spec{Argv: argv, Dir: act.Directory()})
	if err != nil {
		return fmt.Errorf("spawn extdef-mapping: %w", err)
	}

	res, err := h.Wait()
	if err != nil {
		return fmt.Errorf("extdef-mapping: %w", err)
	}

	lines := postprocessExtDefLines(string(res.Stdout), c.cfg.Mode, act.Source())

	fragPath := filepath.Join(fragDir, uuid.NewString()+".map")

	return os.WriteFile(fragPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644) //nolint:gosec // report artifact, not secret.
}

// postprocessExtDefLines rewrites each "<mangled-name> <source-path>" line:
// in AST mode the source path is replaced by its relative AST-dump path;
// in invocation mode the source path is kept as-is, per spec.md §4.5
// step 2.
func postprocessExtDefLines(stdout string, mode Mode, source string) []string {
	var out []string

	stripped := strings.TrimPrefix(source, string(filepath.Separator))
	astRel := filepath.Join("ast", stripped+".ast")

	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		mangled := fields[0]

		if mode == ModeAST {
			out = append(out, mangled+" "+astRel)
		} else {
			out = append(out, mangled+" "+source)
		}
	}

	return out
}

// mergeFnMaps unions every per-action fragment for triple into the final
// fn-map, deduplicating lines, then removes the fragment directory.
func (c *Collector) mergeFnMaps(triple string) error {
	fragDir := filepath.Join(c.cfg.CTUDir, triple, tmpFnMapDirName)

	entries, err := os.ReadDir(fragDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("read fragment dir: %w", err)
	}

	seen := make(map[string]struct{})

	var merged []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		data, readErr := os.ReadFile(filepath.Join(fragDir, e.Name()))
		if readErr != nil {
			return fmt.Errorf("read fragment %s: %w", e.Name(), readErr)
		}

		for _, line := range strings.Split(string(data), "\n") {
			if line == "" {
				continue
			}

			if _, ok := seen[line]; ok {
				continue
			}

			seen[line] = struct{}{}

			merged = append(merged, line)
		}
	}

	sort.Strings(merged)

	finalPath := filepath.Join(c.cfg.CTUDir, triple, finalFnMapName)
	if err := os.WriteFile(finalPath, []byte(strings.Join(merged, "\n")+"\n"), 0o644); err != nil { //nolint:gosec // report artifact, not secret.
		return fmt.Errorf("write merged fn-map: %w", err)
	}

	return os.RemoveAll(fragDir)
}

func runAndDiscard(argv []string, dir string) error {
	h, err := procsup.Spawn(context.Background(), nil, procsup.Spec{Argv: argv, Dir: dir})
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}

	_, err = h.Wait()
	if err != nil {
		return fmt.Errorf("wait: %w", err)
	}

	return nil
}
