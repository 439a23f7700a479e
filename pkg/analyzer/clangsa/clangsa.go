// Package clangsa adapts the Clang Static Analyzer to the uniform
// analyzer.Adapter contract: --analyze invocation, per-checker
// -analyzer-checker=/-analyzer-disable-checker= flags, CTU flags when a
// cross-translation-unit pre-pass has populated a fn-map, and the
// Z3/Z3-refutation mutually exclusive backends.
package clangsa

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/checkers"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/procsup"
)

// Name is this adapter's stable identifier.
const Name = "clangsa"

var binaryPattern = regexp.MustCompile(`^clang(-\d+(\.\d+)?)?$`)

// Adapter implements analyzer.Adapter for the Clang Static Analyzer.
type Adapter struct{}

// New returns a clangsa Adapter.
func New() *Adapter { return &Adapter{} }

// Name implements analyzer.Adapter.
func (Adapter) Name() string { return Name }

// ResolveBinary implements analyzer.Adapter.
func (Adapter) ResolveBinary(configuredName string) (string, error) {
	return analyzer.ResolveVersionedBinary(configuredName, binaryPattern)
}

// VersionShort implements analyzer.Adapter.
func (Adapter) VersionShort(ctx context.Context, bin string) (analyzer.Version, error) {
	long, err := runVersion(ctx, bin)
	if err != nil {
		return analyzer.Version{}, err
	}

	return analyzer.ParseVersion(long)
}

// VersionLong implements analyzer.Adapter.
func (Adapter) VersionLong(ctx context.Context, bin string) (string, error) {
	return runVersion(ctx, bin)
}

func runVersion(ctx context.Context, bin string) (string, error) {
	h, err := procsup.Spawn(ctx, nil, procsup.Spec{Argv: []string{bin, "--version"}})
	if err != nil {
		return "", fmt.Errorf("clangsa: spawn --version: %w", err)
	}

	res, err := h.Wait()
	if err != nil {
		return "", fmt.Errorf("clangsa: --version: %w", err)
	}

	return string(res.Stdout), nil
}

// CheckCompatible implements analyzer.Adapter: any discoverable clang is
// usable.
func (Adapter) CheckCompatible(_ analyzer.Version) error { return nil }

var checkerLineRE = regexp.MustCompile(`^\s*(\S+)\s+(.*)$`)

// DiscoverCheckers implements analyzer.Adapter by invoking
// "clang -cc1 -analyzer-checker-help".
func (Adapter) DiscoverCheckers(ctx context.Context, bin string) ([]checkers.Checker, error) {
	h, err := procsup.Spawn(ctx, nil, procsup.Spec{Argv: []string{bin, "-cc1", "-analyzer-checker-help"}})
	if err != nil {
		return nil, fmt.Errorf("clangsa: spawn checker-help: %w", err)
	}

	res, err := h.Wait()
	if err != nil {
		return nil, fmt.Errorf("clangsa: checker-help: %w", err)
	}

	return parseCheckerHelp(res.Stdout), nil
}

func parseCheckerHelp(stdout []byte) []checkers.Checker {
	var out []checkers.Checker

	for _, line := range strings.Split(string(stdout), "\n") {
		m := checkerLineRE.FindStringSubmatch(line)
		if m == nil || !strings.Contains(m[1], ".") {
			continue
		}

		out = append(out, checkers.Checker{Name: m[1], Description: strings.TrimSpace(m[2])})
	}

	return out
}

// BuildCommand implements analyzer.Adapter per spec.md §4.4's clangsa
// notes.
func (Adapter) BuildCommand(bin string, act *action.Action, rh analyzer.ResultHandler, cfg analyzer.ConfigHandler) (analyzer.Command, error) {
	if err := cfg.Validate(); err != nil {
		return analyzer.Command{}, fmt.Errorf("clangsa: %w", err)
	}

	argv := []string{bin, "--analyze", "-Qunused-arguments", "-Xclang", "-analyzer-output=plist-multi-file"}

	argv = appendCheckerFlags(argv, cfg.Registry)
	argv = appendCTUFlags(argv, act, cfg)
	argv = appendZ3Flags(argv, cfg)

	if act.Target() != "" {
		argv = append(argv, "-target", act.Target())
	}

	if act.DefaultStandard() != "" {
		argv = append(argv, act.DefaultStandard())
	}

	argv = append(argv, act.CompilerIncludes()...)
	argv = append(argv, act.AnalyzerOptions()...)
	argv = append(argv, cfg.ExtraArgs...)
	argv = append(argv, "-o", rh.ArtifactPath())
	argv = append(argv, act.Source())

	return analyzer.Command{Argv: argv, Dir: act.Directory()}, nil
}

func appendCheckerFlags(argv []string, reg *checkers.Registry) []string {
	if reg == nil {
		return argv
	}

	for _, name := range reg.EnabledNames() {
		argv = append(argv, "-Xclang", "-analyzer-checker="+name)
	}

	for _, name := range reg.DisabledNames() {
		argv = append(argv, "-Xclang", "-analyzer-disable-checker="+name)
	}

	return argv
}

func appendCTUFlags(argv []string, act *action.Action, cfg analyzer.ConfigHandler) []string {
	if cfg.CTUDir == "" || !cfg.CTUEnabled || cfg.CTULocalDisabled {
		return argv
	}

	ctuTripleDir := filepath.Join(cfg.CTUDir, act.Target())

	return append(argv,
		"-Xclang", "-analyzer-config",
		"-Xclang", "experimental-enable-naive-ctu-analysis=true",
		"-Xclang", "-analyzer-config",
		"-Xclang", "ctu-dir="+ctuTripleDir,
	)
}

func appendZ3Flags(argv []string, cfg analyzer.ConfigHandler) []string {
	switch {
	case cfg.Z3:
		return append(argv, "-Xclang", "-analyzer-constraints=z3")
	case cfg.Z3Refutation:
		return append(argv, "-Xclang", "-analyzer-config", "-Xclang", "crosscheck-with-z3=true")
	default:
		return argv
	}
}

// ResultHandler is clangsa's ResultHandler: its artifact is already a
// .plist because -analyzer-output=plist-multi-file writes it directly, so
// PostProcess is the inherited no-op.
type ResultHandler struct {
	analyzer.BaseResultHandler
}

// NewResultHandler implements analyzer.Adapter. The artifact name encodes
// the source basename, the analyzer name, and a short hash suffix for
// uniqueness across actions that happen to share a basename, matching the
// "a.c_clangsa_*.plist" shape spec.md's Scenario A expects.
func (Adapter) NewResultHandler(act *action.Action, outputDir string) analyzer.ResultHandler {
	artifact := filepath.Join(outputDir, fmt.Sprintf("%s_%s_%s.plist", filepath.Base(act.Source()), Name, act.Hash()[:8]))

	return &ResultHandler{BaseResultHandler: analyzer.BaseResultHandler{Artifact: artifact, RawOutputDir: outputDir}}
}

// MentionedFiles implements analyzer.Adapter by extracting AST-file and
// source-file references from stdout/stderr, used both for reproducer
// enrichment (spec.md §4.4) and for the ctu_connections involved-files
// list (spec.md §4.6 step 11).
func (Adapter) MentionedFiles(stdout, stderr []byte) []string {
	return analyzer.ExtractMentionedFiles(stdout, stderr)
}

// astReferenceRE matches AST-dump paths embedded in clangsa's CTU stdout,
// used by the scheduler to build ctu_connections/<action-key>.
var astReferenceRE = regexp.MustCompile(`ast/[^\s]+\.ast`)

// ExtractASTReferences returns every AST-dump path mentioned in combined
// stdout+stderr, for spec.md §4.6 step 11.
func ExtractASTReferences(stdout, stderr []byte) []string {
	combined := append(append([]byte{}, stdout...), stderr...)

	return astReferenceRE.FindAllString(string(combined), -1)
}
