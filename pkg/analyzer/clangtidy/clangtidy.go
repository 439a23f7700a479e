// Package clangtidy adapts clang-tidy to the uniform analyzer.Adapter
// contract. Command construction ends with "-- <clang-driver-args>"; a
// user-supplied -config= inside extra arguments takes precedence over the
// computed -checks/-config, per spec.md §4.4.
package clangtidy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/checkers"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/procsup"
)

// Name is this adapter's stable identifier.
const Name = "clang-tidy"

var binaryPattern = regexp.MustCompile(`^clang-tidy(-\d+(\.\d+)?)?$`)

// Adapter implements analyzer.Adapter for clang-tidy.
type Adapter struct{}

// New returns a clang-tidy Adapter.
func New() *Adapter { return &Adapter{} }

// Name implements analyzer.Adapter.
func (Adapter) Name() string { return Name }

// ResolveBinary implements analyzer.Adapter.
func (Adapter) ResolveBinary(configuredName string) (string, error) {
	return analyzer.ResolveVersionedBinary(configuredName, binaryPattern)
}

// VersionShort implements analyzer.Adapter.
func (a Adapter) VersionShort(ctx context.Context, bin string) (analyzer.Version, error) {
	long, err := a.VersionLong(ctx, bin)
	if err != nil {
		return analyzer.Version{}, err
	}

	return analyzer.ParseVersion(long)
}

// VersionLong implements analyzer.Adapter.
func (Adapter) VersionLong(ctx context.Context, bin string) (string, error) {
	h, err := procsup.Spawn(ctx, nil, procsup.Spec{Argv: []string{bin, "--version"}})
	if err != nil {
		return "", fmt.Errorf("clangtidy: spawn --version: %w", err)
	}

	res, err := h.Wait()
	if err != nil {
		return "", fmt.Errorf("clangtidy: --version: %w", err)
	}

	return string(res.Stdout), nil
}

// CheckCompatible implements analyzer.Adapter: any discoverable clang-tidy
// is usable.
func (Adapter) CheckCompatible(_ analyzer.Version) error { return nil }

var checkerNameRE = regexp.MustCompile(`^\s{4}(\S+)\s*$`)

// DiscoverCheckers implements analyzer.Adapter via "clang-tidy --list-checks -checks=*".
func (Adapter) DiscoverCheckers(ctx context.Context, bin string) ([]checkers.Checker, error) {
	h, err := procsup.Spawn(ctx, nil, procsup.Spec{Argv: []string{bin, "--list-checks", "-checks=*"}})
	if err != nil {
		return nil, fmt.Errorf("clangtidy: spawn list-checks: %w", err)
	}

	res, err := h.Wait()
	if err != nil {
		return nil, fmt.Errorf("clangtidy: list-checks: %w", err)
	}

	var out []checkers.Checker

	for _, line := range strings.Split(string(res.Stdout), "\n") {
		if m := checkerNameRE.FindStringSubmatch(line); m != nil {
			out = append(out, checkers.Checker{Name: m[1]})
		}
	}

	return out, nil
}

// BuildCommand implements analyzer.Adapter. AdjustForClangTidy must have
// already been applied to cfg.Registry by the caller before the first
// BuildCommand call for this analyzer, per spec.md §4.3.
func (Adapter) BuildCommand(bin string, act *action.Action, rh analyzer.ResultHandler, cfg analyzer.ConfigHandler) (analyzer.Command, error) {
	argv := []string{bin}

	if cfg.ClangTidyConfigOverride != "" {
		argv = append(argv, "-config="+cfg.ClangTidyConfigOverride)
	} else {
		argv = append(argv, "-checks="+checksExpression(cfg.Registry))
	}

	argv = append(argv, "--export-fixes="+rh.ArtifactPath()+".fixes.yaml")
	argv = append(argv, act.Source())

	argv = append(argv, cfg.ExtraArgs...)
	argv = append(argv, "--")
	argv = append(argv, driverArgs(act)...)

	return analyzer.Command{Argv: argv, Dir: act.Directory()}, nil
}

// ExtractConfigOverride splits a user-supplied -config= value out of extra
// arguments. The override wins over the computed -checks expression; the
// remaining arguments pass through verbatim.
func ExtractConfigOverride(args []string) (string, []string) {
	var override string

	rest := make([]string, 0, len(args))

	for _, a := range args {
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			override = v

			continue
		}

		rest = append(rest, a)
	}

	return override, rest
}

// checksExpression renders the registry's enabled/disabled state as a
// clang-tidy "-checks=" value: "-*" disables everything by default, "+name"
// enables, "-name" disables, replaying the registry's resolved state
// rather than the raw override list so later overrides always win.
func checksExpression(reg *checkers.Registry) string {
	if reg == nil {
		return "-*"
	}

	parts := []string{"-*"}
	for _, name := range reg.EnabledNames() {
		parts = append(parts, "+"+name)
	}

	for _, name := range reg.DisabledNames() {
		parts = append(parts, "-"+name)
	}

	return strings.Join(parts, ",")
}

func driverArgs(act *action.Action) []string {
	var argv []string

	if act.Target() != "" {
		argv = append(argv, "-target", act.Target())
	}

	if act.DefaultStandard() != "" {
		argv = append(argv, act.DefaultStandard())
	}

	argv = append(argv, act.CompilerIncludes()...)
	argv = append(argv, act.AnalyzerOptions()...)

	return argv
}

// ResultHandler renames clang-tidy's stdout capture (the diagnostic text)
// into the canonical artifact during PostProcess, since clang-tidy itself
// has no "-o <report>" flag.
type ResultHandler struct {
	analyzer.BaseResultHandler
}

// NewResultHandler implements analyzer.Adapter.
func (Adapter) NewResultHandler(act *action.Action, outputDir string) analyzer.ResultHandler {
	artifact := filepath.Join(outputDir, fmt.Sprintf("%s_%s_%s.txt", filepath.Base(act.Source()), Name, act.Hash()[:8]))

	return &ResultHandler{BaseResultHandler: analyzer.BaseResultHandler{Artifact: artifact, RawOutputDir: outputDir}}
}

// PostProcess writes the captured stdout (clang-tidy's diagnostic text,
// which surfaces clang-diagnostic-* compiler errors alongside tidy
// findings per spec.md §4.3's AdjustForClangTidy) to the canonical
// artifact path.
func (h *ResultHandler) PostProcess(_ context.Context) error {
	if err := os.WriteFile(h.Artifact, h.Stdout, 0o644); err != nil { //nolint:gosec // report artifact, not secret.
		return fmt.Errorf("clangtidy: write artifact: %w", err)
	}

	return nil
}

// MentionedFiles implements analyzer.Adapter.
func (Adapter) MentionedFiles(stdout, stderr []byte) []string {
	return analyzer.ExtractMentionedFiles(stdout, stderr)
}
