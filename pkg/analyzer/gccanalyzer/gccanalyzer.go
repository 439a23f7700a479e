// Package gccanalyzer adapts GCC's -fanalyzer to the uniform
// analyzer.Adapter contract. Per spec.md §4.4: "-fanalyzer -c -o /dev/null
// -fdiagnostics-format=sarif-stderr", disabled checkers expressed as
// "-Wno-" forms, and a minimum binary version of 13.0.0.
package gccanalyzer

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
const Name = "gcc-analyzer"

var binaryPattern = regexp.MustCompile(`^gcc(-\d+)?$`)

// MinVersion is the minimum GCC version -fanalyzer requires, per spec.md
// §4.4.
var MinVersion = analyzer.Version{13, 0, 0}

// Adapter implements analyzer.Adapter for GCC -fanalyzer.
type Adapter struct{}

// New returns a gcc-analyzer Adapter.
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
		return "", fmt.Errorf("gccanalyzer: spawn --version: %w", err)
	}

	res, err := h.Wait()
	if err != nil {
		return "", fmt.Errorf("gccanalyzer: --version: %w", err)
	}

	return string(res.Stdout), nil
}

// CheckCompatible implements analyzer.Adapter: requires >= 13.0.0.
func (Adapter) CheckCompatible(v analyzer.Version) error {
	if !v.AtLeast(MinVersion) {
		return fmt.Errorf("%w: gcc %s requires >= %s for -fanalyzer", analyzer.ErrIncompatibleVersion, v, MinVersion)
	}

	return nil
}

// DiscoverCheckers implements analyzer.Adapter. GCC -fanalyzer's checkers
// are its -Wanalyzer-* warning flags, enumerated via --help=warnings.
func (Adapter) DiscoverCheckers(ctx context.Context, bin string) ([]checkers.Checker, error) {
	h, err := procsup.Spawn(ctx, nil, procsup.Spec{Argv: []string{bin, "--help=warnings"}})
	if err != nil {
		return nil, fmt.Errorf("gccanalyzer: spawn help: %w", err)
	}

	res, err := h.Wait()
	if err != nil {
		return nil, fmt.Errorf("gccanalyzer: help: %w", err)
	}

	var out []checkers.Checker

	for _, line := range strings.Split(string(res.Stdout), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "-Wanalyzer-") {
			continue
		}

		out = append(out, checkers.Checker{Name: strings.TrimPrefix(fields[0], "-W")})
	}

	return out, nil
}

// BuildCommand implements analyzer.Adapter.
func (Adapter) BuildCommand(bin string, act *action.Action, _ analyzer.ResultHandler, cfg analyzer.ConfigHandler) (analyzer.Command, error) {
	argv := []string{bin, "-fanalyzer", "-c", "-o", "/dev/null", "-fdiagnostics-format=sarif-stderr"}

	if cfg.Registry != nil {
		for _, name := range cfg.Registry.DisabledNames() {
			argv = append(argv, "-Wno-"+name)
		}
	}

	if act.DefaultStandard() != "" {
		argv = append(argv, act.DefaultStandard())
	}

	argv = append(argv, act.CompilerIncludes()...)
	argv = append(argv, act.AnalyzerOptions()...)
	argv = append(argv, cfg.ExtraArgs...)
	argv = append(argv, act.Source())

	return analyzer.Command{Argv: argv, Dir: act.Directory()}, nil
}

// ResultHandler writes captured stderr (the sarif-stderr diagnostic
// stream) to the canonical artifact during PostProcess.
type ResultHandler struct {
	analyzer.BaseResultHandler
}

// NewResultHandler implements analyzer.Adapter.
func (Adapter) NewResultHandler(act *action.Action, outputDir string) analyzer.ResultHandler {
	artifact := filepath.Join(outputDir, fmt.Sprintf("%s_%s_%s.sarif", filepath.Base(act.Source()), Name, act.Hash()[:8]))

	return &ResultHandler{BaseResultHandler: analyzer.BaseResultHandler{Artifact: artifact, RawOutputDir: outputDir}}
}

// PostProcess implements analyzer.ResultHandler.
func (h *ResultHandler) PostProcess(_ context.Context) error {
	if err := os.WriteFile(h.Artifact, h.Stderr, 0o644); err != nil { //nolint:gosec // report artifact, not secret.
		return fmt.Errorf("gccanalyzer: write artifact: %w", err)
	}

	return nil
}

// MentionedFiles implements analyzer.Adapter.
func (Adapter) MentionedFiles(stdout, stderr []byte) []string {
	return analyzer.ExtractMentionedFiles(stdout, stderr)
}
