// Package infer adapts Facebook Infer (the procedural analyzer) to the
// uniform analyzer.Adapter contract: a two-stage "run --keep-going
// --project-root / <checker flags> -o <dir> -- <filtered compile command>"
// invocation, run with TZ=UTC per spec.md §4.4.
package infer

import (
	"context"
	"encoding/json"
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
const Name = "infer"

var binaryPattern = regexp.MustCompile(`^infer$`)

// checkerFlagNames maps a uniform internal checker name to Infer's own
// --<name> / --no-<name> command-line spelling.
var checkerFlagNames = map[string]string{
	"biabduction":                 "biabduction",
	"inefficient-keyset-iterator": "inefficient-keyset-iterator",
	"liveness":                    "liveness",
	"pulse":                       "pulse",
	"quandary":                    "quandary",
	"racerd":                      "racerd",
	"resource-leak":               "resource-leak-lab",
}

// Adapter implements analyzer.Adapter for Infer.
type Adapter struct{}

// New returns an Infer Adapter.
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
		return "", fmt.Errorf("infer: spawn --version: %w", err)
	}

	res, err := h.Wait()
	if err != nil {
		return "", fmt.Errorf("infer: --version: %w", err)
	}

	return string(res.Stdout), nil
}

// CheckCompatible implements analyzer.Adapter: any discoverable infer is
// usable.
func (Adapter) CheckCompatible(_ analyzer.Version) error { return nil }

// DiscoverCheckers implements analyzer.Adapter via "infer --list-checkers --format json".
func (Adapter) DiscoverCheckers(ctx context.Context, bin string) ([]checkers.Checker, error) {
	h, err := procsup.Spawn(ctx, nil, procsup.Spec{Argv: []string{bin, "--list-checkers", "--format", "json"}})
	if err != nil {
		return nil, fmt.Errorf("infer: spawn list-checkers: %w", err)
	}

	res, err := h.Wait()
	if err != nil {
		return nil, fmt.Errorf("infer: list-checkers: %w", err)
	}

	var raw []struct {
		ID   string `json:"id"`
		Desc string `json:"description"`
	}

	if jsonErr := json.Unmarshal(res.Stdout, &raw); jsonErr != nil {
		return nil, fmt.Errorf("infer: parse list-checkers output: %w", jsonErr)
	}

	out := make([]checkers.Checker, 0, len(raw))
	for _, r := range raw {
		out = append(out, checkers.Checker{Name: r.ID, Description: r.Desc})
	}

	return out, nil
}

// BuildCommand implements analyzer.Adapter.
func (Adapter) BuildCommand(bin string, act *action.Action, rh analyzer.ResultHandler, cfg analyzer.ConfigHandler) (analyzer.Command, error) {
	argv := []string{bin, "run", "--keep-going", "--project-root", "/"}

	if cfg.Registry != nil {
		for _, name := range cfg.Registry.EnabledNames() {
			argv = append(argv, "--"+inferFlagName(name))
		}

		for _, name := range cfg.Registry.DisabledNames() {
			argv = append(argv, "--no-"+inferFlagName(name))
		}
	}

	outDir := filepath.Dir(rh.ArtifactPath())
	if err := os.MkdirAll(outDir, 0o755); err != nil { //nolint:gosec // report directory, not secret.
		return analyzer.Command{}, fmt.Errorf("infer: create output dir: %w", err)
	}

	argv = append(argv, "-o", outDir)
	argv = append(argv, cfg.ExtraArgs...)
	argv = append(argv, "--")
	argv = append(argv, filteredCompileCommand(act)...)

	return analyzer.Command{Argv: argv, Dir: act.Directory(), Env: withTZ(os.Environ(), "UTC")}, nil
}

func inferFlagName(name string) string {
	if mapped, ok := checkerFlagNames[name]; ok {
		return mapped
	}

	return name
}

// gccOnlyFlagRE matches GCC-specific flags infer's clang-based frontend
// rejects, stripped when the language is C/C++ per spec.md §4.4.
var gccOnlyFlagRE = regexp.MustCompile(`^-(fwhole-program|mno-.*|flto.*)$`)

func filteredCompileCommand(act *action.Action) []string {
	argv := []string{"cc"}

	if act.Language() == action.LangC || act.Language() == action.LangCXX {
		for _, opt := range act.AnalyzerOptions() {
			if gccOnlyFlagRE.MatchString(opt) {
				continue
			}

			argv = append(argv, opt)
		}
	} else {
		argv = append(argv, act.AnalyzerOptions()...)
	}

	argv = append(argv, "-c", act.Source())

	return argv
}

func withTZ(env []string, tz string) []string {
	out := make([]string, 0, len(env)+1)

	for _, kv := range env {
		if strings.HasPrefix(kv, "TZ=") {
			continue
		}

		out = append(out, kv)
	}

	return append(out, "TZ="+tz)
}

// ResultHandler's artifact directory already holds Infer's own
// report.json; PostProcess is the inherited no-op.
type ResultHandler struct {
	analyzer.BaseResultHandler
}

// NewResultHandler implements analyzer.Adapter. Infer's -o flag names a
// directory, not a file, so Artifact points at report.json inside it.
func (Adapter) NewResultHandler(act *action.Action, outputDir string) analyzer.ResultHandler {
	dir := filepath.Join(outputDir, fmt.Sprintf("%s_%s_%s", filepath.Base(act.Source()), Name, act.Hash()[:8]))
	artifact := filepath.Join(dir, "report.json")

	return &ResultHandler{BaseResultHandler: analyzer.BaseResultHandler{Artifact: artifact, RawOutputDir: dir}}
}

// MentionedFiles implements analyzer.Adapter.
func (Adapter) MentionedFiles(stdout, stderr []byte) []string {
	return analyzer.ExtractMentionedFiles(stdout, stderr)
}
