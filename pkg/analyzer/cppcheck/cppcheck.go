// Package cppcheck adapts the Cppcheck C/C++ linter to the uniform
// analyzer.Adapter contract: "--enable=<severities>",
// "--suppress=<checker>" per disabled checker, and "--plist-output=<dir>",
// with a post-process rename of cppcheck's own output filename to the
// canonical artifact name, per spec.md §4.4.
package cppcheck

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
const Name = "cppcheck"

var binaryPattern = regexp.MustCompile(`^cppcheck$`)

// severities are the --enable= values passed unconditionally; individual
// checkers are instead suppressed via --suppress=.
const severities = "warning,style,performance,portability"

// Adapter implements analyzer.Adapter for Cppcheck.
type Adapter struct{}

// New returns a cppcheck Adapter.
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
		return "", fmt.Errorf("cppcheck: spawn --version: %w", err)
	}

	res, err := h.Wait()
	if err != nil {
		return "", fmt.Errorf("cppcheck: --version: %w", err)
	}

	return string(res.Stdout), nil
}

// CheckCompatible implements analyzer.Adapter: any discoverable cppcheck is
// usable.
func (Adapter) CheckCompatible(_ analyzer.Version) error { return nil }

var checkerLineRE = regexp.MustCompile(`^(\S+)\s+(.*)$`)

// DiscoverCheckers implements analyzer.Adapter via "cppcheck --errorlist",
// an XML listing of every rule id.
func (Adapter) DiscoverCheckers(ctx context.Context, bin string) ([]checkers.Checker, error) {
	h, err := procsup.Spawn(ctx, nil, procsup.Spec{Argv: []string{bin, "--errorlist"}})
	if err != nil {
		return nil, fmt.Errorf("cppcheck: spawn errorlist: %w", err)
	}

	res, err := h.Wait()
	if err != nil {
		return nil, fmt.Errorf("cppcheck: errorlist: %w", err)
	}

	return parseErrorList(res.Stdout), nil
}

var idAttrRE = regexp.MustCompile(`id="([^"]+)"`)
var msgAttrRE = regexp.MustCompile(`msg="([^"]+)"`)

func parseErrorList(stdout []byte) []checkers.Checker {
	var out []checkers.Checker

	for _, line := range strings.Split(string(stdout), "\n") {
		idM := idAttrRE.FindStringSubmatch(line)
		if idM == nil {
			continue
		}

		c := checkers.Checker{Name: idM[1]}

		if msgM := msgAttrRE.FindStringSubmatch(line); msgM != nil {
			c.Description = msgM[1]
		}

		out = append(out, c)
	}

	return out
}

// BuildCommand implements analyzer.Adapter.
func (Adapter) BuildCommand(bin string, act *action.Action, rh analyzer.ResultHandler, cfg analyzer.ConfigHandler) (analyzer.Command, error) {
	outDir := filepath.Dir(rh.ArtifactPath())
	if err := os.MkdirAll(outDir, 0o755); err != nil { //nolint:gosec // report directory, not secret.
		return analyzer.Command{}, fmt.Errorf("cppcheck: create output dir: %w", err)
	}

	argv := []string{bin, "--enable=" + severities, "--plist-output=" + outDir}

	if cfg.Registry != nil {
		for _, name := range cfg.Registry.DisabledNames() {
			argv = append(argv, "--suppress="+name)
		}
	}

	argv = append(argv, act.AnalyzerOptions()...)
	argv = append(argv, cfg.ExtraArgs...)
	argv = append(argv, act.Source())

	return analyzer.Command{Argv: argv, Dir: act.Directory()}, nil
}

// ResultHandler renames cppcheck's own <source-basename>.plist to the
// canonical artifact name during PostProcess.
type ResultHandler struct {
	analyzer.BaseResultHandler
	source string
}

// NewResultHandler implements analyzer.Adapter.
func (Adapter) NewResultHandler(act *action.Action, outputDir string) analyzer.ResultHandler {
	artifact := filepath.Join(outputDir, fmt.Sprintf("%s_%s_%s.plist", filepath.Base(act.Source()), Name, act.Hash()[:8]))

	return &ResultHandler{
		BaseResultHandler: analyzer.BaseResultHandler{Artifact: artifact, RawOutputDir: outputDir},
		source:            act.Source(),
	}
}

// PostProcess implements analyzer.ResultHandler by renaming cppcheck's
// <basename-without-ext>.plist, written alongside --plist-output's
// directory, to the canonical artifact path.
func (h *ResultHandler) PostProcess(_ context.Context) error {
	base := strings.TrimSuffix(filepath.Base(h.source), filepath.Ext(h.source))
	raw := filepath.Join(h.RawOutputDir, base+".plist")

	return h.RenameTo(raw) //nolint:wrapcheck // BaseResultHandler already attributes this error.
}

// MentionedFiles implements analyzer.Adapter.
func (Adapter) MentionedFiles(stdout, stderr []byte) []string {
	return analyzer.ExtractMentionedFiles(stdout, stderr)
}
