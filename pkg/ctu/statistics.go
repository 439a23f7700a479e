package ctu

import (
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

const (
	statsTmpDirName   = "stats-tmp"
	statsYieldDirName = "stats"
)

// collectStatistics builds a statistics-collector command (enabling only
// the statistics-collector checker family) and writes its combined
// stdout+stderr into a UUID-suffixed fragment file, per spec.md §4.5
// step 3.
func (c *Collector) collectStatistics(ctx context.Context, act *action.Action) error {
	tmpDir := filepath.Join(c.cfg.CTUDir, statsTmpDirName)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil { //nolint:gosec // report dir, not secret.
		return fmt.Errorf("mkdir %s: %w", tmpDir, err)
	}

	argv := []string{
		c.cfg.ClangBin, "--analyze", "-Xclang", "-analyzer-checker=debug.StatsCollector",
	}
	argv = append(argv, act.AnalyzerOptions()...)
	argv = append(argv, act.Source())

	h, err := procsup.Spawn(ctx, nil, procsup.Spec{Argv: argv, Dir: act.Directory()})
	if err != nil {
		return fmt.Errorf("spawn statistics-collector: %w", err)
	}

	res, err := h.Wait()
	if err != nil {
		return fmt.Errorf("statistics-collector: %w", err)
	}

	combined := append(append([]byte{}, res.Stdout...), res.Stderr...)
	base := filepath.Base(act.Source())
	fragPath := filepath.Join(tmpDir, fmt.Sprintf("%s-%s.stat", base, uuid.NewString()))

	return os.WriteFile(fragPath, combined, 0o644) //nolint:gosec // report artifact, not secret.
}

// postprocessStatistics aggregates the raw .stat fragments into yield
// files, forwarding the min-sample-count and relevance-threshold
// parameters verbatim to the aggregation step, per spec.md §9's open
// question ("opaque to the scheduler; forwarded verbatim").
func (c *Collector) postprocessStatistics() error {
	tmpDir := filepath.Join(c.cfg.CTUDir, statsTmpDirName)

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("read stats tmp dir: %w", err)
	}

	counts := make(map[string]int)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		data, readErr := os.ReadFile(filepath.Join(tmpDir, e.Name()))
		if readErr != nil {
			return fmt.Errorf("read stat fragment %s: %w", e.Name(), readErr)
		}

		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			counts[line]++
		}
	}

	yieldDir := filepath.Join(c.cfg.CTUDir, statsYieldDirName)
	if err := os.MkdirAll(yieldDir, 0o755); err != nil { //nolint:gosec // report dir, not secret.
		return fmt.Errorf("mkdir %s: %w", yieldDir, err)
	}

	relevant := filterRelevant(counts, c.cfg.Statistics.MinSampleCount, c.cfg.Statistics.RelevanceThreshold)

	if err := os.WriteFile(filepath.Join(yieldDir, "yield.txt"), []byte(strings.Join(relevant, "\n")+"\n"), 0o644); err != nil { //nolint:gosec // report artifact, not secret.
		return fmt.Errorf("write yield: %w", err)
	}

	return os.RemoveAll(tmpDir)
}

// filterRelevant keeps lines whose sample count is at least minSamples and
// whose relative frequency is at least relevanceThreshold of the total.
func filterRelevant(counts map[string]int, minSamples int, relevanceThreshold float64) []string {
	total := 0
	for _, n := range counts {
		total += n
	}

	var out []string

	for line, n := range counts {
		if n < minSamples {
			continue
		}

		if total > 0 && float64(n)/float64(total) < relevanceThreshold {
			continue
		}

		out = append(out, line)
	}

	sort.Strings(out)

	return out
}
