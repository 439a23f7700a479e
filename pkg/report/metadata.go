package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// currentMetadataVersion is the multi-tool document version spec.md §6
// requires; a legacy single-tool document is upgraded to this shape
// transparently on read.
const currentMetadataVersion = 2

// AnalyzerStats is one analyzer's per-run counters, folded commutatively
// and associatively from every TaskOutcome across the run, per spec.md
// §5's ordering guarantee.
type AnalyzerStats struct {
	Successful        int      `json:"successful"`
	Failed            int      `json:"failed"`
	SuccessfulSources []string `json:"successful_sources"`
	FailedSources     []string `json:"failed_sources"`
	Version           string   `json:"version"`
	EnabledCheckers   []string `json:"enabled_checkers"`
}

// ToolMetadata is one analyzer-run's slice of the multi-tool document.
type ToolMetadata struct {
	Name               string                    `json:"name"`
	ToolVersion        string                    `json:"tool_version"`
	Command            []string                  `json:"command"`
	BeginTime          time.Time                 `json:"begin_time"`
	EndTime            time.Time                 `json:"end_time"`
	Skipped            int                       `json:"skipped"`
	SkipListData       []string                  `json:"skip_list_data,omitempty"`
	AnalyzerStatistics map[string]*AnalyzerStats `json:"analyzer_statistics"`
	ResultSourceFiles  map[string]string         `json:"result_source_files"`
}

// Metadata is the v2 multi-tool run-metadata document, spec.md §3/§6.
type Metadata struct {
	Version int            `json:"version"`
	Tools   []ToolMetadata `json:"tools"`

	mu sync.Mutex
}

// LegacyMetadata is the v1 single-tool document shape that must be
// transparently upgraded to v2 on read, per spec.md §6.
type LegacyMetadata struct {
	ToolVersion        string                    `json:"tool_version"`
	Command            []string                  `json:"command"`
	BeginTime          time.Time                 `json:"begin_time"`
	EndTime            time.Time                 `json:"end_time"`
	Skipped            int                       `json:"skipped"`
	SkipListData       []string                  `json:"skip_list_data,omitempty"`
	AnalyzerStatistics map[string]*AnalyzerStats `json:"analyzer_statistics"`
	ResultSourceFiles  map[string]string         `json:"result_source_files"`
}

// UpgradeV1 converts a legacy single-tool document into a v2 Metadata
// carrying it as its single tool, named "legacy" (the v1 format predates
// the multi-analyzer run and never recorded a tool name).
func UpgradeV1(legacy LegacyMetadata) *Metadata {
	return &Metadata{
		Version: currentMetadataVersion,
		Tools: []ToolMetadata{{
			Name:               "legacy",
			ToolVersion:        legacy.ToolVersion,
			Command:            legacy.Command,
			BeginTime:          legacy.BeginTime,
			EndTime:            legacy.EndTime,
			Skipped:            legacy.Skipped,
			SkipListData:       legacy.SkipListData,
			AnalyzerStatistics: legacy.AnalyzerStatistics,
			ResultSourceFiles:  legacy.ResultSourceFiles,
		}},
	}
}

type versionProbe struct {
	Version int `json:"version"`
}

// ReadMetadata parses data as a v2 document, or, if its "version" field is
// absent or not 2, as a v1 document transparently upgraded via UpgradeV1.
func ReadMetadata(data []byte) (*Metadata, error) {
	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("report: parse metadata version: %w", err)
	}

	if probe.Version == currentMetadataVersion {
		m := &Metadata{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("report: parse v2 metadata: %w", err)
		}

		return m, nil
	}

	var legacy LegacyMetadata
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("report: parse v1 metadata: %w", err)
	}

	return UpgradeV1(legacy), nil
}

// WriteFile marshals m and writes it to path.
func (m *Metadata) WriteFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Version = currentMetadataVersion

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal metadata: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // report artifact, not secret.
		return fmt.Errorf("report: write metadata: %w", err)
	}

	return nil
}

// TaskOutcome is the minimal per-task result Finalize folds into the
// per-analyzer counters. It intentionally mirrors, but does not import,
// the scheduler's task-result type, so pkg/report never depends on
// pkg/scheduler.
type TaskOutcome struct {
	Analyzer  string
	Source    string
	Succeeded bool
	Skipped   bool
	Artifact  string
}

// Tool returns the ToolMetadata for name, creating it if absent.
func (m *Metadata) Tool(name string) *ToolMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.Tools {
		if m.Tools[i].Name == name {
			return &m.Tools[i]
		}
	}

	m.Tools = append(m.Tools, ToolMetadata{
		Name:               name,
		AnalyzerStatistics: map[string]*AnalyzerStats{name: {}},
		ResultSourceFiles:  map[string]string{},
	})

	return &m.Tools[len(m.Tools)-1]
}

// Finalize folds results into m's per-analyzer counters and the
// result-source-file map, commutatively and associatively per spec.md §5:
// order-independent counter increments and list appends. skipped is added
// once to each analyzer encountered. m is stamped with the current
// document version.
func (m *Metadata) Finalize(results []TaskOutcome, skipped int) {
	m.Version = currentMetadataVersion

	for _, r := range results {
		if r.Skipped {
			continue
		}

		tool := m.Tool(r.Analyzer)

		stats := tool.AnalyzerStatistics[r.Analyzer]
		if stats == nil {
			stats = &AnalyzerStats{}
			tool.AnalyzerStatistics[r.Analyzer] = stats
		}

		if r.Succeeded {
			stats.Successful++
			stats.SuccessfulSources = append(stats.SuccessfulSources, r.Source)

			if r.Artifact != "" {
				tool.ResultSourceFiles[r.Artifact] = r.Source
			}
		} else {
			stats.Failed++
			stats.FailedSources = append(stats.FailedSources, r.Source)
		}
	}

	for i := range m.Tools {
		sort.Strings(m.Tools[i].AnalyzerStatistics[m.Tools[i].Name].SuccessfulSources)
		sort.Strings(m.Tools[i].AnalyzerStatistics[m.Tools[i].Name].FailedSources)
		m.Tools[i].Skipped = skipped
	}
}

// RemoveSidecars deletes the .source sidecar beside every artifact recorded
// in the result-source-file maps. Called once the metadata document has
// been written; the sidecars' content lives on in ResultSourceFiles, per
// spec.md §4.7's summary-write step.
func (m *Metadata) RemoveSidecars() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tool := range m.Tools {
		for artifact := range tool.ResultSourceFiles {
			if err := os.Remove(artifact + ".source"); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("report: remove sidecar for %s: %w", artifact, err)
			}
		}
	}

	return nil
}
