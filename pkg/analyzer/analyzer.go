// Package analyzer defines the uniform Adapter contract every supported
// static-analysis tool implements: binary resolution, version probing,
// checker discovery, command construction, and result-handler creation.
// One concrete Adapter lives in each pkg/analyzer/<name> subpackage; the
// scheduler holds a map from analyzer name to Adapter and treats them
// uniformly, per spec.md §9's "tagged variant plus capability interface"
// design note.
package analyzer

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/checkers"
)

// Version is an analyzer's short version, (major, minor, patch), totally
// orderable via Compare for compatibility checks.
type Version [3]int

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other.
func (v Version) Compare(other Version) int {
	for i := range v {
		switch {
		case v[i] < other[i]:
			return -1
		case v[i] > other[i]:
			return 1
		}
	}

	return 0
}

// String renders the version as "X.Y.Z".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// AtLeast reports whether v >= other.
func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) >= 0
}

// Command is the argv and working directory constructed for one analyzer
// invocation.
type Command struct {
	Argv []string
	Dir  string
	Env  []string
}

// ResultHandler is a per-Action container the scheduler populates with the
// subprocess outcome; PostProcess renames/normalizes the analyzer's raw
// output into the canonical artifact name.
type ResultHandler interface {
	// SetOutcome records the subprocess outcome for later use by
	// PostProcess and MentionedFiles.
	SetOutcome(returnCode int, stdout, stderr []byte)
	// ArtifactPath returns the canonical path the success artifact should
	// live at once PostProcess has run.
	ArtifactPath() string
	// PostProcess renames/normalizes the analyzer's raw output file(s)
	// into ArtifactPath, or re-parses stdout to surface compiler errors as
	// reports. Called once per attempt, before the Result Router routes
	// the outcome.
	PostProcess(ctx context.Context) error
}

// ConfigHandler wraps a per-analyzer checker Registry plus the
// analyzer-specific toggles BuildCommand needs: CTU directory/mode,
// Z3/Z3-refutation, extra user-supplied arguments, and a resolved
// -config= override (clang-tidy only).
type ConfigHandler struct {
	Registry  *checkers.Registry
	ExtraArgs []string

	CTUDir           string
	CTUEnabled       bool
	CTULocalDisabled bool

	Z3           bool
	Z3Refutation bool

	// ClangTidyConfigOverride, when non-empty, is a user-supplied
	// -config= value extracted from ExtraArgs that wins over the computed
	// -checks/-config per spec.md §4.4.
	ClangTidyConfigOverride string
}

// Validate enforces cross-field invariants BuildCommand callers must hold
// before constructing a command: Z3 and Z3-refutation are mutually
// exclusive per spec.md §4.4.
func (c ConfigHandler) Validate() error {
	if c.Z3 && c.Z3Refutation {
		return ErrZ3Conflict
	}

	return nil
}

// ErrZ3Conflict is returned when both Z3 and Z3Refutation are requested.
var ErrZ3Conflict = fmt.Errorf("analyzer: z3 and z3-refutation are mutually exclusive")

// ErrBinaryNotFound is returned by ResolveBinary when no matching
// executable is found on PATH.
var ErrBinaryNotFound = fmt.Errorf("analyzer: binary not found")

// ErrIncompatibleVersion is returned by CheckCompatible.
var ErrIncompatibleVersion = fmt.Errorf("analyzer: incompatible version")

// Adapter is the uniform contract every supported analyzer implements.
type Adapter interface {
	// Name returns the analyzer's stable identifier, e.g. "clangsa".
	Name() string
	// ResolveBinary locates an executable on PATH matching this
	// analyzer's versioned naming pattern, given a configured name (which
	// may itself be an absolute path).
	ResolveBinary(configuredName string) (string, error)
	// VersionShort queries the totally-orderable (major, minor, patch)
	// version.
	VersionShort(ctx context.Context, bin string) (Version, error)
	// VersionLong queries the multi-line human-readable version text.
	VersionLong(ctx context.Context, bin string) (string, error)
	// CheckCompatible returns nil if v is usable, else a reason.
	CheckCompatible(v Version) error
	// DiscoverCheckers invokes bin with the listing flag and parses its
	// checker/description pairs.
	DiscoverCheckers(ctx context.Context, bin string) ([]checkers.Checker, error)
	// BuildCommand constructs the argv to execute for act, honoring cfg's
	// checker enablement, language, target, default standard, and
	// implicit includes.
	BuildCommand(bin string, act *action.Action, rh ResultHandler, cfg ConfigHandler) (Command, error)
	// NewResultHandler creates the per-Action result container BuildCommand
	// expects to be passed back in.
	NewResultHandler(act *action.Action, outputDir string) ResultHandler
	// MentionedFiles parses stdout/stderr for file paths referenced by
	// diagnostics, for reproducer enrichment.
	MentionedFiles(stdout, stderr []byte) []string
}
