package logparser

import (
	"fmt"
	"regexp"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/action"
)

// DedupPolicy resolves a collision between two actions that share the same
// canonical identity, per spec.md §4.2.
type DedupPolicy interface {
	// Resolve returns which of existing or candidate should be kept, or an
	// error if the policy considers the collision unresolvable.
	Resolve(existing, candidate *action.Action) (*action.Action, error)
}

// DedupPolicyNone keeps the first action seen for a given canonical hash;
// Parse never calls Resolve for two actions with different hashes, so this
// policy is only reached when the hashes already match, in which case
// either action is an equally valid representative.
type DedupPolicyNone struct{}

// Resolve implements DedupPolicy by keeping the existing action.
func (DedupPolicyNone) Resolve(existing, _ *action.Action) (*action.Action, error) {
	return existing, nil
}

// DedupPolicyStrict fails the run whenever two entries share a source.
type DedupPolicyStrict struct{}

// Resolve implements DedupPolicy by always failing on a collision.
func (DedupPolicyStrict) Resolve(existing, candidate *action.Action) (*action.Action, error) {
	return nil, fmt.Errorf("%w: %q and %q", ErrDuplicateSource, existing.OriginalCommand(), candidate.OriginalCommand())
}

// DedupPolicyAlpha keeps the action whose output path sorts
// lexicographically smaller.
type DedupPolicyAlpha struct{}

// Resolve implements DedupPolicy by keeping the action with the
// lexicographically smaller output path.
func (DedupPolicyAlpha) Resolve(existing, candidate *action.Action) (*action.Action, error) {
	if candidate.Output() < existing.Output() {
		return candidate, nil
	}

	return existing, nil
}

// DedupPolicyRegex keeps the action whose original command matches pattern.
// If both or neither match, the collision is unresolvable and the run
// fails.
type DedupPolicyRegex struct {
	Pattern *regexp.Regexp
}

// NewDedupPolicyRegex compiles pattern into a DedupPolicyRegex.
func NewDedupPolicyRegex(pattern string) (DedupPolicyRegex, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return DedupPolicyRegex{}, fmt.Errorf("logparser: invalid dedup regex %q: %w", pattern, err)
	}

	return DedupPolicyRegex{Pattern: re}, nil
}

// Resolve implements DedupPolicy by keeping the sole regex match.
func (p DedupPolicyRegex) Resolve(existing, candidate *action.Action) (*action.Action, error) {
	existingMatch := p.Pattern.MatchString(existing.OriginalCommand())
	candidateMatch := p.Pattern.MatchString(candidate.OriginalCommand())

	switch {
	case existingMatch && !candidateMatch:
		return existing, nil
	case candidateMatch && !existingMatch:
		return candidate, nil
	default:
		return nil, fmt.Errorf("%w: %q and %q", ErrDuplicateSource, existing.OriginalCommand(), candidate.OriginalCommand())
	}
}
