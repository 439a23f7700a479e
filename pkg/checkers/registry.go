// Package checkers implements the per-analyzer checker-enablement state
// machine: seeding discovered checkers, applying default profiles,
// replaying ordered overrides, and per-analyzer adjustment hooks.
package checkers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// State is a checker's enablement state. Terminal states Enabled and
// Disabled may be re-entered by later overrides.
type State int

// Checker states.
const (
	StateDefault State = iota
	StateEnabled
	StateDisabled
)

// String renders the state for logging.
func (s State) String() string {
	switch s {
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return "default"
	}
}

// Checker is one checker discovered from an analyzer binary.
type Checker struct {
	Name        string
	Description string
}

// CheckerInfo is a registered checker's description and current state.
type CheckerInfo struct {
	Description string
	State       State
}

// Override is one (identifier, enable) instruction replayed in order
// against a Registry.
type Override struct {
	Identifier string
	Enable     bool
}

// Warning describes a non-fatal override-resolution failure.
type Warning struct {
	Identifier string
	Reason     string
}

// reservedProfileName is the token "list" may never be used as, since it
// is reserved for the "list checkers" CLI command.
const reservedProfileName = "list"

// ErrReservedProfileName is returned when "list" is used as a profile name
// or override identifier.
var ErrReservedProfileName = errors.New("checkers: \"list\" is a reserved profile name")

// ErrUnresolvedOverride is returned in strict mode when an override
// identifier resolves to the empty set.
var ErrUnresolvedOverride = errors.New("checkers: override identifier did not resolve to any checker")

// Registry holds every checker discovered from one analyzer, its current
// enablement state, and the profile/guideline label set overrides resolve
// against.
type Registry struct {
	checkers map[string]CheckerInfo
	profiles ProfileSet
	strict   bool
}

// NewRegistry seeds every discovered checker at StateDefault.
func NewRegistry(discovered []Checker) *Registry {
	m := make(map[string]CheckerInfo, len(discovered))

	for _, c := range discovered {
		m[c.Name] = CheckerInfo{Description: c.Description, State: StateDefault}
	}

	return &Registry{checkers: m}
}

// SetStrict controls whether Apply fails fast on an unresolved override
// (true) or collects a Warning and continues (false, the default).
func (r *Registry) SetStrict(strict bool) {
	r.strict = strict
}

// ApplyDefaultProfile marks every checker named by profiles["default"] as
// enabled and retains profiles for later override resolution by Apply.
func (r *Registry) ApplyDefaultProfile(profiles ProfileSet) {
	r.profiles = profiles

	for _, name := range profiles["default"] {
		r.setState(name, StateEnabled)
	}
}

// EnableAll marks every checker enabled, except those whose names start
// with "alpha." or "debug." (unless allowAlphaDebug), or "osx." (unless
// isMachO).
func (r *Registry) EnableAll(allowAlphaDebug, isMachO bool) {
	for name := range r.checkers {
		if !allowAlphaDebug && (strings.HasPrefix(name, "alpha.") || strings.HasPrefix(name, "debug.")) {
			continue
		}

		if !isMachO && strings.HasPrefix(name, "osx.") {
			continue
		}

		r.setState(name, StateEnabled)
	}
}

// Apply replays overrides in order. Each identifier resolves to a set of
// checker names via resolve; their state is updated to Enabled or
// Disabled. An identifier resolving to the empty set is fatal in strict
// mode, otherwise a Warning is appended and replay continues.
func (r *Registry) Apply(overrides []Override) ([]Warning, error) {
	var warnings []Warning

	for _, o := range overrides {
		if o.Identifier == reservedProfileName {
			return warnings, ErrReservedProfileName
		}

		names, reason := r.resolve(o.Identifier)
		if len(names) == 0 {
			if r.strict {
				return warnings, fmt.Errorf("%w: %q", ErrUnresolvedOverride, o.Identifier)
			}

			warnings = append(warnings, Warning{Identifier: o.Identifier, Reason: reason})

			continue
		}

		for _, name := range names {
			r.setState(name, stateFor(o.Enable))
		}
	}

	return warnings, nil
}

func stateFor(enable bool) State {
	if enable {
		return StateEnabled
	}

	return StateDisabled
}

func (r *Registry) setState(name string, s State) {
	info, ok := r.checkers[name]
	if !ok {
		return
	}

	info.State = s
	r.checkers[name] = info
}

// resolve turns one override identifier into the checker names it names,
// trying, in order: a literal "prefix:" or "checker:" form, a profile or
// guideline/severity label, then prefix/suffix matching against every
// registered checker name. The returned reason is used only when
// resolution fails, to distinguish prefix/checker-literal misses from
// ordinary unresolved identifiers in reporting.
func (r *Registry) resolve(identifier string) ([]string, string) {
	switch {
	case strings.HasPrefix(identifier, "prefix:"):
		want := strings.TrimPrefix(identifier, "prefix:")
		return r.matchPrefix(want), "unresolved prefix"
	case strings.HasPrefix(identifier, "checker:"):
		want := strings.TrimPrefix(identifier, "checker:")
		if _, ok := r.checkers[want]; ok {
			return []string{want}, ""
		}

		return nil, "unresolved checker name"
	default:
		if members, ok := r.profiles[identifier]; ok {
			return members, ""
		}

		return r.matchPrefixOrSuffix(identifier), "unresolved override"
	}
}

func (r *Registry) matchPrefix(want string) []string {
	var names []string

	for name := range r.checkers {
		if strings.HasPrefix(name, want) {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

func (r *Registry) matchPrefixOrSuffix(want string) []string {
	var names []string

	for name := range r.checkers {
		if strings.HasPrefix(name, want) || strings.HasSuffix(name, want) {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

// State returns the current state of a registered checker. Unregistered
// names return StateDefault.
func (r *Registry) State(name string) State {
	return r.checkers[name].State
}

// Names returns every registered checker name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// EnabledNames returns the sorted names of every checker in StateEnabled.
func (r *Registry) EnabledNames() []string {
	return r.namesInState(StateEnabled)
}

// DisabledNames returns the sorted names of every checker in StateDisabled.
func (r *Registry) DisabledNames() []string {
	return r.namesInState(StateDisabled)
}

func (r *Registry) namesInState(want State) []string {
	var names []string

	for name, info := range r.checkers {
		if info.State == want {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

// AdjustForClangTidy force-disables the clang-analyzer-* family (their
// results belong to the Clang SA analyzer) and force-enables
// clang-diagnostic-* so compiler diagnostics surface as reports. The caller
// must re-run it after any override replay: the split holds even against an
// explicit user override.
func AdjustForClangTidy(r *Registry) {
	for name := range r.checkers {
		switch {
		case strings.HasPrefix(name, "clang-analyzer-"):
			r.setState(name, StateDisabled)
		case strings.HasPrefix(name, "clang-diagnostic-"):
			r.setState(name, StateEnabled)
		}
	}
}
