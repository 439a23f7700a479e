package action

import "fmt"

// mapKey uniquely identifies an action by (source, target), the key space
// reproducer packaging uses to resolve dependent files.
type mapKey struct {
	source string
	target string
}

// Map is a (source, target) -> Action lookup used by reproducer packaging
// to resolve files mentioned in an analyzer's diagnostics back to the
// action that produced them. A single (source, target) pair maps to
// exactly one Action.
type Map struct {
	entries map[mapKey]*Action
}

// NewMap builds a Map from actions, applying resolve to break ties when two
// actions share a (source, target) pair. resolve receives the
// already-stored action and the new candidate and returns the one to keep.
func NewMap(actions []*Action, resolve func(existing, candidate *Action) *Action) *Map {
	m := &Map{entries: make(map[mapKey]*Action, len(actions))}

	for _, a := range actions {
		key := mapKey{source: a.Source(), target: a.Target()}

		existing, ok := m.entries[key]
		if !ok {
			m.entries[key] = a
			continue
		}

		m.entries[key] = resolve(existing, a)
	}

	return m
}

// Lookup returns the action registered for (source, target), or nil if none.
func (m *Map) Lookup(source, target string) *Action {
	return m.entries[mapKey{source: source, target: target}]
}

// HasSource reports whether any action in the map was compiled from source,
// regardless of target triple. Reproducer packaging uses this to decide
// whether a file mentioned in an analyzer's diagnostics names a known
// action rather than an unrelated path.
func (m *Map) HasSource(source string) bool {
	for key := range m.entries {
		if key.source == source {
			return true
		}
	}

	return false
}

// Key returns the map key string for an action, used by callers that need a
// stable string identifier (e.g. ctu_connections/<action-key> filenames).
func Key(a *Action) string {
	return fmt.Sprintf("%s@%s", a.Source(), a.Target())
}
