package analyzer

// Registry is the map from analyzer name to Adapter the scheduler holds,
// per spec.md §9's "tagged variant plus capability interface" design
// note: no class hierarchy, just a flat map of values implementing the
// same operation set.
type Registry map[string]Adapter

// Names returns the registry's analyzer names.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}

	return names
}
