package family

// Registry holds user-registered and demonstration tag families, looked up
// by name. Unlike the reference implementation this package does not embed
// official tag16h5/tag25h9/tag36h11/... binary code tables: those assets did
// not survive retrieval, and shipping fabricated data under a real family's
// name would silently produce wrong detections. Callers register the
// families they actually have data for; demo families built at runtime by
// the generator are expected to use a name distinct from any official
// family (by convention, "demoNNhM").
type Registry struct {
	families map[string]*TagFamily
}

// NewRegistry returns an empty family registry.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]*TagFamily)}
}

// Register adds or replaces a family under the given name.
func (r *Registry) Register(name string, f *TagFamily) {
	r.families[name] = f
}

// Get returns the family registered under name, or an UnknownFamily error.
func (r *Registry) Get(name string) (*TagFamily, error) {
	f, ok := r.families[name]
	if !ok {
		return nil, &Error{Kind: UnknownFamily, Name: name}
	}
	return f, nil
}

// Names returns the names of every family currently registered.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	return names
}
