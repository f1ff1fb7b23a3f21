package parser

// GlobalOptions is a per-parser table of most-recently-seen global option
// values (e.g. root, initrd, default, partition, video), per spec.md
// §4.4. Option-building callbacks consult it for values an entry doesn't
// override.
type GlobalOptions struct {
	values map[string]string
}

// NewGlobalOptions returns an empty table.
func NewGlobalOptions() *GlobalOptions {
	return &GlobalOptions{values: map[string]string{}}
}

// Set records the most recent value for name.
func (g *GlobalOptions) Set(name, value string) {
	g.values[name] = value
}

// Get returns the most recent value for name, or "" if never set.
func (g *GlobalOptions) Get(name string) string {
	return g.values[name]
}

// GetOr returns the most recent value for name, or fallback if it was never
// set or was set to "".
func (g *GlobalOptions) GetOr(name, fallback string) string {
	if v, ok := g.values[name]; ok && v != "" {
		return v
	}
	return fallback
}
