package scanner

// Registry holds the configured sequences in registration order.
type Registry struct {
	order []string
	byID  map[string]Sequence
}

func NewRegistry(seqs ...Sequence) *Registry {
	r := &Registry{byID: make(map[string]Sequence, len(seqs))}
	for _, s := range seqs {
		if _, dup := r.byID[s.ID()]; dup {
			panic("duplicate sequence id: " + s.ID())
		}
		r.order = append(r.order, s.ID())
		r.byID[s.ID()] = s
	}
	return r
}

// Get returns the sequence registered under id.
func (r *Registry) Get(id string) (Sequence, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// IDs returns registered sequence ids in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}
