package domain

// SequenceState is the per-record map of idempotency markers. A milestone-less
// sequence stores a single timestamp under "<field>Sent" or "<field>Skipped";
// a milestone-bearing sequence stores a map keyed by milestone value under the
// same names. Markers are set once and never cleared.
type SequenceState map[string]any

// MarkerKind distinguishes a delivered milestone from a deliberately bypassed
// one (for example, no contactable address).
type MarkerKind string

const (
	MarkerSent    MarkerKind = "Sent"
	MarkerSkipped MarkerKind = "Skipped"
)

// HasMarker reports whether the milestone has already been resolved, either
// sent or skipped. An empty milestone addresses a milestone-less sequence.
func (s SequenceState) HasMarker(field, milestone string) bool {
	return s.has(field+string(MarkerSent), milestone) ||
		s.has(field+string(MarkerSkipped), milestone)
}

func (s SequenceState) has(key, milestone string) bool {
	v, ok := s[key]
	if !ok || v == nil {
		return false
	}
	if milestone == "" {
		return true
	}
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, ok = m[milestone]
	return ok
}

// MarkerPath is the dot path under which a marker is persisted on the owning
// record, suitable for a partial-field merge.
func MarkerPath(field string, kind MarkerKind, milestone string) string {
	p := "emailSequenceState." + field + string(kind)
	if milestone != "" {
		p += "." + milestone
	}
	return p
}
