package crawl

// LinkSet is an insertion-ordered string set used for frontier and link
// accumulators. It makes the dedup contract explicit: first add wins, and
// iteration order is first-seen order.
type LinkSet struct {
	seen  map[string]struct{}
	items []string
}

// NewLinkSet builds an empty LinkSet.
func NewLinkSet() *LinkSet {
	return &LinkSet{seen: make(map[string]struct{})}
}

// Add inserts v if it is non-empty and not yet present, reporting whether it
// was inserted.
func (s *LinkSet) Add(v string) bool {
	if v == "" {
		return false
	}
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

// AddAll inserts each value in order.
func (s *LinkSet) AddAll(values []string) {
	for _, v := range values {
		s.Add(v)
	}
}

// Contains reports whether v is present.
func (s *LinkSet) Contains(v string) bool {
	_, ok := s.seen[v]
	return ok
}

// Items returns the values in insertion order. The returned slice is a copy.
func (s *LinkSet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of values.
func (s *LinkSet) Len() int {
	return len(s.items)
}
