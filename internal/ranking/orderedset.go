package ranking

// OrderedSet is a set of strings that remembers insertion order.
type OrderedSet struct {
	index map[string]int
	items []string
}

// NewOrderedSet builds a set from values, keeping the first occurrence of each.
func NewOrderedSet(values ...string) *OrderedSet {
	s := &OrderedSet{index: make(map[string]int, len(values))}
	s.Add(values...)
	return s
}

// Add inserts values that are not already present.
func (s *OrderedSet) Add(values ...string) {
	for _, v := range values {
		if _, ok := s.index[v]; ok {
			continue
		}
		s.index[v] = len(s.items)
		s.items = append(s.items, v)
	}
}

// Contains reports membership.
func (s *OrderedSet) Contains(v string) bool {
	_, ok := s.index[v]
	return ok
}

// Len returns the number of distinct values.
func (s *OrderedSet) Len() int {
	return len(s.items)
}

// Values returns the values in insertion order. The slice is a copy.
func (s *OrderedSet) Values() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// IntersectionSize counts values present in both sets.
func (s *OrderedSet) IntersectionSize(other *OrderedSet) int {
	if s == nil || other == nil {
		return 0
	}
	small, large := s, other
	if small.Len() > large.Len() {
		small, large = large, small
	}
	n := 0
	for _, v := range small.items {
		if large.Contains(v) {
			n++
		}
	}
	return n
}
