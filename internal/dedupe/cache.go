package dedupe

// Set remembers the sequence numbers already fetched during one run, up to a
// fixed capacity. Once full the oldest number is forgotten first.
type Set struct {
	items    map[int]struct{}
	order    []int
	capacity int
}

// NewSet creates a set with the provided capacity.
func NewSet(capacity int) *Set {
	if capacity <= 0 {
		capacity = 1
	}
	return &Set{
		items:    make(map[int]struct{}, capacity),
		order:    make([]int, 0, capacity),
		capacity: capacity,
	}
}

// IsSeen returns true when id has been recorded and not yet evicted.
// It does not mark the id as seen; use MarkSeen() to record it.
func (s *Set) IsSeen(id int) bool {
	_, ok := s.items[id]
	return ok
}

// MarkSeen records id.
func (s *Set) MarkSeen(id int) {
	if _, ok := s.items[id]; ok {
		return
	}
	s.items[id] = struct{}{}
	s.order = append(s.order, id)
	s.compact()
}

// Len reports how many ids are currently remembered.
func (s *Set) Len() int {
	return len(s.items)
}

func (s *Set) compact() {
	for len(s.items) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.items, oldest)
	}
}
