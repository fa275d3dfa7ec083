package console

// Selection is the ordered set of account ids an operator has picked.
type Selection struct {
	ids   []string
	index map[string]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{index: make(map[string]struct{})}
}

// Toggle adds the id when absent and removes it when present. It reports
// whether the id is selected afterwards.
func (s *Selection) Toggle(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := s.index[id]; ok {
		delete(s.index, id)
		for i, selected := range s.ids {
			if selected == id {
				s.ids = append(s.ids[:i], s.ids[i+1:]...)
				break
			}
		}
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

// SelectAll replaces the selection with every given id.
func (s *Selection) SelectAll(ids []string) {
	s.Clear()
	for _, id := range ids {
		if _, ok := s.index[id]; ok || id == "" {
			continue
		}
		s.index[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
}

func (s *Selection) Clear() {
	s.ids = nil
	s.index = make(map[string]struct{})
}

func (s *Selection) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s *Selection) Len() int {
	return len(s.ids)
}

// IDs returns the selected ids in the order they were picked.
func (s *Selection) IDs() []string {
	return append([]string(nil), s.ids...)
}
