package preset

// Store exposes preset question retrieval for HTTP handlers.
type Store interface {
	List() []Question
	FindByID(id string) (Question, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Question
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied questions.
func NewMemoryStore(items []Question) *MemoryStore {
	return &MemoryStore{items: append([]Question(nil), items...)}
}

// List returns the configured questions in display order.
func (s *MemoryStore) List() []Question {
	return append([]Question(nil), s.items...)
}

// FindByID looks up a question by identifier.
func (s *MemoryStore) FindByID(id string) (Question, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Question{}, false
}
