package exam

import "sort"

// AnswerStore holds the captured answers for one session, keyed by question
// id. It is scoped to a single session and reset on submit or end. The
// session manager serializes access; the store itself is not goroutine-safe.
type AnswerStore struct {
	records map[string]AnswerRecord
}

// NewAnswerStore returns an empty store.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{records: make(map[string]AnswerRecord)}
}

// Get returns the stored record for questionID and whether one exists.
func (s *AnswerStore) Get(questionID string) (AnswerRecord, bool) {
	rec, ok := s.records[questionID]
	return rec, ok
}

// Upsert replaces any prior record for the same question.
func (s *AnswerStore) Upsert(rec AnswerRecord) {
	s.records[rec.QuestionID] = rec
}

// Count returns the number of distinct answered questions.
func (s *AnswerStore) Count() int { return len(s.records) }

// All returns the records sorted by question id for stable serialization.
func (s *AnswerStore) All() []AnswerRecord {
	out := make([]AnswerRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}

// Load replaces the store contents with recs (used when resuming from a
// snapshot).
func (s *AnswerStore) Load(recs []AnswerRecord) {
	s.records = make(map[string]AnswerRecord, len(recs))
	for _, rec := range recs {
		s.records[rec.QuestionID] = rec
	}
}

// Reset drops all records.
func (s *AnswerStore) Reset() {
	s.records = make(map[string]AnswerRecord)
}
