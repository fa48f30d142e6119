package exam

import (
	"reflect"
	"testing"
)

func TestAnswerStore_LastWriteWins(t *testing.T) {
	s := NewAnswerStore()

	s.Upsert(AnswerRecord{QuestionID: "q1", SelectedOptionIDs: []string{"a"}})
	s.Upsert(AnswerRecord{QuestionID: "q1", SelectedOptionIDs: []string{"b"}, TimeSpentSec: 12})

	if s.Count() != 1 {
		t.Fatalf("Count = %d, want 1 (two writes to the same question)", s.Count())
	}

	rec, ok := s.Get("q1")
	if !ok {
		t.Fatal("expected record for q1")
	}
	if !reflect.DeepEqual(rec.SelectedOptionIDs, []string{"b"}) {
		t.Errorf("SelectedOptionIDs = %v, want [b]", rec.SelectedOptionIDs)
	}
	if rec.TimeSpentSec != 12 {
		t.Errorf("TimeSpentSec = %d, want 12", rec.TimeSpentSec)
	}
}

func TestAnswerStore_GetAbsent(t *testing.T) {
	s := NewAnswerStore()

	if _, ok := s.Get("missing"); ok {
		t.Error("expected absent record")
	}
}

func TestAnswerStore_AllSorted(t *testing.T) {
	s := NewAnswerStore()
	s.Upsert(AnswerRecord{QuestionID: "q3"})
	s.Upsert(AnswerRecord{QuestionID: "q1"})
	s.Upsert(AnswerRecord{QuestionID: "q2"})

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("len(All) = %d, want 3", len(all))
	}
	for i, want := range []string{"q1", "q2", "q3"} {
		if all[i].QuestionID != want {
			t.Errorf("All[%d] = %s, want %s", i, all[i].QuestionID, want)
		}
	}
}

func TestAnswerStore_LoadAndReset(t *testing.T) {
	s := NewAnswerStore()
	s.Load([]AnswerRecord{
		{QuestionID: "q1", FreeText: "hello"},
		{QuestionID: "q2"},
	})

	if s.Count() != 2 {
		t.Fatalf("Count = %d, want 2 after Load", s.Count())
	}

	s.Reset()
	if s.Count() != 0 {
		t.Errorf("Count = %d, want 0 after Reset", s.Count())
	}
}
