package exam

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionKey is the persistence key for a test's session snapshot.
func SessionKey(testID string) string { return "session:" + testID }

// Snapshot is the durable image of a session: the session record, the
// question set it was started with, and every captured answer. It is stored
// as opaque JSON under SessionKey so a killed process can rebuild the attempt.
type Snapshot struct {
	Session   Session        `json:"session"`
	Questions []Question     `json:"questions"`
	Answers   []AnswerRecord `json:"answers"`
	SavedAt   time.Time      `json:"saved_at"`
}

// EncodeSnapshot serializes a snapshot for the key-value store.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal session snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot deserializes a snapshot previously written by EncodeSnapshot.
func DecodeSnapshot(b []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal session snapshot: %w", err)
	}
	return snap, nil
}
