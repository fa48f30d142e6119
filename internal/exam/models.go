// Package exam defines the domain model for a timed assessment attempt: the
// test definition, its questions, captured answers, and the session record
// that tracks countdown and navigation state across process restarts.
package exam

import "time"

// QuestionType identifies how a question is answered.
type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	MultiSelect  QuestionType = "multi_select"
	Boolean      QuestionType = "boolean"
	FillIn       QuestionType = "fill_in"
	FreeText     QuestionType = "free_text"
)

// Settings controls per-test session behavior. Immutable once a session starts.
type Settings struct {
	ShuffleQuestions bool `json:"shuffle_questions"`
	ShuffleOptions   bool `json:"shuffle_options"`
	AutoSubmit       bool `json:"auto_submit"`
}

// TestDefinition describes a graded test as delivered by the backend.
// Immutable for the lifetime of a session.
type TestDefinition struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	DurationSec int      `json:"duration_sec"`
	QuestionIDs []string `json:"question_ids"`
	Settings    Settings `json:"settings"`
}

// Option is one selectable choice within a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a single test item. Immutable.
type Question struct {
	ID      string       `json:"id"`
	Prompt  string       `json:"prompt"`
	Type    QuestionType `json:"type"`
	Options []Option     `json:"options,omitempty"`
	Points  float64      `json:"points"`
}

// Response is the caller-supplied answer content for one question.
type Response struct {
	SelectedOptionIDs []string
	FreeText          string
}

// AnswerRecord is the latest captured response to one question. Last write
// wins per question; TimeSpentSec accumulates across revisits.
type AnswerRecord struct {
	QuestionID        string   `json:"question_id"`
	SelectedOptionIDs []string `json:"selected_option_ids,omitempty"`
	FreeText          string   `json:"free_text,omitempty"`
	TimeSpentSec      int      `json:"time_spent_sec"`
}

// Phase is the state-machine state of a Session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhasePaused    Phase = "paused"
	PhaseSubmitted Phase = "submitted"
)

// Active reports whether the phase accepts answers and navigation.
func (p Phase) Active() bool { return p == PhaseRunning || p == PhasePaused }

// Session is one attempt at a specific test. QuestionOrder is fixed at start
// (shuffled or not) and never re-shuffled on resume. TimeRemainingSec is
// monotonically non-increasing while the phase is running.
type Session struct {
	ID               string     `json:"id"`
	TestID           string     `json:"test_id"`
	Title            string     `json:"title"`
	QuestionOrder    []string   `json:"question_order"`
	CurrentIndex     int        `json:"current_index"`
	DurationSec      int        `json:"duration_sec"`
	TimeRemainingSec int        `json:"time_remaining_sec"`
	Phase            Phase      `json:"phase"`
	Settings         Settings   `json:"settings"`
	StartedAt        time.Time  `json:"started_at"`
	PausedAccumSec   int        `json:"paused_accum_sec"`
	PausedAt         *time.Time `json:"paused_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// CurrentQuestionID returns the question id at the navigation cursor, or ""
// for an empty order.
func (s *Session) CurrentQuestionID() string {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.QuestionOrder) {
		return ""
	}
	return s.QuestionOrder[s.CurrentIndex]
}
