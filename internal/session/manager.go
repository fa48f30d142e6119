// Package session orchestrates a timed assessment attempt: starting and
// resuming sessions, capturing answers, navigation, the one-second countdown,
// and resilient submission. All mutation is serialized behind one mutex so
// ticks never interleave with caller operations.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prepdeck/prepdeck/internal/clock"
	"github.com/prepdeck/prepdeck/internal/exam"
	"github.com/prepdeck/prepdeck/internal/store"
	"github.com/prepdeck/prepdeck/internal/submit"
	"github.com/prepdeck/prepdeck/internal/transport"
)

// Options configures a Manager. KV, Pipeline and Client are required; Clock
// and Rand default to the system clock and a time-seeded source.
type Options struct {
	KV       store.KV
	Client   transport.Client
	Pipeline *submit.Pipeline
	Clock    clock.Clock
	Rand     *rand.Rand
	Logger   zerolog.Logger
}

// Manager owns at most one active session at a time. Starting a new session
// ends any prior active one; callers that want reject-on-conflict semantics
// check Active first.
type Manager struct {
	mu       sync.Mutex
	kv       store.KV
	client   transport.Client
	pipeline *submit.Pipeline
	clk      clock.Clock
	rng      *rand.Rand
	log      zerolog.Logger

	sess      *exam.Session
	questions map[string]exam.Question
	order     []exam.Question // snapshot serialization order
	answers   *exam.AnswerStore
	result    *submit.Result

	// Question display accounting for AnswerRecord.TimeSpentSec.
	shownAt   time.Time
	viewAccum time.Duration

	ticker     clock.Ticker
	tickerDone chan struct{}
}

// NewManager creates a Manager from opts.
func NewManager(opts Options) *Manager {
	clk := opts.Clock
	if clk == nil {
		clk = clock.System()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Manager{
		kv:       opts.KV,
		client:   opts.Client,
		pipeline: opts.Pipeline,
		clk:      clk,
		rng:      rng,
		log:      opts.Logger.With().Str("component", "session_manager").Logger(),
		answers:  exam.NewAnswerStore(),
	}
}

// Start begins a new session for def. Any prior active session is ended
// first. Question and option order are shuffled once here per the test's
// settings and never re-shuffled on resume.
func (m *Manager) Start(ctx context.Context, def exam.TestDefinition, questions []exam.Question) (exam.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if def.DurationSec <= 0 {
		return exam.Session{}, fmt.Errorf("test %s: non-positive duration", def.ID)
	}
	if len(questions) == 0 || len(def.QuestionIDs) == 0 {
		return exam.Session{}, fmt.Errorf("test %s: %w", def.ID, ErrNoQuestions)
	}

	// Validation above runs first so a bad definition never ends a session
	// the learner is in the middle of.
	if m.sess != nil && m.sess.Phase.Active() {
		m.log.Warn().Str("test_id", m.sess.TestID).Msg("Ending prior active session")
		m.endLocked(ctx)
	}

	byID := make(map[string]exam.Question, len(questions))
	ordered := make([]exam.Question, 0, len(questions))
	for _, q := range questions {
		q.Options = exam.ShuffleOptions(m.rng, q.Options, def.Settings.ShuffleOptions)
		byID[q.ID] = q
		ordered = append(ordered, q)
	}

	now := m.clk.Now().UTC()
	m.sess = &exam.Session{
		ID:               uuid.NewString(),
		TestID:           def.ID,
		Title:            def.Title,
		QuestionOrder:    exam.ShuffleQuestions(m.rng, def.QuestionIDs, def.Settings.ShuffleQuestions),
		DurationSec:      def.DurationSec,
		TimeRemainingSec: def.DurationSec,
		Phase:            exam.PhaseRunning,
		Settings:         def.Settings,
		StartedAt:        now,
	}
	m.questions = byID
	m.order = ordered
	m.answers = exam.NewAnswerStore()
	m.result = nil
	m.shownAt = now
	m.viewAccum = 0

	if err := m.persistLocked(ctx); err != nil {
		return exam.Session{}, err
	}
	m.startTickerLocked()

	m.log.Info().
		Str("session_id", m.sess.ID).
		Str("test_id", def.ID).
		Int("duration_sec", def.DurationSec).
		Int("questions", len(questions)).
		Msg("Session started")
	return *m.sess, nil
}

// StartByID fetches the test over the transport and starts a session for it.
func (m *Manager) StartByID(ctx context.Context, testID string) (exam.Session, error) {
	def, questions, err := m.client.FetchTest(ctx, testID)
	if err != nil {
		return exam.Session{}, fmt.Errorf("fetch test %s: %w", testID, err)
	}
	return m.Start(ctx, def, questions)
}

// ResumeSession rebuilds the session for testID from its last snapshot. Time
// remaining is recomputed from wall-clock elapsed since start, not from the
// persisted countdown, so time lost while the process was killed is deducted.
// A submitted attempt cannot be resumed and returns ErrNotFound; so does an
// attempt whose time ran out while away (its answers are auto-submitted first
// when the test's settings ask for that).
func (m *Manager) ResumeSession(ctx context.Context, testID string) (exam.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok, err := m.kv.Get(ctx, exam.SessionKey(testID))
	if err != nil {
		return exam.Session{}, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return exam.Session{}, fmt.Errorf("test %s: %w", testID, ErrNotFound)
	}

	snap, err := exam.DecodeSnapshot(b)
	if err != nil {
		return exam.Session{}, err
	}
	if snap.Session.Phase == exam.PhaseSubmitted {
		return exam.Session{}, fmt.Errorf("test %s already submitted: %w", testID, ErrNotFound)
	}

	now := m.clk.Now().UTC()
	elapsed := int(now.Sub(snap.Session.StartedAt).Seconds()) - snap.Session.PausedAccumSec
	remaining := snap.Session.DurationSec - elapsed
	if remaining < 0 {
		remaining = 0
	}

	if remaining == 0 && snap.Session.Settings.AutoSubmit {
		m.log.Info().
			Str("session_id", snap.Session.ID).
			Str("test_id", testID).
			Msg("Time exhausted while away, auto-submitting stored answers")
		m.autoSubmitSnapshotLocked(ctx, snap, now)
		return exam.Session{}, fmt.Errorf("test %s expired: %w", testID, ErrNotFound)
	}

	if m.sess != nil && m.sess.Phase.Active() {
		m.endLocked(ctx)
	}

	sess := snap.Session
	sess.TimeRemainingSec = remaining
	sess.Phase = exam.PhaseRunning
	sess.PausedAt = nil

	byID := make(map[string]exam.Question, len(snap.Questions))
	for _, q := range snap.Questions {
		byID[q.ID] = q
	}

	m.sess = &sess
	m.questions = byID
	m.order = snap.Questions
	m.answers = exam.NewAnswerStore()
	m.answers.Load(snap.Answers)
	m.result = nil
	m.shownAt = now
	m.viewAccum = 0

	if err := m.persistLocked(ctx); err != nil {
		return exam.Session{}, err
	}
	m.startTickerLocked()

	m.log.Info().
		Str("session_id", sess.ID).
		Str("test_id", testID).
		Int("time_remaining_sec", remaining).
		Int("answered", m.answers.Count()).
		Msg("Session resumed")
	return sess, nil
}

// autoSubmitSnapshotLocked submits a time-exhausted snapshot's answers and
// marks the stored session submitted so later resumes report NotFound fast.
func (m *Manager) autoSubmitSnapshotLocked(ctx context.Context, snap exam.Snapshot, now time.Time) {
	payload := transport.AttemptPayload{
		SessionID:  snap.Session.ID,
		TestID:     snap.Session.TestID,
		ElapsedSec: snap.Session.DurationSec,
		Answers:    snap.Answers,
		FinishedAt: now,
	}
	res := m.pipeline.Submit(ctx, payload)
	res.AutoSubmitted = true
	res.SubmittedAt = now

	snap.Session.Phase = exam.PhaseSubmitted
	snap.Session.TimeRemainingSec = 0
	snap.Session.CompletedAt = &now
	snap.SavedAt = now
	b, err := exam.EncodeSnapshot(snap)
	if err != nil {
		m.log.Error().Err(err).Msg("Encode auto-submitted snapshot")
		return
	}
	if err := m.kv.Set(ctx, exam.SessionKey(snap.Session.TestID), b); err != nil {
		m.log.Error().Err(err).Msg("Persist auto-submitted snapshot")
	}
}

// AnswerQuestion upserts the answer record for questionID, accumulating the
// time the question was on screen since it was last displayed.
func (m *Manager) AnswerQuestion(ctx context.Context, questionID string, resp exam.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil || !m.sess.Phase.Active() {
		return ErrNoActiveSession
	}
	if _, ok := m.questions[questionID]; !ok {
		return fmt.Errorf("%s: %w", questionID, ErrUnknownQuestion)
	}

	spent := m.viewAccum
	if m.sess.Phase == exam.PhaseRunning {
		now := m.clk.Now()
		spent += now.Sub(m.shownAt)
		m.shownAt = now
	}
	m.viewAccum = 0

	prev, _ := m.answers.Get(questionID)
	selected := make([]string, len(resp.SelectedOptionIDs))
	copy(selected, resp.SelectedOptionIDs)
	m.answers.Upsert(exam.AnswerRecord{
		QuestionID:        questionID,
		SelectedOptionIDs: selected,
		FreeText:          resp.FreeText,
		TimeSpentSec:      prev.TimeSpentSec + int(spent.Seconds()),
	})

	return m.persistLocked(ctx)
}

// Navigate moves the cursor to index within the question order.
func (m *Manager) Navigate(ctx context.Context, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil || !m.sess.Phase.Active() {
		return ErrNoActiveSession
	}
	if index < 0 || index >= len(m.sess.QuestionOrder) {
		return fmt.Errorf("index %d of %d: %w", index, len(m.sess.QuestionOrder), ErrIndexOutOfRange)
	}

	m.sess.CurrentIndex = index
	m.shownAt = m.clk.Now()
	m.viewAccum = 0
	return m.persistLocked(ctx)
}

// Pause stops the countdown. No time elapses, on the session clock or on the
// current question, until Resume. Pausing an already paused session is a
// no-op.
func (m *Manager) Pause(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil || !m.sess.Phase.Active() {
		return ErrNoActiveSession
	}
	if m.sess.Phase == exam.PhasePaused {
		return nil
	}

	now := m.clk.Now().UTC()
	m.viewAccum += now.Sub(m.shownAt)
	m.sess.Phase = exam.PhasePaused
	m.sess.PausedAt = &now
	m.stopTickerLocked()

	m.log.Debug().Str("session_id", m.sess.ID).Msg("Session paused")
	return m.persistLocked(ctx)
}

// Resume restarts the countdown after Pause. Resuming a running session is a
// no-op.
func (m *Manager) Resume(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil || !m.sess.Phase.Active() {
		return ErrNoActiveSession
	}
	if m.sess.Phase == exam.PhaseRunning {
		return nil
	}

	now := m.clk.Now().UTC()
	if m.sess.PausedAt != nil {
		m.sess.PausedAccumSec += int(now.Sub(*m.sess.PausedAt).Seconds())
		m.sess.PausedAt = nil
	}
	m.sess.Phase = exam.PhaseRunning
	m.shownAt = now
	m.startTickerLocked()

	m.log.Debug().Str("session_id", m.sess.ID).Msg("Session resumed from pause")
	return m.persistLocked(ctx)
}

// Submit ends the session and hands the answers to the submission pipeline.
// Idempotent: a second call returns the cached result without touching the
// network again.
func (m *Manager) Submit(ctx context.Context) (submit.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return submit.Result{}, ErrNoActiveSession
	}
	if m.result != nil {
		return *m.result, nil
	}
	return m.submitLocked(ctx, false)
}

func (m *Manager) submitLocked(ctx context.Context, auto bool) (submit.Result, error) {
	now := m.clk.Now().UTC()
	m.stopTickerLocked()
	m.sess.Phase = exam.PhaseSubmitted
	m.sess.CompletedAt = &now

	payload := transport.AttemptPayload{
		SessionID:  m.sess.ID,
		TestID:     m.sess.TestID,
		ElapsedSec: m.sess.DurationSec - m.sess.TimeRemainingSec,
		Answers:    m.answers.All(),
		FinishedAt: now,
	}

	res := m.pipeline.Submit(ctx, payload)
	res.AutoSubmitted = auto
	res.SubmittedAt = now
	m.result = &res

	if err := m.persistLocked(ctx); err != nil {
		m.log.Error().Err(err).Msg("Persist submitted snapshot")
	}
	m.answers.Reset()

	m.log.Info().
		Str("session_id", m.sess.ID).
		Str("status", string(res.Status)).
		Bool("auto", auto).
		Msg("Session submitted")
	return res, nil
}

// Tick advances the countdown by one second. It is invoked by the ticker
// goroutine while the session runs; a tick that lands after pause or submit
// finds the phase changed and does nothing.
func (m *Manager) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil || m.sess.Phase != exam.PhaseRunning {
		return
	}
	if m.sess.TimeRemainingSec > 0 {
		m.sess.TimeRemainingSec--
	}
	if m.sess.TimeRemainingSec == 0 && m.sess.Settings.AutoSubmit && m.result == nil {
		m.log.Info().Str("session_id", m.sess.ID).Msg("Countdown reached zero, auto-submitting")
		if _, err := m.submitLocked(context.Background(), true); err != nil {
			m.log.Error().Err(err).Msg("Auto-submit")
		}
	}
}

// End abandons the active session without submitting and clears its
// snapshot.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return ErrNoActiveSession
	}
	m.endLocked(ctx)
	return nil
}

func (m *Manager) endLocked(ctx context.Context) {
	m.stopTickerLocked()
	if err := m.kv.Delete(ctx, exam.SessionKey(m.sess.TestID)); err != nil {
		m.log.Error().Err(err).Str("test_id", m.sess.TestID).Msg("Delete session snapshot")
	}
	m.log.Info().Str("session_id", m.sess.ID).Msg("Session ended")
	m.sess = nil
	m.questions = nil
	m.order = nil
	m.answers = exam.NewAnswerStore()
	m.result = nil
}

// Active returns a copy of the session while it is running or paused.
func (m *Manager) Active() (exam.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || !m.sess.Phase.Active() {
		return exam.Session{}, false
	}
	return *m.sess, true
}

// Question returns a question of the active session by id.
func (m *Manager) Question(id string) (exam.Question, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	return q, ok
}

// Answer returns the captured record for a question, if any.
func (m *Manager) Answer(questionID string) (exam.AnswerRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answers.Get(questionID)
}

// Progress reports answered count, total questions, and seconds remaining
// for display.
func (m *Manager) Progress() (answered, total, remainingSec int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return 0, 0, 0
	}
	return m.answers.Count(), len(m.sess.QuestionOrder), m.sess.TimeRemainingSec
}

func (m *Manager) persistLocked(ctx context.Context) error {
	snap := exam.Snapshot{
		Session:   *m.sess,
		Questions: m.order,
		Answers:   m.answers.All(),
		SavedAt:   m.clk.Now().UTC(),
	}
	b, err := exam.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := m.kv.Set(ctx, exam.SessionKey(m.sess.TestID), b); err != nil {
		return fmt.Errorf("persist session snapshot: %w", err)
	}
	return nil
}

// startTickerLocked launches the one-second tick loop. The loop exits when
// the done channel closes; a tick already in flight serializes through the
// manager mutex and no-ops once the phase is no longer running.
func (m *Manager) startTickerLocked() {
	if m.ticker != nil {
		return
	}
	t := m.clk.NewTicker(time.Second)
	done := make(chan struct{})
	m.ticker = t
	m.tickerDone = done

	go func() {
		for {
			select {
			case <-done:
				return
			case <-t.C():
				m.Tick()
			}
		}
	}()
}

func (m *Manager) stopTickerLocked() {
	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	close(m.tickerDone)
	m.ticker = nil
	m.tickerDone = nil
}
