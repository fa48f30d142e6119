package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepdeck/prepdeck/internal/exam"
)

// HTTPClient implements Client against the platform REST API.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
	log     zerolog.Logger
}

// NewHTTP creates an HTTPClient for baseURL with the given request timeout.
func NewHTTP(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "transport").Logger(),
	}
}

type testEnvelope struct {
	Test      testDTO       `json:"test"`
	Questions []questionDTO `json:"questions"`
}

type testDTO struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	DurationSec int      `json:"duration_sec"`
	QuestionIDs []string `json:"question_ids"`
	Settings    struct {
		ShuffleQuestions bool `json:"shuffle_questions"`
		ShuffleOptions   bool `json:"shuffle_options"`
		AutoSubmit       bool `json:"auto_submit"`
	} `json:"settings"`
}

type questionDTO struct {
	ID      string  `json:"id"`
	Prompt  string  `json:"prompt"`
	Type    string  `json:"type"`
	Points  float64 `json:"points"`
	Options []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"options"`
}

type attemptResponse struct {
	AttemptID string `json:"attempt_id"`
}

// FetchTest retrieves the test definition and its questions.
func (c *HTTPClient) FetchTest(ctx context.Context, testID string) (exam.TestDefinition, []exam.Question, error) {
	url := fmt.Sprintf("%s/api/v1/tests/%s", c.baseURL, testID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return exam.TestDefinition{}, nil, &Error{Op: "fetch_test", Retryable: false, Err: err}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return exam.TestDefinition{}, nil, &Error{Op: "fetch_test", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return exam.TestDefinition{}, nil, c.statusError("fetch_test", resp)
	}

	var env testEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return exam.TestDefinition{}, nil, &Error{Op: "fetch_test", Retryable: false, Err: fmt.Errorf("decode response: %w", err)}
	}

	def := exam.TestDefinition{
		ID:          env.Test.ID,
		Title:       env.Test.Title,
		DurationSec: env.Test.DurationSec,
		QuestionIDs: env.Test.QuestionIDs,
		Settings: exam.Settings{
			ShuffleQuestions: env.Test.Settings.ShuffleQuestions,
			ShuffleOptions:   env.Test.Settings.ShuffleOptions,
			AutoSubmit:       env.Test.Settings.AutoSubmit,
		},
	}

	questions := make([]exam.Question, 0, len(env.Questions))
	for _, q := range env.Questions {
		opts := make([]exam.Option, 0, len(q.Options))
		for _, o := range q.Options {
			opts = append(opts, exam.Option{ID: o.ID, Text: o.Text})
		}
		questions = append(questions, exam.Question{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Type:    exam.QuestionType(q.Type),
			Options: opts,
			Points:  q.Points,
		})
	}

	c.log.Debug().Str("test_id", testID).Int("questions", len(questions)).Msg("Fetched test")
	return def, questions, nil
}

// SubmitAttempt posts a completed attempt and returns the remote attempt id.
func (c *HTTPClient) SubmitAttempt(ctx context.Context, payload AttemptPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Op: "submit_attempt", Retryable: false, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	url := c.baseURL + "/api/v1/attempts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Op: "submit_attempt", Retryable: false, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", &Error{Op: "submit_attempt", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.statusError("submit_attempt", resp)
	}

	var ar attemptResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", &Error{Op: "submit_attempt", Retryable: false, Err: fmt.Errorf("decode response: %w", err)}
	}

	c.log.Info().Str("session_id", payload.SessionID).Str("remote_id", ar.AttemptID).Msg("Attempt accepted")
	return ar.AttemptID, nil
}

// statusError classifies a non-success HTTP response. 5xx and 429 are
// retryable; other 4xx are validation failures that will never succeed.
func (c *HTTPClient) statusError(op string, resp *http.Response) *Error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
	return &Error{
		Op:        op,
		Status:    resp.StatusCode,
		Retryable: retryable,
		Err:       fmt.Errorf("%s", strings.TrimSpace(string(snippet))),
	}
}
