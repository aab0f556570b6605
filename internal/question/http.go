package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPSource resolves a candidate token against the hiring backend.
type HTTPSource struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Logger  *slog.Logger
}

type lookupResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    *lookupData `json:"data"`
}

type lookupData struct {
	ID               flexibleID       `json:"id"`
	InterviewStatus  string           `json:"interview_status"`
	AssessmentType   string           `json:"assessment_type"`
	TimeLimitSeconds int              `json:"time_limit_seconds"`
	CustomQuestions  []remoteQuestion `json:"custom_questions"`
	Job              struct {
		Title string `json:"title"`
	} `json:"job"`
	Candidate struct {
		Name string `json:"name"`
	} `json:"candidate"`
}

type remoteQuestion struct {
	ID             flexibleID        `json:"id"`
	QuestionText   string            `json:"question_text"`
	Text           string            `json:"text"`
	QuestionType   string            `json:"question_type"`
	Type           string            `json:"type"`
	AnswerMode     string            `json:"answer_mode"`
	Duration       int               `json:"duration"`
	TimeLimit      int               `json:"time_limit"`
	CodeSnippet    string            `json:"code_snippet"`
	ExpectedAnswer string            `json:"expected_answer"`
	CorrectAnswer  string            `json:"correct_answer"`
	Options        map[string]string `json:"options"`
}

// flexibleID accepts numeric and string ids.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return fmt.Errorf("invalid id %s", raw)
	}
	*id = flexibleID(raw)
	return nil
}

func (s HTTPSource) Load(ctx context.Context, token string) (Bank, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Bank{}, ErrInvalidToken
	}
	if strings.TrimSpace(s.BaseURL) == "" {
		return Bank{}, errors.New("question source base URL is empty")
	}

	endpoint := strings.TrimRight(s.BaseURL, "/") + "/api/applications/interview/" + url.PathEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Bank{}, fmt.Errorf("build question request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return Bank{}, fmt.Errorf("fetch questions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Bank{}, fmt.Errorf("read question response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Bank{}, ErrInvalidToken
	case resp.StatusCode >= 300:
		return Bank{}, fmt.Errorf("fetch questions: unexpected status %d", resp.StatusCode)
	}

	var decoded lookupResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Bank{}, fmt.Errorf("decode question response: %w", err)
	}
	if !decoded.Success || decoded.Data == nil {
		return Bank{}, ErrInvalidToken
	}

	data := decoded.Data
	if strings.EqualFold(data.InterviewStatus, "completed") {
		return Bank{}, ErrAlreadyCompleted
	}
	if len(data.CustomQuestions) == 0 {
		return Bank{}, ErrNoQuestions
	}

	assessmentType, err := ParseAssessmentType(data.AssessmentType)
	if err != nil {
		return Bank{}, err
	}

	bank := Bank{
		AssessmentType:   assessmentType,
		CandidateName:    strings.TrimSpace(data.Candidate.Name),
		JobTitle:         strings.TrimSpace(data.Job.Title),
		TimeLimitSeconds: data.TimeLimitSeconds,
		Questions:        make([]Question, 0, len(data.CustomQuestions)),
	}
	for _, remote := range data.CustomQuestions {
		bank.Questions = append(bank.Questions, remote.toQuestion())
	}

	bank = bank.Normalize()
	if err := bank.Validate(); err != nil {
		return Bank{}, err
	}

	if s.Logger != nil {
		s.Logger.Info("question bank loaded",
			"application_id", string(data.ID),
			"assessment_type", string(bank.AssessmentType),
			"questions", len(bank.Questions),
		)
	}
	return bank, nil
}

func (s HTTPSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

func (r remoteQuestion) toQuestion() Question {
	q := Question{
		ID:              string(r.ID),
		Text:            firstNonEmpty(r.QuestionText, r.Text),
		Type:            Type(firstNonEmpty(r.QuestionType, r.Type)),
		AnswerMode:      AnswerMode(r.AnswerMode),
		DurationSeconds: r.Duration,
		CodeSnippet:     r.CodeSnippet,
		CorrectAnswer:   r.CorrectAnswer,
		ExpectedAnswer:  r.ExpectedAnswer,
	}
	if q.DurationSeconds <= 0 {
		q.DurationSeconds = r.TimeLimit
	}
	if len(r.Options) > 0 {
		keys := make([]string, 0, len(r.Options))
		for key := range r.Options {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			q.Options = append(q.Options, Option{Key: key, Text: r.Options[key]})
		}
	}
	return q
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
