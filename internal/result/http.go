package result

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rbright/proctor/internal/storage"
)

const defaultSubmitTimeout = 10 * time.Second

// HTTPSubmitter posts results to the hiring backend. Audio answers are
// uploaded through Storage first and referenced by URL.
type HTTPSubmitter struct {
	BaseURL string
	Token   string
	APIKey  string
	Storage storage.Provider
	Client  *http.Client
	Logger  *slog.Logger
	Timeout time.Duration
}

type submitResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

func (s HTTPSubmitter) Submit(ctx context.Context, res SessionResult) error {
	if strings.TrimSpace(s.BaseURL) == "" {
		return errors.New("submission base URL is empty")
	}
	if strings.TrimSpace(s.Token) == "" {
		return errors.New("submission token is empty")
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := s.uploadAudio(ctx, res)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	endpoint := strings.TrimRight(s.BaseURL, "/") + "/api/applications/interview/" + url.PathEscape(s.Token) + "/complete"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return fmt.Errorf("submit result: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read submit response: %w", err)
	}

	var decoded submitResponse
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode >= 300 {
		if decoded.Message != "" {
			return fmt.Errorf("submit result: status %d: %s", resp.StatusCode, decoded.Message)
		}
		return fmt.Errorf("submit result: unexpected status %d", resp.StatusCode)
	}
	if decoded.Success != nil && !*decoded.Success {
		return fmt.Errorf("submit result rejected: %s", decoded.Message)
	}

	if s.Logger != nil {
		s.Logger.Info("result submitted",
			"session_id", res.SessionID,
			"answers", len(payload.Answers),
			"answered", payload.AnsweredQuestions,
		)
	}
	return nil
}

func (s HTTPSubmitter) uploadAudio(ctx context.Context, res SessionResult) (SessionResult, error) {
	return attachAudio(ctx, s.Storage, s.Logger, s.Token, res)
}

// attachAudio returns a copy of res whose audio answers carry URLs.
func attachAudio(ctx context.Context, store storage.Provider, logger *slog.Logger, prefix string, res SessionResult) (SessionResult, error) {
	out := res
	out.Answers = make([]AnswerRecord, len(res.Answers))
	copy(out.Answers, res.Answers)

	for i := range out.Answers {
		record := &out.Answers[i]
		if len(record.Audio) == 0 {
			continue
		}
		if store == nil {
			if logger != nil {
				logger.Warn("no storage configured; audio answer sent as transcript only", "question_id", record.QuestionID)
			}
			record.Audio = nil
			continue
		}

		key := AudioKey(prefix, res.SessionID, record.QuestionID)
		audioURL, err := store.Upload(ctx, key, bytes.NewReader(record.Audio), int64(len(record.Audio)), "audio/wav")
		if err != nil {
			return SessionResult{}, fmt.Errorf("upload audio for question %s: %w", record.QuestionID, err)
		}
		record.AudioURL = audioURL
		record.Audio = nil
	}
	return out, nil
}

// AudioKey is the object key for one recorded answer.
func AudioKey(token string, sessionID string, questionID string) string {
	return strings.Join([]string{
		url.PathEscape(token),
		url.PathEscape(sessionID),
		url.PathEscape(questionID) + ".wav",
	}, "/")
}

func (s HTTPSubmitter) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: defaultSubmitTimeout}
}
