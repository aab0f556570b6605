package result

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbright/proctor/internal/answer"
	"github.com/rbright/proctor/internal/question"
	"github.com/rbright/proctor/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestHTTPSubmitterPostsPayloadWithUploadedAudio(t *testing.T) {
	var (
		gotPath   string
		gotAuth   string
		gotBody   map[string]any
		decodeErr error
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		decodeErr = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	local, err := storage.NewLocal(dir, "https://cdn.example.com")
	require.NoError(t, err)

	a := NewAssembler("sess-9", question.AssessmentInterview, []question.Question{{ID: "q1"}, {ID: "q2"}}, time.Minute, nil)
	require.NoError(t, a.Record(answer.Answer{QuestionID: "q1", Kind: answer.KindAudio, Text: "I like Go", Audio: []byte("RIFFdata")}))
	require.NoError(t, a.Record(answer.Answer{QuestionID: "q2", Kind: answer.KindText, Text: "typed"}))
	res := a.Finalize(20*time.Second, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	submitter := HTTPSubmitter{BaseURL: server.URL + "/", Token: "tok-1", APIKey: "secret", Storage: local}
	require.NoError(t, submitter.Submit(context.Background(), res))

	require.NoError(t, decodeErr)
	require.Equal(t, "/api/applications/interview/tok-1/complete", gotPath)
	require.Equal(t, "Bearer secret", gotAuth)
	require.Equal(t, float64(2), gotBody["total_questions"])
	require.Equal(t, float64(2), gotBody["answered_questions"])
	require.Equal(t, float64(40), gotBody["time_taken"])
	require.Equal(t, "interview", gotBody["assessment_type"])
	require.Equal(t, "2026-03-01T10:00:00Z", gotBody["completed_at"])

	answers := gotBody["answers"].([]any)
	first := answers[0].(map[string]any)
	require.Equal(t, "I like Go", first["answer"])
	require.Equal(t, "https://cdn.example.com/tok-1/sess-9/q1.wav", first["audio_url"])
	second := answers[1].(map[string]any)
	require.NotContains(t, second, "audio_url")

	data, err := os.ReadFile(filepath.Join(dir, "tok-1", "sess-9", "q1.wav"))
	require.NoError(t, err)
	require.Equal(t, "RIFFdata", string(data))

	// the caller's result is left untouched
	require.Equal(t, []byte("RIFFdata"), res.Answers[0].Audio)
	require.Empty(t, res.Answers[0].AudioURL)
}

func TestHTTPSubmitterSurfacesFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: ``, wantErr: "unexpected status 500"},
		{name: "error message", status: http.StatusBadRequest, body: `{"success":false,"message":"interview already completed"}`, wantErr: "interview already completed"},
		{name: "rejected", status: http.StatusOK, body: `{"success":false,"message":"token expired"}`, wantErr: "rejected: token expired"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			err := HTTPSubmitter{BaseURL: server.URL, Token: "tok"}.Submit(context.Background(), SessionResult{})
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestHTTPSubmitterWithoutStorageDropsAudio(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	res := SessionResult{Answers: []AnswerRecord{{QuestionID: "q1", Kind: answer.KindAudio, Answer: "spoken", Audio: []byte("x")}}}
	require.NoError(t, HTTPSubmitter{BaseURL: server.URL, Token: "tok"}.Submit(context.Background(), res))

	first := body["answers"].([]any)[0].(map[string]any)
	require.Equal(t, "spoken", first["answer"])
	require.NotContains(t, first, "audio_url")
}

func TestHTTPSubmitterRequiresTarget(t *testing.T) {
	require.ErrorContains(t, HTTPSubmitter{Token: "tok"}.Submit(context.Background(), SessionResult{}), "base URL")
	require.ErrorContains(t, HTTPSubmitter{BaseURL: "http://x"}.Submit(context.Background(), SessionResult{}), "token")
}

func TestAudioKeyEscapesSegments(t *testing.T) {
	require.Equal(t, "a%2Fb/s/q%201.wav", AudioKey("a/b", "s", "q 1"))
}
