package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rbright/proctor/internal/config"
	"github.com/stretchr/testify/require"
)

type s3Request struct {
	method string
	path   string
}

func newFakeS3(t *testing.T, bucketExists bool) (*httptest.Server, func() []s3Request) {
	t.Helper()

	var (
		mu       sync.Mutex
		requests []s3Request
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, s3Request{method: r.Method, path: r.URL.Path})
		mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodHead:
			if !bucketExists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(server.Close)

	return server, func() []s3Request {
		mu.Lock()
		defer mu.Unlock()
		return append([]s3Request(nil), requests...)
	}
}

func newTestMinio(t *testing.T, server *httptest.Server, publicBase string) *Minio {
	t.Helper()
	m, err := NewMinio(config.StorageConfig{
		Backend:       "minio",
		Endpoint:      strings.TrimPrefix(server.URL, "http://"),
		Bucket:        "answers",
		PublicBaseURL: publicBase,
	})
	require.NoError(t, err)
	return m
}

func TestMinioUploadPutsObjectInBucket(t *testing.T) {
	server, requests := newFakeS3(t, true)
	m := newTestMinio(t, server, "")

	url, err := m.Upload(context.Background(), "tok/q1.wav", strings.NewReader("RIFF"), 4, "audio/wav")
	require.NoError(t, err)
	require.Equal(t, server.URL+"/answers/tok/q1.wav", url)

	got := requests()
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	require.Equal(t, http.MethodPut, last.method)
	require.Equal(t, "/answers/tok/q1.wav", last.path)
}

func TestMinioUploadUsesPublicBaseURL(t *testing.T) {
	server, _ := newFakeS3(t, true)
	m := newTestMinio(t, server, "https://media.example.com")

	url, err := m.Upload(context.Background(), "tok/q1.wav", strings.NewReader("RIFF"), 4, "audio/wav")
	require.NoError(t, err)
	require.Equal(t, "https://media.example.com/tok/q1.wav", url)
}

func TestMinioPing(t *testing.T) {
	server, _ := newFakeS3(t, true)
	require.NoError(t, newTestMinio(t, server, "").Ping(context.Background()))

	missing, _ := newFakeS3(t, false)
	err := newTestMinio(t, missing, "").Ping(context.Background())
	require.ErrorContains(t, err, "does not exist")
}

func TestNewMinioValidatesConfig(t *testing.T) {
	_, err := NewMinio(config.StorageConfig{Bucket: "answers"})
	require.ErrorContains(t, err, "endpoint is empty")

	_, err = NewMinio(config.StorageConfig{Endpoint: "127.0.0.1:9000"})
	require.ErrorContains(t, err, "bucket is empty")
}
