// Package storage uploads recorded answers to a blob store and returns
// the URL the backend should reference.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rbright/proctor/internal/config"
)

// Provider stores answer blobs.
type Provider interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	// Ping reports whether the store is reachable and writable.
	Ping(ctx context.Context) error
}

// New builds the provider selected by cfg. defaultDir is used for the
// local backend when cfg.Dir is empty.
func New(cfg config.StorageConfig, defaultDir string) (Provider, error) {
	switch cfg.Backend {
	case "", "local":
		dir := strings.TrimSpace(cfg.Dir)
		if dir == "" {
			dir = defaultDir
		}
		return NewLocal(dir, cfg.PublicBaseURL)
	case "minio":
		return NewMinio(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// DefaultDir is where the local backend keeps answers when no
// directory is configured.
func DefaultDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "proctor", "answers"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for answers: %w", err)
	}
	return filepath.Join(home, ".local", "state", "proctor", "answers"), nil
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(key)), "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("storage key is empty")
	}
	return key, nil
}

func joinURL(base string, key string) (string, error) {
	parsed, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse public base url: %w", err)
	}
	return parsed.JoinPath(key).String(), nil
}
