package result

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/proctor/internal/storage"
)

// FileSubmitter writes results as session_<id>.json under Dir. It backs
// sessions run from a local question bank, where there is no backend to
// post to.
type FileSubmitter struct {
	Dir     string
	Storage storage.Provider
	Logger  *slog.Logger
}

func (s FileSubmitter) Submit(ctx context.Context, res SessionResult) error {
	if strings.TrimSpace(s.Dir) == "" {
		return errors.New("result directory is empty")
	}
	if strings.TrimSpace(res.SessionID) == "" {
		return errors.New("result has no session id")
	}

	payload, err := attachAudio(ctx, s.Storage, s.Logger, "local", res)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("create result directory %s: %w", s.Dir, err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	path := s.Path(res.SessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write result %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write result %s: %w", path, err)
	}

	if s.Logger != nil {
		s.Logger.Info("result saved", "session_id", res.SessionID, "path", path)
	}
	return nil
}

// Path is where the result for sessionID is written.
func (s FileSubmitter) Path(sessionID string) string {
	return filepath.Join(s.Dir, "session_"+filepath.Base(sessionID)+".json")
}
