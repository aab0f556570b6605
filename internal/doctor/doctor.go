// Package doctor runs runtime readiness diagnostics for config, tools,
// devices, the recognizer, the question source, and answer storage.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/proctor/internal/audio"
	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/hypr"
	"github.com/rbright/proctor/internal/question"
	"github.com/rbright/proctor/internal/speech"
	"github.com/rbright/proctor/internal/storage"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "control socket directory available", "XDG_RUNTIME_DIR is empty"))

	if cfg.Config.TTS.Enable {
		checks = append(checks, checkCommand(cfg.Config.TTS.Command.Argv, "tts_cmd"))
	}

	if cfg.Config.Indicator.Enable {
		checks = append(checks, checkIndicator(ctx, cfg.Config.Indicator))
	}

	checks = append(checks, checkQuestionSource(ctx, cfg.Config))
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkCamera(cfg.Config))
	checks = append(checks, checkRecognizerReady(ctx, cfg.Config))
	checks = append(checks, checkStorage(ctx, cfg.Config))

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkIndicator(ctx context.Context, cfg config.IndicatorConfig) Check {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop") {
		return checkBinary("busctl", "desktop notifications use busctl")
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	monitor, err := hypr.FocusedMonitor(ctx)
	if err != nil {
		return Check{Name: "indicator", Pass: false, Message: err.Error()}
	}
	return Check{Name: "indicator", Pass: true, Message: fmt.Sprintf("Hyprland notifications on %s", monitor)}
}

// checkQuestionSource loads a file bank or confirms the backend answers HTTP.
func checkQuestionSource(ctx context.Context, cfg config.Config) Check {
	if cfg.Questions.Source == "file" {
		bank, err := question.FileSource{Path: cfg.Questions.File}.Load(ctx, "")
		if err != nil {
			return Check{Name: "questions", Pass: false, Message: err.Error()}
		}
		return Check{Name: "questions", Pass: true, Message: fmt.Sprintf("%d %s questions in %s", len(bank.Questions), bank.AssessmentType, cfg.Questions.File)}
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")
	if base == "" {
		return Check{Name: "questions", Pass: false, Message: "backend base URL is empty"}
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
	if err != nil {
		return Check{Name: "questions", Pass: false, Message: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: "questions", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return Check{Name: "questions", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, base)}
	}
	return Check{Name: "questions", Pass: true, Message: fmt.Sprintf("backend reachable at %s", base)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkCamera(cfg config.Config) Check {
	matches, err := filepath.Glob(cfg.Camera.DeviceGlob)
	if err != nil {
		return Check{Name: "camera", Pass: false, Message: err.Error()}
	}
	if len(matches) == 0 {
		return Check{Name: "camera", Pass: false, Message: fmt.Sprintf("no device matches %s", cfg.Camera.DeviceGlob)}
	}
	return Check{Name: "camera", Pass: true, Message: fmt.Sprintf("found %s", strings.Join(matches, ", "))}
}

func checkRecognizerReady(ctx context.Context, cfg config.Config) Check {
	timeout := time.Duration(cfg.Recognizer.DialTimeoutMS) * time.Millisecond
	if err := speech.Probe(ctx, cfg.Recognizer.Endpoint, timeout); err != nil {
		return Check{Name: "recognizer.ready", Pass: false, Message: err.Error()}
	}
	return Check{Name: "recognizer.ready", Pass: true, Message: fmt.Sprintf("ready at %s", cfg.Recognizer.Endpoint)}
}

func checkStorage(ctx context.Context, cfg config.Config) Check {
	defaultDir, err := storage.DefaultDir()
	if err != nil {
		return Check{Name: "storage", Pass: false, Message: err.Error()}
	}
	provider, err := storage.New(cfg.Storage, defaultDir)
	if err != nil {
		return Check{Name: "storage", Pass: false, Message: err.Error()}
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := provider.Ping(ctx); err != nil {
		return Check{Name: "storage", Pass: false, Message: err.Error()}
	}
	backend := cfg.Storage.Backend
	if backend == "" {
		backend = "local"
	}
	return Check{Name: "storage", Pass: true, Message: fmt.Sprintf("%s backend writable", backend)}
}
