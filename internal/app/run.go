package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rbright/proctor/internal/capture"
	"github.com/rbright/proctor/internal/cli"
	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/indicator"
	"github.com/rbright/proctor/internal/ipc"
	"github.com/rbright/proctor/internal/metrics"
	"github.com/rbright/proctor/internal/pipeline"
	"github.com/rbright/proctor/internal/question"
	"github.com/rbright/proctor/internal/result"
	"github.com/rbright/proctor/internal/session"
	"github.com/rbright/proctor/internal/speech"
	"github.com/rbright/proctor/internal/storage"
)

var errSourceUnset = errors.New("run and questions need --token, --questions, or questions.source=file in config")

// commandRun owns the session: it holds the control socket, drives the
// controller, and exits once the result has been submitted or the
// session is aborted.
func (r Runner) commandRun(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	source, err := questionSource(parsed, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	owner, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{Retries: 8})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = owner.Close() }()

	bank, err := source.Load(ctx, parsed.Token)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load questions failed", "error", err.Error())
		return 1
	}

	submitter, err := buildSubmitter(parsed, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	adapter := capture.NewAdapter(capture.Config{
		Media:        pipeline.NewMedia(cfg, logger),
		Recognizer:   buildRecognizer(ctx, cfg, logger),
		Synthesizer:  buildSynthesizer(cfg, logger),
		Logger:       logger,
		MaxRestarts:  cfg.Recognizer.MaxRestarts,
		RestartDelay: time.Duration(cfg.Recognizer.RestartDelayMS) * time.Millisecond,
	})

	observers := session.Observers{newConsole(r.Stdout)}
	if cfg.Indicator.Enable || cfg.Indicator.SoundEnable {
		notifier := indicator.New(cfg.Indicator, logger)
		defer notifier.Close()
		observers = append(observers, notifier)
	}

	shutdownMetrics := func() {}
	if listen := strings.TrimSpace(cfg.Metrics.Listen); listen != "" {
		recorder, shutdown, err := serveMetrics(listen, logger)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		shutdownMetrics = shutdown
		observers = append(observers, recorder)
	}
	defer shutdownMetrics()

	controller := session.NewController(session.Config{
		Logger:    logger,
		Capture:   adapter,
		Observer:  observers,
		Submitter: submitter,
		Pacing:    pacingFromConfig(cfg.Pacing),
	})
	if err := controller.InitializeBank(bank); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(runCtx, owner, controller)
	}()

	if err := controller.Start(runCtx); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		cancel()
		<-serverErrCh
		return 1
	}
	if r.Stdin != nil {
		go readAnswers(runCtx, r.Stdin, controller, r.Stderr)
	}

	<-controller.Done()
	cancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	snap := controller.Snapshot()
	res, completed := controller.Result()
	if !completed {
		fmt.Fprintln(r.Stdout, "session aborted; nothing was submitted")
		return 1
	}
	if snap.SubmitError != "" {
		fmt.Fprintf(r.Stderr, "error: submit result: %s\n", snap.SubmitError)
		return 1
	}
	fmt.Fprintf(r.Stdout, "submitted %d of %d answers in %ds\n", res.AnsweredQuestions, res.TotalQuestions, res.TimeTakenSeconds)
	return 0
}

func questionSource(parsed cli.Parsed, cfg config.Config, logger *slog.Logger) (question.Source, error) {
	switch {
	case parsed.QuestionsFile != "":
		return question.FileSource{Path: parsed.QuestionsFile}, nil
	case parsed.Token != "":
		return question.HTTPSource{
			BaseURL: cfg.Backend.BaseURL,
			APIKey:  cfg.Backend.APIKey,
			Client:  &http.Client{Timeout: time.Duration(cfg.Backend.TimeoutMS) * time.Millisecond},
			Logger:  logger,
		}, nil
	case cfg.Questions.Source == "file" && strings.TrimSpace(cfg.Questions.File) != "":
		return question.FileSource{Path: cfg.Questions.File}, nil
	default:
		return nil, errSourceUnset
	}
}

// buildSubmitter posts to the backend for token sessions and spools to
// disk for local banks.
func buildSubmitter(parsed cli.Parsed, cfg config.Config, logger *slog.Logger) (result.Submitter, error) {
	answersDir, err := storage.DefaultDir()
	if err != nil {
		return nil, err
	}
	store, err := storage.New(cfg.Storage, answersDir)
	if err != nil {
		return nil, err
	}

	if parsed.Token != "" {
		return result.HTTPSubmitter{
			BaseURL: cfg.Backend.BaseURL,
			Token:   parsed.Token,
			APIKey:  cfg.Backend.APIKey,
			Storage: store,
			Logger:  logger,
			Timeout: time.Duration(cfg.Backend.TimeoutMS) * time.Millisecond,
		}, nil
	}
	return result.FileSubmitter{
		Dir:     filepath.Join(filepath.Dir(answersDir), "results"),
		Storage: store,
		Logger:  logger,
	}, nil
}

// buildRecognizer returns nil when the recognizer service is unreachable
// so the session starts with recognition degraded.
func buildRecognizer(ctx context.Context, cfg config.Config, logger *slog.Logger) capture.Recognizer {
	timeout := time.Duration(cfg.Recognizer.DialTimeoutMS) * time.Millisecond
	if err := speech.Probe(ctx, cfg.Recognizer.Endpoint, timeout); err != nil {
		logger.Warn("speech recognizer unavailable", "endpoint", cfg.Recognizer.Endpoint, "error", err.Error())
		return nil
	}
	return pipeline.NewRecognizer(cfg, logger)
}

func buildSynthesizer(cfg config.Config, logger *slog.Logger) capture.Synthesizer {
	if !cfg.TTS.Enable {
		return nil
	}
	synth := speech.CommandSynthesizer{Argv: cfg.TTS.Command.Argv, Logger: logger}
	if err := synth.Available(); err != nil {
		logger.Warn("speech synthesis unavailable", "error", err.Error())
		return nil
	}
	return synth
}

func pacingFromConfig(p config.PacingConfig) session.Pacing {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return session.Pacing{
		Thinking:           ms(p.ThinkingMS),
		Settle:             ms(p.SettleMS),
		Acknowledge:        ms(p.AcknowledgeMS),
		Closing:            ms(p.ClosingMS),
		Greeting:           ms(p.GreetingMS),
		Silence:            ms(p.SilenceMS),
		MinTranscriptChars: p.MinTranscriptChars,
	}
}

// serveMetrics exposes session and process series on listen.
func serveMetrics(listen string, logger *slog.Logger) (*metrics.Recorder, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.New(reg)
	if err != nil {
		return nil, nil, err
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err.Error())
		}
	}()
	logger.Info("metrics listening", "addr", ln.Addr().String())

	return recorder, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
