package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultDialTimeout = 3 * time.Second

type StreamConfig struct {
	Endpoint             string
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	Phrases              []string
	SampleRateHertz      int
	DialTimeout          time.Duration

	DebugResponseSinkJSON io.Writer

	// OnResult receives every non-empty result in arrival order.
	OnResult func(Result)
	// OnEnd is called once if the service ends the stream before Cancel.
	OnEnd func(error)
}

// Stream is one StreamingRecognize call.
type Stream struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc

	onResult func(Result)
	onEnd    func(error)
	debug    io.Writer

	done chan struct{}

	mu         sync.Mutex
	closedSend bool
	cancelled  bool
	recvErr    error
}

// DialStream connects, waits for readiness, sends the config request,
// and starts receiving.
func DialStream(ctx context.Context, cfg StreamConfig) (*Stream, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("recognizer endpoint is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.SampleRateHertz <= 0 {
		cfg.SampleRateHertz = 16000
	}

	conn, err := dial(ctx, endpoint, cfg.DialTimeout)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	clientStream, err := conn.NewStream(streamCtx, streamDesc, streamMethod)
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, fmt.Errorf("open streaming recognizer: %w", err)
	}

	var phrases []string
	for _, phrase := range cfg.Phrases {
		if trimmed := strings.TrimSpace(phrase); trimmed != "" {
			phrases = append(phrases, trimmed)
		}
	}
	configMsg, err := EncodeRequest(Request{Config: &RecognitionConfig{
		SampleRateHertz:      cfg.SampleRateHertz,
		LanguageCode:         cfg.LanguageCode,
		Model:                strings.TrimSpace(cfg.Model),
		AutomaticPunctuation: cfg.AutomaticPunctuation,
		InterimResults:       true,
		Phrases:              phrases,
	}})
	if err == nil {
		err = clientStream.SendMsg(configMsg)
	}
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	s := &Stream{
		conn:     conn,
		stream:   clientStream,
		cancel:   cancel,
		onResult: cfg.OnResult,
		onEnd:    cfg.OnEnd,
		debug:    cfg.DebugResponseSinkJSON,
		done:     make(chan struct{}),
	}
	go s.recvLoop()
	return s, nil
}

// Probe checks that the recognizer endpoint becomes ready.
func Probe(ctx context.Context, endpoint string, timeout time.Duration) error {
	if strings.TrimSpace(endpoint) == "" {
		return errors.New("recognizer endpoint is empty")
	}
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	conn, err := dial(ctx, strings.TrimSpace(endpoint), timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

func dial(ctx context.Context, endpoint string, timeout time.Duration) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial recognizer %q: %w", endpoint, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for recognizer readiness: %w", err)
	}
	return conn, nil
}

func (s *Stream) recvLoop() {
	defer close(s.done)

	for {
		msg := new(structpb.Struct)
		err := s.stream.RecvMsg(msg)
		if err == nil {
			s.deliver(msg)
			continue
		}

		s.mu.Lock()
		cancelled := s.cancelled
		if !errors.Is(err, io.EOF) {
			s.recvErr = err
		}
		s.mu.Unlock()

		if cancelled || status.Code(err) == codes.Canceled {
			return
		}
		if s.onEnd != nil {
			if errors.Is(err, io.EOF) {
				s.onEnd(nil)
			} else {
				s.onEnd(err)
			}
		}
		return
	}
}

func (s *Stream) deliver(msg *structpb.Struct) {
	if s.debug != nil {
		if b, err := protojson.Marshal(msg); err == nil {
			_, _ = s.debug.Write(append(b, '\n'))
		}
	}
	if s.onResult == nil {
		return
	}
	for _, result := range DecodeResponse(msg).Results {
		result.Transcript = strings.Join(strings.Fields(result.Transcript), " ")
		if result.Transcript == "" {
			continue
		}
		s.onResult(result)
	}
}

// SendAudio forwards one PCM chunk. Empty chunks are ignored.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.mu.Lock()
	closed := s.closedSend || s.cancelled
	recvErr := s.recvErr
	s.mu.Unlock()

	if closed {
		return errors.New("stream already closed for sending")
	}
	if recvErr != nil {
		return fmt.Errorf("stream receive loop failed: %w", recvErr)
	}

	msg, err := EncodeRequest(Request{Audio: chunk})
	if err != nil {
		return err
	}
	return s.stream.SendMsg(msg)
}

// Done is closed once the receive loop exits.
func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvErr
}

// CloseSend half-closes the stream; results still arrive until the
// service finishes.
func (s *Stream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closedSend {
		return nil
	}
	s.closedSend = true
	return s.stream.CloseSend()
}

// Cancel aborts the call and closes the connection without waiting for
// the receive loop. OnEnd is not called afterwards.
func (s *Stream) Cancel() error {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return nil
	}
	s.cancelled = true
	if !s.closedSend {
		s.closedSend = true
		_ = s.stream.CloseSend()
	}
	s.mu.Unlock()

	s.cancel()
	return s.conn.Close()
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
