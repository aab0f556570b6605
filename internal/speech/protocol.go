// Package speech talks to the streaming recognizer service over gRPC
// and speaks prompts through a local text-to-speech command.
package speech

import (
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The recognizer service exchanges google.protobuf.Struct messages: one
// config request, then audio requests; responses carry result lists.
const (
	serviceName  = "proctor.speech.v1.Recognizer"
	streamName   = "StreamingRecognize"
	streamMethod = "/" + serviceName + "/" + streamName
)

type RecognitionConfig struct {
	SampleRateHertz      int
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	InterimResults       bool
	Phrases              []string
}

// Request carries either Config or Audio.
type Request struct {
	Config *RecognitionConfig
	Audio  []byte
}

type Result struct {
	Transcript string
	IsFinal    bool
	Stability  float64
}

type Response struct {
	Results []Result
}

var streamDesc = &grpc.StreamDesc{
	StreamName:    streamName,
	ServerStreams: true,
	ClientStreams: true,
}

// RecognizerServer is implemented by recognizer bridges and test doubles.
type RecognizerServer interface {
	StreamingRecognize(stream grpc.ServerStream) error
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RecognizerServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    streamName,
		Handler:       streamingRecognizeHandler,
		ServerStreams: true,
		ClientStreams: true,
	}},
	Metadata: "proctor/speech/v1/recognizer.proto",
}

func RegisterRecognizerServer(registrar grpc.ServiceRegistrar, srv RecognizerServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func streamingRecognizeHandler(srv any, stream grpc.ServerStream) error {
	return srv.(RecognizerServer).StreamingRecognize(stream)
}

func EncodeRequest(req Request) (*structpb.Struct, error) {
	switch {
	case req.Config != nil:
		phrases := make([]any, 0, len(req.Config.Phrases))
		for _, phrase := range req.Config.Phrases {
			phrases = append(phrases, phrase)
		}
		return structpb.NewStruct(map[string]any{
			"config": map[string]any{
				"sample_rate_hertz":     req.Config.SampleRateHertz,
				"language_code":         req.Config.LanguageCode,
				"model":                 req.Config.Model,
				"automatic_punctuation": req.Config.AutomaticPunctuation,
				"interim_results":       req.Config.InterimResults,
				"phrases":               phrases,
			},
		})
	case len(req.Audio) > 0:
		return structpb.NewStruct(map[string]any{
			"audio": base64.StdEncoding.EncodeToString(req.Audio),
		})
	default:
		return nil, errors.New("request has neither config nor audio")
	}
}

func DecodeRequest(msg *structpb.Struct) (Request, error) {
	fields := msg.GetFields()
	if cfg := fields["config"].GetStructValue(); cfg != nil {
		c := cfg.GetFields()
		out := &RecognitionConfig{
			SampleRateHertz:      int(c["sample_rate_hertz"].GetNumberValue()),
			LanguageCode:         c["language_code"].GetStringValue(),
			Model:                c["model"].GetStringValue(),
			AutomaticPunctuation: c["automatic_punctuation"].GetBoolValue(),
			InterimResults:       c["interim_results"].GetBoolValue(),
		}
		for _, phrase := range c["phrases"].GetListValue().GetValues() {
			out.Phrases = append(out.Phrases, phrase.GetStringValue())
		}
		return Request{Config: out}, nil
	}
	if encoded, ok := fields["audio"]; ok {
		audio, err := base64.StdEncoding.DecodeString(encoded.GetStringValue())
		if err != nil {
			return Request{}, fmt.Errorf("decode audio: %w", err)
		}
		return Request{Audio: audio}, nil
	}
	return Request{}, errors.New("request has neither config nor audio")
}

func EncodeResponse(resp Response) (*structpb.Struct, error) {
	results := make([]any, 0, len(resp.Results))
	for _, result := range resp.Results {
		results = append(results, map[string]any{
			"transcript": result.Transcript,
			"is_final":   result.IsFinal,
			"stability":  result.Stability,
		})
	}
	return structpb.NewStruct(map[string]any{"results": results})
}

func DecodeResponse(msg *structpb.Struct) Response {
	var out Response
	for _, value := range msg.GetFields()["results"].GetListValue().GetValues() {
		fields := value.GetStructValue().GetFields()
		out.Results = append(out.Results, Result{
			Transcript: fields["transcript"].GetStringValue(),
			IsFinal:    fields["is_final"].GetBoolValue(),
			Stability:  fields["stability"].GetNumberValue(),
		})
	}
	return out
}
