package speech

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCommandSynthesizerCompletes(t *testing.T) {
	s := CommandSynthesizer{Argv: []string{"true"}}
	u, err := s.Speak(context.Background(), "hello")
	require.NoError(t, err)

	select {
	case <-u.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("utterance did not finish")
	}
}

func TestCommandSynthesizerCancelStopsProcess(t *testing.T) {
	s := CommandSynthesizer{Argv: []string{"sleep"}}
	u, err := s.Speak(context.Background(), "30")
	require.NoError(t, err)

	u.Cancel()
	u.Cancel()
	select {
	case <-u.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled utterance did not finish")
	}
}

func TestCommandSynthesizerEmptyTextFinishesImmediately(t *testing.T) {
	s := CommandSynthesizer{Argv: []string{"definitely-not-a-real-tts"}}
	u, err := s.Speak(context.Background(), "  ")
	require.NoError(t, err)
	<-u.Done()
}

func TestCommandSynthesizerErrors(t *testing.T) {
	_, err := CommandSynthesizer{}.Speak(context.Background(), "hi")
	require.ErrorContains(t, err, "tts command is empty")

	_, err = CommandSynthesizer{Argv: []string{"definitely-not-a-real-tts"}}.Speak(context.Background(), "hi")
	require.ErrorContains(t, err, "start tts command")
}

func TestCommandSynthesizerAvailable(t *testing.T) {
	require.NoError(t, CommandSynthesizer{Argv: []string{"true"}}.Available())
	require.Error(t, CommandSynthesizer{Argv: []string{"definitely-not-a-real-tts"}}.Available())
	require.Error(t, CommandSynthesizer{}.Available())
}

func TestCommandArgsPlaceholder(t *testing.T) {
	require.Equal(t, []string{"-w", "Question 1?"}, commandArgs([]string{"-w"}, "Question 1?"))
	require.Equal(t, []string{"--say=Hi", "-q"}, commandArgs([]string{"--say={text}", "-q"}, "Hi"))
	require.Equal(t, []string{"Hi"}, commandArgs(nil, "Hi"))
}
