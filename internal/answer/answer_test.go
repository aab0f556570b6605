package answer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	require.True(t, Answer{Kind: KindText, Text: "  "}.Empty())
	require.False(t, Answer{Kind: KindText, Text: "hello"}.Empty())
	require.True(t, Answer{Kind: KindChoice}.Empty())
	require.False(t, Answer{Kind: KindChoice, Choice: "b"}.Empty())
	require.False(t, Answer{Kind: KindAudio, Audio: []byte{1}}.Empty())
	require.True(t, Answer{Kind: KindAudio}.Empty())
}

func TestValue(t *testing.T) {
	require.Equal(t, "b", Answer{Kind: KindChoice, Choice: "b", Text: "ignored"}.Value())
	require.Equal(t, "spoken words", Answer{Kind: KindAudio, Text: "spoken words"}.Value())
}
