package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssembleNormalizesWhitespace(t *testing.T) {
	t.Parallel()

	require.Equal(t, "hello world from proctor", Assemble([]string{" hello", "world", "\nfrom", "proctor "}))
}

func TestAssembleEmptyInput(t *testing.T) {
	t.Parallel()

	require.Empty(t, Assemble(nil))
	require.Empty(t, Assemble([]string{"  ", "\n\t"}))
}

func TestMergerInterimThenFinal(t *testing.T) {
	t.Parallel()

	var m Merger
	require.True(t, m.Observe("hello wor", false))
	require.Equal(t, "hello wor", m.Text())
	require.Empty(t, m.Final())

	require.True(t, m.Observe("hello world", true))
	require.Equal(t, "hello world", m.Text())
	require.Equal(t, "hello world", m.Final())
}

func TestMergerReplacesInterimRevisions(t *testing.T) {
	t.Parallel()

	var m Merger
	m.Observe("I worked", false)
	m.Observe("I worked on", false)
	m.Observe("I worked on payments", false)
	require.Equal(t, "I worked on payments", m.Text())
}

func TestMergerCommitsDivergentInterim(t *testing.T) {
	t.Parallel()

	var m Merger
	m.Observe("first phrase", false)
	m.Observe("second answer entirely", false)
	require.Equal(t, "first phrase second answer entirely", m.Text())
	require.Equal(t, "first phrase", m.Final())
}

func TestMergerAppendsSuccessiveFinals(t *testing.T) {
	t.Parallel()

	var m Merger
	m.Observe("I led the migration.", true)
	m.Observe("It took three months.", true)
	require.Equal(t, "I led the migration. It took three months.", m.Text())
}

func TestMergerSuppressesDuplicateFinal(t *testing.T) {
	t.Parallel()

	var m Merger
	require.True(t, m.Observe("same words", true))
	require.False(t, m.Observe("same words", true))
	require.False(t, m.Observe("same", true))
	require.Equal(t, "same words", m.Text())
}

func TestMergerIgnoresBlankFragments(t *testing.T) {
	t.Parallel()

	var m Merger
	require.False(t, m.Observe("   ", false))
	require.Empty(t, m.Text())
}

func TestMergerReset(t *testing.T) {
	t.Parallel()

	var m Merger
	m.Observe("hello", true)
	m.Observe("there", false)
	m.Reset()
	require.Empty(t, m.Text())
}

func TestIsContinuation(t *testing.T) {
	t.Parallel()

	require.True(t, isContinuation("hello", "hello world"))
	require.True(t, isContinuation("the quick brown fox", "the quick brown cat"))
	require.False(t, isContinuation("the quick brown fox", "a slow green turtle"))
}
