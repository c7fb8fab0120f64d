package atcchat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/geofs-atc/internal/ai"
)

func TestEnsureInitializedRunsIntroOnce(t *testing.T) {
	s := NewContextStore(0)
	calls := 0
	intro := func() (string, error) {
		calls++
		return "intro", nil
	}

	created, err := s.EnsureInitialized("KJFK", intro)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureInitialized("KJFK", intro)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, calls)

	msgs := s.Messages("KJFK")
	require.Len(t, msgs, 1)
	assert.Equal(t, ai.ChatMessage{Role: ai.RoleSystem, Content: "intro"}, msgs[0])
}

func TestEnsureInitializedErrorLeavesNoContext(t *testing.T) {
	s := NewContextStore(0)
	_, err := s.EnsureInitialized("KJFK", func() (string, error) { return "", errors.New("boom") })
	assert.Error(t, err)
	assert.False(t, s.Has("KJFK"))
	assert.Nil(t, s.Messages("KJFK"))
}

func TestAppendKeepsOrderAndCopies(t *testing.T) {
	s := NewContextStore(0)
	assert.False(t, s.AppendUserTurn("KJFK", "orphan"), "append needs an intro first")

	_, err := s.EnsureInitialized("KJFK", func() (string, error) { return "intro", nil })
	require.NoError(t, err)
	s.AppendSituationalUpdate("KJFK", "update")
	s.AppendUserTurn("KJFK", "request taxi")
	s.AppendAssistantTurn("KJFK", "taxi via B")

	msgs := s.Messages("KJFK")
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.Role
	}
	assert.Equal(t, []string{ai.RoleSystem, ai.RoleSystem, ai.RoleUser, ai.RoleAssistant}, roles)

	msgs[0].Content = "changed"
	assert.Equal(t, "intro", s.Messages("KJFK")[0].Content)
}

func TestMaxHistoryKeepsIntro(t *testing.T) {
	s := NewContextStore(4)
	_, err := s.EnsureInitialized("EGLL", func() (string, error) { return "intro", nil })
	require.NoError(t, err)
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		s.AppendUserTurn("EGLL", text)
	}

	msgs := s.Messages("EGLL")
	require.Len(t, msgs, 4)
	assert.Equal(t, "intro", msgs[0].Content)
	assert.Equal(t, "c", msgs[1].Content)
	assert.Equal(t, "e", msgs[3].Content)
}

func TestMaxHistoryFloor(t *testing.T) {
	s := NewContextStore(1)
	_, err := s.EnsureInitialized("EGLL", func() (string, error) { return "intro", nil })
	require.NoError(t, err)
	s.AppendSituationalUpdate("EGLL", "update")
	s.AppendUserTurn("EGLL", "hello")

	msgs := s.Messages("EGLL")
	require.Len(t, msgs, 3)
	assert.Equal(t, "hello", msgs[2].Content)
}

func TestCodesAndReset(t *testing.T) {
	s := NewContextStore(0)
	for _, code := range []string{"LFPG", "EGLL"} {
		_, err := s.EnsureInitialized(code, func() (string, error) { return "intro", nil })
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"EGLL", "LFPG"}, s.Codes())

	s.Reset()
	assert.Empty(t, s.Codes())
}
