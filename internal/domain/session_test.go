package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

func TestResetKeepsIDAndHistory(t *testing.T) {
	s := NewSession("abc", epoch)
	s.ActiveIntent = IntentPayBill
	s.Step = "pay_bill/ask_address"
	s.Slots[SlotAddress] = "123 Main St"
	s.FailedAttempts = 1
	s.AppendTurn(RoleUser, "pay my bill", IntentPayBill, epoch)
	s.AppendTurn(RoleAssistant, "What's the address?", IntentPayBill, epoch)

	s.Reset()
	assert.Equal(t, "abc", s.ID)
	assert.False(t, s.InFlow())
	assert.Empty(t, s.Slots)
	assert.Zero(t, s.FailedAttempts)
	require.Len(t, s.History, 2)
	assert.Equal(t, "pay my bill", s.History[0].Text)
}

func TestRecentTurns(t *testing.T) {
	s := NewSession("abc", epoch)
	for i := 0; i < 5; i++ {
		s.AppendTurn(RoleUser, strings.Repeat("x", i+1), IntentNone, epoch)
	}

	recent := s.RecentTurns(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "xxxx", recent[0].Text)
	assert.Equal(t, "xxxxx", recent[1].Text)

	assert.Len(t, s.RecentTurns(10), 5)
	assert.Empty(t, s.RecentTurns(0))
}

func TestAppendTurnTruncatesStoredText(t *testing.T) {
	s := NewSession("abc", epoch)
	s.AppendTurn(RoleUser, strings.Repeat("é", maxStoredTurnRunes+10), IntentNone, epoch)

	got := s.History[0].Text
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, maxStoredTurnRunes+3, len([]rune(got)))
}
