package view

import (
	"testing"

	"ShopChat/models"

	"github.com/stretchr/testify/assert"
)

func TestStateTransitions(t *testing.T) {
	s := NewState()
	assert.Equal(t, ModeUnknown, s.Snapshot().Mode)

	s.ShowActiveChat("c1")
	s.OpenChat("c1")
	s.AppendMessage(models.Message{Content: "hi"})
	snap := s.Snapshot()
	assert.Equal(t, ModeActiveChat, snap.Mode)
	assert.True(t, snap.Expanded)
	assert.Len(t, snap.Messages, 1)

	// same chat keeps the open panel
	s.ShowActiveChat("c1")
	assert.True(t, s.Snapshot().Expanded)

	s.ShowActiveChat("c2")
	snap = s.Snapshot()
	assert.False(t, snap.Expanded)
	assert.Empty(t, snap.Messages)

	s.ShowNoActiveChat()
	snap = s.Snapshot()
	assert.Equal(t, ModeNoActiveChat, snap.Mode)
	assert.Empty(t, snap.ChatID)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewState()
	s.SetActiveChats([]string{"a", "b"})
	snap := s.Snapshot()
	snap.ActiveChats[0] = "z"
	assert.Equal(t, []string{"a", "b"}, s.Snapshot().ActiveChats)
}

func TestChangesCoalesce(t *testing.T) {
	s := NewState()
	s.Notify("one")
	s.Notify("two")

	<-s.Changes()
	select {
	case <-s.Changes():
		t.Fatal("expected a single pending signal")
	default:
	}
	assert.Equal(t, uint64(2), s.Snapshot().Version)
	assert.Equal(t, []string{"one", "two"}, s.Snapshot().Notices)
}
