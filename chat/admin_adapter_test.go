package chat

import (
	"context"
	"strings"
	"testing"

	"ShopChat/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedAdmin(t *testing.T, f *fixture, ids ...string) *AdminAdapter {
	t.Helper()
	for _, id := range ids {
		f.api.list = append(f.api.list, models.ChatSummary{ChatID: id})
	}
	a := f.admin(t)
	require.NoError(t, a.Start(context.Background()))
	a.HandleOpen()
	eventually(t, func() bool {
		got, err := a.ActiveChats(context.Background())
		return err == nil && len(got) == len(ids)
	}, "active chats not loaded")
	return a
}

func TestAdminLoadsActiveChats(t *testing.T) {
	f := newFixture()
	a := startedAdmin(t, f, "c1", "c2", "c3")

	got, err := a.ActiveChats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3"}, got)
	assert.Equal(t, []string{"c1", "c2", "c3"}, f.view.Snapshot().ActiveChats)
	assert.Empty(t, f.ch.events(), "admins verify nothing on open")
}

func TestAdminHistoryThenLiveMessage(t *testing.T) {
	f := newFixture()
	f.api.setHistory("c1",
		msg("c1", models.RoleUser, "one", "m1"),
		msg("c1", models.RoleAdmin, "two", "m2"),
		msg("c1", models.RoleUser, "three", "m3"),
	)
	a := startedAdmin(t, f, "c1")

	f.loadedHistory(t, "c1", func() error { return a.OpenChat(context.Background(), "c1") })
	snap := f.view.Snapshot()
	assert.True(t, snap.Expanded)
	assert.Equal(t, "c1", snap.ChatID)
	assert.Equal(t, []string{"one", "two", "three"}, contents(snap.Messages))

	a.HandleEvent(models.NewMessage{ChatID: "c1", Sender: models.RoleUser, Content: "four", MessageID: "m4"})
	a.HandleEvent(models.NewMessage{ChatID: "c1", Sender: models.RoleAdmin, Content: "two", MessageID: "m2"})
	settle(t, a.core)

	assert.Equal(t, []string{"one", "two", "three", "four"}, contents(f.view.Snapshot().Messages))
}

func TestAdminSwitchDropsLateHistory(t *testing.T) {
	f := newFixture()
	f.api.setHistory("c1", msg("c1", models.RoleUser, "from c1", "a1"))
	f.api.setHistory("c2", msg("c2", models.RoleUser, "from c2", "b1"))
	a := startedAdmin(t, f, "c1", "c2")

	slow := make(chan struct{})
	f.api.mu.Lock()
	f.api.gates["c1"] = slow
	f.api.mu.Unlock()

	require.NoError(t, a.OpenChat(context.Background(), "c1"))
	f.loadedHistory(t, "c2", func() error { return a.OpenChat(context.Background(), "c2") })

	close(slow)
	eventually(t, func() bool {
		return strings.Contains(f.logs.String(), "dropping history of chat c1")
	}, "late history not dropped")
	assert.Equal(t, []string{"from c2"}, contents(f.view.Snapshot().Messages))
}

func TestAdminReloadsOnMessageWithoutID(t *testing.T) {
	f := newFixture()
	a := startedAdmin(t, f, "c1")
	f.loadedHistory(t, "c1", func() error { return a.OpenChat(context.Background(), "c1") })
	require.Equal(t, 1, f.api.calls("c1"))

	f.api.setHistory("c1", msg("c1", models.RoleUser, "legacy", "m1"))
	a.HandleEvent(models.NewMessage{ChatID: "c1", Sender: models.RoleUser, Content: "legacy"})
	eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"legacy"}, contents(f.view.Snapshot().Messages))
	}, "history not reloaded")
	assert.Equal(t, 2, f.api.calls("c1"))

	// messages for chats that are not open only matter to their own view
	a.HandleEvent(models.NewMessage{ChatID: "c2", Sender: models.RoleUser, Content: "elsewhere"})
	settle(t, a.core)
	assert.Zero(t, f.api.calls("c2"))
}

func TestAdminMalformedHistoryKeepsView(t *testing.T) {
	f := newFixture()
	a := startedAdmin(t, f, "c1")
	f.api.historyErr = models.ErrMalformedPayload

	require.NoError(t, a.OpenChat(context.Background(), "c1"))
	eventually(t, func() bool { return f.api.calls("c1") == 1 }, "history not requested")
	settle(t, a.core)

	a.HandleEvent(models.NewMessage{ChatID: "c1", Sender: models.RoleUser, Content: "live", MessageID: "m9"})
	settle(t, a.core)
	eventually(t, func() bool {
		return strings.Contains(f.logs.String(), "malformed server payload")
	}, "history error not logged")
	settle(t, a.core)
	assert.Equal(t, []string{"live"}, contents(f.view.Snapshot().Messages))
}

func TestAdminCloseRemovesOptimistically(t *testing.T) {
	f := newFixture()
	a := startedAdmin(t, f, "c1", "c2")
	f.loadedHistory(t, "c1", func() error { return a.OpenChat(context.Background(), "c1") })

	require.NoError(t, a.CloseChat(context.Background(), "c1"))
	assert.Contains(t, f.ch.events(), models.Event(models.CloseChat{ChatID: "c1"}))

	got, err := a.ActiveChats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, got)
	snap := f.view.Snapshot()
	assert.False(t, snap.Expanded)
	assert.Equal(t, []string{"c2"}, snap.ActiveChats)

	// the server echo is then a no-op
	a.HandleEvent(models.ChatClosed{ChatID: "c1"})
	settle(t, a.core)
	got, _ = a.ActiveChats(context.Background())
	assert.Equal(t, []string{"c2"}, got)
	eventually(t, func() bool {
		return assert.ObjectsAreEqual([]models.LifecycleKind{models.LifecycleClosed}, f.pub.kinds())
	}, "closed transition not published once")
}

func TestAdminCloseFailureKeepsChat(t *testing.T) {
	f := newFixture()
	a := startedAdmin(t, f, "c1")
	f.ch.setDown(true)

	err := a.CloseChat(context.Background(), "c1")
	assert.ErrorIs(t, err, models.ErrChannelUnavailable)
	got, err := a.ActiveChats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, got)
	assert.Len(t, f.view.Snapshot().Notices, 1)
}

func TestAdminTracksServerLifecycle(t *testing.T) {
	f := newFixture()
	a := startedAdmin(t, f, "c1")
	f.loadedHistory(t, "c1", func() error { return a.OpenChat(context.Background(), "c1") })

	a.HandleEvent(models.ChatCreated{ChatID: "c7"})
	a.HandleEvent(models.ChatCreated{ChatID: "c7"})
	a.HandleEvent(models.ChatStatus{ChatID: "c1", Exists: false})
	settle(t, a.core)
	got, _ := a.ActiveChats(context.Background())
	assert.Equal(t, []string{"c1", "c7"}, got)

	a.HandleEvent(models.ChatClosed{ChatID: "c1"})
	settle(t, a.core)
	got, _ = a.ActiveChats(context.Background())
	assert.Equal(t, []string{"c7"}, got)
	assert.False(t, f.view.Snapshot().Expanded)
}

func TestAdminCloseBeforeListIsNotUndone(t *testing.T) {
	f := newFixture()
	f.api.list = []models.ChatSummary{{ChatID: "c1"}, {ChatID: "c2"}}
	gate := make(chan struct{})
	f.api.listGate = gate
	a := f.admin(t)
	require.NoError(t, a.Start(context.Background()))
	a.HandleOpen()

	a.HandleEvent(models.ChatClosed{ChatID: "c1"})
	settle(t, a.core)
	close(gate)

	eventually(t, func() bool {
		got, err := a.ActiveChats(context.Background())
		return err == nil && assert.ObjectsAreEqual([]string{"c2"}, got)
	}, "closed chat came back with the list")
	assert.Equal(t, []string{"c2"}, f.view.Snapshot().ActiveChats)

	a.HandleEvent(models.ChatCreated{ChatID: "c1"})
	settle(t, a.core)
	got, _ := a.ActiveChats(context.Background())
	assert.Equal(t, []string{"c2"}, got)
}

func TestAdminSendMessage(t *testing.T) {
	for _, echo := range []bool{true, false} {
		f := newFixture()
		f.deps.OptimisticLocalEcho = echo
		a := startedAdmin(t, f, "c1")

		assert.ErrorIs(t, a.SendMessage(context.Background(), "hello"), models.ErrNoActiveChat)

		f.loadedHistory(t, "c1", func() error { return a.OpenChat(context.Background(), "c1") })
		require.NoError(t, a.SendMessage(context.Background(), "hello"))
		assert.Contains(t, f.ch.events(), models.Event(models.SendMessage{ChatID: "c1", Sender: models.RoleAdmin, Content: "hello"}))

		a.HandleEvent(models.NewMessage{ChatID: "c1", Sender: models.RoleAdmin, Content: "hello", MessageID: "m1"})
		settle(t, a.core)
		assert.Equal(t, []string{"hello"}, contents(f.view.Snapshot().Messages), "echo=%v", echo)
	}
}
