package tui

import (
	"context"
	"errors"
	"testing"

	"ShopChat/models"
	"ShopChat/view"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedActions struct {
	role  models.Role
	calls []string
	err   error
}

func (r *recordedActions) Role() models.Role { return r.role }
func (r *recordedActions) Create(context.Context) error {
	r.calls = append(r.calls, "create")
	return r.err
}
func (r *recordedActions) Open(_ context.Context, id string) error {
	r.calls = append(r.calls, "open "+id)
	return r.err
}
func (r *recordedActions) Send(_ context.Context, content string) error {
	r.calls = append(r.calls, "send "+content)
	return r.err
}
func (r *recordedActions) Close(_ context.Context, id string) error {
	r.calls = append(r.calls, "close "+id)
	return r.err
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"hello there", Command{Name: "send", Arg: "hello there"}},
		{"  /new ", Command{Name: "new"}},
		{"/open abc", Command{Name: "open", Arg: "abc"}},
		{"/close", Command{Name: "close"}},
		{"/q", Command{Name: "quit"}},
		{"/dance", Command{Name: "unknown", Arg: "dance"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.line))
		})
	}
}

// enter types line and runs the resulting command synchronously.
func enter(t *testing.T, m Model, line string) (Model, tea.Msg) {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		return m, nil
	}
	msg := cmd()
	next, _ = m.Update(msg)
	return next.(Model), msg
}

func TestAdminCommandsResolveChatPrefixes(t *testing.T) {
	st := view.NewState()
	st.SetActiveChats([]string{"abc123", "abd456"})
	actions := &recordedActions{role: models.RoleAdmin}
	m := New(context.Background(), actions, st)

	m, _ = enter(t, m, "/open abc")
	m, _ = enter(t, m, "/open ab")
	m, _ = enter(t, m, "/open")
	m, _ = enter(t, m, "hi")
	assert.Equal(t, []string{"open abc123", "open ab", "open abc123", "send hi"}, actions.calls)
	assert.Equal(t, "send ok", m.status)
}

func TestFailedActionShowsError(t *testing.T) {
	st := view.NewState()
	actions := &recordedActions{role: models.RoleUser, err: errors.New("no active chat")}
	m := New(context.Background(), actions, st)

	m, msg := enter(t, m, "/close")
	require.IsType(t, resultMsg{}, msg)
	assert.True(t, m.failed)
	assert.Equal(t, "close: no active chat", m.status)

	m, msg = enter(t, m, "/dance")
	assert.Nil(t, msg)
	assert.Equal(t, "unknown command /dance", m.status)
}

func TestViewRendersState(t *testing.T) {
	st := view.NewState()
	actions := &recordedActions{role: models.RoleUser}
	m := New(context.Background(), actions, st)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)

	st.ShowNoActiveChat()
	next, _ = m.Update(changedMsg{})
	m = next.(Model)
	assert.Contains(t, m.View(), "/new starts one")

	st.OpenChat("c1")
	st.AppendMessage(models.Message{ChatID: "c1", Sender: models.RoleAdmin, Content: "how can I help"})
	st.Notify("The chat was closed")
	next, _ = m.Update(changedMsg{})
	m = next.(Model)
	out := m.View()
	assert.Contains(t, out, "how can I help")
	assert.Contains(t, out, "The chat was closed")
}
