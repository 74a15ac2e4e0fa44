// Package tui renders a chat widget state in the terminal and turns typed
// lines into widget actions.
package tui

import (
	"context"
	"fmt"
	"strings"

	"ShopChat/models"
	"ShopChat/view"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Actions are the user gestures of one role. chatID is ignored by the
// user role, which only ever has its current chat.
type Actions interface {
	Role() models.Role
	Create(ctx context.Context) error
	Open(ctx context.Context, chatID string) error
	Send(ctx context.Context, content string) error
	Close(ctx context.Context, chatID string) error
}

// Command is one parsed input line.
type Command struct {
	Name string // new, open, close, quit, send
	Arg  string
}

// ParseCommand reads "/name arg" lines; anything else is a message.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{Name: "send", Arg: line}
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	switch name {
	case "new", "open", "close", "quit":
		return Command{Name: name, Arg: strings.TrimSpace(arg)}
	case "q", "exit":
		return Command{Name: "quit"}
	default:
		return Command{Name: "unknown", Arg: name}
	}
}

type changedMsg struct{}

type resultMsg struct {
	action string
	err    error
}

type theme struct {
	header  lipgloss.Style
	panel   lipgloss.Style
	muted   lipgloss.Style
	notice  lipgloss.Style
	errText lipgloss.Style
	sender  map[models.Role]lipgloss.Style
	picked  lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	pink := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#9ca3d8")
	return theme{
		header: lipgloss.NewStyle().Bold(true).Foreground(blue).
			BorderStyle(lipgloss.RoundedBorder()).BorderForeground(blue).Padding(0, 1),
		panel:   lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1),
		muted:   lipgloss.NewStyle().Foreground(muted),
		notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd166")),
		errText: lipgloss.NewStyle().Foreground(pink).Bold(true),
		sender: map[models.Role]lipgloss.Style{
			models.RoleUser:  lipgloss.NewStyle().Foreground(mint).Bold(true),
			models.RoleAdmin: lipgloss.NewStyle().Foreground(pink).Bold(true),
		},
		picked: lipgloss.NewStyle().Foreground(mint).Bold(true),
	}
}

// Model is the bubbletea model of the widget.
type Model struct {
	ctx     context.Context
	actions Actions
	state   *view.State
	snap    view.Snapshot

	input      textinput.Model
	transcript viewport.Model
	status     string
	failed     bool
	width      int
	height     int
	theme      theme
}

func New(ctx context.Context, actions Actions, state *view.State) Model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 2000
	input.Placeholder = "Type a message, or /new /open /close /quit"
	input.Focus()

	transcript := viewport.New(0, 0)
	transcript.MouseWheelEnabled = true

	return Model{
		ctx:        ctx,
		actions:    actions,
		state:      state,
		snap:       state.Snapshot(),
		input:      input,
		transcript: transcript,
		theme:      newTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitChange())
}

// waitChange blocks until the widget state changes.
func (m Model) waitChange() tea.Cmd {
	changes, ctx := m.state.Changes(), m.ctx
	return func() tea.Msg {
		select {
		case <-changes:
			return changedMsg{}
		case <-ctx.Done():
			return tea.Quit()
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case changedMsg:
		m.snap = m.state.Snapshot()
		m.refresh()
		return m, m.waitChange()

	case resultMsg:
		m.failed = msg.err != nil
		if msg.err != nil {
			m.status = fmt.Sprintf("%s: %v", msg.action, msg.err)
		} else {
			m.status = msg.action + " ok"
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.SetValue("")
			return m.run(ParseCommand(line))
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.transcript, cmd = m.transcript.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) run(c Command) (tea.Model, tea.Cmd) {
	var fn func(ctx context.Context) error
	switch c.Name {
	case "quit":
		return m, tea.Quit
	case "send":
		if c.Arg == "" {
			return m, nil
		}
		fn = func(ctx context.Context) error { return m.actions.Send(ctx, c.Arg) }
	case "new":
		fn = m.actions.Create
	case "open":
		arg := m.resolve(c.Arg)
		if arg == "" && m.actions.Role() == models.RoleAdmin && len(m.snap.ActiveChats) > 0 {
			arg = m.snap.ActiveChats[0]
		}
		fn = func(ctx context.Context) error { return m.actions.Open(ctx, arg) }
	case "close":
		arg := m.resolve(c.Arg)
		if arg == "" {
			arg = m.snap.ChatID
		}
		fn = func(ctx context.Context) error { return m.actions.Close(ctx, arg) }
	default:
		m.status, m.failed = "unknown command /"+c.Arg, true
		return m, nil
	}

	ctx := m.ctx
	return m, func() tea.Msg {
		return resultMsg{action: c.Name, err: fn(ctx)}
	}
}

// resolve expands a unique prefix of an active chat id.
func (m Model) resolve(prefix string) string {
	if prefix == "" {
		return ""
	}
	match := ""
	for _, id := range m.snap.ActiveChats {
		if strings.HasPrefix(id, prefix) {
			if match != "" {
				return prefix
			}
			match = id
		}
	}
	if match == "" {
		return prefix
	}
	return match
}

func (m *Model) layout() {
	side := 0
	if m.actions.Role() == models.RoleAdmin {
		side = 24
	}
	m.transcript.Width = max(m.width-side-4, 10)
	m.transcript.Height = max(m.height-9, 3)
	m.input.Width = max(m.width-6, 10)
	m.refresh()
}

func (m *Model) refresh() {
	m.transcript.SetContent(m.renderTranscript())
	m.transcript.GotoBottom()
}

func (m Model) renderTranscript() string {
	if !m.snap.Expanded {
		return m.theme.muted.Render(m.idleText())
	}
	var b strings.Builder
	for _, msg := range m.snap.Messages {
		style, ok := m.theme.sender[msg.Sender]
		if !ok {
			style = m.theme.muted
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			m.theme.muted.Render(msg.Timestamp.Local().Format("15:04")),
			style.Render(string(msg.Sender)+":"),
			msg.Content)
	}
	return b.String()
}

func (m Model) idleText() string {
	switch m.snap.Mode {
	case view.ModeNoActiveChat:
		if m.actions.Role() == models.RoleUser {
			return "No active chat. /new starts one."
		}
		return "No chat open."
	case view.ModeActiveChat:
		return "Chat " + m.snap.ChatID + " is active. /open shows it."
	default:
		return "Loading..."
	}
}

func (m Model) View() string {
	header := fmt.Sprintf("ShopChat · %s · %s", m.actions.Role(), m.snap.Mode)
	if m.snap.ChatID != "" {
		header += " · " + m.snap.ChatID
	}

	body := m.theme.panel.Render(m.transcript.View())
	if m.actions.Role() == models.RoleAdmin {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.theme.panel.Width(20).Render(m.renderChats()), body)
	}

	footer := m.theme.muted.Render(m.status)
	if m.failed {
		footer = m.theme.errText.Render(m.status)
	}
	if n := len(m.snap.Notices); n > 0 {
		footer = m.theme.notice.Render(m.snap.Notices[n-1]) + "  " + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.header.Render(header),
		body,
		m.input.View(),
		footer,
	)
}

func (m Model) renderChats() string {
	if len(m.snap.ActiveChats) == 0 {
		return m.theme.muted.Render("no active chats")
	}
	lines := make([]string, 0, len(m.snap.ActiveChats))
	for _, id := range m.snap.ActiveChats {
		short := id
		if len(short) > 12 {
			short = short[:12]
		}
		if m.snap.Expanded && id == m.snap.ChatID {
			lines = append(lines, m.theme.picked.Render("▸ "+short))
			continue
		}
		lines = append(lines, "  "+short)
	}
	return strings.Join(lines, "\n")
}
