// Package view holds the chat widget's UI state: which controls are
// visible, the rendered message list and the notices shown to the user.
package view

import (
	"sync"

	"ShopChat/models"
)

// Mode is the top-level widget state.
type Mode string

const (
	ModeUnknown      Mode = "unknown"
	ModeNoActiveChat Mode = "no_active_chat" // "create new chat" control shown
	ModeActiveChat   Mode = "active_chat"    // active chat link shown
)

// View is what the chat core renders into.
type View interface {
	ShowNoActiveChat()
	ShowActiveChat(chatID string)
	// OpenChat shows the chat panel for chatID with an empty message list.
	OpenChat(chatID string)
	HideChat()
	ReplaceMessages(msgs []models.Message)
	AppendMessage(msg models.Message)
	SetActiveChats(chatIDs []string)
	Notify(text string)
}

// Snapshot is an immutable copy of State.
type Snapshot struct {
	Mode        Mode
	ChatID      string // chat the active link or panel refers to
	Expanded    bool   // chat panel open
	Messages    []models.Message
	ActiveChats []string
	Notices     []string
	Version     uint64
}

// State is the in-memory View. Mutations come from the chat loop; readers
// on other goroutines use Snapshot and Changes.
type State struct {
	mu      sync.RWMutex
	snap    Snapshot
	changes chan struct{}
}

func NewState() *State {
	return &State{
		snap:    Snapshot{Mode: ModeUnknown},
		changes: make(chan struct{}, 1),
	}
}

// Changes delivers a coalesced signal after every mutation.
func (s *State) Changes() <-chan struct{} {
	return s.changes
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.Messages = append([]models.Message(nil), s.snap.Messages...)
	out.ActiveChats = append([]string(nil), s.snap.ActiveChats...)
	out.Notices = append([]string(nil), s.snap.Notices...)
	return out
}

func (s *State) ShowNoActiveChat() {
	s.update(func(v *Snapshot) {
		v.Mode = ModeNoActiveChat
		v.ChatID = ""
		v.Expanded = false
		v.Messages = nil
	})
}

func (s *State) ShowActiveChat(chatID string) {
	s.update(func(v *Snapshot) {
		if v.ChatID != chatID {
			v.Expanded = false
			v.Messages = nil
		}
		v.Mode = ModeActiveChat
		v.ChatID = chatID
	})
}

func (s *State) OpenChat(chatID string) {
	s.update(func(v *Snapshot) {
		v.ChatID = chatID
		v.Expanded = true
		v.Messages = nil
	})
}

func (s *State) HideChat() {
	s.update(func(v *Snapshot) {
		v.Expanded = false
		v.Messages = nil
	})
}

func (s *State) ReplaceMessages(msgs []models.Message) {
	s.update(func(v *Snapshot) {
		v.Messages = append([]models.Message(nil), msgs...)
	})
}

func (s *State) AppendMessage(msg models.Message) {
	s.update(func(v *Snapshot) {
		v.Messages = append(v.Messages, msg)
	})
}

func (s *State) SetActiveChats(chatIDs []string) {
	s.update(func(v *Snapshot) {
		v.ActiveChats = append([]string(nil), chatIDs...)
	})
}

func (s *State) Notify(text string) {
	s.update(func(v *Snapshot) {
		v.Notices = append(v.Notices, text)
	})
}

func (s *State) update(fn func(v *Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	s.snap.Version++
	s.mu.Unlock()

	select {
	case s.changes <- struct{}{}:
	default:
	}
}
