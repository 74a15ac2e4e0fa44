// Package chat implements the support-chat session synchronization core:
// reconciling which chat is current across the local cache, the channel and
// the server, routing channel events, and the user and admin role policies
// built on top.
package chat

import (
	"context"
	"time"

	"ShopChat/cache"
	"ShopChat/models"
	"ShopChat/view"

	"github.com/labstack/gommon/log"
)

// Channel is the outbound half of the chat connection.
type Channel interface {
	Send(ev models.Event) error
}

// API is the HTTP side channel used for lookups and history.
type API interface {
	ActiveChat(ctx context.Context) (models.ActiveChatResponse, error)
	ActiveChats(ctx context.Context) ([]models.ChatSummary, error)
	History(ctx context.Context, chatID string) ([]models.Message, error)
}

// IdentitySource resolves the acting user from a side-channel credential.
type IdentitySource interface {
	Resolve(ctx context.Context) (models.Identity, error)
}

// LifecyclePublisher receives session transitions for auditing.
type LifecyclePublisher interface {
	Publish(ctx context.Context, ev models.LifecycleEvent) error
}

// Deps are the collaborators of a role adapter. Cache and Identity are
// only used by the user role.
type Deps struct {
	Channel   Channel
	API       API
	Cache     cache.SessionCache
	View      view.View
	Identity  IdentitySource
	Publisher LifecyclePublisher
	Logger    *log.Logger

	// OptimisticLocalEcho renders a sent message before the server echo.
	OptimisticLocalEcho bool
}

// Session is the explicit session context of one client. It is only
// touched from the loop goroutine.
type Session struct {
	role      models.Role
	loop      *Loop
	channel   Channel
	cache     cache.SessionCache
	view      view.View
	publisher LifecyclePublisher
	logger    *log.Logger

	current     models.Session
	verified    bool
	checking    bool
	channelOpen bool

	openChat string          // chat whose messages are rendered
	active   []string        // admin: active chat set, in list order
	closed   map[string]bool // admin: ids closed during this client's lifetime
}

func newSession(role models.Role, loop *Loop, deps Deps) *Session {
	c := deps.Cache
	if c == nil {
		c = cache.NewMemoryCache()
	}
	return &Session{
		role:      role,
		loop:      loop,
		channel:   deps.Channel,
		cache:     c,
		view:      deps.View,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		current:   models.Session{Role: role, State: models.SessionNone},
		closed:    make(map[string]bool),
	}
}

// Current returns the chat the session refers to.
func (s *Session) Current() models.Session {
	return s.current
}

// OpenChatID returns the chat whose messages are rendered, if any.
func (s *Session) OpenChatID() string {
	return s.openChat
}

// ActiveChats returns a copy of the admin's active chat set.
func (s *Session) ActiveChats() []string {
	return append([]string(nil), s.active...)
}

func (s *Session) ctx() context.Context {
	return s.loop.ctx
}

func (s *Session) setCurrent(chatID string, state models.SessionState, verified bool) {
	s.current = models.Session{ID: chatID, Role: s.role, State: state}
	s.verified = verified
	s.checking = false
}

// clearCurrent forgets the current chat in memory and in the cache.
func (s *Session) clearCurrent() {
	if s.openChat == s.current.ID {
		s.openChat = ""
	}
	s.current = models.Session{Role: s.role, State: models.SessionNone}
	s.verified = false
	s.checking = false
	if err := s.cache.Clear(s.ctx()); err != nil {
		s.logger.Errorf("clear session cache: %v", err)
	}
}

func (s *Session) send(ev models.Event) error {
	if err := s.channel.Send(ev); err != nil {
		s.logger.Warnf("send %s: %v", ev.Type(), err)
		return err
	}
	return nil
}

func (s *Session) hasActive(chatID string) bool {
	for _, id := range s.active {
		if id == chatID {
			return true
		}
	}
	return false
}

// removeActive drops chatID from the active set and remembers it as
// closed, so a list fetched earlier cannot bring it back.
func (s *Session) removeActive(chatID string) bool {
	s.closed[chatID] = true
	for i, id := range s.active {
		if id == chatID {
			s.active = append(s.active[:i:i], s.active[i+1:]...)
			s.view.SetActiveChats(s.active)
			return true
		}
	}
	return false
}

func (s *Session) publish(kind models.LifecycleKind, chatID string) {
	if s.publisher == nil {
		return
	}
	ev := models.LifecycleEvent{Kind: kind, ChatID: chatID, Role: s.role, At: time.Now().UTC()}
	p, logger := s.publisher, s.logger
	s.loop.Go(func(ctx context.Context) func() {
		if err := p.Publish(ctx, ev); err != nil {
			logger.Warnf("publish %s lifecycle event: %v", kind, err)
		}
		return nil
	})
}
