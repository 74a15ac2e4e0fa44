package chat

import (
	"context"
	"errors"
	"fmt"

	"ShopChat/models"

	"github.com/labstack/gommon/log"
)

// Reconciler establishes whether a chat is current and which one. The
// cached id is rendered at once but verified against the server at least
// once per channel lifetime.
type Reconciler struct {
	s        *Session
	api      API
	identity IdentitySource
	logger   *log.Logger

	started   bool
	lookingUp bool
}

func newReconciler(s *Session, deps Deps) *Reconciler {
	return &Reconciler{s: s, api: deps.API, identity: deps.Identity, logger: s.logger}
}

// Startup loads the session state once per client: the cached chat id
// (or the server lookup when none) for users, the active list for admins.
func (r *Reconciler) Startup() {
	if r.started {
		return
	}
	r.started = true

	if r.s.role == models.RoleAdmin {
		r.loadActiveChats()
		return
	}

	chatID, ok, err := r.s.cache.Get(r.s.ctx())
	if err != nil {
		r.logger.Errorf("read session cache: %v", err)
		if err := r.s.cache.Clear(r.s.ctx()); err != nil {
			r.logger.Errorf("reset session cache: %v", err)
		}
	}
	if ok {
		r.logger.Infof("cached chat %s, rendering before verification", chatID)
		r.s.setCurrent(chatID, models.SessionActive, false)
		r.s.view.ShowActiveChat(chatID)
		r.verify()
		return
	}
	r.lookup()
}

func (r *Reconciler) lookup() {
	r.lookingUp = true
	r.s.loop.Go(func(ctx context.Context) func() {
		res, err := r.api.ActiveChat(ctx)
		return func() { r.applyLookup(res, err) }
	})
}

func (r *Reconciler) applyLookup(res models.ActiveChatResponse, err error) {
	r.lookingUp = false
	if r.s.current.State != models.SessionNone {
		// a create or a cached id got there first
		return
	}
	if err != nil {
		r.logger.Errorf("active chat lookup: %v", err)
		r.s.view.ShowNoActiveChat()
		return
	}
	if !res.Active {
		r.s.view.ShowNoActiveChat()
		return
	}

	if err := r.s.cache.Set(r.s.ctx(), res.ChatID); err != nil {
		r.logger.Errorf("write session cache: %v", err)
	}
	// the server just vouched for it
	r.s.setCurrent(res.ChatID, models.SessionActive, true)
	r.s.view.ShowActiveChat(res.ChatID)
}

func (r *Reconciler) loadActiveChats() {
	r.lookingUp = true
	r.s.loop.Go(func(ctx context.Context) func() {
		list, err := r.api.ActiveChats(ctx)
		return func() { r.applyActiveChats(list, err) }
	})
}

func (r *Reconciler) applyActiveChats(list []models.ChatSummary, err error) {
	r.lookingUp = false
	if err != nil {
		r.logger.Errorf("active chats: %v", err)
		r.s.view.Notify("Could not load active chats")
		return
	}

	ids := make([]string, 0, len(list)+len(r.s.active))
	seen := make(map[string]bool, cap(ids))
	for _, c := range list {
		if r.s.closed[c.ChatID] {
			r.logger.Debugf("chat %s closed since the list was fetched", c.ChatID)
			continue
		}
		if !seen[c.ChatID] {
			seen[c.ChatID] = true
			ids = append(ids, c.ChatID)
		}
	}
	for _, id := range r.s.active {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	r.s.active = ids
	r.s.view.SetActiveChats(ids)
}

// OnOpen starts a new channel lifetime: the current id, if any, must be
// verified again.
func (r *Reconciler) OnOpen() {
	r.s.channelOpen = true
	r.s.verified = false
	r.s.checking = false
	r.Startup()

	if r.s.role != models.RoleUser {
		return
	}
	switch {
	case r.s.current.ID != "":
		r.verify()
	case r.s.current.State == models.SessionNone && !r.lookingUp:
		r.s.view.ShowNoActiveChat()
	}
}

// OnClose ends the channel lifetime. A create still waiting for
// chat_created is abandoned; the user has to start it again.
func (r *Reconciler) OnClose() {
	r.s.channelOpen = false
	r.s.checking = false
	if r.s.role == models.RoleUser && r.s.current.State == models.SessionPending {
		r.abandonCreate()
	}
}

func (r *Reconciler) abandonCreate() {
	r.logger.Warnf("create chat: connection lost before the server answered")
	r.s.setCurrent("", models.SessionNone, false)
	r.s.view.ShowNoActiveChat()
	r.s.view.Notify("Could not start a chat: connection lost, please try again")
}

// verify sends check_chat for the current id when the channel is open and
// it has not been verified on this channel yet.
func (r *Reconciler) verify() {
	s := r.s
	if !s.channelOpen || s.current.ID == "" || s.verified || s.checking {
		return
	}
	if err := s.send(models.CheckChat{ChatID: s.current.ID}); err != nil {
		return
	}
	s.checking = true
}

func (r *Reconciler) OnChatStatus(ev models.ChatStatus) {
	s := r.s
	if s.role != models.RoleUser {
		return
	}
	if ev.ChatID != s.current.ID {
		r.logger.Debugf("ignoring status of chat %s", ev.ChatID)
		return
	}
	if ev.Exists {
		s.verified = true
		s.checking = false
		return
	}

	r.logger.Warnf("%v: %s", models.ErrStaleCacheReference, ev.ChatID)
	s.clearCurrent()
	s.view.ShowNoActiveChat()
	s.publish(models.LifecycleStale, ev.ChatID)
}

// CreateChat resolves the acting identity and requests a new chat. The
// chat becomes current when chat_created arrives.
func (r *Reconciler) CreateChat(ctx context.Context) error {
	var busy bool
	if err := r.s.loop.Call(ctx, func() error {
		busy = r.s.current.State != models.SessionNone
		return nil
	}); err != nil {
		return err
	}
	if busy {
		return models.ErrChatAlreadyOpen
	}

	if r.identity == nil {
		return r.identityFailed(ctx, errors.New("no identity source"))
	}
	id, err := r.identity.Resolve(ctx)
	if err != nil {
		return r.identityFailed(ctx, err)
	}

	return r.s.loop.Call(ctx, func() error {
		if r.s.current.State != models.SessionNone {
			return models.ErrChatAlreadyOpen
		}
		if err := r.s.send(models.CreateChat{UserID: id.UserID}); err != nil {
			r.s.view.Notify("Could not start a chat: connection is not open")
			return err
		}
		r.s.setCurrent("", models.SessionPending, false)
		return nil
	})
}

func (r *Reconciler) identityFailed(ctx context.Context, err error) error {
	if !errors.Is(err, models.ErrIdentityUnavailable) {
		err = fmt.Errorf("%w: %v", models.ErrIdentityUnavailable, err)
	}
	r.logger.Errorf("create chat: %v", err)
	_ = r.s.loop.Call(ctx, func() error {
		r.s.view.Notify("Could not start a chat: please log in again")
		return nil
	})
	return err
}

func (r *Reconciler) OnChatCreated(ev models.ChatCreated) {
	s := r.s
	if s.role == models.RoleAdmin {
		if !s.hasActive(ev.ChatID) && !s.closed[ev.ChatID] {
			s.active = append(s.active, ev.ChatID)
			s.view.SetActiveChats(s.active)
		}
		return
	}
	if s.current.State != models.SessionPending {
		r.logger.Debugf("ignoring unrequested chat %s", ev.ChatID)
		return
	}

	if err := s.cache.Set(s.ctx(), ev.ChatID); err != nil {
		r.logger.Errorf("write session cache: %v", err)
	}
	s.setCurrent(ev.ChatID, models.SessionActive, true)
	s.view.ShowActiveChat(ev.ChatID)
	r.logger.Infof("chat %s created", ev.ChatID)
	s.publish(models.LifecycleCreated, ev.ChatID)
}

// OnChatClosed ends the current chat (user) or drops the id from the
// active set (admin). Notifications for other chats change nothing.
func (r *Reconciler) OnChatClosed(ev models.ChatClosed) {
	s := r.s
	if s.role == models.RoleAdmin {
		removed := s.removeActive(ev.ChatID)
		if s.openChat == ev.ChatID {
			s.openChat = ""
			s.view.HideChat()
		}
		if removed {
			s.publish(models.LifecycleClosed, ev.ChatID)
		}
		return
	}

	if s.current.ID == "" || ev.ChatID != s.current.ID {
		r.logger.Debugf("ignoring close of chat %s", ev.ChatID)
		return
	}
	s.clearCurrent()
	s.view.ShowNoActiveChat()
	s.view.Notify("The chat was closed")
	r.logger.Infof("chat %s closed", ev.ChatID)
	s.publish(models.LifecycleClosed, ev.ChatID)
}
