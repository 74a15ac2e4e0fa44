package chat

import (
	"context"
	"fmt"
	"time"

	"ShopChat/models"

	"github.com/labstack/gommon/log"
)

// Router dispatches inbound events and keeps the open chat view in sync
// with the server: dedup on message id, history replacement on open.
type Router struct {
	s      *Session
	rec    *Reconciler
	api    API
	msgs   *messageLog
	echo   bool
	logger *log.Logger
}

func newRouter(s *Session, rec *Reconciler, deps Deps) *Router {
	return &Router{
		s:      s,
		rec:    rec,
		api:    deps.API,
		msgs:   newMessageLog(),
		echo:   deps.OptimisticLocalEcho,
		logger: s.logger,
	}
}

func (r *Router) Dispatch(ev models.Event) {
	switch e := ev.(type) {
	case models.ChatCreated:
		r.rec.OnChatCreated(e)
	case models.ChatStatus:
		r.rec.OnChatStatus(e)
	case models.ChatClosed:
		r.rec.OnChatClosed(e)
	case models.NewMessage:
		r.onNewMessage(e)
	default:
		r.logger.Errorf("%v", fmt.Errorf("%w: unexpected inbound %s", models.ErrMalformedPayload, ev.Type()))
	}
}

func (r *Router) onNewMessage(ev models.NewMessage) {
	if ev.ChatID != r.s.openChat {
		r.logger.Debugf("ignoring message for chat %s", ev.ChatID)
		return
	}
	if r.s.role == models.RoleAdmin && ev.MessageID == "" {
		// no id to dedup on, let the server list settle it
		r.LoadHistory(ev.ChatID)
		return
	}

	msg := ev.Message()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if r.msgs.add(msg) {
		r.s.view.AppendMessage(msg)
	}
}

// open makes chatID the rendered chat and loads its history.
func (r *Router) open(chatID string) {
	r.s.openChat = chatID
	r.msgs.start(chatID)
	r.s.view.OpenChat(chatID)
	r.LoadHistory(chatID)
}

// LoadHistory fetches the history of chatID off the loop and replaces the
// rendered list with it, keeping live messages it does not cover yet. A
// result for a chat that is no longer open is dropped; two loads of the
// same chat race and the later landing wins.
func (r *Router) LoadHistory(chatID string) {
	r.s.loop.Go(func(ctx context.Context) func() {
		msgs, err := r.api.History(ctx, chatID)
		return func() { r.applyHistory(chatID, msgs, err) }
	})
}

func (r *Router) applyHistory(chatID string, msgs []models.Message, err error) {
	if chatID != r.s.openChat {
		r.logger.Debugf("dropping history of chat %s, no longer open", chatID)
		return
	}
	if err != nil {
		r.logger.Errorf("load history of chat %s: %v", chatID, err)
		return
	}
	r.s.view.ReplaceMessages(r.msgs.reset(chatID, msgs))
}

// send posts content to chatID as the session's role, rendering it at once
// when local echo is on.
func (r *Router) send(chatID, content string) error {
	if err := r.s.send(models.SendMessage{ChatID: chatID, Sender: r.s.role, Content: content}); err != nil {
		r.s.view.Notify("Message not sent: connection is not open")
		return err
	}
	if r.echo && chatID == r.s.openChat {
		msg := models.Message{ChatID: chatID, Sender: r.s.role, Content: content, Timestamp: time.Now()}
		r.msgs.echo(msg)
		r.s.view.AppendMessage(msg)
	}
	return nil
}
