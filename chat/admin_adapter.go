package chat

import (
	"context"

	"ShopChat/models"
)

// AdminAdapter is the support-desk policy: a set of active chats, any one
// of which can be opened, answered and closed.
type AdminAdapter struct {
	*core
}

// NewAdminAdapter builds the admin role. Cache and Identity in deps are ignored.
func NewAdminAdapter(deps Deps) *AdminAdapter {
	deps.Cache = nil
	deps.Identity = nil
	return &AdminAdapter{core: newCore(models.RoleAdmin, deps)}
}

// ActiveChats returns the active chat ids in list order.
func (a *AdminAdapter) ActiveChats(ctx context.Context) ([]string, error) {
	var ids []string
	err := a.loop.Call(ctx, func() error {
		ids = a.session.ActiveChats()
		return nil
	})
	return ids, err
}

// OpenChat switches the rendered chat to chatID and loads its history.
func (a *AdminAdapter) OpenChat(ctx context.Context, chatID string) error {
	if chatID == "" {
		return models.ErrChatNotFound
	}
	return a.loop.Call(ctx, func() error {
		a.router.open(chatID)
		return nil
	})
}

// SendMessage answers in the open chat.
func (a *AdminAdapter) SendMessage(ctx context.Context, content string) error {
	content, err := cleanContent(content)
	if err != nil {
		return err
	}
	return a.loop.Call(ctx, func() error {
		if a.session.openChat == "" {
			return models.ErrNoActiveChat
		}
		return a.router.send(a.session.openChat, content)
	})
}

// CloseChat ends chatID. Once close_chat is on the wire the id leaves the
// active set without waiting for the server.
func (a *AdminAdapter) CloseChat(ctx context.Context, chatID string) error {
	if chatID == "" {
		return models.ErrChatNotFound
	}
	return a.loop.Call(ctx, func() error {
		s := a.session
		if err := s.send(models.CloseChat{ChatID: chatID}); err != nil {
			s.view.Notify("Could not close the chat: connection is not open")
			return err
		}
		removed := s.removeActive(chatID)
		if s.openChat == chatID {
			s.openChat = ""
			s.view.HideChat()
		}
		if removed {
			s.publish(models.LifecycleClosed, chatID)
		}
		return nil
	})
}
