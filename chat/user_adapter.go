package chat

import (
	"context"

	"ShopChat/models"
)

// UserAdapter is the end-user policy: at most one current chat, created on
// request and ended by either side.
type UserAdapter struct {
	*core
}

// NewUserAdapter builds the customer role.
func NewUserAdapter(deps Deps) *UserAdapter {
	return &UserAdapter{core: newCore(models.RoleUser, deps)}
}

// CreateChat requests a new chat for the logged-in user. Without a
// resolvable identity nothing is sent and ErrIdentityUnavailable is returned.
func (a *UserAdapter) CreateChat(ctx context.Context) error {
	return a.rec.CreateChat(ctx)
}

// OpenPanel expands the current chat and loads its history.
func (a *UserAdapter) OpenPanel(ctx context.Context) error {
	return a.loop.Call(ctx, func() error {
		cur := a.session.current
		if cur.State != models.SessionActive || cur.ID == "" {
			return models.ErrNoActiveChat
		}
		a.router.open(cur.ID)
		return nil
	})
}

func (a *UserAdapter) SendMessage(ctx context.Context, content string) error {
	content, err := cleanContent(content)
	if err != nil {
		return err
	}
	return a.loop.Call(ctx, func() error {
		cur := a.session.current
		if cur.State != models.SessionActive || cur.ID == "" {
			return models.ErrNoActiveChat
		}
		return a.router.send(cur.ID, content)
	})
}

// CloseChat asks the server to end the current chat. Local state is only
// reset when chat_closed comes back.
func (a *UserAdapter) CloseChat(ctx context.Context) error {
	return a.loop.Call(ctx, func() error {
		cur := a.session.current
		if cur.ID == "" {
			return models.ErrNoActiveChat
		}
		if err := a.session.send(models.CloseChat{ChatID: cur.ID}); err != nil {
			a.session.view.Notify("Could not close the chat: connection is not open")
			return err
		}
		return nil
	})
}

// Logout forgets the current chat locally; the chat itself stays open on
// the server.
func (a *UserAdapter) Logout(ctx context.Context) error {
	return a.loop.Call(ctx, func() error {
		a.session.clearCurrent()
		a.session.openChat = ""
		a.session.view.ShowNoActiveChat()
		return nil
	})
}
