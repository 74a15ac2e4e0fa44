package chat

import (
	"context"
	"strings"

	"ShopChat/models"

	"github.com/labstack/gommon/log"
)

// core is the role-independent machinery shared by both adapters. It is
// the connection.Handler of the client: channel callbacks are posted onto
// the loop in arrival order.
type core struct {
	loop    *Loop
	session *Session
	rec     *Reconciler
	router  *Router
	logger  *log.Logger
}

func newCore(role models.Role, deps Deps) *core {
	if deps.Logger == nil {
		deps.Logger = log.New("chat")
	}
	loop := NewLoop()
	s := newSession(role, loop, deps)
	rec := newReconciler(s, deps)
	return &core{
		loop:    loop,
		session: s,
		rec:     rec,
		router:  newRouter(s, rec, deps),
		logger:  deps.Logger,
	}
}

// Run drives the client until ctx is done.
func (c *core) Run(ctx context.Context) error {
	return c.loop.Run(ctx)
}

// Start loads the initial session state. It does not wait for the
// side-channel lookups it triggers.
func (c *core) Start(ctx context.Context) error {
	return c.loop.Call(ctx, func() error {
		c.rec.Startup()
		return nil
	})
}

// Current returns the session as the loop sees it.
func (c *core) Current(ctx context.Context) (models.Session, error) {
	var cur models.Session
	err := c.loop.Call(ctx, func() error {
		cur = c.session.Current()
		return nil
	})
	return cur, err
}

func (c *core) HandleOpen() {
	c.loop.Post(c.rec.OnOpen)
}

func (c *core) HandleEvent(ev models.Event) {
	c.loop.Post(func() { c.router.Dispatch(ev) })
}

func (c *core) HandleError(err error) {
	c.loop.Post(func() { c.logger.Debugf("channel error reported: %v", err) })
}

func (c *core) HandleClose() {
	c.loop.Post(c.rec.OnClose)
}

func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.ErrEmptyMessage
	}
	return content, nil
}
