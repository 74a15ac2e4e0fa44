package chat

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ShopChat/cache"
	"ShopChat/models"
	"ShopChat/view"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu   sync.Mutex
	down bool
	sent []models.Event
}

func (c *fakeChannel) Send(ev models.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return fmt.Errorf("%w: dropped %s", models.ErrChannelUnavailable, ev.Type())
	}
	c.sent = append(c.sent, ev)
	return nil
}

func (c *fakeChannel) setDown(down bool) {
	c.mu.Lock()
	c.down = down
	c.mu.Unlock()
}

func (c *fakeChannel) events() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Event(nil), c.sent...)
}

func (c *fakeChannel) count(typ models.EventType) int {
	n := 0
	for _, ev := range c.events() {
		if ev.Type() == typ {
			n++
		}
	}
	return n
}

type fakeAPI struct {
	mu           sync.Mutex
	active       models.ActiveChatResponse
	activeErr    error
	list         []models.ChatSummary
	listGate     chan struct{}
	history      map[string][]models.Message
	historyErr   error
	gates        map[string]chan struct{}
	historyCalls map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		history:      make(map[string][]models.Message),
		gates:        make(map[string]chan struct{}),
		historyCalls: make(map[string]int),
	}
}

func (a *fakeAPI) ActiveChat(context.Context) (models.ActiveChatResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active, a.activeErr
}

func (a *fakeAPI) ActiveChats(ctx context.Context) ([]models.ChatSummary, error) {
	a.mu.Lock()
	gate := a.listGate
	a.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.ChatSummary(nil), a.list...), nil
}

func (a *fakeAPI) History(ctx context.Context, chatID string) ([]models.Message, error) {
	a.mu.Lock()
	a.historyCalls[chatID]++
	gate := a.gates[chatID]
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.historyErr != nil {
		return nil, a.historyErr
	}
	return append([]models.Message(nil), a.history[chatID]...), nil
}

func (a *fakeAPI) setHistory(chatID string, msgs ...models.Message) {
	a.mu.Lock()
	a.history[chatID] = msgs
	a.mu.Unlock()
}

func (a *fakeAPI) calls(chatID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.historyCalls[chatID]
}

type fakeIdentity struct {
	id  models.Identity
	err error
}

func (f fakeIdentity) Resolve(context.Context) (models.Identity, error) {
	return f.id, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
}

func (p *fakePublisher) Publish(_ context.Context, ev models.LifecycleEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) kinds() []models.LifecycleKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.LifecycleKind
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

// syncBuffer lets tests read log output while the loop writes it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	ch    *fakeChannel
	api   *fakeAPI
	cache *cache.MemoryCache
	view  *view.State
	pub   *fakePublisher
	logs  *syncBuffer
	deps  Deps
}

func newFixture() *fixture {
	f := &fixture{
		ch:    &fakeChannel{},
		api:   newFakeAPI(),
		cache: cache.NewMemoryCache(),
		view:  view.NewState(),
		pub:   &fakePublisher{},
		logs:  &syncBuffer{},
	}
	logger := log.New("chat-test")
	logger.SetOutput(f.logs)
	logger.SetLevel(log.DEBUG)
	f.deps = Deps{
		Channel:   f.ch,
		API:       f.api,
		Cache:     f.cache,
		View:      f.view,
		Identity:  fakeIdentity{id: models.Identity{UserID: "u1"}},
		Publisher: f.pub,
		Logger:    logger,
	}
	return f
}

func (f *fixture) user(t *testing.T) *UserAdapter {
	a := NewUserAdapter(f.deps)
	run(t, a.core)
	return a
}

func (f *fixture) admin(t *testing.T) *AdminAdapter {
	a := NewAdminAdapter(f.deps)
	run(t, a.core)
	return a
}

func (f *fixture) cached() string {
	id, _, _ := f.cache.Get(context.Background())
	return id
}

func run(t *testing.T, c *core) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// settle waits until every callback posted so far has run.
func settle(t *testing.T, c *core) {
	t.Helper()
	_, err := c.Current(context.Background())
	require.NoError(t, err)
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func msg(chatID string, sender models.Role, content, id string) models.Message {
	return models.Message{ChatID: chatID, Sender: sender, Content: content, MessageID: id}
}

func contents(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

// loadedHistory runs open and waits until the history it triggers for
// chatID has been applied to the view.
func (f *fixture) loadedHistory(t *testing.T, chatID string, open func() error) {
	t.Helper()
	gate := make(chan struct{})
	f.api.mu.Lock()
	f.api.gates[chatID] = gate
	f.api.mu.Unlock()

	require.NoError(t, open())
	v := f.view.Snapshot().Version
	close(gate)
	eventually(t, func() bool { return f.view.Snapshot().Version > v }, "history not applied")
}
