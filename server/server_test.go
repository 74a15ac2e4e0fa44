package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ShopChat/cache"
	"ShopChat/chat"
	"ShopChat/config"
	"ShopChat/connection"
	"ShopChat/models"
	"ShopChat/services"
	"ShopChat/view"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger(prefix string) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(io.Discard)
	return l
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := services.HashPassword("cheese")
	require.NoError(t, err)
	return &config.Config{
		Auth: config.AuthConfig{JWTSecret: "secret", TokenExpiry: 1},
		DevServer: config.DevServerConfig{Users: []models.User{
			{ID: "u-alice", Username: "alice", Password: hash, Type: "client"},
			{ID: "u-bob", Username: "bob", Password: hash, Type: "client"},
			{ID: "u-desk", Username: "desk", Password: hash, Type: "admin"},
		}},
	}
}

func startServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	s, err := NewServer(cfg, quietLogger("devserver"))
	require.NoError(t, err)
	s.Echo.Logger.SetOutput(io.Discard)
	ts := httptest.NewServer(s.Echo)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
		ts.Close()
	})
	return ts
}

type client struct {
	api   *chat.APIClient
	mgr   *connection.Manager
	view  *view.State
	cache *cache.MemoryCache
}

func (c *client) deps() chat.Deps {
	return chat.Deps{
		Channel:  c.mgr,
		API:      c.api,
		Cache:    c.cache,
		View:     c.view,
		Identity: chat.NewIdentityResolver(c.api),
		Logger:   quietLogger("chat"),
	}
}

func dial(t *testing.T, ts *httptest.Server, username string) *client {
	t.Helper()
	cfg := &config.ChatConfig{
		WSURL:          "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		APIBaseURL:     ts.URL,
		LoginPath:      "/login",
		RequestTimeout: 5 * time.Second,
		Username:       username,
		Password:       "cheese",
	}
	api := chat.NewAPIClient(cfg)
	token, err := api.FetchToken(context.Background())
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return &client{
		api:   api,
		mgr:   connection.NewManager(cfg.WSURL, header, quietLogger("connection")),
		view:  view.NewState(),
		cache: cache.NewMemoryCache(),
	}
}

type runner interface {
	connection.Handler
	Run(ctx context.Context) error
	Start(ctx context.Context) error
}

func (c *client) run(t *testing.T, a runner) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		c.mgr.Close()
		cancel()
	})
	c.mgr.Subscribe(a)
	go a.Run(ctx)
	require.NoError(t, a.Start(ctx))
	require.NoError(t, c.mgr.Connect(ctx))
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 10*time.Millisecond, msg)
}

func contents(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func TestUserAndAdminConversation(t *testing.T) {
	ts := startServer(t, testConfig(t))

	admin := dial(t, ts, "desk")
	desk := chat.NewAdminAdapter(admin.deps())
	admin.run(t, desk)

	user := dial(t, ts, "alice")
	alice := chat.NewUserAdapter(user.deps())
	user.run(t, alice)
	eventually(t, func() bool { return user.view.Snapshot().Mode == view.ModeNoActiveChat }, "user has no chat yet")

	require.NoError(t, alice.CreateChat(context.Background()))
	eventually(t, func() bool { return user.view.Snapshot().Mode == view.ModeActiveChat }, "chat not created")
	chatID := user.view.Snapshot().ChatID
	cached, ok, err := user.cache.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, chatID, cached)

	eventually(t, func() bool {
		ids, err := desk.ActiveChats(context.Background())
		return err == nil && len(ids) == 1 && ids[0] == chatID
	}, "admin did not see the new chat")

	require.NoError(t, alice.OpenPanel(context.Background()))
	require.NoError(t, desk.OpenChat(context.Background(), chatID))
	require.NoError(t, alice.SendMessage(context.Background(), "where is my order?"))
	eventually(t, func() bool { return len(admin.view.Snapshot().Messages) == 1 }, "admin did not get the message")

	require.NoError(t, desk.SendMessage(context.Background(), "on its way"))
	eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"where is my order?", "on its way"}, contents(user.view.Snapshot().Messages))
	}, "user transcript incomplete")

	history, err := user.api.History(context.Background(), chatID)
	require.NoError(t, err)
	assert.Equal(t, []string{"where is my order?", "on its way"}, contents(history))
	assert.Equal(t, models.RoleAdmin, history[1].Sender)

	require.NoError(t, desk.CloseChat(context.Background(), chatID))
	eventually(t, func() bool { return user.view.Snapshot().Mode == view.ModeNoActiveChat }, "user did not see the close")
	_, ok, err = user.cache.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, user.view.Snapshot().Notices, "The chat was closed")

	// closed chats keep their history
	history, err = admin.api.History(context.Background(), chatID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestStaleCacheIsCleared(t *testing.T) {
	ts := startServer(t, testConfig(t))

	user := dial(t, ts, "bob")
	require.NoError(t, user.cache.Set(context.Background(), "gone"))
	bob := chat.NewUserAdapter(user.deps())
	user.run(t, bob)

	eventually(t, func() bool { return user.view.Snapshot().Mode == view.ModeNoActiveChat }, "stale chat still shown")
	_, ok, err := user.cache.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOtherUsersDoNotSeeForeignChats(t *testing.T) {
	ts := startServer(t, testConfig(t))

	a := dial(t, ts, "alice")
	alice := chat.NewUserAdapter(a.deps())
	a.run(t, alice)
	b := dial(t, ts, "bob")
	bob := chat.NewUserAdapter(b.deps())
	b.run(t, bob)
	eventually(t, func() bool { return b.view.Snapshot().Mode == view.ModeNoActiveChat }, "bob not started")

	require.NoError(t, alice.CreateChat(context.Background()))
	eventually(t, func() bool { return a.view.Snapshot().Mode == view.ModeActiveChat }, "chat not created")
	chatID := a.view.Snapshot().ChatID

	_, err := b.api.History(context.Background(), chatID)
	assert.Error(t, err)
	cur, err := bob.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SessionNone, cur.State)
}

func TestLoginEndpoint(t *testing.T) {
	ts := startServer(t, testConfig(t))
	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	resp, err := noRedirect.PostForm(ts.URL+"/login", url.Values{"username": {"alice"}, "password": {"cheese"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.NotEmpty(t, resp.Cookies())
	assert.Equal(t, "token", resp.Cookies()[0].Name)

	// the cookie alone authenticates
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/active-chat", nil)
	req.AddCookie(resp.Cookies()[0])
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var active models.ActiveChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&active))
	resp.Body.Close()
	assert.False(t, active.Active)

	resp, err = http.Post(ts.URL+"/login", "application/json", strings.NewReader(`{"username":"alice","password":"nope"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/active-chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestActiveChatsIsAdminOnly(t *testing.T) {
	ts := startServer(t, testConfig(t))

	user := dial(t, ts, "alice")
	_, err := user.api.ActiveChats(context.Background())
	assert.Error(t, err)

	admin := dial(t, ts, "desk")
	list, err := admin.api.ActiveChats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis = config.RedisConfig{Addr: mr.Addr(), PoolSize: 2}
	cfg.DevServer.RateLimit = 2
	cfg.DevServer.RateWindow = time.Minute
	ts := startServer(t, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/active-chat")
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}
