package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ShopChat/models"
	"ShopChat/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatClient is one websocket connection of an authenticated account.
type ChatClient struct {
	ID     string
	User   *models.User
	Conn   *websocket.Conn
	Send   chan []byte // buffered 256
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *ChatClient) isAdmin() bool {
	return services.RoleOf(c.User) == models.RoleAdmin
}

// delivery is one outbound frame. With a target it goes to that client
// only, otherwise to every admin and to every connection of owner.
type delivery struct {
	data   []byte
	target *ChatClient
	owner  string
}

func (d *delivery) wants(c *ChatClient) bool {
	if d.target != nil {
		return c == d.target
	}
	return c.isAdmin() || c.User.ID == d.owner
}

// ChatHub fans frames out to the connected clients.
type ChatHub struct {
	clients    map[string]*ChatClient
	Broadcast  chan *delivery
	Register   chan *ChatClient
	Unregister chan *ChatClient
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *log.Logger
}

func NewChatHub(logger *log.Logger) *ChatHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatHub{
		clients:    make(map[string]*ChatClient),
		Broadcast:  make(chan *delivery, 256),
		Register:   make(chan *ChatClient, 16),
		Unregister: make(chan *ChatClient, 16),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
}

// run is the hub's dispatch loop. It is the only writer of clients and
// the only closer of a client's Send channel.
func (h *ChatHub) run() {
	for {
		select {
		case <-h.ctx.Done():
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.Send)
			}
			return

		case client := <-h.Register:
			h.clients[client.ID] = client

		case client := <-h.Unregister:
			h.drop(client)

		case d := <-h.Broadcast:
			for _, client := range h.clients {
				if !d.wants(client) {
					continue
				}
				select {
				case client.Send <- d.data:
				default:
					h.logger.Warnf("client %s send buffer full, disconnecting", client.ID)
					h.drop(client)
				}
			}
		}
	}
}

func (h *ChatHub) drop(client *ChatClient) {
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
}

func (h *ChatHub) enqueue(ch chan *ChatClient, client *ChatClient) {
	select {
	case ch <- client:
	case <-h.ctx.Done():
	}
}

func (h *ChatHub) deliver(ev models.Event, d *delivery) {
	data, err := models.EncodeEvent(ev)
	if err != nil {
		h.logger.Errorf("encode %s: %v", ev.Type(), err)
		return
	}
	d.data = data
	select {
	case h.Broadcast <- d:
	case <-h.ctx.Done():
	}
}

// reply sends ev to client alone.
func (h *ChatHub) reply(client *ChatClient, ev models.Event) {
	h.deliver(ev, &delivery{target: client})
}

// publish sends ev to the admins and to the chat's owner.
func (h *ChatHub) publish(owner string, ev models.Event) {
	h.deliver(ev, &delivery{owner: owner})
}

func (h *ChatHub) Close() {
	h.cancel()
}

// ChatWebSocketHandler serves the chat channel at /ws.
type ChatWebSocketHandler struct {
	chats  *services.ChatService
	hub    *ChatHub
	logger *log.Logger
}

func NewChatWebSocketHandler(chats *services.ChatService, logger *log.Logger) *ChatWebSocketHandler {
	if logger == nil {
		logger = log.New("ws")
	}
	h := &ChatWebSocketHandler{
		chats:  chats,
		hub:    NewChatHub(logger),
		logger: logger,
	}
	go h.hub.run()
	return h
}

// Close disconnects every client and stops the hub.
func (h *ChatWebSocketHandler) Close() {
	h.hub.Close()
}

func (h *ChatWebSocketHandler) HandleWebSocket(c echo.Context) error {
	user := c.Get("user").(*models.User)

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(h.hub.ctx)
	client := &ChatClient{
		ID:     uuid.New().String(),
		User:   user,
		Conn:   ws,
		Send:   make(chan []byte, 256),
		ctx:    ctx,
		cancel: cancel,
	}
	h.hub.enqueue(h.hub.Register, client)
	h.logger.Infof("client %s connected as %s", client.ID, user.Username)

	go h.writePump(client)
	h.readPump(client)
	return nil
}

func (h *ChatWebSocketHandler) readPump(client *ChatClient) {
	defer func() {
		client.cancel()
		h.hub.enqueue(h.hub.Unregister, client)
		client.Conn.Close()
		h.logger.Infof("client %s disconnected", client.ID)
	}()

	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnf("client %s: %v", client.ID, err)
			}
			return
		}
		h.handleMessage(client, data)
	}
}

func (h *ChatWebSocketHandler) writePump(client *ChatClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Warnf("write to client %s: %v", client.ID, err)
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *ChatWebSocketHandler) handleMessage(client *ChatClient, data []byte) {
	ev, err := models.DecodeEvent(data)
	if err != nil {
		h.logger.Warnf("client %s: %v", client.ID, err)
		return
	}

	switch ev := ev.(type) {
	case models.CheckChat:
		h.handleCheck(client, ev)
	case models.CreateChat:
		h.handleCreate(client, ev)
	case models.SendMessage:
		h.handleSend(client, ev)
	case models.CloseChat:
		h.handleClose(client, ev)
	default:
		h.logger.Warnf("client %s sent server-only event %s", client.ID, ev.Type())
	}
}

func (h *ChatWebSocketHandler) handleCheck(client *ChatClient, ev models.CheckChat) {
	exists, err := h.chats.CheckChat(client.ctx, ev.ChatID, client.User)
	if err != nil {
		h.logger.Errorf("check chat %s: %v", ev.ChatID, err)
		return
	}
	h.hub.reply(client, models.ChatStatus{ChatID: ev.ChatID, Exists: exists})
}

func (h *ChatWebSocketHandler) handleCreate(client *ChatClient, ev models.CreateChat) {
	if client.isAdmin() {
		h.logger.Warnf("admin %s tried to create a chat", client.User.Username)
		return
	}
	if ev.UserID != client.User.ID {
		h.logger.Warnf("client %s asked for a chat as %s, using %s", client.ID, ev.UserID, client.User.ID)
	}
	chat, err := h.chats.CreateChat(client.ctx, client.User.ID)
	if err != nil {
		h.logger.Errorf("create chat for %s: %v", client.User.ID, err)
		return
	}
	h.hub.publish(chat.UserID, models.ChatCreated{ChatID: chat.ChatID})
}

func (h *ChatWebSocketHandler) handleSend(client *ChatClient, ev models.SendMessage) {
	msg, err := h.chats.SendMessage(client.ctx, ev.ChatID, client.User, ev.Content)
	if err != nil {
		h.rejected(client, ev.ChatID, err)
		return
	}
	owner, err := h.chats.Owner(client.ctx, ev.ChatID)
	if err != nil {
		h.logger.Errorf("owner of %s: %v", ev.ChatID, err)
		return
	}
	h.hub.publish(owner, models.NewMessage{
		ChatID:    msg.ChatID,
		Sender:    models.Role(msg.Sender),
		Content:   msg.Content,
		MessageID: msg.MessageID,
	})
}

func (h *ChatWebSocketHandler) handleClose(client *ChatClient, ev models.CloseChat) {
	owner, err := h.chats.Owner(client.ctx, ev.ChatID)
	if err == nil {
		err = h.chats.CloseChat(client.ctx, ev.ChatID, client.User)
	}
	if err != nil {
		h.rejected(client, ev.ChatID, err)
		return
	}
	h.hub.publish(owner, models.ChatClosed{ChatID: ev.ChatID})
}

// rejected tells client why an operation on chatID had no effect.
func (h *ChatWebSocketHandler) rejected(client *ChatClient, chatID string, err error) {
	switch {
	case errors.Is(err, services.ErrChatClosed):
		h.hub.reply(client, models.ChatClosed{ChatID: chatID})
	case errors.Is(err, models.ErrChatNotFound), errors.Is(err, services.ErrAccessDenied):
		h.hub.reply(client, models.ChatStatus{ChatID: chatID, Exists: false})
	case errors.Is(err, services.ErrEmptyContent):
		h.logger.Warnf("client %s sent an empty message to %s", client.ID, chatID)
	default:
		h.logger.Errorf("chat %s: %v", chatID, err)
	}
}
