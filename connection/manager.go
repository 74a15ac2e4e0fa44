// Package connection owns the single bidirectional chat channel of a client.
package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ShopChat/models"

	"github.com/gorilla/websocket"
	"github.com/labstack/gommon/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Handler receives channel lifecycle notifications and decoded inbound
// events, in arrival order. HandleOpen always precedes the first HandleEvent.
type Handler interface {
	HandleOpen()
	HandleEvent(ev models.Event)
	HandleError(err error)
	HandleClose()
}

// Manager dials one channel and keeps it until it fails or is closed.
// It never reconnects: a failed channel stays closed until the process
// starts a new Manager.
type Manager struct {
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	logger  *log.Logger
	handler Handler

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	send    chan []byte
	closing bool
	done    chan struct{}
}

func NewManager(url string, header http.Header, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New("connection")
	}
	return &Manager{
		url:    url,
		header: header,
		dialer: websocket.DefaultDialer,
		logger: logger,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// Subscribe sets the inbound handler. It must be called before Connect.
func (m *Manager) Subscribe(h Handler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done is closed once the channel has shut down.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Connect dials the endpoint and starts the pumps. A dial failure is
// reported to the handler and is terminal for this Manager.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return fmt.Errorf("connection already %s", m.state)
	}
	if m.handler == nil {
		m.mu.Unlock()
		return errors.New("connection has no subscriber")
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, _, err := m.dialer.DialContext(ctx, m.url, m.header)
	if err != nil {
		m.logger.Errorf("chat channel error: %v", err)
		m.mu.Lock()
		m.state = StateClosed
		m.mu.Unlock()
		close(m.done)
		m.handler.HandleError(err)
		m.handler.HandleClose()
		return fmt.Errorf("dial %s: %w", m.url, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.state = StateOpen
	m.mu.Unlock()
	m.logger.Infof("chat channel open: %s", m.url)

	go m.writePump(conn)
	m.handler.HandleOpen()
	go m.readPump(conn)
	return nil
}

// Send queues ev for writing. While the channel is not open the event is
// dropped with a warning and ErrChannelUnavailable is returned.
func (m *Manager) Send(ev models.Event) error {
	data, err := models.EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type(), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen || m.closing {
		m.logger.Warnf("chat channel %s, dropping %s", m.state, ev.Type())
		return fmt.Errorf("%w: dropped %s", models.ErrChannelUnavailable, ev.Type())
	}
	select {
	case m.send <- data:
		return nil
	default:
		m.logger.Warnf("chat channel send buffer full, dropping %s", ev.Type())
		return fmt.Errorf("%w: send buffer full", models.ErrChannelUnavailable)
	}
}

// Close sends a close frame and tears the channel down. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	conn := m.conn
	if m.closing || m.state != StateOpen {
		m.mu.Unlock()
		return nil
	}
	m.closing = true
	m.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		m.logger.Debugf("close frame: %v", err)
	}
	return conn.Close()
}

func (m *Manager) readPump(conn *websocket.Conn) {
	defer m.finish(conn)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			closing := m.closing
			m.mu.Unlock()
			if !closing && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Errorf("chat channel error: %v", err)
				m.handler.HandleError(err)
			}
			return
		}

		ev, err := models.DecodeEvent(data)
		if err != nil {
			m.logger.Errorf("skipping frame: %v", err)
			continue
		}
		m.handler.HandleEvent(ev)
	}
}

func (m *Manager) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return

		case data := <-m.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				m.logger.Errorf("write error: %v", err)
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (m *Manager) finish(conn *websocket.Conn) {
	conn.Close()
	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()
	close(m.done)
	m.logger.Infof("chat channel closed")
	m.handler.HandleClose()
}
