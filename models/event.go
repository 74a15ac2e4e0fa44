package models

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	EventCreateChat  EventType = "create_chat"
	EventSendMessage EventType = "send_message"
	EventCloseChat   EventType = "close_chat"
	EventCheckChat   EventType = "check_chat"
	EventChatCreated EventType = "chat_created"
	EventNewMessage  EventType = "new_message"
	EventChatClosed  EventType = "chat_closed"
	EventChatStatus  EventType = "chat_status"
)

// Event is one frame of the chat channel protocol. The concrete types
// below form a closed set; consumers switch on them exhaustively.
type Event interface {
	Type() EventType
}

// ChatRef is implemented by every event bound to a chat.
type ChatRef interface {
	Event
	ChatRef() string
}

// outbound

type CreateChat struct {
	UserID string `json:"user_id"`
}

type SendMessage struct {
	ChatID  string `json:"chat_id"`
	Sender  Role   `json:"sender"`
	Content string `json:"content"`
}

type CloseChat struct {
	ChatID string `json:"chat_id"`
}

type CheckChat struct {
	ChatID string `json:"chat_id"`
}

// inbound

type ChatCreated struct {
	ChatID string `json:"chat_id"`
}

type NewMessage struct {
	ChatID    string `json:"chat_id"`
	Sender    Role   `json:"sender"`
	Content   string `json:"content"`
	MessageID string `json:"message_id,omitempty"`
}

type ChatClosed struct {
	ChatID string `json:"chat_id"`
}

type ChatStatus struct {
	ChatID string `json:"chat_id"`
	Exists bool   `json:"exists"`
}

func (CreateChat) Type() EventType  { return EventCreateChat }
func (SendMessage) Type() EventType { return EventSendMessage }
func (CloseChat) Type() EventType   { return EventCloseChat }
func (CheckChat) Type() EventType   { return EventCheckChat }
func (ChatCreated) Type() EventType { return EventChatCreated }
func (NewMessage) Type() EventType  { return EventNewMessage }
func (ChatClosed) Type() EventType  { return EventChatClosed }
func (ChatStatus) Type() EventType  { return EventChatStatus }

func (e SendMessage) ChatRef() string { return e.ChatID }
func (e CloseChat) ChatRef() string   { return e.ChatID }
func (e CheckChat) ChatRef() string   { return e.ChatID }
func (e ChatCreated) ChatRef() string { return e.ChatID }
func (e NewMessage) ChatRef() string  { return e.ChatID }
func (e ChatClosed) ChatRef() string  { return e.ChatID }
func (e ChatStatus) ChatRef() string  { return e.ChatID }

// Message converts an inbound new_message into a history entry.
func (e NewMessage) Message() Message {
	return Message{
		ChatID:    e.ChatID,
		Sender:    e.Sender,
		Content:   e.Content,
		MessageID: e.MessageID,
	}
}

// EncodeEvent serializes ev as a flat JSON object carrying its "type".
func EncodeEvent(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typ, err := json.Marshal(ev.Type())
	if err != nil {
		return nil, err
	}
	fields["type"] = typ
	return json.Marshal(fields)
}

// DecodeEvent parses one frame. Unknown types, undecodable bodies and
// chat-bound events without a chat id yield ErrMalformedPayload.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var (
		ev  Event
		err error
	)
	switch head.Type {
	case EventCreateChat:
		ev, err = decodeAs[CreateChat](data)
	case EventSendMessage:
		ev, err = decodeAs[SendMessage](data)
	case EventCloseChat:
		ev, err = decodeAs[CloseChat](data)
	case EventCheckChat:
		ev, err = decodeAs[CheckChat](data)
	case EventChatCreated:
		ev, err = decodeAs[ChatCreated](data)
	case EventNewMessage:
		ev, err = decodeAs[NewMessage](data)
	case EventChatClosed:
		ev, err = decodeAs[ChatClosed](data)
	case EventChatStatus:
		ev, err = decodeAs[ChatStatus](data)
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrMalformedPayload, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, head.Type, err)
	}

	if ref, ok := ev.(ChatRef); ok && ref.ChatRef() == "" {
		return nil, fmt.Errorf("%w: %s without chat_id", ErrMalformedPayload, head.Type)
	}
	if create, ok := ev.(CreateChat); ok && create.UserID == "" {
		return nil, fmt.Errorf("%w: create_chat without user_id", ErrMalformedPayload)
	}
	return ev, nil
}

func decodeAs[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}
