package models

import "time"

// Message is one append-only entry of a chat history.
// MessageID is empty on legacy paths, in which case dedup is best-effort.
type Message struct {
	ChatID    string    `json:"chat_id,omitempty"`
	Sender    Role      `json:"sender"`
	Content   string    `json:"content"`
	MessageID string    `json:"message_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageRecord is the devserver's persisted message row.
type MessageRecord struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	ChatID    string    `json:"chat_id" gorm:"index"`
	MessageID string    `json:"message_id" gorm:"uniqueIndex"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (r MessageRecord) Message() Message {
	return Message{
		ChatID:    r.ChatID,
		Sender:    Role(r.Sender),
		Content:   r.Content,
		MessageID: r.MessageID,
		Timestamp: r.CreatedAt,
	}
}
