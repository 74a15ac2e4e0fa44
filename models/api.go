package models

import "time"

// TokenCookie carries the access token after a form login.
const TokenCookie = "token"

// ActiveChatResponse answers "does this user have an active chat".
type ActiveChatResponse struct {
	Active bool   `json:"active"`
	ChatID string `json:"chat_id,omitempty"`
}

// ChatSummary is one entry of the admin active-chats list.
type ChatSummary struct {
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
