package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type SessionState string

const (
	SessionNone    SessionState = "none"
	SessionPending SessionState = "pending"
	SessionActive  SessionState = "active"
	SessionClosed  SessionState = "closed"
)

// Session is the client's view of one user-to-support conversation.
type Session struct {
	ID    string       `json:"chat_id"`
	Role  Role         `json:"role"`
	State SessionState `json:"state"`
}

// Chat status values held by the server side store.
const (
	ChatStatusActive   = "active"
	ChatStatusInactive = "inactive"
)

// ChatRecord is the devserver's persisted chat row.
type ChatRecord struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	ChatID    string    `json:"chat_id" gorm:"uniqueIndex"`
	UserID    string    `json:"user_id" gorm:"index"`
	Status    string    `json:"status" gorm:"default:'active'"` // active, inactive
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
