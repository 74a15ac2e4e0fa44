package models

import "time"

type LifecycleKind string

const (
	LifecycleCreated LifecycleKind = "created"
	LifecycleClosed  LifecycleKind = "closed"
	// LifecycleStale is emitted when a cached chat id is rejected by the server.
	LifecycleStale LifecycleKind = "stale"
)

// LifecycleEvent records a session transition observed by one client.
type LifecycleEvent struct {
	Kind   LifecycleKind `json:"kind"`
	ChatID string        `json:"chat_id"`
	Role   Role          `json:"role"`
	At     time.Time     `json:"at"`
}
