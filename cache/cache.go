// Package cache holds the local session cache: a single persisted key
// naming the user's current chat. Presence is trusted for rendering only;
// the reconciler re-validates it against the server.
package cache

import (
	"context"
	"sync"
)

type SessionCache interface {
	// Get returns the cached chat id, or ok=false when none is stored.
	Get(ctx context.Context) (chatID string, ok bool, err error)
	Set(ctx context.Context, chatID string) error
	Clear(ctx context.Context) error
}

type MemoryCache struct {
	mu     sync.Mutex
	chatID string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(context.Context) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID, c.chatID != "", nil
}

func (c *MemoryCache) Set(_ context.Context, chatID string) error {
	c.mu.Lock()
	c.chatID = chatID
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(context.Context) error {
	return c.Set(context.Background(), "")
}
