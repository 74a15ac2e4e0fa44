package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"ShopChat/models"
)

// MemoryStore keeps chats in process memory. It is the devserver default.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   uint
	chats    map[string]*models.ChatRecord
	messages map[string][]models.MessageRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[string]*models.ChatRecord),
		messages: make(map[string][]models.MessageRecord),
	}
}

func (s *MemoryStore) CreateChat(_ context.Context, chat *models.ChatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now()
	chat.ID = s.nextID
	chat.CreatedAt, chat.UpdatedAt = now, now
	c := *chat
	s.chats[chat.ChatID] = &c
	return nil
}

func (s *MemoryStore) GetChat(_ context.Context, chatID string) (*models.ChatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, models.ErrChatNotFound
	}
	out := *c
	return &out, nil
}

func (s *MemoryStore) FindActiveByUser(_ context.Context, userID string) (*models.ChatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.ChatRecord
	for _, c := range s.chats {
		if c.UserID == userID && c.Status == models.ChatStatusActive && (found == nil || c.ID > found.ID) {
			found = c
		}
	}
	if found == nil {
		return nil, models.ErrChatNotFound
	}
	out := *found
	return &out, nil
}

func (s *MemoryStore) ListActive(context.Context) ([]models.ChatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatRecord, 0, len(s.chats))
	for _, c := range s.chats {
		if c.Status == models.ChatStatusActive {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, chatID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return models.ErrChatNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AddMessage(_ context.Context, msg *models.MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[msg.ChatID]; !ok {
		return models.ErrChatNotFound
	}
	s.nextID++
	msg.ID = s.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], *msg)
	return nil
}

func (s *MemoryStore) Messages(_ context.Context, chatID string) ([]models.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.chats[chatID]; !ok {
		return nil, models.ErrChatNotFound
	}
	return append([]models.MessageRecord(nil), s.messages[chatID]...), nil
}
