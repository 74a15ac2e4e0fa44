package services

import (
	"context"
	"errors"
	"strings"

	"ShopChat/models"

	"github.com/google/uuid"
)

var (
	ErrChatClosed   = errors.New("chat is closed")
	ErrAccessDenied = errors.New("access denied")
	ErrEmptyContent = errors.New("message content is empty")
)

// ChatStore persists chats and their messages.
type ChatStore interface {
	CreateChat(ctx context.Context, chat *models.ChatRecord) error
	GetChat(ctx context.Context, chatID string) (*models.ChatRecord, error)
	FindActiveByUser(ctx context.Context, userID string) (*models.ChatRecord, error)
	ListActive(ctx context.Context) ([]models.ChatRecord, error)
	SetStatus(ctx context.Context, chatID, status string) error
	AddMessage(ctx context.Context, msg *models.MessageRecord) error
	Messages(ctx context.Context, chatID string) ([]models.MessageRecord, error)
}

// ChatService is the authoritative chat lifecycle of the devserver.
type ChatService struct {
	store ChatStore
}

func NewChatService(store ChatStore) *ChatService {
	return &ChatService{store: store}
}

// RoleOf maps an account type onto the chat role it speaks as.
func RoleOf(user *models.User) models.Role {
	if user.Type == "admin" {
		return models.RoleAdmin
	}
	return models.RoleUser
}

// CreateChat returns the user's active chat, creating one if there is none.
func (s *ChatService) CreateChat(ctx context.Context, userID string) (*models.ChatRecord, error) {
	existing, err := s.store.FindActiveByUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrChatNotFound) {
		return nil, err
	}

	chat := &models.ChatRecord{
		ChatID: strings.ReplaceAll(uuid.NewString(), "-", ""),
		UserID: userID,
		Status: models.ChatStatusActive,
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// access loads chatID and checks that actor may see it.
func (s *ChatService) access(ctx context.Context, chatID string, actor *models.User) (*models.ChatRecord, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if RoleOf(actor) != models.RoleAdmin && chat.UserID != actor.ID {
		return nil, ErrAccessDenied
	}
	return chat, nil
}

// Owner returns the id of the user chatID belongs to.
func (s *ChatService) Owner(ctx context.Context, chatID string) (string, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return "", err
	}
	return chat.UserID, nil
}

// CheckChat reports whether chatID is still active for actor.
func (s *ChatService) CheckChat(ctx context.Context, chatID string, actor *models.User) (bool, error) {
	chat, err := s.access(ctx, chatID, actor)
	switch {
	case errors.Is(err, models.ErrChatNotFound), errors.Is(err, ErrAccessDenied):
		return false, nil
	case err != nil:
		return false, err
	}
	return chat.Status == models.ChatStatusActive, nil
}

func (s *ChatService) SendMessage(ctx context.Context, chatID string, actor *models.User, content string) (*models.MessageRecord, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	chat, err := s.access(ctx, chatID, actor)
	if err != nil {
		return nil, err
	}
	if chat.Status != models.ChatStatusActive {
		return nil, ErrChatClosed
	}

	msg := &models.MessageRecord{
		ChatID:    chatID,
		MessageID: uuid.NewString(),
		Sender:    string(RoleOf(actor)),
		Content:   content,
	}
	if err := s.store.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *ChatService) CloseChat(ctx context.Context, chatID string, actor *models.User) error {
	chat, err := s.access(ctx, chatID, actor)
	if err != nil {
		return err
	}
	if chat.Status != models.ChatStatusActive {
		return ErrChatClosed
	}
	return s.store.SetStatus(ctx, chatID, models.ChatStatusInactive)
}

func (s *ChatService) ActiveChat(ctx context.Context, userID string) (models.ActiveChatResponse, error) {
	chat, err := s.store.FindActiveByUser(ctx, userID)
	if errors.Is(err, models.ErrChatNotFound) {
		return models.ActiveChatResponse{Active: false}, nil
	}
	if err != nil {
		return models.ActiveChatResponse{}, err
	}
	return models.ActiveChatResponse{Active: true, ChatID: chat.ChatID}, nil
}

func (s *ChatService) ActiveChats(ctx context.Context) ([]models.ChatSummary, error) {
	chats, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ChatSummary, 0, len(chats))
	for _, c := range chats {
		out = append(out, models.ChatSummary{ChatID: c.ChatID, UserID: c.UserID, Status: c.Status, CreatedAt: c.CreatedAt})
	}
	return out, nil
}

// History returns the ordered messages of chatID. Closed chats keep theirs.
func (s *ChatService) History(ctx context.Context, chatID string, actor *models.User) ([]models.Message, error) {
	if _, err := s.access(ctx, chatID, actor); err != nil {
		return nil, err
	}
	records, err := s.store.Messages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(records))
	for _, r := range records {
		out = append(out, r.Message())
	}
	return out, nil
}
