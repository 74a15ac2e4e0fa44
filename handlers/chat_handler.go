package handlers

import (
	"errors"
	"net/http"

	"ShopChat/models"
	"ShopChat/services"

	"github.com/labstack/echo/v4"
)

// ChatHandler serves the HTTP side channel of the chat widget.
type ChatHandler struct {
	chats *services.ChatService
}

func NewChatHandler(chats *services.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// ActiveChat reports the caller's active chat, if any.
func (h *ChatHandler) ActiveChat(c echo.Context) error {
	user := c.Get("user").(*models.User)
	resp, err := h.chats.ActiveChat(c.Request().Context(), user.ID)
	if err != nil {
		c.Logger().Errorf("active chat of %s: %v", user.ID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch active chat"})
	}
	return c.JSON(http.StatusOK, resp)
}

// ActiveChats lists every active chat. Admin only.
func (h *ChatHandler) ActiveChats(c echo.Context) error {
	list, err := h.chats.ActiveChats(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("active chats: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch active chats"})
	}
	return c.JSON(http.StatusOK, list)
}

// History returns the ordered messages of ?chat_id=.
func (h *ChatHandler) History(c echo.Context) error {
	chatID := c.QueryParam("chat_id")
	if chatID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "chat_id is required"})
	}
	user := c.Get("user").(*models.User)

	msgs, err := h.chats.History(c.Request().Context(), chatID, user)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrChatNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, services.ErrAccessDenied):
			return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
		default:
			c.Logger().Errorf("history of %s: %v", chatID, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch history"})
		}
	}
	return c.JSON(http.StatusOK, msgs)
}
