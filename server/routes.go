package server

import (
	"github.com/labstack/echo/v4"
)

func (s *Server) SetupRoutes(authMiddleware echo.MiddlewareFunc, adminMiddleware echo.MiddlewareFunc) {
	e := s.Echo
	e.POST("/login", s.AuthHandler.Login)
	e.POST("/logout", s.AuthHandler.Logout)

	// everything below needs a token
	protected := e.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/ws", s.ChatWebSocketHandler.HandleWebSocket)

		api := protected.Group("/api")
		api.GET("/user", s.AuthHandler.GetCurrentUser)
		api.GET("/active-chat", s.ChatHandler.ActiveChat)
		api.GET("/chat-history", s.ChatHandler.History)
		api.GET("/active-chats", s.ChatHandler.ActiveChats, adminMiddleware)
	}
}
