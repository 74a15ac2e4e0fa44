package server

import (
	"context"
	"fmt"

	"ShopChat/config"
	"ShopChat/handlers"
	custommiddleware "ShopChat/middleware"
	"ShopChat/limiter"
	"ShopChat/models"
	"ShopChat/redis"
	"ShopChat/services"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Server is the development chat server: login, the HTTP side channel
// and the websocket channel.
type Server struct {
	Echo                 *echo.Echo
	DB                   *gorm.DB
	Config               *config.Config
	AuthHandler          *handlers.AuthHandler
	ChatHandler          *handlers.ChatHandler
	ChatWebSocketHandler *handlers.ChatWebSocketHandler

	redis *redis.RedisClient
}

func NewServer(cfg *config.Config, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New("devserver")
	}

	var (
		db    *gorm.DB
		store services.ChatStore
	)
	if cfg.Database.DSN != "" {
		var err error
		db, err = gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := models.AutoMigrateAll(db); err != nil {
			return nil, fmt.Errorf("auto-migrate database: %w", err)
		}
		store = services.NewGormStore(db)
	} else {
		logger.Info("no database dsn, keeping chats in memory")
		store = services.NewMemoryStore()
	}

	authService, err := services.NewAuthService(cfg.DevServer.Users, &cfg.Auth)
	if err != nil {
		return nil, err
	}
	chatService := services.NewChatService(store)

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{echo.GET, echo.POST},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentLength, echo.HeaderAuthorization},
		MaxAge:           86400,
	}))

	s := &Server{
		Echo:                 e,
		DB:                   db,
		Config:               cfg,
		AuthHandler:          handlers.NewAuthHandler(authService),
		ChatHandler:          handlers.NewChatHandler(chatService),
		ChatWebSocketHandler: handlers.NewChatWebSocketHandler(chatService, logger),
	}

	if cfg.DevServer.RateLimit > 0 {
		strategy, err := limiter.NewStrategy(cfg.DevServer.RateStrategy)
		if err != nil {
			return nil, err
		}
		rc, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.redis = rc
		e.Use(custommiddleware.NewRateLimitMiddleware(limiter.NewManager(rc.Client, strategy), custommiddleware.RateLimitConfig{
			Limit:  cfg.DevServer.RateLimit,
			Window: cfg.DevServer.RateWindow,
		}))
	}

	s.SetupRoutes(custommiddleware.AuthMiddleware(authService), custommiddleware.AdminAuthMiddleware())
	return s, nil
}

func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

// Shutdown stops accepting requests, drops every websocket client and
// releases the redis connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ChatWebSocketHandler.Close()
	err := s.Echo.Shutdown(ctx)
	if s.redis != nil {
		s.redis.Close()
	}
	return err
}
