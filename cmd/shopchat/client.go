package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ShopChat/cache"
	"ShopChat/chat"
	"ShopChat/config"
	"ShopChat/connection"
	"ShopChat/kafka"
	"ShopChat/models"
	"ShopChat/redis"
	"ShopChat/tui"
	"ShopChat/view"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
)

func newClientCmd(opts *rootOptions, role string) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   role,
		Short: fmt.Sprintf("Open the support chat widget as %s", role),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if username != "" {
				cfg.Chat.Username = username
			}
			if password != "" {
				cfg.Chat.Password = password
			}
			// the terminal belongs to the TUI
			logger, closeLog, err := opts.logger("chat", io.Discard)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runClient(ctx, cfg, models.Role(role), logger)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "login name (overrides chat.username)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (overrides chat.password)")
	return cmd
}

// clientAdapter is what both role adapters share with the terminal loop.
type clientAdapter interface {
	connection.Handler
	Run(ctx context.Context) error
	Start(ctx context.Context) error
}

func runClient(ctx context.Context, cfg *config.Config, role models.Role, logger *log.Logger) error {
	api := chat.NewAPIClient(&cfg.Chat)
	token, err := api.FetchToken(ctx)
	if err != nil {
		return fmt.Errorf("login as %q: %w", cfg.Chat.Username, err)
	}

	sessionCache, closeCache, err := buildCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	mgr := connection.NewManager(cfg.Chat.WSURL, header, logger)
	defer mgr.Close()

	state := view.NewState()
	deps := chat.Deps{
		Channel:             mgr,
		API:                 api,
		Cache:               sessionCache,
		View:                state,
		Identity:            chat.NewIdentityResolver(api),
		Logger:              logger,
		OptimisticLocalEcho: cfg.Chat.OptimisticLocalEcho,
	}
	if cfg.Kafka.Enabled() {
		sc, err := kafka.NewSaramaConfig(&cfg.Kafka)
		if err != nil {
			return err
		}
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, sc, logger)
		if err != nil {
			return fmt.Errorf("lifecycle producer: %w", err)
		}
		defer producer.Close()
		deps.Publisher = producer
	}

	var (
		adapter clientAdapter
		actions tui.Actions
	)
	switch role {
	case models.RoleAdmin:
		a := chat.NewAdminAdapter(deps)
		adapter, actions = a, adminActions{a}
	default:
		a := chat.NewUserAdapter(deps)
		adapter, actions = a, userActions{a}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	mgr.Subscribe(adapter)
	go adapter.Run(ctx)
	if err := adapter.Start(ctx); err != nil {
		return err
	}
	if err := mgr.Connect(ctx); err != nil {
		logger.Errorf("connect %s: %v", cfg.Chat.WSURL, err)
		state.Notify("Could not connect to the chat server")
	}

	_, err = tea.NewProgram(tui.New(ctx, actions, state), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// buildCache opens the configured session cache backend.
func buildCache(cfg *config.Config) (cache.SessionCache, func(), error) {
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return rc.SessionCache(cfg.Chat.Username), func() { rc.Close() }, nil
	case "file":
		return cache.NewFileCache(cfg.Cache.Path, cfg.Cache.Key), func() {}, nil
	default:
		return cache.NewMemoryCache(), func() {}, nil
	}
}

type userActions struct{ a *chat.UserAdapter }

func (u userActions) Role() models.Role { return models.RoleUser }
func (u userActions) Create(ctx context.Context) error { return u.a.CreateChat(ctx) }
func (u userActions) Open(ctx context.Context, _ string) error { return u.a.OpenPanel(ctx) }
func (u userActions) Send(ctx context.Context, content string) error { return u.a.SendMessage(ctx, content) }
func (u userActions) Close(ctx context.Context, _ string) error { return u.a.CloseChat(ctx) }

type adminActions struct{ a *chat.AdminAdapter }

func (a adminActions) Role() models.Role { return models.RoleAdmin }
func (a adminActions) Create(context.Context) error {
	return fmt.Errorf("admins cannot start chats")
}
func (a adminActions) Open(ctx context.Context, chatID string) error { return a.a.OpenChat(ctx, chatID) }
func (a adminActions) Send(ctx context.Context, content string) error { return a.a.SendMessage(ctx, content) }
func (a adminActions) Close(ctx context.Context, chatID string) error { return a.a.CloseChat(ctx, chatID) }
