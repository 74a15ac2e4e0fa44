package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ShopChat/models"
	"ShopChat/server"
	"ShopChat/services"

	"github.com/spf13/cobra"
)

// demoUsers are the accounts used when the config lists none. All of
// them log in with the password "cheese".
var demoUsers = []models.User{
	{ID: "u-alice", Username: "alice", Type: "client"},
	{ID: "u-bob", Username: "bob", Type: "client"},
	{ID: "u-desk", Username: "desk", Type: "admin"},
}

func newDevServerCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, closeLog, err := opts.logger("devserver", os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog()

			if addr != "" {
				cfg.DevServer.Addr = addr
			}
			if cfg.Auth.JWTSecret == "" {
				logger.Warn("auth.jwt_secret is empty, using an insecure development secret")
				cfg.Auth.JWTSecret = "shopchat-dev"
			}
			if len(cfg.DevServer.Users) == 0 {
				hash, err := services.HashPassword("cheese")
				if err != nil {
					return err
				}
				for _, u := range demoUsers {
					u.Password = hash
					cfg.DevServer.Users = append(cfg.DevServer.Users, u)
				}
				logger.Info("no devserver.users configured, seeded alice, bob and desk")
			}

			s, err := server.NewServer(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errc := make(chan error, 1)
			go func() {
				errc <- s.Start(cfg.DevServer.Addr)
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides devserver.addr)")
	return cmd
}
