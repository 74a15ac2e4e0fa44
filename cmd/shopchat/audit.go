package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"ShopChat/kafka"

	"github.com/spf13/cobra"
)

func newAuditCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Print the chat lifecycle events published to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if !cfg.Kafka.Enabled() {
				return errors.New("kafka.brokers and kafka.topic are required")
			}
			logger, closeLog, err := opts.logger("audit", os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog()

			sc, err := kafka.NewSaramaConfig(&cfg.Kafka)
			if err != nil {
				return err
			}
			consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{cfg.Kafka.Topic},
				sc, kafka.NewAuditHandler(cmd.OutOrStdout()), logger)
			if err != nil {
				return err
			}
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return consumer.Start(ctx)
		},
	}
}
