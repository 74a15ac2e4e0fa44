package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ShopChat/config"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logFile    string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "shopchat",
		Short:         "Support chat client and development server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default config/config.json)")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "write logs here instead of stderr")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log at debug level")

	cmd.AddCommand(
		newClientCmd(opts, "user"),
		newClientCmd(opts, "admin"),
		newDevServerCmd(opts),
		newAuditCmd(opts),
		newHashCmd(),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// logger returns a logger writing to the log file, or to fallback when
// none is set. The returned closer releases the file.
func (o *rootOptions) logger(prefix string, fallback io.Writer) (*log.Logger, func(), error) {
	l := log.New(prefix)
	l.SetLevel(log.INFO)
	if o.debug {
		l.SetLevel(log.DEBUG)
	}
	if o.logFile == "" {
		l.SetOutput(fallback)
		return l, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(o.logFile), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	l.SetOutput(f)
	return l, func() { f.Close() }, nil
}
