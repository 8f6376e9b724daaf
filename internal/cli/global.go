package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/autolot/dealer-admin/internal/client"
	"github.com/autolot/dealer-admin/internal/config"
	"github.com/autolot/dealer-admin/pkg/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const (
	defaultServerUrl = "http://localhost:8080/api"
	defaultTimeout   = 30 * time.Second
	defaultLogLevel  = "warn"
)

type GlobalOptions struct {
	ServerUrl      string
	ConfigFilePath string
	Timeout        time.Duration
	LogLevel       string

	serverUrlSet bool
	out          io.Writer
	errOut       io.Writer
	in           io.Reader
}

func DefaultGlobalOptions() GlobalOptions {
	o := GlobalOptions{
		ServerUrl:      defaultServerUrl,
		ConfigFilePath: client.DefaultConfigPath(),
		Timeout:        defaultTimeout,
		LogLevel:       defaultLogLevel,
		out:            os.Stdout,
		errOut:         os.Stderr,
		in:             os.Stdin,
	}

	if cfg, err := config.New(); err == nil {
		o.ServerUrl = cfg.Client.ServerUrl
		o.Timeout = cfg.Client.RequestTimeout
		o.LogLevel = cfg.Client.LogLevel
	}

	return o
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ServerUrl, "server-url", "u", o.ServerUrl, "Address of the dealer API")
	fs.StringVar(&o.ConfigFilePath, "config", o.ConfigFilePath, "Path to the client config file")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Timeout of a single request to the dealer API")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level (debug, info, warn, error)")
}

func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	o.serverUrlSet = cmd.Flags().Changed("server-url")
	o.out = cmd.OutOrStdout()
	o.errOut = cmd.ErrOrStderr()
	o.in = cmd.InOrStdin()

	zap.ReplaceGlobals(log.InitLog(log.ParseLevel(o.LogLevel)))
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// Client returns the import client. An explicit --server-url wins over the
// config file, which wins over the environment.
func (o *GlobalOptions) Client() (*client.ImportClient, error) {
	if o.serverUrlSet || o.ConfigFilePath == "" {
		return o.clientFromUrl()
	}

	c, err := client.NewFromConfigFile(o.ConfigFilePath, o.Timeout)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return o.clientFromUrl()
		}
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return c, nil
}

func (o *GlobalOptions) clientFromUrl() (*client.ImportClient, error) {
	cfg := client.NewDefault()
	cfg.Service.Server = o.ServerUrl
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return client.NewFromConfig(cfg, o.Timeout), nil
}
