package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/radio-control/txagg/internal/config"
	"github.com/radio-control/txagg/internal/eventloop"
	"github.com/radio-control/txagg/internal/multitx"
	"github.com/radio-control/txagg/internal/tx"
	"github.com/radio-control/txagg/internal/tx/dummy"
	"github.com/radio-control/txagg/internal/tx/local"
)

var (
	configPath  string
	logLevel    string
	logFormat   string
	transmitter string
)

var rootCmd = &cobra.Command{
	Use:   "txagg",
	Short: "Transmitter aggregation daemon",
	Long: `Drives a group of transmitters as one logical transmitter.

Every command sent to the aggregate is broadcast to its members, audio is
duplicated to all of them, and their latency requirements are reconciled
into one system latency.

Example configuration (txagg.yaml):
  transmitter: TxAll
  sections:
    TxAll:
      TYPE: Multi
      TRANSMITTERS: Tx1,Tx2
      SIMULCAST:
    Tx1:
      TYPE: Local
      LATENCY: 20
    Tx2:
      TYPE: Dummy`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $TXAGG_CONFIG or ./txagg.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&transmitter, "transmitter", "t", "", "section to drive (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the configuration, applies flag overrides and sets up
// logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if transmitter != "" {
		if _, ok := cfg.Sections[transmitter]; !ok {
			return nil, fmt.Errorf("%w: no section named %s", tx.ErrUnknownTransmitter, transmitter)
		}
		cfg.Transmitter = transmitter
	}

	if err := setupLogging(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(lc config.LoggingConfig) error {
	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)

	switch strings.ToLower(lc.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", lc.Format)
	}
	return nil
}

// newRegistry registers every transmitter type against cfg. Local
// transmitters and aggregates run on loop.
func newRegistry(cfg *config.Config, loop *eventloop.Loop, observer multitx.Observer) *tx.Registry {
	reg := tx.NewRegistry(cfg)
	reg.Register(local.TypeName, local.NewConstructor(loop))
	reg.Register(dummy.TypeName, dummy.Constructor)
	reg.Register(multitx.TypeName, multitx.NewConstructor(reg, multitx.WithObserver(observer)))
	return reg
}

// createTransmitter builds and initializes the configured transmitter.
// The loop must not be running yet.
func createTransmitter(cfg *config.Config, reg *tx.Registry) (tx.Transmitter, error) {
	t, err := reg.Create(cfg.Transmitter)
	if err != nil {
		return nil, err
	}
	if err := t.Initialize(); err != nil {
		closeTransmitter(t)
		return nil, err
	}
	return t, nil
}

// closeTransmitter closes t and logs a failure.
func closeTransmitter(t tx.Transmitter) {
	if err := t.Close(); err != nil {
		logrus.WithError(err).WithField("transmitter", t.Name()).Warn("Error closing transmitter")
	}
}
