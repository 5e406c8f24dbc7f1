package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/radio-control/txagg/internal/audit"
	"github.com/radio-control/txagg/internal/command"
	"github.com/radio-control/txagg/internal/config"
	"github.com/radio-control/txagg/internal/eventloop"
	"github.com/radio-control/txagg/internal/multitx"
	"github.com/radio-control/txagg/internal/telemetry"
)

var (
	runOperator   string
	runShowEvents bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the daemon and read operator commands from stdin",
	Long: `Start the daemon and read operator commands from stdin, one per line.

Commands:
` + command.Usage + `
  quit                    shut down

Example:
  echo "mode on" | txagg run -c txagg.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runDaemon(audit.WithOperator(ctx, runOperator), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	runCmd.Flags().StringVar(&runOperator, "operator", os.Getenv("USER"), "operator name recorded in the audit log")
	runCmd.Flags().BoolVar(&runShowEvents, "events", false, "log telemetry events")
}

func runDaemon(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	hub := telemetry.NewHub(cfg.Timing.EventBufferSize)
	defer hub.Stop()

	var auditLogger *audit.Logger
	if cfg.Audit.Dir != "" {
		var err error
		auditLogger, err = audit.NewLogger(cfg.Audit.Dir, audit.Options{
			MaxSizeMB:  cfg.Audit.MaxSizeMB,
			MaxBackups: cfg.Audit.MaxBackups,
			MaxAgeDays: cfg.Audit.MaxAgeDays,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize audit logger: %w", err)
		}
		defer func() {
			if err := auditLogger.Close(); err != nil {
				logrus.WithError(err).Warn("Error closing audit logger")
			}
		}()
		logrus.WithField("path", auditLogger.GetFilePath()).Info("Audit logger initialized")
	}

	loop := eventloop.New()
	defer loop.Stop()

	observer := command.NewTelemetryObserver(hub, multitx.NewLogObserver(nil))
	t, err := createTransmitter(cfg, newRegistry(cfg, loop, observer))
	if err != nil {
		return err
	}
	agg, ok := t.(command.Aggregate)
	if !ok {
		closeTransmitter(t)
		return fmt.Errorf("transmitter %s must be of type %s", cfg.Transmitter, multitx.TypeName)
	}

	orch := command.NewOrchestrator(loop, agg, hub, time.Duration(cfg.Timing.CommandTimeoutSec)*time.Second)
	if auditLogger != nil {
		orch.SetAuditLogger(auditLogger)
	}
	orch.SetAudioRetry(time.Duration(cfg.Timing.AudioRetryMs) * time.Millisecond)
	orch.Attach()

	logrus.WithFields(logrus.Fields{
		"transmitter": agg.Name(),
		"members":     len(agg.Status().Members),
	}).Info("txagg started")

	loop.Start()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := loop.Call(closeCtx, func() {
			if err := agg.Close(); err != nil {
				logrus.WithError(err).Warn("Error closing transmitters")
			}
		}); err != nil {
			logrus.WithError(err).Warn("Transmitters not closed")
		}
	}()

	if runShowEvents {
		sub, err := hub.Subscribe(ctx, "", 0)
		if err != nil {
			return err
		}
		go logEvents(sub)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if line == "quit" || line == "exit" {
				return nil
			}
			reply, err := orch.Execute(ctx, line)
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, reply)
		}
	}
}

func logEvents(sub *telemetry.Subscriber) {
	for e := range sub.Events {
		logrus.WithFields(logrus.Fields{
			"id":          e.ID,
			"type":        e.Type,
			"transmitter": e.Transmitter,
			"data":        e.Data,
		}).Info("Telemetry event")
	}
}
