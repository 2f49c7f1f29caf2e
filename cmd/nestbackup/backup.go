package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nestbackup/nestbackup/internal/config"
	"github.com/nestbackup/nestbackup/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run all configured backup jobs",
	Long: `Run every job section in configuration order. The smtp job, if present,
always runs last so its report covers the whole run. One job failing does not
stop the others; the exit status is non-zero if any job failed.`,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	path := configPath()

	cfg, err := config.Load(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("failed to load config")
		return err
	}

	log.Info().
		Str("config", path).
		Int("jobs", len(cfg.Jobs)).
		Msg("configuration loaded")

	ctx, cancel := signalContext()
	defer cancel()

	report, err := runner.New(log.Logger).Backup(ctx, cfg)
	if err != nil {
		return err
	}
	if report.Failed() {
		return fmt.Errorf("backup finished with failed jobs")
	}

	log.Info().Msg("backup completed successfully")
	return nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, which
// terminates the in-flight external command. Temporary files may be left for
// manual cleanup.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	return ctx, cancel
}
