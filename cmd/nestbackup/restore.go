package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/nestbackup/nestbackup/internal/config"
	"github.com/nestbackup/nestbackup/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	restoreForce    bool
	restoreSnapshot string
)

var restoreCmd = &cobra.Command{
	Use:   "restore [section...]",
	Short: "Restore jobs from object storage",
	Long: `Reverse the configured jobs: download-and-sync for sync sections,
download-decompress-load for database sections. With section arguments only
those sections are restored. Restore stops at the first failure.

Restoring overwrites local state, so the hostname must be typed to confirm
unless --force is given.`,
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "don't ask for confirmation")
	restoreCmd.Flags().StringVar(&restoreSnapshot, "snapshot", "", "snapshot to restore for database sections (default: most recent)")
}

func runRestore(cmd *cobra.Command, args []string) error {
	path := configPath()

	cfg, err := config.Load(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("failed to load config")
		return err
	}

	if !restoreForce {
		if err := confirmHostname(cfg); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := runner.New(log.Logger).Restore(ctx, cfg, args, restoreSnapshot); err != nil {
		log.Error().Err(err).Msg("restore failed")
		return err
	}

	log.Info().Msg("restore completed successfully")
	return nil
}

// confirmHostname asks the operator to type the configured hostname before a
// destructive restore proceeds.
func confirmHostname(cfg *config.Config) error {
	hostname := ""
	if len(cfg.Jobs) > 0 {
		hostname = cfg.Jobs[0].Hostname
	}

	fmt.Printf("Please type the hostname (%q) to confirm the restore: ", hostname)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	if strings.TrimSpace(line) != hostname {
		return fmt.Errorf("restore aborted")
	}
	return nil
}
