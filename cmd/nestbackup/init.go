package main

import (
	"github.com/nestbackup/nestbackup/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long:  `Write a template configuration file. Fails if the file already exists.`,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath()

	if err := config.WriteTemplate(path); err != nil {
		log.Error().Err(err).Str("file", path).Msg("failed to write config template")
		return err
	}

	log.Info().Str("file", path).Msg("config template created")
	return nil
}
