package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/nestbackup/nestbackup/internal/config"
	"github.com/nestbackup/nestbackup/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  `Validate the configuration file without executing any jobs.`,
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := configPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Error().Str("file", path).Msg("config file not found")
		return fmt.Errorf("config file not found: %s", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("configuration validation failed")
		return err
	}

	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Jobs:")
	for _, job := range cfg.Jobs {
		fmt.Printf("  [%s] %s\n", job.Name, job.Kind)
		switch job.Kind {
		case models.JobSync:
			fmt.Printf("    Local path: %s\n", job.Sync.LocalPath)
			fmt.Printf("    Remote key: %s/%s/%s\n", job.Hostname, job.Name, job.Sync.RemotePath)
		case models.JobDatabase:
			fmt.Printf("    Engine: %s\n", job.Database.Engine)
			fmt.Printf("    Database: %s\n", job.Database.Database)
			if job.Database.Retention > 0 {
				fmt.Printf("    Retention: keep %d snapshots\n", job.Database.Retention)
			} else {
				fmt.Printf("    Retention: keep everything\n")
			}
		case models.JobSMTP:
			fmt.Printf("    Server: %s:%d (ssl: %v)\n", job.SMTP.Server, job.SMTP.Port, job.SMTP.SSL)
			fmt.Printf("    Recipients: %s\n", strings.Join(job.SMTP.Recipients, ", "))
		}
		if job.Bucket != "" {
			fmt.Printf("    Bucket: %s\n", job.Bucket)
		}
	}

	return nil
}
