package main

import (
	"fmt"
	"os"

	"github.com/fgeck/backupkit/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var forceInit bool

var initConfigCmd = &cobra.Command{
	Use:   "init-config <path>",
	Short: "Write an example configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ExpandPath(args[0])

		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := config.SaveExample(path); err != nil {
			log.Error().Err(err).Str("file", path).Msg("failed to write example config")
			return err
		}

		log.Info().Str("file", path).Msg("example configuration written")
		return nil
	},
}

func init() {
	initConfigCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
}
