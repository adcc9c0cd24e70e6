package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "create or upgrade the support objects typestore keeps in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		started := time.Now()
		if err := a.db.Migrate(cmd.Context()); err != nil {
			return err
		}
		a.logger.Info("Database is up-to-date", zap.Duration("took", time.Since(started)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
