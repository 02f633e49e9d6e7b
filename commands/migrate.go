package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"neurallog/db"
)

var (
	green = color.New(color.FgGreen)
	cyan  = color.New(color.FgCyan)
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and upgrade an older database",
	Long: `Create missing tables and indexes. Databases written before accounts had an
admin flag get the is_admin column, and their oldest account becomes the
administrator.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	report, err := store.Bootstrap(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !report.AddedAdminColumn {
		cyan.Fprintf(out, "Schema of %s is up to date\n", cfg.DatabasePath)
		return nil
	}
	green.Fprintf(out, "✓ Added is_admin column to users\n")
	if report.PromotedUserID != 0 {
		green.Fprintf(out, "✓ Promoted user %d to administrator\n", report.PromotedUserID)
	}
	return nil
}
