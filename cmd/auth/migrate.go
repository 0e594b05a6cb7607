package main

import (
	"github.com/spf13/cobra"

	"github.com/AlibekovAA/authcore/internal/common/bootstrap"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending account schema migrations",
		RunE:  runMigrate,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE:  runMigrateVersion,
	})
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	cmd.Println("Running migrations...")
	if err := bootstrap.MigrateDatabase(cmd.Context(), cfg, log); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	version, err := bootstrap.SchemaVersion(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	cmd.Printf("schema version %d\n", version)
	return nil
}
