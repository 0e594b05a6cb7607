package main

import (
	"github.com/spf13/cobra"

	"github.com/AlibekovAA/authcore/internal/common/bootstrap"
)

func NewAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Administer stored accounts",
	}
	cmd.AddCommand(newSetActiveCmd("deactivate", "Stop an account from logging in", false))
	cmd.AddCommand(newSetActiveCmd("activate", "Allow a deactivated account to log in again", true))
	return cmd
}

func newSetActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}

			app, err := bootstrap.NewAuthApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			account, err := app.Store.FindByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := app.Store.SetActive(cmd.Context(), account.ID, active); err != nil {
				return err
			}

			cmd.Printf("account %s (%s) %sd\n", account.Username, account.ID, use)
			return nil
		},
	}
}
