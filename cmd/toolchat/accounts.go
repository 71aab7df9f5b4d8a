package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/toolchat/internal/accounts"
	"github.com/nhle/toolchat/internal/theme"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List or revoke connected accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your connected accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := accountService()
		if err != nil {
			return err
		}
		defer closeFn()

		list, err := svc.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No connected accounts.")
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
			Headers("ID", "APP", "NAME", "HEALTHY", "CREATED")
		for _, a := range list {
			created := ""
			if !a.CreatedAt.IsZero() {
				created = a.CreatedAt.Format("2006-01-02")
			}
			t.Row(a.ID, a.AppName, a.Name, fmt.Sprint(a.Healthy), created)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

var accountsDeleteCmd = &cobra.Command{
	Use:   "delete <account-id>",
	Short: "Revoke a connected account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := accountService()
		if err != nil {
			return err
		}
		defer closeFn()

		if err := svc.Delete(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, accounts.ErrNotOwned) {
				return fmt.Errorf("account %s is not one of yours", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s.\n", args[0])
		return nil
	},
}

func init() {
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsDeleteCmd)
}

func accountService() (*accounts.Service, func(), error) {
	s, err := buildServices(cfg)
	if err != nil {
		return nil, nil, err
	}
	if s.accounts == nil {
		s.Close()
		return nil, nil, errors.New("connect platform is not configured; run `toolchat login`")
	}
	if !s.identity.CanConnect() {
		s.Close()
		return nil, nil, errors.New("not signed in; run `toolchat login` or pass --guest")
	}
	return s.accounts, s.Close, nil
}
