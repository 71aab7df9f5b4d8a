package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/toolchat/internal/credential"
	"github.com/nhle/toolchat/internal/model"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the API key, platform credentials and your user id",
	Long: `Prompt for the Anthropic API key, the connect platform project and
OAuth client, and the user id accounts are linked under. Secrets go to the
system keyring; the project id is written to the config file. Leave a
field empty to keep its current value.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range []string{credential.KeySessionUserID, credential.KeySessionEmail} {
			if err := credential.Delete(k); err != nil {
				return err
			}
		}
		logger.Info("signed out")
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

type loginForm struct {
	apiKey       string
	projectID    string
	clientID     string
	clientSecret string
	userID       string
	email        string
}

func runLogin(cmd *cobra.Command, args []string) error {
	f := loginForm{projectID: cfg.Connect.ProjectID}
	f.userID, _ = credential.Get(credential.KeySessionUserID)
	f.email, _ = credential.Get(credential.KeySessionEmail)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Anthropic API key").
				Description("Leave empty to keep the stored key.").
				EchoMode(huh.EchoModePassword).
				Value(&f.apiKey),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Connect project id").
				Placeholder("proj_...").
				Value(&f.projectID),
			huh.NewInput().
				Title("OAuth client id").
				Value(&f.clientID),
			huh.NewInput().
				Title("OAuth client secret").
				EchoMode(huh.EchoModePassword).
				Value(&f.clientSecret),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("User id").
				Description("Accounts you connect are linked under this id.").
				Value(&f.userID).
				Validate(func(s string) error {
					if strings.ContainsAny(s, " \t") {
						return errors.New("user id cannot contain whitespace")
					}
					return nil
				}),
			huh.NewInput().
				Title("Email").
				Value(&f.email),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return fmt.Errorf("login form: %w", err)
	}

	if err := f.save(); err != nil {
		return err
	}

	if p := strings.TrimSpace(f.projectID); p != cfg.Connect.ProjectID {
		cfg.Connect.ProjectID = p
		if err := model.SaveConfig(configPath, cfg); err != nil {
			return err
		}
	}

	logger.Info("login saved", zap.Bool("signed_in", strings.TrimSpace(f.userID) != ""))
	fmt.Fprintln(cmd.OutOrStdout(), "Saved.")
	return nil
}

// save writes every non-empty field to the keyring.
func (f loginForm) save() error {
	secrets := []struct{ key, value string }{
		{credential.KeyAnthropicAPIKey, f.apiKey},
		{credential.KeyConnectClientID, f.clientID},
		{credential.KeyConnectClientSecret, f.clientSecret},
		{credential.KeySessionUserID, f.userID},
		{credential.KeySessionEmail, f.email},
	}
	for _, s := range secrets {
		v := strings.TrimSpace(s.value)
		if v == "" {
			continue
		}
		if err := credential.Set(s.key, v); err != nil {
			return err
		}
	}
	return nil
}
