package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/toolchat/internal/logging"
	"github.com/nhle/toolchat/internal/model"
)

const (
	appName    = "toolchat"
	appVersion = "0.1.0"
)

var (
	configPath string
	guestFlag  bool

	cfg    *model.AppConfig
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Terminal chat assistant with tools for your connected apps",
	Long: `toolchat is a terminal chat with Claude. The assistant can call tools
on apps you connect (Slack, GitHub, Gmail and more); when a tool needs an
account you have not linked yet, the tool call offers a Connect button that
opens the linking flow in your browser and resumes the conversation once
the account is connected.`,
	Version:       appVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = model.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("guest") {
			cfg.Session.GuestMode = guestFlag
		}
		logger, err = logging.New(cfg.Log)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&guestFlag, "guest", false, "Run as a guest with a synthesized user id")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(renderCmd)

	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s\n", appName, appVersion))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
