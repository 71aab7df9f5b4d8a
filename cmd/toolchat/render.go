package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/toolchat/internal/highlight"
)

var renderHTML bool

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Pretty-print and highlight a tool payload",
	Long: `Read a tool request or response from file (or stdin), expand JSON
embedded in strings, decode HTML entities and print it highlighted the way
the chat shows it. With --html the output is an HTML fragment.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 1 && args[0] != "-" {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}

		out := highlight.Payload(string(data))
		if renderHTML {
			fmt.Fprintln(cmd.OutOrStdout(), out.HTML())
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.Terminal(highlight.DefaultStyles()))
		return nil
	},
}

func init() {
	renderCmd.Flags().BoolVar(&renderHTML, "html", false, "Emit an HTML fragment instead of terminal colors")
}
