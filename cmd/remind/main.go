package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/remind/internal/cli"
	"github.com/cloo-solutions/remind/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "remind",
		Short: "Remind CLI - ask questions about what you have seen on screen",
		Long: `Remind CLI talks to a running remindd over HTTP.

Environment variables:
  REMIND_API_URL     Daemon URL (default: http://localhost:8005)
  REMIND_API_TOKEN   Bearer token, when the daemon sets REMIND_API_TOKEN`,
		Version:       version,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "Bearer token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "Daemon URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.SummaryCmd())
	rootCmd.AddCommand(client.AddCmd())
	rootCmd.AddCommand(client.DeadLettersCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
