package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/remind/internal/cli"
	"github.com/cloo-solutions/remind/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "remindd",
		Short: "Remind daemon",
		Long: `Remind records what appears on screen, turns it into searchable text, and
answers questions about it.

Configuration is read from REMIND_* environment variables and an optional .env file.`,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.RunCmd())
	rootCmd.AddCommand(admin.ConsolidateCmd())
	rootCmd.AddCommand(admin.SyncCmd())
	rootCmd.AddCommand(admin.SweepCmd())
	rootCmd.AddCommand(admin.AskCmd())
	rootCmd.AddCommand(admin.DeadLettersCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "run")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
