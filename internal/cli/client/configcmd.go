package client

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ConfigCmd creates the config parent command
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the daemon address and token",
		Long:  "Store, show, and clear the daemon address kept in ~/.config/remind/config.json",
	}

	cmd.AddCommand(configSetCmd())
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configClearCmd())

	return cmd
}

func configSetCmd() *cobra.Command {
	var apiURL, apiToken string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save the daemon URL and token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), apiURL, apiToken)
		},
	}

	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "Daemon URL")
	cmd.Flags().StringVar(&apiToken, "token", "", "Bearer token expected by the daemon")

	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved daemon address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			flagURL, _ := cmd.Flags().GetString("api-url")
			flagToken, _ := cmd.Flags().GetString("api-token")
			return runConfigShow(cmd.OutOrStdout(), flagURL, flagToken, outputJSON)
		},
	}
}

func configClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the saved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration cleared")
			return nil
		},
	}
}

func runConfigSet(out io.Writer, apiURL, apiToken string) error {
	if apiURL == "" {
		return fmt.Errorf("url cannot be empty")
	}

	config := &GlobalConfig{
		APIToken: apiToken,
		APIURL:   apiURL,
	}
	if err := SaveGlobalConfig(config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintln(out, "Configuration saved")
	return nil
}

func runConfigShow(out io.Writer, flagURL, flagToken string, outputJSON bool) error {
	source, apiURL, apiToken, err := ResolveEndpoint(flagURL, flagToken)
	if err != nil {
		return err
	}

	if outputJSON {
		status := map[string]interface{}{
			"source":    string(source),
			"api_url":   apiURL,
			"has_token": apiToken != "",
		}
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Source: %s\n", source)
	fmt.Fprintf(out, "API URL: %s\n", apiURL)
	fmt.Fprintf(out, "API Token: %s\n", maskToken(apiToken))
	return nil
}

func maskToken(token string) string {
	if token == "" {
		return "(none)"
	}
	if len(token) < 8 {
		return "***"
	}
	return token[:3] + "..." + token[len(token)-3:]
}
