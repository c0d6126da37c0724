package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// DeadLetter is a capture whose extraction kept failing.
type DeadLetter struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeadLetterPage is one page of dead letters.
type DeadLetterPage struct {
	Items   []DeadLetter `json:"items"`
	Cursor  string       `json:"cursor,omitempty"`
	HasMore bool         `json:"has_more"`
}

// DeadLettersCmd creates the deadletters command.
func DeadLettersCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "deadletters",
		Short: "List captures that failed extraction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runDeadLetters(api, cmd.OutOrStdout(), limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runDeadLetters(api *APIClient, out io.Writer, limit int, cursor string, outputJSON bool) error {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	resp, err := api.Get("/deadletters?" + params.Encode())
	if err != nil {
		return fmt.Errorf("listing dead letters failed: %w", err)
	}

	var page DeadLetterPage
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return fmt.Errorf("failed to parse dead letters: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(page, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No dead letters.")
		return nil
	}

	for i, dl := range page.Items {
		fmt.Fprintf(out, "%s [%s, %d attempts, %s]\n", dl.Path, dl.Stage, dl.Attempts, dl.UpdatedAt.Local().Format(time.DateTime))
		fmt.Fprintf(out, "   %s\n", dl.Error)
		if i < len(page.Items)-1 {
			fmt.Fprintln(out, strings.Repeat("-", 40))
		}
	}
	if page.HasMore && page.Cursor != "" {
		fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", page.Cursor)
	}
	return nil
}
