package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// AskRequest is the body of POST /query.
type AskRequest struct {
	Query string `json:"query"`
}

// SummaryRequest is the body of POST /summary.
type SummaryRequest struct {
	Date string `json:"date,omitempty"`
}

// Source is a retrieved chunk that backed an answer.
type Source struct {
	DocumentID string  `json:"document_id"`
	Date       string  `json:"date"`
	Time       string  `json:"time"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

// Answer is the daemon's reply to a question or summary request.
type Answer struct {
	Kind      string    `json:"kind"`
	Answer    string    `json:"answer"`
	Scope     string    `json:"scope,omitempty"`
	StartDate string    `json:"start_date,omitempty"`
	EndDate   string    `json:"end_date,omitempty"`
	Sources   []*Source `json:"sources"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your screen history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")
			return runAsk(api, cmd.OutOrStdout(), question, showSources, outputJSON)
		},
	}

	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Print the chunks the answer was built from")

	return cmd
}

// SummaryCmd creates the summary command.
func SummaryCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "summary [date]",
		Short: "Summarize one day of activity",
		Long:  "Summarizes the given day (YYYY-MM-DD). Defaults to today.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if len(args) == 1 {
				date = args[0]
			}
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runSummary(api, cmd.OutOrStdout(), date, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to summarize (YYYY-MM-DD)")

	return cmd
}

func runAsk(api *APIClient, out io.Writer, question string, showSources, outputJSON bool) error {
	resp, err := api.Post("/query", AskRequest{Query: question})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return printAnswer(out, resp, showSources, outputJSON)
}

func runSummary(api *APIClient, out io.Writer, date string, outputJSON bool) error {
	resp, err := api.Post("/summary", SummaryRequest{Date: date})
	if err != nil {
		return fmt.Errorf("summary failed: %w", err)
	}
	return printAnswer(out, resp, false, outputJSON)
}

func printAnswer(out io.Writer, resp *APIResponse, showSources, outputJSON bool) error {
	var answer Answer
	if err := json.Unmarshal(resp.Data, &answer); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	fmt.Fprintln(out, answer.Answer)
	if answer.StartDate != "" {
		fmt.Fprintf(out, "\nScope: %s (%s to %s)\n", answer.Scope, answer.StartDate, answer.EndDate)
	}
	if showSources && len(answer.Sources) > 0 {
		fmt.Fprintf(out, "\n%s\n", strings.Repeat("-", 40))
		for i, src := range answer.Sources {
			content := src.Content
			if len(content) > 100 {
				content = content[:97] + "..."
			}
			fmt.Fprintf(out, "%d. %s %s (%.2f)\n   %s\n", i+1, src.Date, src.Time, src.Score, content)
		}
	}
	return nil
}
