package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// AddRequest is the body of POST /documents.
type AddRequest struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// AddResponse describes the indexed document.
type AddResponse struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Chunks int    `json:"chunks"`
}

// AddCmd creates the add command.
func AddCmd() *cobra.Command {
	var (
		file     string
		metadata map[string]string
	)

	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Index a note into the searchable corpus",
		Long: `Indexes free text alongside captured screen history.

Text is taken from the argument, from --file, or from stdin when neither is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			text, err := readAddText(cmd.InOrStdin(), args, file)
			if err != nil {
				return err
			}
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runAdd(api, cmd.OutOrStdout(), text, metadata, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read text from a file")
	cmd.Flags().StringToStringVarP(&metadata, "meta", "m", nil, "Metadata key=value pairs")

	return cmd
}

func readAddText(stdin io.Reader, args []string, file string) (string, error) {
	var text string
	switch {
	case len(args) == 1 && file != "":
		return "", fmt.Errorf("pass text or --file, not both")
	case len(args) == 1:
		text = args[0]
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		text = string(data)
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("text cannot be empty")
	}
	return text, nil
}

func runAdd(api *APIClient, out io.Writer, text string, metadata map[string]string, outputJSON bool) error {
	resp, err := api.Post("/documents", AddRequest{Text: text, Metadata: metadata})
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}

	var added AddResponse
	if err := json.Unmarshal(resp.Data, &added); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(added, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	fmt.Fprintf(out, "Indexed %s (%s %s, %d chunks)\n", added.ID, added.Date, added.Time, added.Chunks)
	return nil
}
