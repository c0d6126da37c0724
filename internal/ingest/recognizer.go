package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// Recognizer extracts text from an image file.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// fileArg is replaced by the image path in CommandRecognizer arguments.
const fileArg = "{file}"

// CommandRecognizer runs an external OCR program and reads the text from stdout.
// The default invocation is `tesseract <file> stdout`.
type CommandRecognizer struct {
	Command string
	Args    []string
}

func NewCommandRecognizer(command string) *CommandRecognizer {
	return &CommandRecognizer{Command: command, Args: []string{fileArg, "stdout"}}
}

func (r *CommandRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	args := make([]string, len(r.Args))
	for i, a := range r.Args {
		args[i] = strings.ReplaceAll(a, fileArg, path)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s: %w", r.Command, err)
		}
		return "", fmt.Errorf("%s: %w: %s", r.Command, err, msg)
	}
	return stdout.String(), nil
}

// FilterTokens drops whitespace-separated tokens of one character or less, which
// OCR produces mostly from icons and borders, and joins the rest with spaces.
func FilterTokens(text string) string {
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 1 {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}
