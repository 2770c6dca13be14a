package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shineum/formmail-lite/internal/formmail"
	"github.com/shineum/formmail-lite/internal/provider/stdout"
	"github.com/shineum/formmail-lite/internal/submission"
)

var inputFile string

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the message a submission would produce, without sending it",
	Long: `render reads a submission as JSON and prints the composed message.

The input has the form
  {"fields": [{"key": "recipient", "value": "support@example.com"}, ...],
   "uploads": [{"name": "cv.pdf", "content_type": "application/pdf", "content": "<base64>"}]}

Requester and method checks are skipped; the recipient is still validated.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return err
		}
		setupLogger(cfg.Logging.Level, cmd.ErrOrStderr())

		sub, err := readSubmission(inputFile, cmd.InOrStdin())
		if err != nil {
			return err
		}

		out := stdout.NewWithWriter(cmd.OutOrStdout())
		msg, err := newService(cfg, out).Compose(formmail.Request{Submission: sub})
		if err != nil {
			return fmt.Errorf("failed to compose message: %w", err)
		}
		return out.Send(cmd.Context(), msg)
	},
}

func init() {
	renderCmd.Flags().StringVarP(&inputFile, "input", "i", "-", "submission JSON file, - for stdin")
}

// readSubmission decodes a JSON submission from path, or from stdin for "-".
func readSubmission(path string, stdin io.Reader) (*submission.Submission, error) {
	r := stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var sub submission.Submission
	if err := json.NewDecoder(r).Decode(&sub); err != nil {
		return nil, fmt.Errorf("failed to parse submission: %w", err)
	}
	return &sub, nil
}
