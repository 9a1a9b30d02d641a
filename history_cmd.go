package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codetext/exportctl/internal/config"
	"github.com/codetext/exportctl/internal/history"
)

var flagHistoryLimit int

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent export attempts",
		RunE:  runHistory,
	}

	cmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "maximum attempts to list")

	return cmd
}

// historyOutput is the JSON schema for `history --json`.
type historyOutput struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	FinalStep   string `json:"final_step"`
	Link        string `json:"link,omitempty"`
	Message     string `json:"message,omitempty"`
	AuthRetries int    `json:"auth_retries"`
	CreatedAt   string `json:"created_at"`
}

func runHistory(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	dbPath, err := config.HistoryDBPath()
	if err != nil {
		return err
	}

	store, err := history.Open(ctx, dbPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(ctx, flagHistoryLimit)
	if err != nil {
		return err
	}

	if flagJSON {
		out := make([]historyOutput, 0, len(records))
		for _, r := range records {
			out = append(out, historyOutput{
				ID:          r.ID,
				ProjectID:   r.ProjectID,
				FinalStep:   r.FinalStep,
				Link:        r.Link,
				Message:     r.Message,
				AuthRetries: r.AuthRetries,
				CreatedAt:   r.CreatedAt.Format(time.RFC3339),
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	if len(records) == 0 {
		statusf("No export attempts recorded.\n")
		return nil
	}

	for _, r := range records {
		line := fmt.Sprintf("%s  %-12s %s", r.CreatedAt.Format("2006-01-02 15:04"), r.FinalStep, r.ProjectID)
		if r.Link != "" {
			line += "  " + r.Link
		}

		fmt.Println(line)
	}

	return nil
}
