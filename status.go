package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codetext/exportctl/internal/gateway"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <project-id>",
		Short: "Check a project's Drive export status",
		Long: "Performs one idempotent status check against the backend. Never\n" +
			"triggers a new export job.",
		Args: cobra.ExactArgs(1),
		RunE: runStatus,
	}
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	ProjectID string `json:"project_id"`
	Outcome   string `json:"outcome"`
	Link      string `json:"link,omitempty"`
	Message   string `json:"message,omitempty"`
}

func runStatus(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()
	projectID := args[0]

	client, err := newAPIClient(logger)
	if err != nil {
		return err
	}

	outcome := client.RequestExport(ctx, projectID, gateway.ExportParams{})

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(statusOutput{
			ProjectID: projectID,
			Outcome:   outcome.Kind.String(),
			Link:      outcome.Link,
			Message:   outcome.Message,
		})
	}

	switch outcome.Kind {
	case gateway.OutcomeAlreadyDone, gateway.OutcomeSucceeded:
		fmt.Printf("Exported: %s\n", outcome.Link)
	case gateway.OutcomeAuthorizationRequired:
		fmt.Println("Drive authorization required — run 'exportctl export' to authorize.")
	case gateway.OutcomeFailed:
		fmt.Printf("Not exported: %s\n", outcome.Message)
	}

	return nil
}
