package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codetext/exportctl/internal/config"
	"github.com/codetext/exportctl/internal/credfile"
	"github.com/codetext/exportctl/internal/progress"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Stream progress events for a conversion or export job",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
}

func runWatch(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()
	jobID := args[0]

	credPath, err := config.CredentialPath()
	if err != nil {
		return err
	}

	cred, err := credfile.Load(credPath)
	if err != nil {
		return fmt.Errorf("not logged in — run 'exportctl login' first: %w", err)
	}

	wsURL := websocketURL(loadedCfg.API.BaseURL) + "/v1/jobs/" + jobID + "/events"

	return progress.Stream(ctx, wsURL, cred.APIToken, logger, func(evt progress.Event) {
		if evt.Error != "" {
			fmt.Printf("%-14s FAILED  %s\n", evt.Stage, evt.Error)
			return
		}

		statusf("%-14s %3d%%  %s\n", evt.Stage, evt.Percent, evt.Message)
	})
}

// websocketURL derives the ws(s) endpoint from the API base URL.
func websocketURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
