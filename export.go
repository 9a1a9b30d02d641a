package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/codetext/exportctl/internal/broker"
	"github.com/codetext/exportctl/internal/config"
	"github.com/codetext/exportctl/internal/history"
	"github.com/codetext/exportctl/internal/session"
)

var flagExportYes bool

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Export a project's output to Google Drive",
		Long: "Runs one export session: checks current status, walks through Drive\n" +
			"authorization in your browser when the backend requires it, and prints\n" +
			"the Drive link on completion.",
		Args: cobra.ExactArgs(1),
		RunE: runExport,
	}

	cmd.Flags().BoolVarP(&flagExportYes, "yes", "y", false, "authorize without prompting")

	return cmd
}

func runExport(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()
	projectID := args[0]

	client, err := newAPIClient(logger)
	if err != nil {
		return err
	}

	brk := broker.New(loadedCfg.OAuth.Endpoint(), loadedCfg.OAuth.ClientID,
		loadedCfg.OAuth.ClientSecret, browser.OpenURL, logger)
	if err := brk.Load(); err != nil {
		return err
	}

	ctrl := session.New(session.Config{
		ProjectID:      projectID,
		Gateway:        client,
		Broker:         brk,
		Notifier:       terminalNotifier{},
		Logger:         logger,
		PreSubmitDelay: config.Duration(loadedCfg.Export.PreSubmitDelay, session.DefaultPreSubmitDelay),
		SubmitTimeout:  config.Duration(loadedCfg.Export.SubmitTimeout, session.DefaultSubmitTimeout),
		MaxAuthRetries: loadedCfg.Export.MaxAuthRetries,
		OnComplete: func() {
			logger.Debug("refreshing project status after completion",
				slog.String("project_id", projectID))
		},
		OnDismiss: func() {
			logger.Debug("export session dismissed before completion",
				slog.String("project_id", projectID))
		},
	})
	defer ctrl.Close()

	statusf("Checking export status for %s...\n", projectID)
	ctrl.Start(ctx)

	// Drive the authorization loop. Each pass is one consent round-trip; the
	// session bounces back to AwaitingAuthorization when the backend finds
	// the granted token insufficient.
	attempts := 0
	for ctrl.Step() == session.StepAwaitingAuthorization {
		if flagExportYes || !interactive() {
			if attempts >= loadedCfg.Export.MaxAuthRetries {
				break
			}
		} else if !confirm("Authorize Drive access in your browser?") {
			break
		}

		attempts++
		ctrl.Authenticate(ctx)
	}

	recordAttempt(ctx, logger, projectID, ctrl, attempts)

	if ctrl.Step() != session.StepComplete {
		return fmt.Errorf("export did not complete for project %s", projectID)
	}

	statusf("Export complete: %s\n", ctrl.ResultLink())

	return nil
}

// recordAttempt appends the settled session to the local history ledger.
// Best-effort — ledger problems never fail the export.
func recordAttempt(
	ctx context.Context, logger *slog.Logger, projectID string, ctrl *session.Controller, attempts int,
) {
	dbPath, err := config.HistoryDBPath()
	if err != nil {
		logger.Warn("history path unavailable", slog.String("error", err.Error()))
		return
	}

	store, err := history.Open(ctx, dbPath, logger)
	if err != nil {
		logger.Warn("history database unavailable", slog.String("error", err.Error()))
		return
	}
	defer store.Close()

	rec := &history.Record{
		ProjectID:   projectID,
		FinalStep:   ctrl.Step().String(),
		Link:        ctrl.ResultLink(),
		AuthRetries: attempts,
	}

	if err := store.Record(ctx, rec); err != nil {
		logger.Warn("failed to record export attempt", slog.String("error", err.Error()))
	}
}
