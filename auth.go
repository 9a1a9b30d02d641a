package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codetext/exportctl/internal/config"
	"github.com/codetext/exportctl/internal/credfile"
)

var flagLoginToken string

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save the CodeText API credential",
		RunE:  runLogin,
	}

	cmd.Flags().StringVar(&flagLoginToken, "token", "", "API token from the console's settings page")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved API credential",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the authenticated user and workspace",
		RunE:  runWhoami,
	}
}

func runLogin(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	token := flagLoginToken
	if token == "" {
		if !interactive() {
			return fmt.Errorf("no --token given and stdin is not a terminal")
		}

		fmt.Fprint(os.Stderr, "Paste your API token: ")

		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}

		token = strings.TrimSpace(line)
	}

	if token == "" {
		return fmt.Errorf("empty API token")
	}

	credPath, err := config.CredentialPath()
	if err != nil {
		return err
	}

	if err := credfile.Save(credPath, &credfile.Credential{APIToken: token}); err != nil {
		return err
	}

	logger.Info("credential saved", "path", credPath)
	statusf("Login successful.\n")

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	credPath, err := config.CredentialPath()
	if err != nil {
		return err
	}

	if err := credfile.Remove(credPath); err != nil {
		return err
	}

	logger.Info("credential removed", "path", credPath)
	statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Workspace string `json:"workspace"`
	Plan      string `json:"plan"`
}

func runWhoami(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := newAPIClient(logger)
	if err != nil {
		return err
	}

	id, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("fetching identity: %w", err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(whoamiOutput{
			ID:        id.ID,
			Email:     id.Email,
			Workspace: id.Workspace,
			Plan:      id.Plan,
		})
	}

	fmt.Printf("User:      %s (%s)\n", id.Email, id.ID)
	fmt.Printf("Workspace: %s\n", id.Workspace)
	fmt.Printf("Plan:      %s\n", id.Plan)

	return nil
}
