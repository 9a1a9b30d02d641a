// Package credfile persists the CodeText API credential between CLI runs.
// Only the console credential lives here — Drive authorization tokens are
// short-lived and never written to disk.
package credfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNoCredential indicates no saved credential exists at the given path.
var ErrNoCredential = errors.New("credfile: no saved credential")

// Credential is the persisted login state.
type Credential struct {
	APIToken  string `json:"api_token"`
	Workspace string `json:"workspace,omitempty"`
}

// Load reads the credential from path. Returns ErrNoCredential when the file
// does not exist.
func Load(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoCredential
		}

		return nil, fmt.Errorf("credfile: reading %s: %w", path, err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("credfile: parsing %s: %w", path, err)
	}

	if cred.APIToken == "" {
		return nil, ErrNoCredential
	}

	return &cred, nil
}

// Save writes the credential atomically with owner-only permissions: the
// JSON goes to a temp file in the same directory, which is then renamed
// over the target so a crash never leaves a partial file.
func Save(path string, cred *Credential) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("credfile: creating %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("credfile: encoding credential: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("credfile: creating temp file: %w", err)
	}

	tmpName := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("credfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("credfile: writing credential: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("credfile: closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("credfile: replacing %s: %w", path, err)
	}

	return nil
}

// Remove deletes the saved credential. Removing a credential that does not
// exist is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("credfile: removing %s: %w", path, err)
	}

	return nil
}
