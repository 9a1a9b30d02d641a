package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Identity describes the authenticated console user.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Workspace string `json:"workspace"`
	Plan      string `json:"plan"`
}

// Me returns the identity behind the configured API credential.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/v1/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var id Identity
	if decErr := json.NewDecoder(resp.Body).Decode(&id); decErr != nil {
		return nil, fmt.Errorf("gateway: decoding identity response: %w", decErr)
	}

	return &id, nil
}
