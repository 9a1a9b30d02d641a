package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// OutcomeKind enumerates the closed set of normalized export results.
type OutcomeKind int

const (
	// OutcomeAlreadyDone: a status check found the export finished; Link is set.
	OutcomeAlreadyDone OutcomeKind = iota + 1
	// OutcomeAuthorizationRequired: the backend needs a Drive authorization token.
	OutcomeAuthorizationRequired
	// OutcomeSucceeded: a token-bearing submission completed; Link is set.
	OutcomeSucceeded
	// OutcomeFailed: transport failure or backend rejection; Message is set.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAlreadyDone:
		return "already_done"
	case OutcomeAuthorizationRequired:
		return "authorization_required"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the normalized result of one export call. The backend's
// response shapes are not uniform; all shape-sniffing is concentrated here
// so callers only ever match on this closed union.
type Outcome struct {
	Kind    OutcomeKind
	Link    string // set for AlreadyDone and Succeeded
	Message string // set for Failed
}

// ExportParams optionally carries a Drive authorization token or a
// verification code. The zero value is a pure status check, which never
// enqueues a new backend job.
type ExportParams struct {
	AccessToken      string
	VerificationCode string
}

// empty reports whether this is a parameterless status check.
func (p ExportParams) empty() bool {
	return p.AccessToken == "" && p.VerificationCode == ""
}

// genericFailure is the fallback message when neither the transport error
// nor the backend supplies one.
const genericFailure = "export did not complete"

// exportRequest is the JSON body of an export call.
type exportRequest struct {
	ProjectID        string `json:"project_id"`
	Token            string `json:"token,omitempty"`
	VerificationCode string `json:"verification_code,omitempty"`
}

// exportResponse tolerates every field-name variant the backend is known to
// emit. actionRequired/action_required/action and driveLink/drive_link/link
// are treated as the same field.
type exportResponse struct {
	ActionRequired     string `json:"actionRequired"`
	ActionRequiredSnek string `json:"action_required"`
	Action             string `json:"action"`
	AuthURL            string `json:"authUrl"`
	Success            *bool  `json:"success"`
	Status             string `json:"status"`
	DriveLink          string `json:"driveLink"`
	DriveLinkSnek      string `json:"drive_link"`
	Link               string `json:"link"`
	Message            string `json:"message"`
	ErrMessage         string `json:"error"`
}

// actionOAuthRequired is the action sentinel the backend uses to request a
// fresh Drive authorization.
const actionOAuthRequired = "OAUTH_REQUIRED"

func (r *exportResponse) action() string {
	switch {
	case r.ActionRequired != "":
		return r.ActionRequired
	case r.ActionRequiredSnek != "":
		return r.ActionRequiredSnek
	default:
		return r.Action
	}
}

func (r *exportResponse) link() string {
	switch {
	case r.DriveLink != "":
		return r.DriveLink
	case r.DriveLinkSnek != "":
		return r.DriveLinkSnek
	default:
		return r.Link
	}
}

func (r *exportResponse) failureMessage() string {
	switch {
	case r.Message != "":
		return r.Message
	case r.ErrMessage != "":
		return r.ErrMessage
	default:
		return genericFailure
	}
}

// RequestExport performs one export call for the project and classifies the
// response. It never returns a Go error: transport failures collapse into
// OutcomeFailed so callers only handle the closed union. No retries or
// polling happen at this layer (the HTTP client retries transparently
// beneath it); calling repeatedly with empty params only reports status.
func (c *Client) RequestExport(ctx context.Context, projectID string, params ExportParams) Outcome {
	c.logger.Debug("export request",
		slog.String("project_id", projectID),
		slog.Bool("has_token", params.AccessToken != ""),
		slog.Bool("has_verification_code", params.VerificationCode != ""),
	)

	body, err := json.Marshal(exportRequest{
		ProjectID:        projectID,
		Token:            params.AccessToken,
		VerificationCode: params.VerificationCode,
	})
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Message: "encoding export request: " + err.Error()}
	}

	path := "/v1/projects/" + projectID + "/drive-export"

	resp, err := c.Do(ctx, http.MethodPost, path, func() io.Reader { return bytes.NewReader(body) })
	if err != nil {
		return c.classifyErrorResponse(err)
	}
	defer resp.Body.Close()

	var parsed exportResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&parsed); decErr != nil {
		return Outcome{Kind: OutcomeFailed, Message: "decoding export response: " + decErr.Error()}
	}

	return classifyResponse(&parsed, params)
}

// classifyErrorResponse handles non-2xx and transport errors from Do. The
// backend sometimes signals OAUTH_REQUIRED on an error status, so the body
// of an APIError is inspected before the error is reduced to a failure
// outcome.
func (c *Client) classifyErrorResponse(err error) Outcome {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Body != "" {
		var parsed exportResponse
		if json.Unmarshal([]byte(apiErr.Body), &parsed) == nil {
			if parsed.action() == actionOAuthRequired {
				return Outcome{Kind: OutcomeAuthorizationRequired}
			}

			if msg := parsed.Message; msg != "" {
				return Outcome{Kind: OutcomeFailed, Message: msg}
			}

			if msg := parsed.ErrMessage; msg != "" {
				return Outcome{Kind: OutcomeFailed, Message: msg}
			}
		}
	}

	msg := err.Error()
	if msg == "" {
		msg = genericFailure
	}

	return Outcome{Kind: OutcomeFailed, Message: msg}
}

// classifyResponse applies the outcome rules to a decoded 2xx response:
//  1. OAUTH_REQUIRED wins regardless of any other fields present.
//  2. A non-empty result link is success — both the status:"uploaded" shape
//     and the bare-link shape land here. A link on a status check means the
//     export was already done; a link on a token-bearing call means this
//     submission succeeded. Both read identically to callers expecting
//     completion.
//  3. Anything else — including success reported with no link — is a
//     failure with the backend's message or a generic fallback.
func classifyResponse(r *exportResponse, params ExportParams) Outcome {
	if r.action() == actionOAuthRequired {
		return Outcome{Kind: OutcomeAuthorizationRequired}
	}

	if link := r.link(); link != "" {
		if params.empty() {
			return Outcome{Kind: OutcomeAlreadyDone, Link: link}
		}

		return Outcome{Kind: OutcomeSucceeded, Link: link}
	}

	return Outcome{Kind: OutcomeFailed, Message: r.failureMessage()}
}
