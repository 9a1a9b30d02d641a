// Package broker bridges to the identity provider's interactive consent UI.
// It hides endpoint setup and the redirect-based flow behind a single
// awaitable operation that resolves with a short-lived access token or a
// classified failure. Tokens returned by the broker are never persisted.
package broker

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// consentScopes is the fixed scope set requested on every consent prompt.
var consentScopes = []string{"email", "profile"}

// Classified failure conditions for RequestToken. Check with errors.Is.
// Classification is total: every provider error maps to exactly one of
// ErrUserCancelled, ErrAccessDenied, or ErrProvider.
var (
	ErrNotReady      = errors.New("broker: identity provider not ready")
	ErrUserCancelled = errors.New("broker: consent window closed by user")
	ErrAccessDenied  = errors.New("broker: consent refused")
	ErrProvider      = errors.New("broker: identity provider error")
)

// State tracks provider readiness. The broker starts Unloaded; Load moves it
// through Loading to Ready exactly once per process.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
)

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// callbackPath is the HTTP path the OAuth2 redirect hits on the local server.
const callbackPath = "/callback"

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// Broker owns one identity-provider binding. It is not safe for concurrent
// RequestToken calls — the session layer serializes access via its busy flag.
type Broker struct {
	endpoint     oauth2.Endpoint
	clientID     string
	clientSecret string
	openURL      func(string) error
	logger       *slog.Logger

	state State
}

// New creates an Unloaded broker. openURL is called with the authorization
// URL; the CLI passes a browser launcher. If openURL returns an error the
// URL is printed to stderr so the user can open it manually.
func New(endpoint oauth2.Endpoint, clientID, clientSecret string, openURL func(string) error, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Broker{
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		openURL:      openURL,
		logger:       logger,
		state:        StateUnloaded,
	}
}

// State reports the broker's readiness.
func (b *Broker) State() State {
	return b.state
}

// Load establishes the provider binding. Calling Load on a Ready broker is a
// no-op. No timeout is imposed — a caller that finds the broker not Ready
// must treat that as a precondition failure, not retry indefinitely.
func (b *Broker) Load() error {
	if b.state == StateReady {
		return nil
	}

	b.state = StateLoading

	if b.clientID == "" {
		b.state = StateUnloaded
		return fmt.Errorf("%w: oauth client_id not configured", ErrNotReady)
	}

	if b.endpoint.AuthURL == "" || b.endpoint.TokenURL == "" {
		b.state = StateUnloaded
		return fmt.Errorf("%w: oauth endpoints not configured", ErrNotReady)
	}

	b.state = StateReady
	b.logger.Debug("identity provider ready", slog.String("auth_url", b.endpoint.AuthURL))

	return nil
}

// callbackResult carries the authorization code or error from the callback
// handler. The channel is buffered and sends are non-blocking, so a provider
// that redirects to the callback more than once settles the request exactly
// once — later callbacks are dropped.
type callbackResult struct {
	code string
	err  error
}

// RequestToken opens the provider's consent page and blocks until the user
// authorizes, refuses, or abandons the flow. Resolves with the opaque access
// token on success. All failures classify to ErrNotReady, ErrUserCancelled,
// ErrAccessDenied, or ErrProvider — RequestToken never returns an
// unclassified error. Canceling ctx counts as the user closing the window.
func (b *Broker) RequestToken(ctx context.Context) (string, error) {
	if b.state != StateReady {
		return "", ErrNotReady
	}

	cfg := &oauth2.Config{
		ClientID:     b.clientID,
		ClientSecret: b.clientSecret,
		Endpoint:     b.endpoint,
		Scopes:       consentScopes,
	}

	return b.runConsentFlow(ctx, cfg)
}

// runConsentFlow implements the authorization code + PKCE flow against a
// localhost callback server. Split from RequestToken so the flow operates on
// a fully-built oauth2.Config.
func (b *Broker) runConsentFlow(ctx context.Context, cfg *oauth2.Config) (string, error) {
	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, port, err := b.startCallbackServer(ctx, mux, resultCh)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrProvider, err.Error())
	}

	defer b.shutdownCallbackServer(srv)

	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d%s", port, callbackPath)

	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("%w: generating state token: %s", ErrProvider, err.Error())
	}

	registerCallbackHandler(mux, state, resultCh)

	authURL := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	b.launchConsent(authURL)

	code, err := b.waitForCallback(ctx, resultCh)
	if err != nil {
		return "", err
	}

	b.logger.Debug("received authorization code, exchanging for token")

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", classify(err.Error())
	}

	b.logger.Debug("consent granted", slog.Time("expiry", tok.Expiry))

	return tok.AccessToken, nil
}

// startCallbackServer binds to 127.0.0.1:0 and starts an HTTP server with
// the given mux. Returns the server, the bound port, and any error.
func (b *Broker) startCallbackServer(
	ctx context.Context, mux *http.ServeMux, resultCh chan<- callbackResult,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, 0, fmt.Errorf("binding localhost listener: %w", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, errors.New("listener address is not TCP")
	}

	port := tcpAddr.Port
	b.logger.Debug("callback server listening", slog.Int("port", port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			sendResult(resultCh, callbackResult{err: fmt.Errorf("callback server error: %w", serveErr)})
		}
	}()

	return srv, port, nil
}

// registerCallbackHandler adds the callback route to the mux.
// Must be called before the browser redirects back.
func registerCallbackHandler(mux *http.ServeMux, state string, resultCh chan<- callbackResult) {
	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		handleConsentCallback(w, r, state, resultCh)
	})
}

// handleConsentCallback validates the state, extracts the code or provider
// error, and settles the pending request.
func handleConsentCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	if r.URL.Query().Get("state") != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		sendResult(resultCh, callbackResult{err: errors.New("oauth2 state mismatch (possible CSRF)")})

		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		desc := r.URL.Query().Get("error_description")
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		sendResult(resultCh, callbackResult{err: fmt.Errorf("%s: %s", errParam, desc)})

		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		sendResult(resultCh, callbackResult{err: errors.New("callback missing authorization code")})

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authorization complete</h1>"+
		"<p>You can close this window and return to the terminal.</p></body></html>")
	sendResult(resultCh, callbackResult{code: code})
}

// sendResult delivers a callback result without blocking. Only the first
// result settles the request; the rest are dropped.
func sendResult(ch chan<- callbackResult, res callbackResult) {
	select {
	case ch <- res:
	default:
	}
}

// shutdownCallbackServer gracefully shuts down the callback HTTP server.
func (b *Broker) shutdownCallbackServer(srv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		b.logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// launchConsent attempts to open the consent URL. If it fails, prints the
// URL to stderr as a fallback so the user can copy-paste it.
func (b *Broker) launchConsent(authURL string) {
	b.logger.Info("opening browser for Drive authorization")

	if openErr := b.openURL(authURL); openErr != nil {
		b.logger.Warn("failed to open browser, printing URL",
			slog.String("error", openErr.Error()),
		)

		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}
}

// waitForCallback blocks until the callback fires or the context is
// canceled. Abandoning the wait is the CLI analog of closing the consent
// window, so cancellation classifies as ErrUserCancelled.
func (b *Broker) waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", classify(result.err.Error())
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %s", ErrUserCancelled, ctx.Err().Error())
	}
}

// classify maps a provider-reported error string onto the closed failure
// set. The substring matches mirror the provider's error codes; anything
// unrecognized is a generic provider error. The mapping is load-bearing:
// the session layer surfaces UserCancelled as informational, AccessDenied as
// an error, and ErrProvider as a retry-suggesting error.
func classify(msg string) error {
	switch {
	case strings.Contains(msg, "popup_closed_by_user"):
		return fmt.Errorf("%w: %s", ErrUserCancelled, msg)
	case strings.Contains(msg, "access_denied"):
		return fmt.Errorf("%w: %s", ErrAccessDenied, msg)
	default:
		return fmt.Errorf("%w: %s", ErrProvider, msg)
	}
}

// generateState produces a cryptographically random hex string for the
// OAuth2 state parameter.
func generateState() (string, error) {
	buf := make([]byte, stateTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}
