// Package session drives a single Drive export attempt through its
// four-step lifecycle: Initializing, AwaitingAuthorization, Uploading,
// Complete. The controller decides when to prompt for authorization, when
// to call the export gateway, and how to recover from authorization loss
// mid-flow. One controller owns one session; concurrent sessions for the
// same project are the host's responsibility to prevent.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codetext/exportctl/internal/broker"
	"github.com/codetext/exportctl/internal/gateway"
)

// Step is the session's position in the export lifecycle. Ordinals run 1-4;
// the only legal backward transition is Uploading back to
// AwaitingAuthorization when the backend reports the granted token
// insufficient or stale.
type Step int

const (
	StepInitializing Step = iota + 1
	StepAwaitingAuthorization
	StepUploading
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepInitializing:
		return "initializing"
	case StepAwaitingAuthorization:
		return "awaiting_authorization"
	case StepUploading:
		return "uploading"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Gateway is the controller's view of the export backend.
type Gateway interface {
	RequestExport(ctx context.Context, projectID string, params gateway.ExportParams) gateway.Outcome
}

// TokenBroker is the controller's view of the identity provider bridge.
type TokenBroker interface {
	RequestToken(ctx context.Context) (string, error)
}

// Notifier receives the user-visible narrative. Info carries
// non-error messages (cancellations), Error everything else. The controller
// never settles a failed operation without emitting a message.
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

// Defaults for session timing and the bounce-back bound.
const (
	// DefaultPreSubmitDelay compensates for propagation delay between token
	// mint and backend verification, reducing spurious re-prompts.
	DefaultPreSubmitDelay = 1 * time.Second
	// DefaultSubmitTimeout bounds the token-bearing submission.
	DefaultSubmitTimeout = 30 * time.Second
	// DefaultMaxAuthRetries bounds consecutive Uploading ->
	// AwaitingAuthorization bounces before the controller stops suggesting
	// another attempt.
	DefaultMaxAuthRetries = 3
)

// Config wires a Controller to its collaborators.
type Config struct {
	ProjectID string
	Gateway   Gateway
	Broker    TokenBroker
	Notifier  Notifier
	Logger    *slog.Logger

	// OnComplete fires exactly once when the session reaches Complete. The
	// host uses it to refresh project state elsewhere.
	OnComplete func()
	// OnDismiss fires when the session is closed without completing.
	OnDismiss func()

	// Zero values take the package defaults.
	PreSubmitDelay time.Duration
	SubmitTimeout  time.Duration
	MaxAuthRetries int
}

// Controller owns one export session. All state transitions run under the
// mutex; the busy flag drops re-entrant user actions instead of queuing
// them, and the generation counter discards responses that arrive after the
// session was reset or closed.
type Controller struct {
	projectID string
	gw        Gateway
	broker    TokenBroker
	notify    Notifier
	logger    *slog.Logger

	onComplete func()
	onDismiss  func()

	preSubmitDelay time.Duration
	submitTimeout  time.Duration
	maxAuthRetries int

	// sleepFunc waits out the pre-submission delay. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error

	mu           sync.Mutex
	step         Step
	busy         bool
	resultLink   string
	authNeeded   bool
	authBounces  int
	generation   uint64
	closed       bool
	fireComplete bool
}

// New creates a session in the Initializing step. The session holds no
// result link and is not busy until Start is called.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		projectID:      cfg.ProjectID,
		gw:             cfg.Gateway,
		broker:         cfg.Broker,
		notify:         cfg.Notifier,
		logger:         logger,
		onComplete:     cfg.OnComplete,
		onDismiss:      cfg.OnDismiss,
		preSubmitDelay: cfg.PreSubmitDelay,
		submitTimeout:  cfg.SubmitTimeout,
		maxAuthRetries: cfg.MaxAuthRetries,
		sleepFunc:      sleepCtx,
		step:           StepInitializing,
	}

	if c.preSubmitDelay == 0 {
		c.preSubmitDelay = DefaultPreSubmitDelay
	}

	if c.submitTimeout == 0 {
		c.submitTimeout = DefaultSubmitTimeout
	}

	if c.maxAuthRetries == 0 {
		c.maxAuthRetries = DefaultMaxAuthRetries
	}

	return c
}

// Step returns the session's current step.
func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.step
}

// Busy reports whether a network or consent operation is outstanding.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.busy
}

// ResultLink returns the completed artifact URI. Non-empty iff the session
// reached Complete.
func (c *Controller) ResultLink() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.resultLink
}

// AuthorizationNeeded reports whether the backend explicitly asked for a
// Drive authorization, as opposed to the session landing in
// AwaitingAuthorization through a recoverable failure.
func (c *Controller) AuthorizationNeeded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.authNeeded
}

// Start performs the initial status check. A session that is busy, closed,
// or past Initializing drops the call.
func (c *Controller) Start(ctx context.Context) {
	gen, ok := c.begin(StepInitializing)
	if !ok {
		return
	}

	outcome := c.gw.RequestExport(ctx, c.projectID, gateway.ExportParams{})

	c.settle(gen, func() {
		switch outcome.Kind {
		case gateway.OutcomeAlreadyDone, gateway.OutcomeSucceeded:
			c.complete(outcome.Link)
		case gateway.OutcomeAuthorizationRequired:
			c.step = StepAwaitingAuthorization
			c.authNeeded = true
		case gateway.OutcomeFailed:
			// Recoverable: surface the error but leave the user an
			// authorization retry instead of dead-ending.
			c.step = StepAwaitingAuthorization
			c.notify.Error(outcome.Message)
		}
	})
}

// Authenticate runs one authorization round-trip: fetch a fresh token from
// the broker, wait out the grant-propagation delay, and submit it to the
// gateway under a bounded timeout. Only legal from AwaitingAuthorization;
// calls while busy are dropped. The token is handed to the gateway once and
// discarded — it is never retained across retries.
func (c *Controller) Authenticate(ctx context.Context) {
	gen, ok := c.begin(StepAwaitingAuthorization)
	if !ok {
		return
	}

	token, err := c.broker.RequestToken(ctx)
	if err != nil {
		c.settle(gen, func() {
			c.reportBrokerFailure(err)
		})

		return
	}

	// Enter Uploading while holding busy — the submission is still
	// outstanding. If the session was reset or closed while the consent
	// window was open, abandon the token here.
	if !c.advance(gen, func() {
		c.step = StepUploading
	}) {
		return
	}

	// Short fixed delay before submission: a token minted moments ago may
	// not yet be visible to the backend's verification.
	if sleepErr := c.sleepFunc(ctx, c.preSubmitDelay); sleepErr != nil {
		c.settle(gen, func() {
			c.step = StepAwaitingAuthorization
			c.notify.Info("authorization canceled")
		})

		return
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	outcome := c.gw.RequestExport(submitCtx, c.projectID, gateway.ExportParams{AccessToken: token})

	c.settle(gen, func() {
		switch outcome.Kind {
		case gateway.OutcomeSucceeded, gateway.OutcomeAlreadyDone:
			c.complete(outcome.Link)
		case gateway.OutcomeAuthorizationRequired:
			// The delay was insufficient, or the grant really is missing.
			// Bounce back and re-prompt rather than failing terminally.
			c.bounce("the backend still requires Drive authorization")
		case gateway.OutcomeFailed:
			c.bounce(outcome.Message)
		}
	})
}

// Reset returns a Complete (or stuck) session to a fresh Initializing one.
// Outstanding operations from before the reset are discarded when they land.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.generation++
	c.step = StepInitializing
	c.busy = false
	c.resultLink = ""
	c.authNeeded = false
	c.authBounces = 0
}

// Close disposes the session. In-flight responses are abandoned: any result
// arriving after Close is discarded rather than applied. Fires OnDismiss if
// the session never completed.
func (c *Controller) Close() {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return
	}

	c.closed = true
	c.generation++
	c.busy = false
	completed := c.step == StepComplete
	c.mu.Unlock()

	if !completed && c.onDismiss != nil {
		c.onDismiss()
	}
}

// begin gates an operation: the session must be in want, not busy, and not
// closed. Returns the generation to settle against and whether to proceed.
// A dropped action is a no-op, never an error — mirrors a disabled UI
// affordance.
func (c *Controller) begin(want Step) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.busy || c.step != want {
		c.logger.Debug("session action dropped",
			slog.String("step", c.step.String()),
			slog.Bool("busy", c.busy),
			slog.Bool("closed", c.closed),
		)

		return 0, false
	}

	c.busy = true

	return c.generation, true
}

// settle applies a state mutation if the session generation still matches,
// then clears busy. Responses landing after a Reset or Close see a bumped
// generation and are discarded.
func (c *Controller) settle(gen uint64, apply func()) {
	c.mu.Lock()

	if c.closed || gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("stale session response discarded")

		return
	}

	apply()
	c.busy = false
	fire := c.fireComplete
	c.fireComplete = false
	c.mu.Unlock()

	// OnComplete runs outside the mutex so the host may call back into the
	// session or its collaborators.
	if fire && c.onComplete != nil {
		c.onComplete()
	}
}

// advance applies an intermediate state mutation without releasing busy —
// used between the consent and submission halves of one authorization
// round-trip. Reports whether the mutation was applied.
func (c *Controller) advance(gen uint64, apply func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.generation {
		c.logger.Debug("stale session response discarded")
		return false
	}

	apply()

	return true
}

// complete moves the session to Complete and schedules the one-shot
// OnComplete notification, which settle fires after releasing the mutex.
// Caller holds the mutex.
func (c *Controller) complete(link string) {
	c.step = StepComplete
	c.resultLink = link
	c.authNeeded = false
	c.fireComplete = true

	c.logger.Info("export complete",
		slog.String("project_id", c.projectID),
		slog.String("link", link),
	)
}

// bounce returns the session from Uploading to AwaitingAuthorization with an
// error message, counting consecutive round-trips. Past the bound the
// message stops suggesting another attempt — repeated bounces indicate a
// problem no further consent prompt will fix. Caller holds the mutex.
func (c *Controller) bounce(reason string) {
	c.step = StepAwaitingAuthorization
	c.authNeeded = true
	c.authBounces++

	if c.authBounces >= c.maxAuthRetries {
		c.notify.Error(fmt.Sprintf(
			"%s — authorization could not be confirmed after %d attempts; "+
				"check the project's Drive access and start a new export", reason, c.authBounces))

		return
	}

	c.notify.Error(reason + " — you can authorize again to retry")
}

// reportBrokerFailure maps classified broker failures to user-visible
// messages. Cancellation is informational; refused consent is an error;
// everything else (including a not-ready broker) suggests a retry. The
// session stays in AwaitingAuthorization for all of them. Caller holds the
// mutex.
func (c *Controller) reportBrokerFailure(err error) {
	switch {
	case errors.Is(err, broker.ErrUserCancelled):
		c.notify.Info("authorization canceled")
	case errors.Is(err, broker.ErrAccessDenied):
		c.notify.Error("Drive access was denied — the export needs your consent to proceed")
	case errors.Is(err, broker.ErrNotReady):
		c.notify.Error("the authorization service is not ready — try again")
	default:
		c.notify.Error("authorization failed — try again (" + err.Error() + ")")
	}
}

// sleepCtx waits for d or until ctx is canceled. Default sleepFunc.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
