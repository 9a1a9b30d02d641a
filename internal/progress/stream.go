// Package progress streams conversion and export job events from the
// backend over a websocket. The stream supplements the export workflow's
// status polling with live stage updates for long-running jobs.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"
)

// pingInterval keeps intermediaries from dropping an idle stream.
const pingInterval = 30 * time.Second

// Event is one job progress update from the backend.
type Event struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}

// Stream connects to the job event socket and invokes handle for every
// event until a terminal event arrives, the server closes the stream, or
// ctx is canceled. Returns nil on a clean terminal event; a terminal event
// carrying an error string is returned as an error.
func Stream(ctx context.Context, wsURL, apiToken string, logger *slog.Logger, handle func(Event)) error {
	if logger == nil {
		logger = slog.Default()
	}

	header := http.Header{}
	if apiToken != "" {
		header.Set("Authorization", "Bearer "+apiToken)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("progress: connecting to %s: %w", wsURL, err)
	}

	defer conn.Close(websocket.StatusNormalClosure, "")

	logger.Debug("job event stream connected", slog.String("url", wsURL))

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(streamCtx)

	// Ping loop. Exits when the read loop cancels the stream context.
	g.Go(func() error {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := conn.Ping(gctx); err != nil {
					return fmt.Errorf("progress: ping failed: %w", err)
				}
			}
		}
	})

	// Read loop.
	g.Go(func() error {
		defer cancel()

		for {
			var evt Event
			if err := wsjson.Read(gctx, conn, &evt); err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					return nil
				}

				if gctx.Err() != nil {
					return gctx.Err()
				}

				return fmt.Errorf("progress: reading event: %w", err)
			}

			handle(evt)

			if evt.Done {
				if evt.Error != "" {
					return fmt.Errorf("progress: job failed: %s", evt.Error)
				}

				return nil
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
