package progress

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventServer starts a websocket server that runs serve with the accepted
// connection and returns a ws:// URL for it.
func eventServer(t *testing.T, serve func(ctx context.Context, conn *websocket.Conn)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("websocket accept failed: %v", err)
			return
		}

		serve(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStream_DeliversEventsUntilDone(t *testing.T) {
	wsURL := eventServer(t, func(ctx context.Context, conn *websocket.Conn) {
		events := []Event{
			{Stage: "converting", Percent: 40},
			{Stage: "uploading", Percent: 80, Message: "pushing to Drive"},
			{Stage: "uploading", Percent: 100, Done: true},
		}
		for _, evt := range events {
			assert.NoError(t, wsjson.Write(ctx, conn, evt))
		}
	})

	var received []Event

	err := Stream(context.Background(), wsURL, "tok", nil, func(evt Event) {
		received = append(received, evt)
	})
	require.NoError(t, err)

	require.Len(t, received, 3)
	assert.Equal(t, "converting", received[0].Stage)
	assert.Equal(t, 80, received[1].Percent)
	assert.True(t, received[2].Done)
}

func TestStream_SendsBearerToken(t *testing.T) {
	headerCh := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerCh <- r.Header.Get("Authorization")

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		_ = wsjson.Write(r.Context(), conn, Event{Done: true})
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	err := Stream(context.Background(), wsURL, "tok-123", nil, func(Event) {})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", <-headerCh)
}

func TestStream_TerminalErrorEvent(t *testing.T) {
	wsURL := eventServer(t, func(ctx context.Context, conn *websocket.Conn) {
		assert.NoError(t, wsjson.Write(ctx, conn, Event{
			Stage: "uploading", Done: true, Error: "Drive quota exceeded",
		}))
	})

	err := Stream(context.Background(), wsURL, "tok", nil, func(Event) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Drive quota exceeded")
}

func TestStream_ServerClosesCleanly(t *testing.T) {
	wsURL := eventServer(t, func(ctx context.Context, conn *websocket.Conn) {
		assert.NoError(t, wsjson.Write(ctx, conn, Event{Stage: "converting", Percent: 10}))
		conn.Close(websocket.StatusNormalClosure, "done")
	})

	var received []Event

	err := Stream(context.Background(), wsURL, "tok", nil, func(evt Event) {
		received = append(received, evt)
	})
	require.NoError(t, err)
	assert.Len(t, received, 1)
}

func TestStream_ContextCancel(t *testing.T) {
	wsURL := eventServer(t, func(ctx context.Context, _ *websocket.Conn) {
		// Send nothing — the client must give up when its context ends.
		<-ctx.Done()
	})

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := Stream(ctx, wsURL, "tok", nil, func(Event) {})
	assert.NoError(t, err, "caller-initiated cancellation is not a stream failure")
}

func TestStream_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	err := Stream(context.Background(), wsURL, "tok", nil, func(Event) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting")
}
