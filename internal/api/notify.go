package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// Reconnect backoff constants for the notify listener.
const (
	initialNotifyBackoff = 5 * time.Second
	maxNotifyBackoff     = 2 * time.Minute
	notifyBackoffFactor  = 2
)

// notifyMessage is the wire form of a server nudge.
type notifyMessage struct {
	Event    string `json:"event"`
	Resource string `json:"resource,omitempty"`
}

// NotifyListener maintains a websocket subscription to the backend's notify
// endpoint. When the server announces that display data changed, the
// listener invokes its callback so the sync engine can catch up immediately
// instead of waiting out a polling interval. The listener is best-effort:
// if the socket cannot be established the kiosk degrades to pure polling.
type NotifyListener struct {
	url    string
	token  TokenSource
	logger *slog.Logger

	// OnNudge is invoked once per received refresh event. Must be safe for
	// concurrent use; the engine's gates absorb duplicate nudges.
	OnNudge func(resource string)

	// sleepFunc and dialFunc are injectable for tests.
	sleepFunc func(ctx context.Context, d time.Duration) error
	dialFunc  func(ctx context.Context, url string, opts *websocket.DialOptions) (*websocket.Conn, *http.Response, error)
}

// NewNotifyListener creates a listener for the given websocket URL
// (wss://.../v1/notify).
func NewNotifyListener(url string, token TokenSource, onNudge func(resource string), logger *slog.Logger) *NotifyListener {
	if logger == nil {
		logger = slog.Default()
	}

	return &NotifyListener{
		url:       url,
		token:     token,
		logger:    logger,
		OnNudge:   onNudge,
		sleepFunc: timeSleep,
		dialFunc:  websocket.Dial,
	}
}

// Run connects and reads nudges until the context is canceled, returning
// nil. Connection failures and dropped sockets reconnect with capped
// exponential backoff; a successful connection resets the backoff.
func (l *NotifyListener) Run(ctx context.Context) error {
	backoff := initialNotifyBackoff

	for {
		if ctx.Err() != nil {
			return nil
		}

		connected, err := l.listenOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if connected {
			backoff = initialNotifyBackoff
		}

		if err != nil {
			l.logger.Warn("notify socket lost, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("backoff", backoff),
			)
		}

		if sleepErr := l.sleepFunc(ctx, backoff); sleepErr != nil {
			return nil
		}

		backoff *= notifyBackoffFactor
		if backoff > maxNotifyBackoff {
			backoff = maxNotifyBackoff
		}
	}
}

// listenOnce dials the socket and processes messages until the connection
// drops or the context is canceled. The returned bool reports whether the
// dial succeeded, so the caller can reset its reconnect backoff.
func (l *NotifyListener) listenOnce(ctx context.Context) (bool, error) {
	tok, err := l.token.Token()
	if err != nil {
		return false, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+tok)
	header.Set("User-Agent", userAgent)

	conn, _, err := l.dialFunc(ctx, l.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return false, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	l.logger.Info("notify socket connected", slog.String("url", l.url))

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}

		var msg notifyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			l.logger.Warn("ignoring malformed notify message", slog.String("error", err.Error()))

			continue
		}

		if msg.Event != "refresh" {
			l.logger.Debug("ignoring notify event", slog.String("event", msg.Event))

			continue
		}

		l.logger.Info("server refresh nudge received", slog.String("resource", msg.Resource))

		if l.OnNudge != nil {
			l.OnNudge(msg.Resource)
		}
	}
}
