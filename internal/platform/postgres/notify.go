package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/phrazzld/scry-notes/internal/events"
)

// EventChannel is the LISTEN/NOTIFY channel carrying job events.
const EventChannel = "job_events"

// envelope tags a relayed event with the process that published it so a
// process does not deliver its own events twice.
type envelope struct {
	Origin string          `json:"origin"`
	Event  events.JobEvent `json:"event"`
}

// Notifier publishes job events to other processes with pg_notify.
type Notifier struct {
	db     *sql.DB
	origin string
}

var _ events.Publisher = (*Notifier)(nil)

// NewNotifier creates a Notifier. origin identifies this process.
func NewNotifier(db *sql.DB, origin string) *Notifier {
	return &Notifier{db: db, origin: origin}
}

// Publish implements events.Publisher.
func (n *Notifier) Publish(ctx context.Context, event events.JobEvent) error {
	payload, err := json.Marshal(envelope{Origin: n.origin, Event: event})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, EventChannel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}
	return nil
}

// Listener forwards job events published by other processes into a local
// publisher, usually the API's broker.
type Listener struct {
	url       string
	origin    string
	target    events.Publisher
	logger    *slog.Logger
	reconnect time.Duration
}

// NewListener creates a Listener. Events whose origin equals origin are
// skipped because they were already delivered locally.
func NewListener(url, origin string, target events.Publisher, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		url:       url,
		origin:    origin,
		target:    target,
		logger:    logger.With("component", "event_listener"),
		reconnect: 2 * time.Second,
	}
}

// Run listens until ctx is cancelled, reconnecting after connection errors.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("event listener disconnected", "error", err, "retry_in", l.reconnect)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.reconnect):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.url)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "LISTEN "+EventChannel); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	l.logger.Info("listening for job events", "channel", EventChannel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(ctx, n.Payload)
	}
}

func (l *Listener) dispatch(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		l.logger.Warn("discarding malformed event notification", "error", err)
		return
	}
	if env.Origin == l.origin {
		return
	}
	if err := l.target.Publish(ctx, env.Event); err != nil && !errors.Is(err, context.Canceled) {
		l.logger.Error("failed to forward event", "job_id", env.Event.JobID, "error", err)
	}
}
