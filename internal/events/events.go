// Package events publishes finished build results to NATS so dashboards and
// chat bots can follow CI builds.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/appbuilder/internal/config"
	"git.home.luguber.info/inful/appbuilder/internal/gitinfo"
)

// BuildEvent is the JSON document published once per run.
type BuildEvent struct {
	RunID            string          `json:"run_id"`
	Profile          string          `json:"profile"`
	Status           string          `json:"status"`
	Success          bool            `json:"success"`
	Toolchain        string          `json:"toolchain,omitempty"`
	Source           *gitinfo.Info   `json:"source,omitempty"`
	PreprocessingRan bool            `json:"preprocessing_ran"`
	Platforms        []PlatformEvent `json:"platforms"`
	Error            string          `json:"error,omitempty"`
	ExitCode         int             `json:"exit_code"`
	StartedAt        time.Time       `json:"started_at"`
	DurationMS       int64           `json:"duration_ms"`
}

// PlatformEvent summarizes one platform of a run.
type PlatformEvent struct {
	Platform         string   `json:"platform"`
	Status           string   `json:"status"`
	Artifact         string   `json:"artifact,omitempty"`
	Symbols          string   `json:"symbols,omitempty"`
	Error            string   `json:"error,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	LogPath          string   `json:"log_path,omitempty"`
	PreprocessingRan bool     `json:"preprocessing_ran"`
	DurationMS       int64    `json:"duration_ms"`
}

// Publisher sends raw messages.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Notifier publishes build events on a subject.
type Notifier struct {
	pub     Publisher
	subject string
}

// NewNotifier creates a notifier over an existing publisher.
func NewNotifier(pub Publisher, subject string) *Notifier {
	return &Notifier{pub: pub, subject: subject}
}

// Notify marshals and publishes ev.
func (n *Notifier) Notify(ctx context.Context, ev BuildEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal build event: %w", err)
	}
	if err := n.pub.Publish(ctx, n.subject, data); err != nil {
		return fmt.Errorf("failed to publish build event: %w", err)
	}
	slog.Debug("Published build event", slog.String("subject", n.subject), slog.String("run.id", ev.RunID))
	return nil
}

// Close closes the underlying publisher.
func (n *Notifier) Close() error { return n.pub.Close() }

// NATSPublisher publishes over a core NATS connection.
type NATSPublisher struct {
	conn    *nats.Conn
	timeout time.Duration
}

// Connect dials the configured server. It returns nil without error when no
// URL is configured.
func Connect(cfg config.EventsConfig) (*Notifier, error) {
	if cfg.NATSURL == "" {
		return nil, nil
	}
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("appbuilder"),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Debug("Connected to NATS", slog.String("url", conn.ConnectedUrlRedacted()))
	return NewNotifier(&NATSPublisher{conn: conn, timeout: cfg.Timeout}, cfg.Subject), nil
}

// Publish sends data and waits until the server has received it.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := p.conn.Publish(subject, data); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok && p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.conn.FlushWithContext(ctx)
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
