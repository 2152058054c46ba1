// Package events publishes tenant lifecycle notifications on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectEnterpriseRegistered = "orchestra.enterprise.registered"
	SubjectEnterpriseUpdated    = "orchestra.enterprise.updated"
	SubjectModulePurchased      = "orchestra.module.purchased"
	SubjectRoleCreated          = "orchestra.role.created"
	SubjectPersonnelCreated     = "orchestra.personnel.created"
	SubjectPersonnelUpdated     = "orchestra.personnel.updated"
	SubjectPersonnelDeleted     = "orchestra.personnel.deleted"
)

type Event struct {
	Type         string                 `json:"event_type"`
	EnterpriseID string                 `json:"enterprise_id"`
	SubjectID    string                 `json:"subject_id,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, subject string, event Event) error
}

// Emit publishes and logs a failure instead of returning it. Notifications
// never fail the request that triggered them.
func Emit(ctx context.Context, p Publisher, log *slog.Logger, subject string, event Event) {
	if p == nil {
		return
	}
	event.Type = subject
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := p.Publish(ctx, subject, event); err != nil && log != nil {
		log.Warn("failed to publish event", "subject", subject, "enterprise_id", event.EnterpriseID, "error", err)
	}
}

type NATSPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func Connect(url string, logger *slog.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("orchestra"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	logger.Info("connected to nats", "url", url)
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	p.logger.Debug("published event", "subject", subject, "enterprise_id", event.EnterpriseID)
	return nil
}

func (p *NATSPublisher) Connected() bool {
	return p != nil && p.conn != nil && p.conn.IsConnected()
}

func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, subject string, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.Type = subject
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Subjects lists the subjects in publish order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = Nop{}
	_ Publisher = (*Recorder)(nil)
)
