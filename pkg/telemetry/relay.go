package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the NATS subject prefix events are published under.
const DefaultSubjectPrefix = "vulnpilot.events"

// Publisher is the part of *nats.Conn the relay needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ConnectNATS dials a NATS server for the relay.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	if strings.TrimSpace(url) == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// Relay forwards hub events to NATS as JSON on <prefix>.<event type>.
type Relay struct {
	hub    *Hub
	pub    Publisher
	prefix string
	onErr  func(error)
}

// NewRelay constructs a relay. onErr receives publish failures and may be nil.
func NewRelay(hub *Hub, pub Publisher, prefix string, onErr func(error)) *Relay {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Relay{hub: hub, pub: pub, prefix: prefix, onErr: onErr}
}

// Subject returns the subject an event type is published on.
func (r *Relay) Subject(eventType EventType) string {
	return r.prefix + "." + string(eventType)
}

// Start subscribes to the hub and publishes in the background until ctx is
// done or the hub closes. The returned channel closes when forwarding stops.
func (r *Relay) Start(ctx context.Context) <-chan struct{} {
	events, unsubscribe := r.hub.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := r.forward(event); err != nil && r.onErr != nil {
					r.onErr(err)
				}
			}
		}
	}()
	return done
}

func (r *Relay) forward(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}
	if err := r.pub.Publish(r.Subject(event.Type), data); err != nil {
		return fmt.Errorf("publish event %s: %w", event.Type, err)
	}
	return nil
}
