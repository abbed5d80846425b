package statepub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/am43-core/internal/dispatch"
	"github.com/nerrad567/am43-core/internal/infrastructure/mqtt"
)

// EventDispatch is the event type published after every dispatch.
const EventDispatch = "dispatch"

// MQTTPublisher is the broker capability the Publisher needs.
// *mqtt.Client satisfies this interface.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Logger defines the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Publisher.
type Options struct {
	// Topics builds the state and event topics.
	// Default: prefix "am43".
	Topics mqtt.Topics

	// QoS for every message, 0..2. The zero value is QoS 0.
	QoS byte

	// DisableEvents skips the dispatch event topic.
	DisableEvents bool
}

// Publisher publishes drive state after each dispatch.
//
// Thread Safety: safe for concurrent use.
type Publisher struct {
	client MQTTPublisher
	opts   Options
	logger Logger

	mu     sync.RWMutex
	states map[string]DriveState
}

// Ensure Publisher is a dispatch observer.
var _ dispatch.Observer = (*Publisher)(nil)

// Ensure the infrastructure client can back a Publisher.
var _ MQTTPublisher = (*mqtt.Client)(nil)

// NewPublisher creates a publisher over client.
//
// Parameters:
//   - client: Broker connection (usually *mqtt.Client)
//   - opts: Topics and QoS
//   - logger: Optional logger (nil disables logging)
//
// Returns:
//   - *Publisher: Ready to be added as a dispatch observer
func NewPublisher(client MQTTPublisher, opts Options, logger Logger) *Publisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Publisher{
		client: client,
		opts:   opts,
		logger: logger,
		states: make(map[string]DriveState),
	}
}

// ObserveDispatch merges res into the cached drive states and publishes
// them. The cache is updated even when the broker is unreachable so the
// next successful publish carries the latest values.
func (p *Publisher) ObserveDispatch(_ context.Context, res *dispatch.Result) error {
	states := p.merge(res)

	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	var errs []error
	for _, st := range states {
		if err := p.publish(p.opts.Topics.DriveState(st.Address), st, true); err != nil {
			errs = append(errs, err)
		}
	}
	if !p.opts.DisableEvents {
		if err := p.publish(p.opts.Topics.Event(EventDispatch), NewDispatchEvent(res), false); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrPublishFailed, errors.Join(errs...))
	}
	p.logger.Debug("drive state published", "dispatch_id", res.ID, "drives", len(states))
	return nil
}

// State returns the last known state of the drive at address.
func (p *Publisher) State(address string) (DriveState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.states[address]
	return st, ok
}

// merge folds res into the cache and returns the updated states in
// outcome order.
func (p *Publisher) merge(res *dispatch.Result) []DriveState {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]DriveState, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		addr := o.Device.Address.String()
		st := p.states[addr]
		st.Address = addr
		st.Name = o.Device.Name
		st.Group = o.Device.Group
		st.Reachable = o.Reason != dispatch.ReasonConnectionFailed
		st.LastReason = o.Reason
		st.DispatchID = res.ID
		st.UpdatedAt = res.CompletedAt

		if res.Action.Kind() == dispatch.KindStatus {
			if o.Status.Battery != nil {
				st.Battery = o.Status.Battery
			}
			if o.Status.Position != nil {
				st.Position = o.Status.Position
			}
			if o.Status.Light != nil {
				st.Light = o.Status.Light
			}
		} else {
			st.LastCommand = res.Action.String()
			st.LastCommandOK = o.Succeeded
		}

		p.states[addr] = st
		out = append(out, st)
	}
	return out
}

func (p *Publisher) publish(topic string, msg any, retained bool) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", topic, err)
	}
	if err := p.client.Publish(topic, payload, p.opts.QoS, retained); err != nil {
		p.logger.Warn("publish failed", "topic", topic, "error", err)
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}
