package connection

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
)

type EventKind int

const (
	EventMessage EventKind = iota + 1
	EventAck
	EventTelemetry
	EventNode
	EventConfigured
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventAck:
		return "ack"
	case EventTelemetry:
		return "telemetry"
	case EventNode:
		return "node"
	case EventConfigured:
		return "configured"
	}
	return "unknown"
}

// Event describes something a radio reported. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind   EventKind
	Device *device.Device
	// Owner is the node number of the radio the event came from.
	Owner meshtastic.NodeID

	Chat      device.ChatRef
	Message   *device.MessageWithAck
	PacketID  uint32
	Telemetry *device.TelemetryPacket
	Node      *device.Node
}

// EventSink receives radio events for side integrations.
type EventSink interface {
	HandleEvent(ctx context.Context, ev Event) error
}

type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) HandleEvent(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Dispatcher queues events and hands them to sinks on its own goroutine so a
// slow sink never stalls a radio read loop. Events are dropped when the queue
// is full.
type Dispatcher struct {
	log   *slog.Logger
	queue chan Event

	mu    sync.RWMutex
	sinks []EventSink
}

func NewDispatcher(logger *slog.Logger, size int, sinks ...EventSink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = 256
	}
	return &Dispatcher{
		log:   logger.With("component", "events"),
		queue: make(chan Event, size),
		sinks: sinks,
	}
}

func (d *Dispatcher) AddSink(s EventSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

func (d *Dispatcher) Publish(ev Event) {
	if d == nil {
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.log.Warn("event queue full, dropping event", "kind", ev.Kind.String())
	}
}

// Run delivers queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()
	for _, s := range sinks {
		if err := s.HandleEvent(ctx, ev); err != nil {
			d.log.Error("event sink failed", "kind", ev.Kind.String(), "error", err)
		}
	}
}
