package connection

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/transport"
)

// Target names a radio to connect to.
type Target struct {
	Kind    transport.Kind `mapstructure:"kind" json:"kind" schema:"kind" validate:"required,oneof=serial tcp ble"`
	Address string         `mapstructure:"address" json:"address" schema:"address" validate:"required"`
	Name    string         `mapstructure:"name" json:"name,omitempty" schema:"name"`
}

func (t Target) String() string {
	return fmt.Sprintf("%s:%s", t.Kind, t.Address)
}

type TransportFactory func(kind transport.Kind, address string, opts transport.Options) (transport.Transport, error)

// Manager creates device records for new connections and wires them to a
// transport.
type Manager struct {
	registry       *device.Registry
	log            *slog.Logger
	opts           Options
	transportOpts  transport.Options
	connectTimeout time.Duration
	newTransport   TransportFactory
}

type ManagerOption func(*Manager)

func WithTransportFactory(f TransportFactory) ManagerOption {
	return func(m *Manager) { m.newTransport = f }
}

func WithConnectTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.connectTimeout = d }
}

func WithTransportOptions(o transport.Options) ManagerOption {
	return func(m *Manager) { m.transportOpts = o }
}

func NewManager(registry *device.Registry, opts Options, options ...ManagerOption) *Manager {
	opts.setDefaults()
	m := &Manager{
		registry:       registry,
		log:            opts.Logger.With("component", "manager"),
		opts:           opts,
		connectTimeout: time.Minute,
		newTransport:   transport.New,
	}
	for _, o := range options {
		o(m)
	}
	if m.transportOpts.Logger == nil {
		m.transportOpts.Logger = opts.Logger
	}
	return m
}

// Connect registers a new device for target and connects to it. When the
// connection fails the device is removed again and the error returned.
func (m *Manager) Connect(ctx context.Context, target Target) (*device.Device, error) {
	tr, err := m.newTransport(target.Kind, target.Address, m.transportOpts)
	if err != nil {
		return nil, err
	}

	id := m.newDeviceID()
	dev := m.registry.AddDevice(id)
	log := m.log.With("device", id, "target", target.String())
	log.Info("connecting")

	ctx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	conn := New(dev, tr, m.opts)
	if err := conn.Connect(ctx); err != nil {
		m.registry.RemoveDevice(id)
		log.Error("connection failed", "error", err)
		return nil, fmt.Errorf("connect %s: %w", target, err)
	}
	dev.SetConnection(conn)
	log.Info("connected")
	return dev, nil
}

// Disconnect closes the device's connection and forgets the device.
func (m *Manager) Disconnect(id uint32) error {
	if !m.registry.RemoveDevice(id) {
		return device.ErrDeviceNotFound
	}
	return nil
}

func (m *Manager) newDeviceID() uint32 {
	for {
		id := rand.Uint32()
		if _, taken := m.registry.Device(id); !taken {
			return id
		}
	}
}
