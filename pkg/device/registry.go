package device

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry holds every device known to this process, keyed by device id.
type Registry struct {
	mu       sync.RWMutex
	devices  map[uint32]*Device
	notifier *Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		devices:  make(map[uint32]*Device),
		notifier: NewNotifier(),
		log:      logger.With("component", "registry"),
		now:      time.Now,
	}
}

// AddDevice creates a device with default state under id. An existing device
// with the same id is replaced and its connection closed.
func (r *Registry) AddDevice(id uint32) *Device {
	dev := newDevice(id, r.notifier.Notify, r.now)

	r.mu.Lock()
	old, replaced := r.devices[id]
	r.devices[id] = dev
	r.mu.Unlock()

	if replaced {
		r.log.Warn("replacing existing device", "device", id)
		if err := old.disconnect(); err != nil {
			r.log.Error("error closing replaced device", "device", id, "error", err)
		}
	} else {
		r.log.Debug("device added", "device", id)
	}
	r.notifier.Notify(id)
	return dev
}

func (r *Registry) Device(id uint32) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[id]
	return dev, ok
}

// RemoveDevice drops the device and closes its connection. It reports whether
// the device existed.
func (r *Registry) RemoveDevice(id uint32) bool {
	r.mu.Lock()
	dev, ok := r.devices[id]
	delete(r.devices, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := dev.disconnect(); err != nil {
		r.log.Error("error closing removed device", "device", id, "error", err)
	}
	r.log.Debug("device removed", "device", id)
	r.notifier.Notify(id)
	return true
}

// Devices returns all devices ordered by id.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	devices := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	r.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ID < devices[j].ID
	})
	return devices
}

func (r *Registry) Subscribe(deviceID uint32) chan struct{} {
	return r.notifier.Subscribe(deviceID)
}

func (r *Registry) SubscribeAll() chan struct{} {
	return r.notifier.SubscribeAll()
}

func (r *Registry) Unsubscribe(ch chan struct{}) {
	r.notifier.Unsubscribe(ch)
}

// Close disconnects every device and releases all subscribers.
func (r *Registry) Close() {
	r.mu.Lock()
	devices := r.devices
	r.devices = make(map[uint32]*Device)
	r.mu.Unlock()

	for id, dev := range devices {
		if err := dev.disconnect(); err != nil {
			r.log.Error("error closing device", "device", id, "error", err)
		}
	}
	r.notifier.Close()
}
