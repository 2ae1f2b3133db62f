package device

import (
	"sync"
)

type subscription struct {
	deviceID uint32
	all      bool
}

// Notifier fans out change signals to subscribers. A subscription follows
// either one device or every device.
type Notifier struct {
	subscribers map[chan struct{}]subscription
	mu          sync.RWMutex
}

func NewNotifier() *Notifier {
	return &Notifier{
		subscribers: make(map[chan struct{}]subscription),
	}
}

// Subscribe returns a channel that receives a signal whenever the device with
// the given id changes.
func (n *Notifier) Subscribe(deviceID uint32) chan struct{} {
	return n.add(subscription{deviceID: deviceID})
}

// SubscribeAll returns a channel that receives a signal whenever any device
// changes.
func (n *Notifier) SubscribeAll() chan struct{} {
	return n.add(subscription{all: true})
}

func (n *Notifier) add(sub subscription) chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan struct{}, 1)
	n.subscribers[ch] = sub
	return ch
}

func (n *Notifier) Unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subscribers[ch]; !ok {
		return
	}
	delete(n.subscribers, ch)
	close(ch)
}

// Notify signals subscribers of deviceID and those following every device.
// Signals coalesce: a subscriber with a pending signal is not sent another.
func (n *Notifier) Notify(deviceID uint32) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch, sub := range n.subscribers {
		if !sub.all && sub.deviceID != deviceID {
			continue
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close drops every subscriber, closing their channels.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subscribers {
		close(ch)
	}
	n.subscribers = make(map[chan struct{}]subscription)
}
