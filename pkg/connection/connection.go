// Package connection runs the client side of the radio protocol: it drives a
// transport, applies everything the radio reports to a device record and
// sends commands back.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"github.com/kabili207/mesh-web-client/pkg/transport"
	pb "github.com/kabili207/meshtastic-go/core/proto"
	"golang.org/x/time/rate"
)

var (
	ErrMessageTooLong = errors.New("message too long")
	ErrNotConfigured  = errors.New("radio has not reported its node number")
)

type Options struct {
	Logger *slog.Logger
	// SendRate and SendBurst limit packets written to the radio.
	SendRate  rate.Limit
	SendBurst int
	// Heartbeat keeps serial sessions from timing out on the radio side.
	Heartbeat      time.Duration
	ReconnectDelay time.Duration
	MaxReconnect   time.Duration
	// AckTimeout is how long a sent message waits for its delivery ack.
	AckTimeout time.Duration
	Events     *Dispatcher
	Now        func() time.Time
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.SendRate == 0 {
		o.SendRate = rate.Every(250 * time.Millisecond)
	}
	if o.SendBurst <= 0 {
		o.SendBurst = 4
	}
	if o.Heartbeat <= 0 {
		o.Heartbeat = 5 * time.Minute
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = time.Second
	}
	if o.MaxReconnect <= 0 {
		o.MaxReconnect = 30 * time.Second
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = 5 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Connection binds one transport to one device record.
type Connection struct {
	dev     *device.Device
	tr      transport.Transport
	log     *slog.Logger
	opts    Options
	limiter *rate.Limiter

	mu         sync.Mutex
	configID   uint32
	configDone chan struct{}
	pending    *ttlcache.Cache[uint32, device.ChatRef]
	cancel     context.CancelFunc
	loopDone   chan struct{}
}

var _ device.Connection = (*Connection)(nil)

func New(dev *device.Device, tr transport.Transport, opts Options) *Connection {
	opts.setDefaults()
	return &Connection{
		dev:     dev,
		tr:      tr,
		opts:    opts,
		log:     opts.Logger.With("device", dev.ID, "transport", string(tr.Kind())),
		limiter: rate.NewLimiter(opts.SendRate, opts.SendBurst),
		pending: ttlcache.New[uint32, device.ChatRef](
			ttlcache.WithTTL[uint32, device.ChatRef](opts.AckTimeout),
			ttlcache.WithDisableTouchOnHit[uint32, device.ChatRef](),
		),
	}
}

// Connect opens the transport, requests the radio's configuration and waits
// until the radio has sent all of it or ctx is done.
func (c *Connection) Connect(ctx context.Context) error {
	c.dev.SetStatus(meshtastic.DeviceConnecting)
	if err := c.tr.Connect(ctx); err != nil {
		c.dev.SetStatus(meshtastic.DeviceDisconnected)
		return err
	}
	c.dev.SetStatus(meshtastic.DeviceConnected)

	done, err := c.requestConfig(ctx)
	if err != nil {
		c.tr.Close()
		c.dev.SetStatus(meshtastic.DeviceDisconnected)
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.loopDone = loopDone
	c.mu.Unlock()

	go c.run(loopCtx, loopDone)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.Disconnect()
		return fmt.Errorf("waiting for radio configuration: %w", ctx.Err())
	}
}

func (c *Connection) requestConfig(ctx context.Context) (<-chan struct{}, error) {
	id := newPacketID()
	done := make(chan struct{})
	c.mu.Lock()
	c.configID = id
	c.configDone = done
	c.mu.Unlock()

	c.dev.SetReady(false)
	c.dev.SetStatus(meshtastic.DeviceConfiguring)
	err := c.send(ctx, &pb.ToRadio{PayloadVariant: &pb.ToRadio_WantConfigId{WantConfigId: id}})
	if err != nil {
		return nil, fmt.Errorf("request config: %w", err)
	}
	return done, nil
}

// Disconnect stops the read loop and closes the transport.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	cancel := c.cancel
	loopDone := c.loopDone
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := c.tr.Close()
	<-loopDone

	c.dev.SetReady(false)
	c.dev.SetStatus(meshtastic.DeviceDisconnected)
	c.log.Info("disconnected")
	return err
}

func (c *Connection) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	go c.pending.Start()
	defer c.pending.Stop()

	heartbeat := time.NewTicker(c.opts.Heartbeat)
	defer heartbeat.Stop()

	msgs := make(chan *pb.FromRadio)
	errc := make(chan error, 1)
	go c.recvLoop(ctx, msgs, errc)

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			err := c.send(ctx, &pb.ToRadio{PayloadVariant: &pb.ToRadio_Heartbeat{Heartbeat: &pb.Heartbeat{}}})
			if err != nil {
				c.log.Warn("heartbeat failed", "error", err)
			}
		case msg := <-msgs:
			c.handleFromRadio(ctx, msg)
		case err := <-errc:
			if ctx.Err() != nil {
				return
			}
			c.log.Error("radio connection lost", "error", err)
			if !c.reconnect(ctx) {
				return
			}
			errc = make(chan error, 1)
			go c.recvLoop(ctx, msgs, errc)
		}
	}
}

func (c *Connection) recvLoop(ctx context.Context, msgs chan<- *pb.FromRadio, errc chan<- error) {
	for {
		msg, err := c.tr.Recv(ctx)
		if err != nil {
			errc <- err
			return
		}
		select {
		case msgs <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// reconnect retries the transport with backoff until it succeeds or ctx ends.
func (c *Connection) reconnect(ctx context.Context) bool {
	c.dev.SetReady(false)
	c.dev.SetStatus(meshtastic.DeviceReconnecting)
	c.tr.Close()

	delay := c.opts.ReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := c.tr.Connect(ctx); err != nil {
			c.log.Warn("reconnect failed", "error", err, "retry_in", delay)
			delay = min(delay*2, c.opts.MaxReconnect)
			continue
		}
		if _, err := c.requestConfig(ctx); err != nil {
			c.log.Warn("reconnect failed", "error", err)
			c.tr.Close()
			continue
		}
		c.log.Info("reconnected")
		return true
	}
}

func (c *Connection) send(ctx context.Context, msg *pb.ToRadio) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.tr.Send(ctx, msg)
}

func (c *Connection) publish(ev Event) {
	ev.Device = c.dev
	ev.Owner = meshtastic.NodeID(c.dev.MyNodeNum())
	c.opts.Events.Publish(ev)
}

func newPacketID() uint32 {
	for {
		if id := rand.Uint32(); id != 0 {
			return id
		}
	}
}
