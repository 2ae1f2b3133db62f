package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	pb "github.com/kabili207/meshtastic-go/core/proto"
	"google.golang.org/protobuf/proto"
	"tinygo.org/x/bluetooth"
)

var (
	ServiceUUID   = mustUUID(meshtastic.ServiceUUID)
	toRadioUUID   = mustUUID(meshtastic.ToRadioUUID)
	fromRadioUUID = mustUUID(meshtastic.FromRadioUUID)
	fromNumUUID   = mustUUID(meshtastic.FromNumUUID)
)

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

var (
	enableOnce sync.Once
	enableErr  error
)

// Adapter returns the default Bluetooth adapter, enabling it on first use.
func Adapter() (*bluetooth.Adapter, error) {
	enableOnce.Do(func() {
		enableErr = bluetooth.DefaultAdapter.Enable()
	})
	return bluetooth.DefaultAdapter, enableErr
}

// bleTransport talks to a radio over its GATT service. Writes go to ToRadio;
// FromRadio is read until empty every time FromNum notifies.
type bleTransport struct {
	address string
	log     *slog.Logger
	opts    Options

	mu        sync.Mutex
	device    *bluetooth.Device
	toRadio   bluetooth.DeviceCharacteristic
	fromRadio bluetooth.DeviceCharacteristic
	frames    chan []byte
	wake      chan struct{}
	done      chan struct{}
}

func NewBLE(address string, opts Options) Transport {
	return &bleTransport{
		address: address,
		opts:    opts,
		log:     opts.logger().With("transport", string(KindBLE), "address", address),
	}
}

func (b *bleTransport) Kind() Kind { return KindBLE }

func (b *bleTransport) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device != nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.dialTimeout())
		defer cancel()
	}

	adapter, err := Adapter()
	if err != nil {
		return fmt.Errorf("enable bluetooth: %w", err)
	}

	addr, err := b.find(ctx, adapter)
	if err != nil {
		return err
	}

	device, err := adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %s: %w", b.address, err)
	}

	if err := b.setup(&device); err != nil {
		device.Disconnect()
		return err
	}
	b.device = &device
	b.log.Info("bluetooth connected")
	return nil
}

// find scans until the advertisement for the configured address shows up.
func (b *bleTransport) find(ctx context.Context, adapter *bluetooth.Adapter) (bluetooth.Address, error) {
	found := make(chan bluetooth.Address, 1)
	scanErr := make(chan error, 1)
	go func() {
		scanErr <- adapter.Scan(func(a *bluetooth.Adapter, res bluetooth.ScanResult) {
			if !strings.EqualFold(res.Address.String(), b.address) {
				return
			}
			select {
			case found <- res.Address:
			default:
			}
			a.StopScan()
		})
	}()

	select {
	case addr := <-found:
		<-scanErr
		return addr, nil
	case err := <-scanErr:
		if err == nil {
			err = errors.New("scan stopped")
		}
		return bluetooth.Address{}, fmt.Errorf("scan for %s: %w", b.address, err)
	case <-ctx.Done():
		adapter.StopScan()
		<-scanErr
		return bluetooth.Address{}, fmt.Errorf("scan for %s: %w", b.address, ctx.Err())
	}
}

func (b *bleTransport) setup(device *bluetooth.Device) error {
	services, err := device.DiscoverServices([]bluetooth.UUID{ServiceUUID})
	if err != nil {
		return fmt.Errorf("discover services: %w", err)
	}
	if len(services) == 0 {
		return errors.New("radio service not found")
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{toRadioUUID, fromRadioUUID, fromNumUUID})
	if err != nil {
		return fmt.Errorf("discover characteristics: %w", err)
	}

	var fromNum bluetooth.DeviceCharacteristic
	var have int
	for _, c := range chars {
		switch c.UUID() {
		case toRadioUUID:
			b.toRadio = c
			have++
		case fromRadioUUID:
			b.fromRadio = c
			have++
		case fromNumUUID:
			fromNum = c
			have++
		}
	}
	if have != 3 {
		return errors.New("radio characteristics missing")
	}

	b.frames = make(chan []byte, 16)
	b.wake = make(chan struct{}, 1)
	b.done = make(chan struct{})

	err = fromNum.EnableNotifications(func([]byte) {
		b.signal()
	})
	if err != nil {
		return fmt.Errorf("subscribe FromNum: %w", err)
	}

	go b.drainLoop(b.fromRadio, b.frames, b.wake, b.done)
	// Caller holds b.mu, so prime the first drain without signal().
	b.wake <- struct{}{}
	return nil
}

func (b *bleTransport) signal() {
	b.mu.Lock()
	wake := b.wake
	b.mu.Unlock()
	if wake == nil {
		return
	}
	select {
	case wake <- struct{}{}:
	default:
	}
}

func (b *bleTransport) drainLoop(fromRadio bluetooth.DeviceCharacteristic, frames chan<- []byte, wake <-chan struct{}, done <-chan struct{}) {
	defer close(frames)
	buf := make([]byte, MaxPayload)
	for {
		select {
		case <-done:
			return
		case <-wake:
		}

		for {
			n, err := fromRadio.Read(buf)
			if err != nil {
				b.log.Error("error reading FromRadio", "error", err)
				return
			}
			if n == 0 {
				break
			}
			payload := make([]byte, n)
			copy(payload, buf[:n])
			select {
			case frames <- payload:
			case <-done:
				return
			}
		}
	}
}

func (b *bleTransport) Send(ctx context.Context, msg *pb.ToRadio) error {
	payload, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal ToRadio: %w", err)
	}
	if len(payload) > MaxPayload {
		return fmt.Errorf("%d bytes: %w", len(payload), ErrFrameTooLarge)
	}

	b.mu.Lock()
	if b.device == nil {
		b.mu.Unlock()
		return ErrNotConnected
	}
	toRadio := b.toRadio
	b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := toRadio.Write(payload); err != nil {
		return fmt.Errorf("write ToRadio: %w", err)
	}
	// The radio only raises FromNum for packets it queues after this point.
	b.signal()
	return nil
}

func (b *bleTransport) Recv(ctx context.Context) (*pb.FromRadio, error) {
	b.mu.Lock()
	frames := b.frames
	b.mu.Unlock()
	if frames == nil {
		return nil, ErrNotConnected
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case payload, ok := <-frames:
			if !ok {
				return nil, ErrClosed
			}
			msg := &pb.FromRadio{}
			if err := proto.Unmarshal(payload, msg); err != nil {
				b.log.Warn("discarding undecodable frame", "error", err, "length", len(payload))
				continue
			}
			return msg, nil
		}
	}
}

func (b *bleTransport) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device == nil {
		return nil
	}
	close(b.done)
	err := b.device.Disconnect()
	b.device = nil
	b.wake = nil
	return err
}
