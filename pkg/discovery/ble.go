package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kabili207/mesh-web-client/pkg/transport"
	"tinygo.org/x/bluetooth"
)

// BLEScanner lists radios advertising the radio GATT service.
type BLEScanner struct {
	timeout time.Duration
}

func NewBLEScanner(timeout time.Duration) *BLEScanner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BLEScanner{timeout: timeout}
}

func (b *BLEScanner) Kind() transport.Kind { return transport.KindBLE }

func (b *BLEScanner) Scan(ctx context.Context) ([]Candidate, error) {
	adapter, err := transport.Adapter()
	if err != nil {
		return nil, fmt.Errorf("enable bluetooth: %w", err)
	}

	var mu sync.Mutex
	seen := make(map[string]Candidate)

	scanCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- adapter.Scan(func(_ *bluetooth.Adapter, res bluetooth.ScanResult) {
			if !res.HasServiceUUID(transport.ServiceUUID) {
				return
			}
			addr := res.Address.String()
			mu.Lock()
			seen[addr] = Candidate{
				Kind:    transport.KindBLE,
				Address: addr,
				Name:    res.LocalName(),
				RSSI:    res.RSSI,
			}
			mu.Unlock()
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("bluetooth scan: %w", err)
		}
	case <-scanCtx.Done():
		adapter.StopScan()
		if err := <-done; err != nil {
			return nil, fmt.Errorf("bluetooth scan: %w", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	found := make([]Candidate, 0, len(seen))
	for _, c := range seen {
		found = append(found, c)
	}
	return found, nil
}
