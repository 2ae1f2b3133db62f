package transport

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"go.bug.st/serial"
)

// wakeSequence brings a sleeping radio's serial API out of console mode.
var wakeSequence = bytes.Repeat([]byte{frameStart2}, 32)

func NewSerial(port string, opts Options) Transport {
	baud := opts.BaudRate
	if baud == 0 {
		baud = meshtastic.SerialBaudRate
	}
	return newStream(KindSerial, func(ctx context.Context) (io.ReadWriteCloser, error) {
		p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, err
		}
		if _, err := p.Write(wakeSequence); err != nil {
			p.Close()
			return nil, err
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			p.Close()
			return nil, ctx.Err()
		}
		return p, nil
	}, opts)
}
