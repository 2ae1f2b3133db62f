package transport

import (
	"context"
	"io"
	"net"
	"strconv"

	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
)

// NewTCP returns a transport for a radio's network API. A host without a
// port uses the standard API port.
func NewTCP(address string, opts Options) Transport {
	addr := address
	if _, _, err := net.SplitHostPort(address); err != nil {
		addr = net.JoinHostPort(address, strconv.Itoa(meshtastic.TCPPort))
	}
	return newStream(KindTCP, func(ctx context.Context) (io.ReadWriteCloser, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}, opts)
}
