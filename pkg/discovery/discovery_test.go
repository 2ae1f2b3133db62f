package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"github.com/kabili207/mesh-web-client/pkg/transport"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

type staticScanner struct {
	kind  transport.Kind
	found []Candidate
	err   error
}

func (s *staticScanner) Kind() transport.Kind { return s.kind }

func (s *staticScanner) Scan(context.Context) ([]Candidate, error) {
	return s.found, s.err
}

func TestServiceMergesAndDeduplicates(t *testing.T) {
	ble := &staticScanner{kind: transport.KindBLE, found: []Candidate{
		{Kind: transport.KindBLE, Address: "AA:BB:CC:DD:EE:FF", Name: "Meshtastic_eeff", RSSI: -60},
	}}
	tcp := &staticScanner{kind: transport.KindTCP, found: []Candidate{
		{Kind: transport.KindTCP, Address: "192.168.1.20:4403"},
	}}
	svc := NewService(nil, time.Minute, ble, tcp)
	defer svc.Close()

	found, err := svc.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, transport.KindBLE, found[0].Kind)
	require.False(t, found[0].LastSeen.IsZero())

	ble.found[0].RSSI = -40
	found, err = svc.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, int16(-40), found[0].RSSI)
}

func TestServiceKeepsResultsOnScannerError(t *testing.T) {
	broken := &staticScanner{kind: transport.KindBLE, err: errors.New("adapter off")}
	serial := &staticScanner{kind: transport.KindSerial, found: []Candidate{
		{Kind: transport.KindSerial, Address: "/dev/ttyACM0"},
	}}
	svc := NewService(nil, time.Minute, broken, serial)
	defer svc.Close()

	found, err := svc.Scan(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "adapter off")
	require.Len(t, found, 1)

	svc.Forget(transport.KindSerial, "/dev/ttyACM0")
	require.Empty(t, svc.Known())
}

func TestEntryToCandidate(t *testing.T) {
	entry := zeroconf.NewServiceEntry("Meshtastic_1a2b", meshtastic.MDNSService, mdnsDomain)
	entry.Port = 4403
	entry.Text = []string{"shortname=1a2b", "id=!12341a2b"}
	entry.AddrIPv4 = append(entry.AddrIPv4, net.IPv4(192, 168, 1, 10))

	c, ok := entryToCandidate(entry)
	require.True(t, ok)
	require.Equal(t, transport.KindTCP, c.Kind)
	require.Equal(t, "192.168.1.10:4403", c.Address)
	require.Equal(t, "Meshtastic_1a2b (1a2b)", c.Name)
	require.Equal(t, "!12341a2b", c.Details["id"])

	_, ok = entryToCandidate(zeroconf.NewServiceEntry("noaddr", meshtastic.MDNSService, mdnsDomain))
	require.False(t, ok)
}

func TestParseTXTRecords(t *testing.T) {
	m := parseTXTRecords([]string{"a=1", "b=x=y", "novalue"})
	require.Equal(t, "1", m["a"])
	require.Equal(t, "x=y", m["b"])
	require.NotContains(t, m, "novalue")
}

func TestSerialScannerFiltersUSB(t *testing.T) {
	s := NewSerialScanner(true)
	s.list = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyACM0", IsUSB: true, VID: "239a", PID: "8029", Product: "RAK4631"},
		}, nil
	}

	found, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "/dev/ttyACM0", found[0].Address)
	require.Equal(t, "RAK4631", found[0].Name)
	require.Equal(t, "239a", found[0].Details["vid"])
}
