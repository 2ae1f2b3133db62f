package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"github.com/kabili207/mesh-web-client/pkg/transport"
)

const mdnsDomain = "local."

// MDNSScanner browses for radios announcing the network API.
type MDNSScanner struct {
	log     *slog.Logger
	timeout time.Duration
}

func NewMDNSScanner(logger *slog.Logger, timeout time.Duration) *MDNSScanner {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MDNSScanner{log: logger, timeout: timeout}
}

func (m *MDNSScanner) Kind() transport.Kind { return transport.KindTCP }

func (m *MDNSScanner) Scan(ctx context.Context) ([]Candidate, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var mu sync.Mutex
	var found []Candidate
	var wg sync.WaitGroup

	scanCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			c, ok := entryToCandidate(entry)
			if !ok {
				continue
			}
			mu.Lock()
			found = append(found, c)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(scanCtx, meshtastic.MDNSService, mdnsDomain, entries); err != nil {
		cancel()
		wg.Wait()
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-scanCtx.Done()
	wg.Wait()
	return found, nil
}

func entryToCandidate(entry *zeroconf.ServiceEntry) (Candidate, bool) {
	var host string
	if len(entry.AddrIPv4) > 0 {
		host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		host = entry.AddrIPv6[0].String()
	} else {
		return Candidate{}, false
	}
	port := entry.Port
	if port == 0 {
		port = meshtastic.TCPPort
	}

	txt := parseTXTRecords(entry.Text)
	name := entry.ServiceRecord.Instance
	if short := txt["shortname"]; short != "" {
		name = fmt.Sprintf("%s (%s)", name, short)
	}
	return Candidate{
		Kind:    transport.KindTCP,
		Address: net.JoinHostPort(host, strconv.Itoa(port)),
		Name:    name,
		Details: txt,
	}, true
}

func parseTXTRecords(txt []string) map[string]string {
	m := make(map[string]string, len(txt))
	for _, t := range txt {
		k, v, ok := strings.Cut(t, "=")
		if ok {
			m[k] = v
		}
	}
	return m
}
