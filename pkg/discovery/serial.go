package discovery

import (
	"context"
	"fmt"

	"github.com/kabili207/mesh-web-client/pkg/transport"
	"go.bug.st/serial/enumerator"
)

type SerialScanner struct {
	// USBOnly skips built-in UARTs, which are never radios on a desktop.
	USBOnly bool
	list    func() ([]*enumerator.PortDetails, error)
}

func NewSerialScanner(usbOnly bool) *SerialScanner {
	return &SerialScanner{USBOnly: usbOnly, list: enumerator.GetDetailedPortsList}
}

func (s *SerialScanner) Kind() transport.Kind { return transport.KindSerial }

func (s *SerialScanner) Scan(ctx context.Context) ([]Candidate, error) {
	ports, err := s.list()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	var found []Candidate
	for _, p := range ports {
		if s.USBOnly && !p.IsUSB {
			continue
		}
		c := Candidate{
			Kind:    transport.KindSerial,
			Address: p.Name,
			Name:    p.Product,
		}
		if p.IsUSB {
			c.Details = map[string]string{
				"vid":    p.VID,
				"pid":    p.PID,
				"serial": p.SerialNumber,
			}
		}
		found = append(found, c)
	}
	return found, nil
}
