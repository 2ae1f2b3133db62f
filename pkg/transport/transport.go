// Package transport moves protobuf frames between this process and a radio.
package transport

import (
	"context"
	"errors"
	"fmt"

	pb "github.com/kabili207/meshtastic-go/core/proto"
)

type Kind string

const (
	KindSerial Kind = "serial"
	KindTCP    Kind = "tcp"
	KindBLE    Kind = "ble"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindSerial, KindTCP, KindBLE:
		return k, nil
	}
	return "", fmt.Errorf("unknown transport %q", s)
}

var (
	ErrClosed        = errors.New("transport closed")
	ErrNotConnected  = errors.New("transport not connected")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// Transport is a bidirectional session with one radio. Recv must only be
// called from a single goroutine.
type Transport interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg *pb.ToRadio) error
	Recv(ctx context.Context) (*pb.FromRadio, error)
	Close() error
	Kind() Kind
}

// New returns an unconnected transport for the given kind and address: a
// serial port path, a host or host:port, or a BLE address.
func New(kind Kind, address string, opts Options) (Transport, error) {
	switch kind {
	case KindSerial:
		return NewSerial(address, opts), nil
	case KindTCP:
		return NewTCP(address, opts), nil
	case KindBLE:
		return NewBLE(address, opts), nil
	}
	return nil, fmt.Errorf("unknown transport %q", kind)
}
