package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	pb "github.com/kabili207/meshtastic-go/core/proto"
	"google.golang.org/protobuf/proto"
)

type dialFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// streamTransport carries framed protobufs over a byte stream. Serial and TCP
// share it and differ only in how the stream is opened.
type streamTransport struct {
	kind Kind
	dial dialFunc
	log  *slog.Logger
	opts Options

	mu     sync.Mutex
	conn   io.ReadWriteCloser
	frames chan []byte
	done   chan struct{}
	err    error
}

func newStream(kind Kind, dial dialFunc, opts Options) *streamTransport {
	return &streamTransport{
		kind: kind,
		dial: dial,
		opts: opts,
		log:  opts.logger().With("transport", string(kind)),
	}
}

func (s *streamTransport) Kind() Kind { return s.kind }

func (s *streamTransport) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.dialTimeout())
		defer cancel()
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.kind, err)
	}
	s.conn = conn
	s.frames = make(chan []byte, 16)
	s.done = make(chan struct{})
	s.err = nil
	go s.readLoop(conn, s.frames, s.done)
	return nil
}

func (s *streamTransport) readLoop(conn io.Reader, frames chan<- []byte, done chan struct{}) {
	defer close(frames)
	fr := NewFrameReader(conn, s.log)
	for {
		payload, err := fr.ReadFrame()
		if err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = err
			}
			s.mu.Unlock()
			return
		}
		select {
		case frames <- payload:
		case <-done:
			return
		}
	}
}

func (s *streamTransport) Send(ctx context.Context, msg *pb.ToRadio) error {
	payload, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal ToRadio: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteFrame(s.conn, payload)
}

func (s *streamTransport) Recv(ctx context.Context) (*pb.FromRadio, error) {
	s.mu.Lock()
	frames := s.frames
	s.mu.Unlock()
	if frames == nil {
		return nil, ErrNotConnected
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case payload, ok := <-frames:
			if !ok {
				return nil, s.readErr()
			}
			msg := &pb.FromRadio{}
			if err := proto.Unmarshal(payload, msg); err != nil {
				s.log.Warn("discarding undecodable frame", "error", err, "length", len(payload))
				continue
			}
			return msg, nil
		}
	}
}

func (s *streamTransport) readErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil || s.err == io.EOF {
		return ErrClosed
	}
	return fmt.Errorf("%w: %w", ErrClosed, s.err)
}

func (s *streamTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	close(s.done)
	err := s.conn.Close()
	s.conn = nil
	return err
}
