package transport

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	frameStart1 = 0x94
	frameStart2 = 0xC3
	headerLen   = 4

	// MaxPayload is the largest protobuf a radio accepts in one stream frame.
	MaxPayload = 512
)

// WriteFrame writes payload with the stream header.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayload {
		return fmt.Errorf("%d bytes: %w", len(payload), ErrFrameTooLarge)
	}
	buf := make([]byte, headerLen+len(payload))
	buf[0] = frameStart1
	buf[1] = frameStart2
	buf[2] = byte(len(payload) >> 8)
	buf[3] = byte(len(payload))
	copy(buf[headerLen:], payload)
	_, err := w.Write(buf)
	return err
}

// FrameReader splits a radio byte stream into frames. Bytes outside frames
// are the radio's debug console; complete lines of it are logged.
type FrameReader struct {
	r       *bufio.Reader
	log     *slog.Logger
	console strings.Builder
}

func NewFrameReader(r io.Reader, logger *slog.Logger) *FrameReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameReader{r: bufio.NewReaderSize(r, 2*MaxPayload), log: logger}
}

// ReadFrame returns the next frame payload. Oversized frames are skipped and
// the reader resynchronises on the following start bytes.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != frameStart1 {
			fr.consoleByte(b)
			continue
		}

		next, err := fr.r.Peek(1)
		if err != nil {
			return nil, err
		}
		if next[0] != frameStart2 {
			fr.consoleByte(b)
			continue
		}
		fr.r.Discard(1)

		var size [2]byte
		if _, err := io.ReadFull(fr.r, size[:]); err != nil {
			return nil, err
		}
		n := int(size[0])<<8 | int(size[1])
		if n > MaxPayload {
			fr.log.Debug("dropping oversized frame", "length", n)
			continue
		}

		payload := make([]byte, n)
		if _, err := io.ReadFull(fr.r, payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}

func (fr *FrameReader) consoleByte(b byte) {
	switch b {
	case '\r':
	case '\n':
		if fr.console.Len() > 0 {
			fr.log.Debug("radio console", "line", fr.console.String())
			fr.console.Reset()
		}
	default:
		if fr.console.Len() < 1024 {
			fr.console.WriteByte(b)
		}
	}
}
