package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	pb "github.com/kabili207/meshtastic-go/core/proto"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestWriteFrameHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{1, 2, 3}))
	require.Equal(t, []byte{0x94, 0xC3, 0x00, 0x03, 1, 2, 3}, buf.Bytes())

	err := WriteFrame(&buf, make([]byte, MaxPayload+1))
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  [][]byte
	}{
		{
			name:  "single",
			input: []byte{0x94, 0xC3, 0x00, 0x02, 0xAA, 0xBB},
			want:  [][]byte{{0xAA, 0xBB}},
		},
		{
			name:  "console text before frame",
			input: append([]byte("INFO boot\r\n"), 0x94, 0xC3, 0x00, 0x01, 0x05),
			want:  [][]byte{{0x05}},
		},
		{
			name:  "stray start byte",
			input: []byte{0x94, 0x00, 0x94, 0xC3, 0x00, 0x01, 0x07},
			want:  [][]byte{{0x07}},
		},
		{
			name:  "empty payload",
			input: []byte{0x94, 0xC3, 0x00, 0x00, 0x94, 0xC3, 0x00, 0x01, 0x01},
			want:  [][]byte{{}, {0x01}},
		},
		{
			name:  "oversized frame skipped",
			input: []byte{0x94, 0xC3, 0xFF, 0xFF, 0x94, 0xC3, 0x00, 0x01, 0x09},
			want:  [][]byte{{0x09}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := NewFrameReader(bytes.NewReader(tt.input), nil)
			for _, want := range tt.want {
				got, err := fr.ReadFrame()
				require.NoError(t, err)
				require.Equal(t, want, got)
			}
			_, err := fr.ReadFrame()
			require.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestReadFrameTruncated(t *testing.T) {
	fr := NewFrameReader(bytes.NewReader([]byte{0x94, 0xC3, 0x00, 0x05, 1, 2}), nil)
	_, err := fr.ReadFrame()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func pipeTransport(t *testing.T) (Transport, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	tr := newStream(KindTCP, func(context.Context) (io.ReadWriteCloser, error) {
		return local, nil
	}, Options{})
	require.NoError(t, tr.Connect(context.Background()))
	t.Cleanup(func() {
		tr.Close()
		remote.Close()
	})
	return tr, remote
}

func TestStreamSendRecv(t *testing.T) {
	tr, remote := pipeTransport(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sent := make(chan error, 1)
	go func() {
		sent <- tr.Send(ctx, &pb.ToRadio{PayloadVariant: &pb.ToRadio_WantConfigId{WantConfigId: 99}})
	}()

	fr := NewFrameReader(remote, nil)
	payload, err := fr.ReadFrame()
	require.NoError(t, err)
	require.NoError(t, <-sent)

	var got pb.ToRadio
	require.NoError(t, proto.Unmarshal(payload, &got))
	require.Equal(t, uint32(99), got.GetWantConfigId())

	reply, err := proto.Marshal(&pb.FromRadio{Id: 1, PayloadVariant: &pb.FromRadio_ConfigCompleteId{ConfigCompleteId: 99}})
	require.NoError(t, err)
	go func() {
		remote.Write([]byte("debug noise\n"))
		WriteFrame(remote, reply)
	}()

	msg, err := tr.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(99), msg.GetConfigCompleteId())
}

func TestStreamRecvAfterRemoteClose(t *testing.T) {
	tr, remote := pipeTransport(t)
	remote.Close()

	_, err := tr.Recv(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestStreamRecvContext(t *testing.T) {
	tr, _ := pipeTransport(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Recv(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSendNotConnected(t *testing.T) {
	tr := NewTCP("127.0.0.1", Options{})
	err := tr.Send(context.Background(), &pb.ToRadio{})
	require.ErrorIs(t, err, ErrNotConnected)
	require.Equal(t, KindTCP, tr.Kind())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("ble")
	require.NoError(t, err)
	require.Equal(t, KindBLE, k)

	_, err = ParseKind("usb")
	require.Error(t, err)
}
