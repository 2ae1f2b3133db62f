package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"github.com/kabili207/mesh-web-client/pkg/transport"
	pb "github.com/kabili207/meshtastic-go/core/proto"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/proto"
)

const myNum = 0x1234abcd

type fakeTransport struct {
	mu         sync.Mutex
	connectErr error
	sendErr    error
	sent       []*pb.ToRadio
	in         chan *pb.FromRadio
	closed     bool
	// respond is called for every sent message while holding no locks.
	respond func(f *fakeTransport, msg *pb.ToRadio)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:      make(chan *pb.FromRadio, 64),
		respond: configResponder,
	}
}

func (f *fakeTransport) Kind() transport.Kind { return transport.KindTCP }

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = false
	return f.connectErr
}

func (f *fakeTransport) Send(ctx context.Context, msg *pb.ToRadio) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return transport.ErrNotConnected
	}
	if f.sendErr != nil {
		f.mu.Unlock()
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		respond(f, msg)
	}
	return nil
}

func (f *fakeTransport) Recv(ctx context.Context) (*pb.FromRadio, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-f.in:
		return msg, nil
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) Sent() []*pb.ToRadio {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*pb.ToRadio(nil), f.sent...)
}

func (f *fakeTransport) push(msg *pb.FromRadio) {
	f.in <- msg
}

func configResponder(f *fakeTransport, msg *pb.ToRadio) {
	id := msg.GetWantConfigId()
	if id == 0 {
		return
	}
	f.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_MyInfo{MyInfo: &pb.MyNodeInfo{MyNodeNum: myNum}}})
	f.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_NodeInfo{NodeInfo: &pb.NodeInfo{
		Num:  myNum,
		User: &pb.User{Id: meshtastic.NodeID(myNum).String(), LongName: "Base Station", ShortName: "BASE"},
	}}})
	f.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_Config{Config: &pb.Config{
		PayloadVariant: &pb.Config_Lora{Lora: &pb.Config_LoRaConfig{HopLimit: 3}},
	}}})
	f.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_ModuleConfig{ModuleConfig: &pb.ModuleConfig{
		PayloadVariant: &pb.ModuleConfig_Telemetry{Telemetry: &pb.ModuleConfig_TelemetryConfig{DeviceUpdateInterval: 900}},
	}}})
	f.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_Channel{Channel: &pb.Channel{Index: 0, Role: pb.Channel_PRIMARY}}})
	f.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_ConfigCompleteId{ConfigCompleteId: id}})
}

func packet(from, to, channel uint32, port pb.PortNum, payload []byte) *pb.FromRadio {
	return &pb.FromRadio{PayloadVariant: &pb.FromRadio_Packet{Packet: &pb.MeshPacket{
		From:    from,
		To:      to,
		Channel: channel,
		Id:      newPacketID(),
		RxTime:  1700000000,
		PayloadVariant: &pb.MeshPacket_Decoded{Decoded: &pb.Data{
			Portnum: port,
			Payload: payload,
		}},
	}}}
}

func testOptions(events *Dispatcher) Options {
	return Options{
		SendRate:  rate.Inf,
		Heartbeat: time.Hour,
		Events:    events,
	}
}

func connected(t *testing.T, events *Dispatcher) (*device.Device, *Connection, *fakeTransport) {
	t.Helper()
	return connectedWith(t, testOptions(events))
}

func connectedWith(t *testing.T, opts Options) (*device.Device, *Connection, *fakeTransport) {
	t.Helper()
	reg := device.NewRegistry(nil)
	dev := reg.AddDevice(1)
	tr := newFakeTransport()
	conn := New(dev, tr, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Connect(ctx))
	dev.SetConnection(conn)
	t.Cleanup(func() { conn.Disconnect() })
	return dev, conn, tr
}

func TestConnectConfiguresDevice(t *testing.T) {
	dev, _, tr := connected(t, nil)

	require.True(t, dev.Ready())
	require.Equal(t, meshtastic.DeviceConfigured, dev.Status())
	require.Equal(t, uint32(myNum), dev.MyNodeNum())
	require.Equal(t, uint32(3), dev.Config().GetLora().GetHopLimit())
	require.Equal(t, uint32(900), dev.ModuleConfig().GetTelemetry().GetDeviceUpdateInterval())

	me, ok := dev.MyNode()
	require.True(t, ok)
	require.Equal(t, "Base Station", me.LongName())

	ch, ok := dev.Channel(0)
	require.True(t, ok)
	require.Equal(t, "Primary", ch.Name())

	sent := tr.Sent()
	require.NotEmpty(t, sent)
	require.NotZero(t, sent[0].GetWantConfigId())
}

func TestConnectFailure(t *testing.T) {
	reg := device.NewRegistry(nil)
	dev := reg.AddDevice(1)
	tr := newFakeTransport()
	tr.connectErr = errors.New("no route to host")

	err := New(dev, tr, testOptions(nil)).Connect(context.Background())
	require.Error(t, err)
	require.Equal(t, meshtastic.DeviceDisconnected, dev.Status())
	require.False(t, dev.Ready())
}

func TestDisconnectAfterFailedConfigRequest(t *testing.T) {
	reg := device.NewRegistry(nil)
	dev := reg.AddDevice(1)
	tr := newFakeTransport()
	tr.sendErr = errors.New("broken pipe")
	conn := New(dev, tr, testOptions(nil))

	require.Error(t, conn.Connect(context.Background()))
	require.Equal(t, meshtastic.DeviceDisconnected, dev.Status())

	done := make(chan error, 1)
	go func() { done <- conn.Disconnect() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Disconnect did not return")
	}

	// the connection can still be used once the radio answers
	tr.mu.Lock()
	tr.sendErr = nil
	tr.mu.Unlock()
	require.NoError(t, conn.Connect(context.Background()))
	require.True(t, dev.Ready())
	require.NoError(t, conn.Disconnect())
}

func TestConnectTimesOutWithoutConfig(t *testing.T) {
	reg := device.NewRegistry(nil)
	dev := reg.AddDevice(1)
	tr := newFakeTransport()
	tr.respond = nil

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := New(dev, tr, testOptions(nil)).Connect(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, meshtastic.DeviceDisconnected, dev.Status())
}

func TestIncomingTextMessages(t *testing.T) {
	dev, _, tr := connected(t, nil)

	tr.push(packet(0x55, uint32(meshtastic.BROADCAST_ID), 0, pb.PortNum_TEXT_MESSAGE_APP, []byte("hello mesh")))
	tr.push(packet(0x55, myNum, 0, pb.PortNum_TEXT_MESSAGE_APP, []byte("just you")))
	tr.push(packet(0x55, uint32(meshtastic.BROADCAST_ID), 4, pb.PortNum_TEXT_MESSAGE_APP, []byte("nowhere")))

	require.Eventually(t, func() bool {
		return len(dev.DirectMessages(0x55)) == 1
	}, time.Second, 10*time.Millisecond)

	ch, _ := dev.Channel(0)
	require.Len(t, ch.Messages, 1)
	require.Equal(t, "hello mesh", ch.Messages[0].Text)
	require.Equal(t, "just you", dev.DirectMessages(0x55)[0].Text)
}

func TestSendTextAck(t *testing.T) {
	dev, conn, tr := connected(t, nil)
	ctx := context.Background()

	id, err := conn.SendText(ctx, "ping", meshtastic.BROADCAST_ID, 0, true)
	require.NoError(t, err)
	require.NotZero(t, id)

	sent := tr.Sent()
	last := sent[len(sent)-1].GetPacket()
	require.Equal(t, id, last.GetId())
	require.Equal(t, pb.PortNum_TEXT_MESSAGE_APP, last.GetDecoded().GetPortnum())

	ch, _ := dev.Channel(0)
	require.Len(t, ch.Messages, 1)
	require.False(t, ch.Messages[0].Ack)

	routing, err := proto.Marshal(&pb.Routing{Variant: &pb.Routing_ErrorReason{ErrorReason: pb.Routing_NONE}})
	require.NoError(t, err)
	ack := packet(myNum, myNum, 0, pb.PortNum_ROUTING_APP, routing)
	ack.GetPacket().GetDecoded().RequestId = id
	tr.push(ack)

	require.Eventually(t, func() bool {
		ch, _ := dev.Channel(0)
		return ch.Messages[0].Ack
	}, time.Second, 10*time.Millisecond)
}

func TestSendDirectTextAck(t *testing.T) {
	dev, conn, tr := connected(t, nil)

	id, err := conn.SendText(context.Background(), "hi", meshtastic.NodeID(0x77), 0, true)
	require.NoError(t, err)
	require.Len(t, dev.DirectMessages(0x77), 1)

	routing, _ := proto.Marshal(&pb.Routing{Variant: &pb.Routing_ErrorReason{ErrorReason: pb.Routing_NONE}})
	ack := packet(0x77, myNum, 0, pb.PortNum_ROUTING_APP, routing)
	ack.GetPacket().GetDecoded().RequestId = id
	tr.push(ack)

	require.Eventually(t, func() bool {
		return dev.DirectMessages(0x77)[0].Ack
	}, time.Second, 10*time.Millisecond)
}

func TestUnackedMessagesExpire(t *testing.T) {
	opts := testOptions(nil)
	opts.AckTimeout = 50 * time.Millisecond
	dev, conn, tr := connectedWith(t, opts)
	ctx := context.Background()

	first, err := conn.SendText(ctx, "lost", meshtastic.BROADCAST_ID, 0, true)
	require.NoError(t, err)
	require.Equal(t, 1, conn.pending.Len())
	require.Eventually(t, func() bool {
		return conn.pending.Len() == 0
	}, time.Second, 10*time.Millisecond)

	routing, err := proto.Marshal(&pb.Routing{Variant: &pb.Routing_ErrorReason{ErrorReason: pb.Routing_NONE}})
	require.NoError(t, err)
	late := packet(myNum, myNum, 0, pb.PortNum_ROUTING_APP, routing)
	late.GetPacket().GetDecoded().RequestId = first
	tr.push(late)

	second, err := conn.SendText(ctx, "found", meshtastic.BROADCAST_ID, 0, true)
	require.NoError(t, err)
	ack := packet(myNum, myNum, 0, pb.PortNum_ROUTING_APP, routing)
	ack.GetPacket().GetDecoded().RequestId = second
	tr.push(ack)

	require.Eventually(t, func() bool {
		ch, _ := dev.Channel(0)
		return len(ch.Messages) == 2 && ch.Messages[1].Ack
	}, time.Second, 10*time.Millisecond)
	ch, _ := dev.Channel(0)
	require.False(t, ch.Messages[0].Ack)
}

func TestMessageEventsDoNotShareStoredMessage(t *testing.T) {
	got := make(chan Event, 16)
	events := NewDispatcher(nil, 16, SinkFunc(func(ctx context.Context, ev Event) error {
		got <- ev
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go events.Run(ctx)

	dev, conn, _ := connected(t, events)
	id, err := conn.SendText(ctx, "ping", meshtastic.BROADCAST_ID, 0, true)
	require.NoError(t, err)

	var ev Event
	deadline := time.After(2 * time.Second)
	for ev.Kind != EventMessage {
		select {
		case ev = <-got:
		case <-deadline:
			t.Fatal("no message event")
		}
	}

	// sinks read the event while the ack lands on the stored message
	var wg sync.WaitGroup
	var seen bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 100 {
			seen = seen || ev.Message.Ack
		}
	}()
	require.True(t, dev.AckMessage(0, id))
	wg.Wait()

	require.False(t, seen)
	require.False(t, ev.Message.Ack)
	require.Equal(t, "ping", ev.Message.Text)
	ch, _ := dev.Channel(0)
	require.True(t, ch.Messages[0].Ack)
}

func TestRebootRequestsConfig(t *testing.T) {
	dev, _, tr := connected(t, nil)

	wantConfig := func() []uint32 {
		var ids []uint32
		for _, m := range tr.Sent() {
			if id := m.GetWantConfigId(); id != 0 {
				ids = append(ids, id)
			}
		}
		return ids
	}
	require.Len(t, wantConfig(), 1)

	tr.push(&pb.FromRadio{PayloadVariant: &pb.FromRadio_Rebooted{Rebooted: true}})

	require.Eventually(t, func() bool {
		return len(wantConfig()) == 2 && dev.Ready()
	}, time.Second, 10*time.Millisecond)
	ids := wantConfig()
	require.NotEqual(t, ids[0], ids[1])
	require.Equal(t, meshtastic.DeviceConfigured, dev.Status())
}

func TestSendTextTooLong(t *testing.T) {
	_, conn, _ := connected(t, nil)
	long := make([]byte, meshtastic.MaxTextLength+1)
	_, err := conn.SendText(context.Background(), string(long), meshtastic.BROADCAST_ID, 0, false)
	require.ErrorIs(t, err, ErrMessageTooLong)
}

func TestTelemetryEvents(t *testing.T) {
	got := make(chan Event, 8)
	events := NewDispatcher(nil, 8, SinkFunc(func(ctx context.Context, ev Event) error {
		got <- ev
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go events.Run(ctx)

	dev, _, tr := connected(t, events)

	tel, err := proto.Marshal(&pb.Telemetry{Variant: &pb.Telemetry_DeviceMetrics{DeviceMetrics: &pb.DeviceMetrics{}}})
	require.NoError(t, err)
	tr.push(packet(42, uint32(meshtastic.BROADCAST_ID), 0, pb.PortNum_TELEMETRY_APP, tel))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-got:
			if ev.Kind != EventTelemetry {
				continue
			}
			require.Equal(t, uint32(42), ev.Telemetry.Packet.GetFrom())
			require.Equal(t, meshtastic.NodeID(myNum), ev.Owner)
			_, ok := dev.Node(42)
			require.True(t, ok)
			return
		case <-deadline:
			t.Fatal("no telemetry event")
		}
	}
}

func TestAdminCommands(t *testing.T) {
	dev, conn, tr := connected(t, nil)
	ctx := context.Background()

	require.NoError(t, conn.SetOwner(ctx, &pb.User{LongName: "Renamed", ShortName: "RN"}))
	me, _ := dev.MyNode()
	require.Equal(t, "Renamed", me.LongName())

	sent := tr.Sent()
	p := sent[len(sent)-1].GetPacket()
	require.Equal(t, uint32(myNum), p.GetTo())
	require.Equal(t, pb.PortNum_ADMIN_APP, p.GetDecoded().GetPortnum())

	var admin pb.AdminMessage
	require.NoError(t, proto.Unmarshal(p.GetDecoded().GetPayload(), &admin))
	require.Equal(t, "Renamed", admin.GetSetOwner().GetLongName())

	require.NoError(t, conn.SetChannel(ctx, &pb.Channel{
		Index:    1,
		Role:     pb.Channel_SECONDARY,
		Settings: &pb.ChannelSettings{Name: "ops"},
	}))
	ch, ok := dev.Channel(1)
	require.True(t, ok)
	require.Equal(t, "ops", ch.Name())

	require.NoError(t, conn.SetConfig(ctx, &pb.Config{PayloadVariant: &pb.Config_Lora{Lora: &pb.Config_LoRaConfig{HopLimit: 7}}}))
	require.Equal(t, uint32(7), dev.Config().GetLora().GetHopLimit())

	require.NoError(t, conn.Reboot(ctx, 5))
	sent = tr.Sent()
	require.NoError(t, proto.Unmarshal(sent[len(sent)-1].GetPacket().GetDecoded().GetPayload(), &admin))
	require.Equal(t, int32(5), admin.GetRebootSeconds())
}

func TestAdminBeforeConfigured(t *testing.T) {
	reg := device.NewRegistry(nil)
	dev := reg.AddDevice(1)
	conn := New(dev, newFakeTransport(), testOptions(nil))

	err := conn.SetOwner(context.Background(), &pb.User{LongName: "x"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestDisconnect(t *testing.T) {
	dev, conn, _ := connected(t, nil)
	require.NoError(t, conn.Disconnect())
	require.False(t, dev.Ready())
	require.Equal(t, meshtastic.DeviceDisconnected, dev.Status())
	require.NoError(t, conn.Disconnect())
}

func TestManagerConnect(t *testing.T) {
	reg := device.NewRegistry(nil)
	tr := newFakeTransport()
	m := NewManager(reg, testOptions(nil), WithTransportFactory(func(transport.Kind, string, transport.Options) (transport.Transport, error) {
		return tr, nil
	}))

	dev, err := m.Connect(context.Background(), Target{Kind: transport.KindTCP, Address: "radio.local"})
	require.NoError(t, err)
	require.NotZero(t, dev.ID)

	got, ok := reg.Device(dev.ID)
	require.True(t, ok)
	_, hasConn := got.Connection()
	require.True(t, hasConn)

	require.NoError(t, m.Disconnect(dev.ID))
	_, ok = reg.Device(dev.ID)
	require.False(t, ok)
	require.ErrorIs(t, m.Disconnect(dev.ID), device.ErrDeviceNotFound)
}

func TestManagerConnectFailureRemovesDevice(t *testing.T) {
	reg := device.NewRegistry(nil)
	tr := newFakeTransport()
	tr.connectErr = errors.New("refused")
	m := NewManager(reg, testOptions(nil), WithTransportFactory(func(transport.Kind, string, transport.Options) (transport.Transport, error) {
		return tr, nil
	}))

	_, err := m.Connect(context.Background(), Target{Kind: transport.KindTCP, Address: "radio.local"})
	require.Error(t, err)
	require.Empty(t, reg.Devices())
}
