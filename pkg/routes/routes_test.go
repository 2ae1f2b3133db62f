package routes

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kabili207/mesh-web-client/pkg/auth"
	"github.com/kabili207/mesh-web-client/pkg/config"
	"github.com/kabili207/mesh-web-client/pkg/connection"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/discovery"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"github.com/kabili207/mesh-web-client/pkg/transport"
	pb "github.com/kabili207/meshtastic-go/core/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

const myNum = 0x1234abcd

type sentText struct {
	text    string
	to      meshtastic.NodeID
	channel uint32
}

type fakeConn struct {
	mu       sync.Mutex
	texts    []sentText
	owner    *pb.User
	configs  []*pb.Config
	modules  []*pb.ModuleConfig
	channels []*pb.Channel
	reboots  int
	err      error
}

func (f *fakeConn) SendText(_ context.Context, text string, to meshtastic.NodeID, channel uint32, _ bool) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.texts = append(f.texts, sentText{text, to, channel})
	return uint32(len(f.texts)), nil
}

func (f *fakeConn) SetOwner(_ context.Context, user *pb.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owner = user
	return f.err
}

func (f *fakeConn) SetConfig(_ context.Context, cfg *pb.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	return f.err
}

func (f *fakeConn) SetModuleConfig(_ context.Context, cfg *pb.ModuleConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modules = append(f.modules, cfg)
	return f.err
}

func (f *fakeConn) SetChannel(_ context.Context, ch *pb.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, ch)
	return f.err
}

func (f *fakeConn) Reboot(context.Context, int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reboots++
	return f.err
}

func (f *fakeConn) Disconnect() error { return nil }

type fakeConnector struct {
	registry *device.Registry
	err      error
	targets  []connection.Target
}

func (c *fakeConnector) Connect(_ context.Context, target connection.Target) (*device.Device, error) {
	c.targets = append(c.targets, target)
	if c.err != nil {
		return nil, c.err
	}
	return c.registry.AddDevice(77), nil
}

func (c *fakeConnector) Disconnect(id uint32) error {
	if !c.registry.RemoveDevice(id) {
		return device.ErrDeviceNotFound
	}
	return nil
}

type fakeDiscoverer struct {
	known     []discovery.Candidate
	forgotten []string
}

func (d *fakeDiscoverer) Scan(context.Context) ([]discovery.Candidate, error) { return d.known, nil }
func (d *fakeDiscoverer) Known() []discovery.Candidate                        { return d.known }
func (d *fakeDiscoverer) Forget(kind transport.Kind, address string) {
	d.forgotten = append(d.forgotten, string(kind)+"|"+address)
}

type fixture struct {
	registry  *device.Registry
	dev       *device.Device
	conn      *fakeConn
	connector *fakeConnector
	disc      *fakeDiscoverer
	handler   http.Handler
}

func newFixture(t *testing.T, cfg config.Configuration) *fixture {
	t.Helper()
	reg := device.NewRegistry(nil)
	t.Cleanup(reg.Close)

	dev := reg.AddDevice(1)
	dev.SetHardware(&pb.MyNodeInfo{MyNodeNum: myNum})
	dev.AddChannel(device.Channel{Config: &pb.Channel{Index: 0, Role: pb.Channel_PRIMARY}})
	dev.AddChannel(device.Channel{Config: &pb.Channel{Index: 1, Role: pb.Channel_SECONDARY, Settings: &pb.ChannelSettings{Name: "admin"}}})
	dev.AddChannel(device.Channel{Config: &pb.Channel{Index: 2, Role: pb.Channel_SECONDARY, Settings: &pb.ChannelSettings{Name: "ops"}}})
	dev.AddChannel(device.Channel{Config: &pb.Channel{Index: 3, Role: pb.Channel_DISABLED, Settings: &pb.ChannelSettings{Name: "off"}}})
	dev.AddUser(device.UserPacket{Packet: &pb.MeshPacket{From: myNum}, Data: &pb.User{LongName: "Base Station", ShortName: "BASE"}})
	dev.AddUser(device.UserPacket{Packet: &pb.MeshPacket{From: 42}, Data: &pb.User{LongName: "Hilltop", ShortName: "HILL"}})

	conn := &fakeConn{}
	dev.SetConnection(conn)
	dev.SetStatus(meshtastic.DeviceConfigured)
	dev.SetReady(true)

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "test-secret"
	}
	connector := &fakeConnector{registry: reg}
	disc := &fakeDiscoverer{known: []discovery.Candidate{{Kind: transport.KindTCP, Address: "10.0.0.5:4403", Name: "meshtastic-ab12"}}}
	wr, err := NewWebRouter(cfg, reg, connector, disc, nil)
	require.NoError(t, err)

	return &fixture{registry: reg, dev: dev, conn: conn, connector: connector, disc: disc, handler: wr.Handler()}
}

func (f *fixture) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func addText(dev *device.Device, id, from uint32, text string) {
	dev.AddMessage(&device.MessageWithAck{
		Packet:   &pb.MeshPacket{Id: id, From: from, To: uint32(meshtastic.BROADCAST_ID)},
		Text:     text,
		Received: time.Now(),
	})
}

func TestDevicesPage(t *testing.T) {
	f := newFixture(t, config.Configuration{})
	rec := f.do("GET", "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "meshtastic-ab12")
	assert.Contains(t, body, "10.0.0.5:4403")
	assert.Contains(t, body, "Base Station")
}

func TestConnectDevice(t *testing.T) {
	f := newFixture(t, config.Configuration{})

	rec := f.do("POST", "/devices/connect", url.Values{"kind": {"tcp"}, "address": {"10.0.0.5"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/devices/77/messages", rec.Header().Get("Location"))
	require.Len(t, f.connector.targets, 1)
	assert.Equal(t, transport.KindTCP, f.connector.targets[0].Kind)
}

func TestConnectDeviceValidation(t *testing.T) {
	f := newFixture(t, config.Configuration{})

	rec := f.do("POST", "/devices/connect", url.Values{"kind": {"carrier-pigeon"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "This field is required")
	assert.Contains(t, rec.Body.String(), "Must be one of serial, tcp, ble")
	assert.Empty(t, f.connector.targets)
}

func TestConnectDeviceFailure(t *testing.T) {
	f := newFixture(t, config.Configuration{})
	f.connector.err = errors.New("no route to host")

	rec := f.do("POST", "/devices/connect", url.Values{"kind": {"tcp"}, "address": {"10.0.0.5:4403"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, []string{"tcp|10.0.0.5:4403"}, f.disc.forgotten)
}

func TestDisconnectDevice(t *testing.T) {
	f := newFixture(t, config.Configuration{})

	rec := f.do("POST", "/devices/1/disconnect", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	_, ok := f.registry.Device(1)
	assert.False(t, ok)

	rec = f.do("GET", "/devices/1/messages", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestDevicePageRedirectsToActivePage(t *testing.T) {
	f := newFixture(t, config.Configuration{})
	f.dev.SetActivePage(device.PageExtensions)

	rec := f.do("GET", "/devices/1", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/devices/1/modules", rec.Header().Get("Location"))
}

func TestMessagesPage(t *testing.T) {
	f := newFixture(t, config.Configuration{})
	addText(f.dev, 1, 42, "anyone out there?")
	addText(f.dev, 2, myNum, "loud and clear")

	rec := f.do("GET", "/devices/1/messages?chat=ch-0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "Primary")
	assert.Contains(t, body, "ops")
	assert.NotContains(t, body, ">admin")
	assert.NotContains(t, body, ">off")
	assert.Contains(t, body, "anyone out there?")
	assert.Contains(t, body, "Hilltop")
	// links are query escaped and decode back to the chat reference
	assert.Contains(t, body, `href="?chat=dm-%210000002a"`)
	assert.NotContains(t, body, "dm-%211234abcd")
	ref, err := url.ParseQuery("chat=dm-%210000002a")
	require.NoError(t, err)
	assert.Equal(t, device.DirectChat(42), mustChat(t, ref.Get("chat")))

	assert.Equal(t, device.PageMessages, f.dev.ActivePage())
	assert.Equal(t, device.ChannelChat(0), f.dev.ActiveChat())
}

func mustChat(t *testing.T, s string) device.ChatRef {
	t.Helper()
	chat, err := device.ParseChatRef(s)
	require.NoError(t, err)
	return chat
}

func TestGroupMessages(t *testing.T) {
	f := newFixture(t, config.Configuration{})
	addText(f.dev, 1, 42, "one")
	addText(f.dev, 2, 42, "two")
	addText(f.dev, 3, myNum, "three")
	addText(f.dev, 4, 42, "four")

	snap := f.dev.Snapshot()
	groups := groupMessages(snap, snap.Messages(device.ChannelChat(0)))
	require.Len(t, groups, 3)
	assert.Len(t, groups[0].Messages, 2)
	assert.Equal(t, "Hilltop", groups[0].FromName)
	assert.False(t, groups[0].Mine)
	assert.True(t, groups[1].Mine)
	assert.Equal(t, "four", groups[2].Messages[0].Text)
}

func TestChatTitles(t *testing.T) {
	f := newFixture(t, config.Configuration{})
	snap := f.dev.Snapshot()

	assert.Equal(t, "Primary", chatTitle(snap, device.ChannelChat(0)))
	assert.Equal(t, "ops", chatTitle(snap, device.ChannelChat(2)))
	assert.Equal(t, "Channel: 6", chatTitle(snap, device.ChannelChat(6)))
	assert.Equal(t, "Hilltop", chatTitle(snap, device.DirectChat(42)))
	assert.Equal(t, "Meshtastic 0007", chatTitle(snap, device.DirectChat(7)))

	assert.False(t, chatData(snap, device.ChannelChat(1)).CanSend)
	assert.True(t, chatData(snap, device.ChannelChat(2)).CanSend)
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t, config.Configuration{})

	rec := f.do("POST", "/devices/1/messages", url.Values{"chat": {"ch-2"}, "text": {"hello ops"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/devices/1/messages?chat=ch-2", rec.Header().Get("Location"))

	rec = f.do("POST", "/devices/1/messages", url.Values{"chat": {"dm-!0000002a"}, "text": {"psst"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	require.Equal(t, []sentText{
		{"hello ops", meshtastic.BROADCAST_ID, 2},
		{"psst", 42, 0},
	}, f.conn.texts)
}

func TestSendMessageErrors(t *testing.T) {
	f := newFixture(t, config.Configuration{})

	rec := f.do("POST", "/devices/1/messages", url.Values{"chat": {"ch-0"}, "text": {strings.Repeat("x", 300)}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Must be at most 228 characters")

	f.conn.err = errors.New("radio went away")
	rec = f.do("POST", "/devices/1/messages", url.Values{"chat": {"ch-0"}, "text": {"hi"}})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "radio went away")
	assert.Empty(t, f.conn.texts)
}

func TestNodesPage(t *testing.T) {
	f := newFixture(t, config.Configuration{})
	f.dev.AddPosition(device.PositionPacket{
		Packet: &pb.MeshPacket{From: 42},
		Data:   &pb.Position{LatitudeI: proto.Int32(455000000), LongitudeI: proto.Int32(-1226000000)},
	})

	rec := f.do("GET", "/devices/1/nodes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Hilltop")
	assert.Contains(t, body, "45.50000, -122.60000")
	assert.Equal(t, device.PageMap, f.dev.ActivePage())

	nodes := nodesData(f.dev.Snapshot())
	require.Len(t, nodes, 2)
	assert.True(t, nodes[0].IsMe)
}

func TestUserForm(t *testing.T) {
	f := newFixture(t, config.Configuration{})

	rec := f.do("GET", "/devices/1/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Base Station"`)
	assert.Contains(t, rec.Body.String(), "/devices/1/config/lora")

	rec = f.do("POST", "/devices/1/config/user", url.Values{"long_name": {""}, "short_name": {"TOOLONG"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "This field is required")
	assert.Contains(t, rec.Body.String(), "Must be at most 4 characters")
	assert.Nil(t, f.conn.owner)

	rec = f.do("POST", "/devices/1/config/user", url.Values{"long_name": {"Relay"}, "short_name": {"RLY"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.NotNil(t, f.conn.owner)
	assert.Equal(t, "Relay", f.conn.owner.GetLongName())
}

func TestConfigSection(t *testing.T) {
	f := newFixture(t, config.Configuration{})
	require.NoError(t, f.dev.SetConfig(&pb.Config{PayloadVariant: &pb.Config_Lora{Lora: &pb.Config_LoRaConfig{
		HopLimit:            7,
		Sx126XRxBoostedGain: true,
	}}}))

	rec := f.do("POST", "/devices/1/config/lora", url.Values{
		"region":       {"1"},
		"modem_preset": {"0"},
		"hop_limit":    {"3"},
		"tx_enabled":   {"true"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, f.conn.configs, 1)
	assert.Equal(t, uint32(3), f.conn.configs[0].GetLora().GetHopLimit())
	assert.True(t, f.conn.configs[0].GetLora().GetSx126XRxBoostedGain())

	rec = f.do("GET", "/devices/1/config/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModuleSection(t *testing.T) {
	f := newFixture(t, config.Configuration{})

	rec := f.do("GET", "/devices/1/modules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, device.PageExtensions, f.dev.ActivePage())

	rec = f.do("POST", "/devices/1/modules/range_test", url.Values{"enabled": {"true"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, f.conn.modules, 1)
	assert.True(t, f.conn.modules[0].GetRangeTest().GetEnabled())
}

func TestChannelForm(t *testing.T) {
	f := newFixture(t, config.Configuration{})

	rec := f.do("GET", "/devices/1/channels", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/devices/1/channels/7")

	rec = f.do("POST", "/devices/1/channels/5", url.Values{
		"index": {"5"},
		"role":  {"2"},
		"name":  {"hikers"},
		"psk":   {"AQ=="},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, f.conn.channels, 1)
	assert.Equal(t, int32(5), f.conn.channels[0].GetIndex())
	assert.Equal(t, "hikers", f.conn.channels[0].GetSettings().GetName())

	rec = f.do("POST", "/devices/1/channels/5", url.Values{"index": {"5"}, "role": {"2"}, "name": {""}, "psk": {"nope"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Key must be base64")

	rec = f.do("GET", "/devices/1/channels/9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInfoAndReboot(t *testing.T) {
	f := newFixture(t, config.Configuration{})
	f.dev.SetMetadata(&pb.DeviceMetadata{FirmwareVersion: "2.5.6", HasBluetooth: true})

	rec := f.do("GET", "/devices/1/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2.5.6")
	assert.Contains(t, rec.Body.String(), "!1234abcd")

	rec = f.do("POST", "/devices/1/reboot", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 1, f.conn.reboots)
}

func TestAPIDevices(t *testing.T) {
	f := newFixture(t, config.Configuration{})

	rec := f.do("GET", "/api/devices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []DeviceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "!1234abcd", list[0].NodeID)
	assert.Equal(t, "configured", list[0].Status)

	rec = f.do("GET", "/api/devices/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail DeviceDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Len(t, detail.Channels, 4)
	// an unnamed primary without a key goes by its preset and is unencrypted
	assert.Equal(t, "0x0a", detail.Channels[0].Hash)
	// secondary channels without a key share the primary's
	assert.Equal(t, "0x6f", detail.Channels[1].Hash)
	assert.Empty(t, detail.Channels[3].Hash)
	assert.Len(t, detail.Nodes, 2)
	assert.Contains(t, string(detail.Hardware), `"my_node_num"`)

	rec = f.do("GET", "/api/devices/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do("GET", "/api/discovery?refresh=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "10.0.0.5:4403")
}

func TestLogin(t *testing.T) {
	cfg := config.Configuration{}
	cfg.Auth.PasswordSalt = "salt"
	cfg.Auth.PasswordHash = auth.HashPassword("correct horse", "salt")
	f := newFixture(t, cfg)

	rec := f.do("GET", "/", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = f.do("GET", "/api/devices", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do("POST", "/login", url.Values{"password": {"wrong"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect password")
	assert.NotContains(t, rec.Body.String(), "Base Station")

	rec = f.do("POST", "/login", url.Values{"password": {"correct horse"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type sseEvent struct {
	id, event, data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	var data []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSuffix(line, "\n")
		switch {
		case line == "":
			if ev.event == "" && len(data) == 0 {
				continue
			}
			ev.data = strings.Join(data, "\n")
			return ev
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			ev.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			ev.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
}

func TestDeviceSSE(t *testing.T) {
	f := newFixture(t, config.Configuration{})
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/devices/1/events?page=messages&chat=ch-0", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	ev := readEvent(t, r)
	assert.Equal(t, "status-update", ev.event)
	assert.Len(t, ev.id, 26)
	assert.Contains(t, ev.data, "Base Station")
	ev = readEvent(t, r)
	assert.Equal(t, "chat-update", ev.event)

	addText(f.dev, 5, 42, "live update")
	for {
		ev = readEvent(t, r)
		if ev.event == "chat-update" && strings.Contains(ev.data, "live update") {
			break
		}
	}

	f.registry.RemoveDevice(1)
	for {
		ev = readEvent(t, r)
		if ev.event == "device-removed" {
			break
		}
	}
}

func TestWriteSSE(t *testing.T) {
	var b strings.Builder
	require.NoError(t, writeSSE(&b, "chat-update", "<div>\r\n<p>hi</p>\n</div>"))
	lines := strings.Split(b.String(), "\n")
	require.True(t, strings.HasPrefix(lines[0], "id: "))
	assert.Equal(t, []string{"event: chat-update", "data: <div>", "data: <p>hi</p>", "data: </div>", "", ""}, lines[1:])
}
