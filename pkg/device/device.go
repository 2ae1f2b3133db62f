package device

import (
	"sync"
	"time"

	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	pb "github.com/kabili207/meshtastic-go/core/proto"
)

// Device is the local session state of one connected radio. All fields are
// guarded by mu; callers read through Snapshot or the accessor methods.
type Device struct {
	ID uint32

	mu           sync.RWMutex
	ready        bool
	status       meshtastic.DeviceStatus
	channels     map[int32]*Channel
	config       *pb.LocalConfig
	moduleConfig *pb.LocalModuleConfig
	hardware     *pb.MyNodeInfo
	metadata     *pb.DeviceMetadata
	nodes        map[uint32]*Node
	direct       map[uint32][]*MessageWithAck
	connection   Connection
	activeChat   ChatRef
	activePage   Page

	notify func(id uint32)
	now    func() time.Time
}

func newDevice(id uint32, notify func(uint32), now func() time.Time) *Device {
	return &Device{
		ID:           id,
		ready:        false,
		status:       meshtastic.DeviceDisconnected,
		channels:     make(map[int32]*Channel),
		config:       &pb.LocalConfig{},
		moduleConfig: &pb.LocalModuleConfig{},
		hardware:     &pb.MyNodeInfo{},
		nodes:        make(map[uint32]*Node),
		direct:       make(map[uint32][]*MessageWithAck),
		activeChat:   ChannelChat(0),
		activePage:   PageMessages,
		notify:       notify,
		now:          now,
	}
}

// update runs fn under the write lock and then notifies subscribers.
func (d *Device) update(fn func()) {
	d.mu.Lock()
	fn()
	d.mu.Unlock()
	if d.notify != nil {
		d.notify(d.ID)
	}
}

func (d *Device) SetReady(ready bool) {
	d.update(func() {
		d.ready = ready
	})
}

func (d *Device) SetStatus(status meshtastic.DeviceStatus) {
	d.update(func() {
		d.status = status
	})
}

func (d *Device) SetHardware(hardware *pb.MyNodeInfo) {
	d.update(func() {
		d.hardware = clone(hardware)
	})
}

func (d *Device) SetMetadata(metadata *pb.DeviceMetadata) {
	d.update(func() {
		d.metadata = clone(metadata)
	})
}

func (d *Device) SetActiveChat(chat ChatRef) {
	d.update(func() {
		d.activeChat = chat
	})
}

func (d *Device) SetActivePage(page Page) {
	d.update(func() {
		d.activePage = page
	})
}

// SetConnection attaches the live session used to send commands to the radio.
func (d *Device) SetConnection(conn Connection) {
	d.update(func() {
		d.connection = conn
	})
}

func (d *Device) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ready
}

func (d *Device) Status() meshtastic.DeviceStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Device) Connection() (Connection, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connection, d.connection != nil
}

// MyNodeNum is the node number of the radio itself, zero until it has reported in.
func (d *Device) MyNodeNum() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hardware.GetMyNodeNum()
}

func (d *Device) ActivePage() Page {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.activePage
}

func (d *Device) ActiveChat() ChatRef {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.activeChat
}

// disconnect detaches and closes the connection, if any.
func (d *Device) disconnect() error {
	d.mu.Lock()
	conn := d.connection
	d.connection = nil
	d.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Disconnect()
}
