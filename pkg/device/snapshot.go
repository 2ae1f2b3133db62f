package device

import (
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	pb "github.com/kabili207/meshtastic-go/core/proto"
)

// Snapshot is a point in time copy of a device, safe to read without locking.
type Snapshot struct {
	ID             uint32
	Ready          bool
	Status         meshtastic.DeviceStatus
	Channels       []Channel
	Config         *pb.LocalConfig
	ModuleConfig   *pb.LocalModuleConfig
	Hardware       *pb.MyNodeInfo
	Metadata       *pb.DeviceMetadata
	Nodes          []Node
	DirectMessages map[uint32][]*MessageWithAck
	Connected      bool
	ActiveChat     ChatRef
	ActivePage     Page
}

func (d *Device) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	direct := make(map[uint32][]*MessageWithAck, len(d.direct))
	for peer, msgs := range d.direct {
		direct[peer] = copyMessages(msgs)
	}

	return Snapshot{
		ID:             d.ID,
		Ready:          d.ready,
		Status:         d.status,
		Channels:       d.channelsLocked(),
		Config:         clone(d.config),
		ModuleConfig:   clone(d.moduleConfig),
		Hardware:       clone(d.hardware),
		Metadata:       clone(d.metadata),
		Nodes:          d.nodesLocked(),
		DirectMessages: direct,
		Connected:      d.connection != nil,
		ActiveChat:     d.activeChat,
		ActivePage:     d.activePage,
	}
}

func (s Snapshot) MyNodeNum() uint32 {
	return s.Hardware.GetMyNodeNum()
}

func (s Snapshot) Node(num uint32) (Node, bool) {
	for _, n := range s.Nodes {
		if n.Data.GetNum() == num {
			return n, true
		}
	}
	return Node{}, false
}

func (s Snapshot) MyNode() (Node, bool) {
	return s.Node(s.MyNodeNum())
}

func (s Snapshot) Channel(index int32) (Channel, bool) {
	for _, ch := range s.Channels {
		if ch.Index() == index {
			return ch, true
		}
	}
	return Channel{}, false
}

// Messages returns the messages of a chat.
func (s Snapshot) Messages(chat ChatRef) []*MessageWithAck {
	if chat.Kind == ChatDirect {
		return s.DirectMessages[chat.ID]
	}
	ch, ok := s.Channel(int32(chat.ID))
	if !ok {
		return nil
	}
	return ch.Messages
}

// Title returns the display name of the radio: its owner's long name when known.
func (s Snapshot) Title() string {
	if node, ok := s.MyNode(); ok {
		return node.LongName()
	}
	if s.MyNodeNum() != 0 {
		return meshtastic.NodeID(s.MyNodeNum()).DefaultLongName()
	}
	return "Connecting..."
}
