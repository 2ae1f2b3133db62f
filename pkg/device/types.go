package device

import (
	"context"
	"fmt"
	"time"

	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	pb "github.com/kabili207/meshtastic-go/core/proto"
	"google.golang.org/protobuf/proto"
)

// Page is the section of the UI a device is showing.
type Page string

const (
	PageMessages   Page = "messages"
	PageMap        Page = "map"
	PageExtensions Page = "extensions"
	PageConfig     Page = "config"
	PageChannels   Page = "channels"
	PageInfo       Page = "info"
)

func (p Page) Valid() bool {
	switch p {
	case PageMessages, PageMap, PageExtensions, PageConfig, PageChannels, PageInfo:
		return true
	}
	return false
}

type ChatKind int

const (
	ChatChannel ChatKind = iota
	ChatDirect
)

// ChatRef identifies a conversation: a channel by index or a direct thread by peer node number.
type ChatRef struct {
	Kind ChatKind
	ID   uint32
}

func ChannelChat(index uint32) ChatRef { return ChatRef{Kind: ChatChannel, ID: index} }

func DirectChat(peer uint32) ChatRef { return ChatRef{Kind: ChatDirect, ID: peer} }

// String returns the form used in URLs: "ch-0" or "dm-!abcd1234".
func (c ChatRef) String() string {
	if c.Kind == ChatDirect {
		return "dm-" + meshtastic.NodeID(c.ID).String()
	}
	return fmt.Sprintf("ch-%d", c.ID)
}

// ParseChatRef parses the output of ChatRef.String.
func ParseChatRef(s string) (ChatRef, error) {
	var idx uint32
	if _, err := fmt.Sscanf(s, "ch-%d", &idx); err == nil {
		return ChannelChat(idx), nil
	}
	if len(s) > 3 && s[:3] == "dm-" {
		id, err := meshtastic.ParseNodeID(s[3:])
		if err != nil {
			return ChatRef{}, err
		}
		return DirectChat(uint32(id)), nil
	}
	return ChatRef{}, fmt.Errorf("invalid chat %q", s)
}

// MessageWithAck is a text packet plus its delivery state. The packet is never
// modified once stored; only Ack changes.
type MessageWithAck struct {
	Packet   *pb.MeshPacket
	Text     string
	Ack      bool
	Received time.Time
}

func (m *MessageWithAck) ID() uint32 {
	return m.Packet.GetId()
}

func (m *MessageWithAck) From() meshtastic.NodeID {
	return meshtastic.NodeID(m.Packet.GetFrom())
}

type Channel struct {
	Config          *pb.Channel
	LastInteraction time.Time
	Messages        []*MessageWithAck
}

func (c Channel) Index() int32 {
	return c.Config.GetIndex()
}

// Name returns the configured name, "Primary" for an unnamed primary channel
// or "Channel: N".
func (c Channel) Name() string {
	if name := c.Config.GetSettings().GetName(); name != "" {
		return name
	}
	if c.Config.GetRole() == pb.Channel_PRIMARY {
		return "Primary"
	}
	return fmt.Sprintf("Channel: %d", c.Config.GetIndex())
}

type Node struct {
	Data               *pb.NodeInfo
	DeviceMetrics      *pb.DeviceMetrics
	EnvironmentMetrics *pb.EnvironmentMetrics
}

func (n Node) Num() meshtastic.NodeID {
	return meshtastic.NodeID(n.Data.GetNum())
}

func (n Node) LongName() string {
	if name := n.Data.GetUser().GetLongName(); name != "" {
		return name
	}
	return n.Num().DefaultLongName()
}

func (n Node) ShortName() string {
	if name := n.Data.GetUser().GetShortName(); name != "" {
		return name
	}
	return n.Num().DefaultShortName()
}

func (n Node) LastHeard() time.Time {
	if n.Data.GetLastHeard() == 0 {
		return time.Time{}
	}
	return time.Unix(int64(n.Data.GetLastHeard()), 0)
}

// PacketEvent is a decoded payload together with the packet that carried it.
// Packet may be nil for data the radio reports about itself.
type PacketEvent[T proto.Message] struct {
	Packet *pb.MeshPacket
	Data   T
}

type (
	TelemetryPacket = PacketEvent[*pb.Telemetry]
	NodeInfoPacket  = PacketEvent[*pb.NodeInfo]
	UserPacket      = PacketEvent[*pb.User]
	PositionPacket  = PacketEvent[*pb.Position]
)

// Connection is the command surface of a live radio session.
type Connection interface {
	SendText(ctx context.Context, text string, to meshtastic.NodeID, channel uint32, wantAck bool) (uint32, error)
	SetOwner(ctx context.Context, user *pb.User) error
	SetConfig(ctx context.Context, cfg *pb.Config) error
	SetModuleConfig(ctx context.Context, cfg *pb.ModuleConfig) error
	SetChannel(ctx context.Context, ch *pb.Channel) error
	Reboot(ctx context.Context, seconds int32) error
	Disconnect() error
}

func clone[T proto.Message](m T) T {
	return proto.Clone(m).(T)
}
