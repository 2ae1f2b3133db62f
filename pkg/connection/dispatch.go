package connection

import (
	"context"
	"errors"

	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	pb "github.com/kabili207/meshtastic-go/core/proto"
	"google.golang.org/protobuf/proto"
)

func (c *Connection) handleFromRadio(ctx context.Context, msg *pb.FromRadio) {
	switch v := msg.GetPayloadVariant().(type) {
	case *pb.FromRadio_MyInfo:
		c.dev.SetHardware(v.MyInfo)
	case *pb.FromRadio_NodeInfo:
		c.dev.AddNodeInfo(device.NodeInfoPacket{Data: v.NodeInfo})
		c.publishNode(v.NodeInfo.GetNum())
	case *pb.FromRadio_Config:
		if err := c.dev.SetConfig(v.Config); err != nil {
			c.log.Debug("ignoring config section", "error", err)
		}
	case *pb.FromRadio_ModuleConfig:
		if err := c.dev.SetModuleConfig(v.ModuleConfig); err != nil {
			c.log.Debug("ignoring module config section", "error", err)
		}
	case *pb.FromRadio_Channel:
		c.dev.AddChannel(device.Channel{Config: v.Channel})
	case *pb.FromRadio_Metadata:
		c.dev.SetMetadata(v.Metadata)
	case *pb.FromRadio_Rebooted:
		c.log.Info("radio rebooted")
		c.dev.SetReady(false)
		c.dev.SetStatus(meshtastic.DeviceRestarting)
		if _, err := c.requestConfig(ctx); err != nil {
			c.log.Warn("config request after reboot failed", "error", err)
		}
	case *pb.FromRadio_ConfigCompleteId:
		c.configComplete(v.ConfigCompleteId)
	case *pb.FromRadio_LogRecord:
		c.log.Debug("radio log", "source", v.LogRecord.GetSource(), "message", v.LogRecord.GetMessage())
	case *pb.FromRadio_Packet:
		c.handlePacket(v.Packet)
	default:
		c.log.Debug("unhandled FromRadio", "variant", variantName(msg))
	}
}

func variantName(msg *pb.FromRadio) string {
	r := msg.ProtoReflect()
	if fd := r.WhichOneof(r.Descriptor().Oneofs().ByName("payload_variant")); fd != nil {
		return string(fd.Name())
	}
	return "none"
}

func (c *Connection) configComplete(id uint32) {
	c.mu.Lock()
	if id != c.configID {
		c.mu.Unlock()
		c.log.Debug("config complete for another request", "id", id)
		return
	}
	done := c.configDone
	c.configDone = nil
	c.mu.Unlock()

	c.dev.SetStatus(meshtastic.DeviceConfigured)
	c.dev.SetReady(true)
	c.log.Info("radio configured", "node", meshtastic.NodeID(c.dev.MyNodeNum()).String())
	c.publish(Event{Kind: EventConfigured})
	if done != nil {
		close(done)
	}
}

func (c *Connection) handlePacket(p *pb.MeshPacket) {
	data := p.GetDecoded()
	if data == nil {
		return
	}

	switch data.GetPortnum() {
	case pb.PortNum_TEXT_MESSAGE_APP:
		c.handleText(p, string(data.GetPayload()))
	case pb.PortNum_ROUTING_APP:
		var routing pb.Routing
		if err := proto.Unmarshal(data.GetPayload(), &routing); err != nil {
			c.log.Warn("bad routing payload", "error", err, "from", meshtastic.NodeID(p.GetFrom()).String())
			return
		}
		c.handleRouting(data.GetRequestId(), &routing)
	case pb.PortNum_POSITION_APP:
		var pos pb.Position
		if err := proto.Unmarshal(data.GetPayload(), &pos); err != nil {
			c.log.Warn("bad position payload", "error", err, "from", meshtastic.NodeID(p.GetFrom()).String())
			return
		}
		c.dev.AddPosition(device.PositionPacket{Packet: p, Data: &pos})
		c.publishNode(p.GetFrom())
	case pb.PortNum_NODEINFO_APP:
		var user pb.User
		if err := proto.Unmarshal(data.GetPayload(), &user); err != nil {
			c.log.Warn("bad user payload", "error", err, "from", meshtastic.NodeID(p.GetFrom()).String())
			return
		}
		c.dev.AddUser(device.UserPacket{Packet: p, Data: &user})
		c.publishNode(p.GetFrom())
	case pb.PortNum_TELEMETRY_APP:
		var tel pb.Telemetry
		if err := proto.Unmarshal(data.GetPayload(), &tel); err != nil {
			c.log.Warn("bad telemetry payload", "error", err, "from", meshtastic.NodeID(p.GetFrom()).String())
			return
		}
		packet := device.TelemetryPacket{Packet: p, Data: &tel}
		err := c.dev.SetMetrics(packet)
		if err != nil && !errors.Is(err, device.ErrUnsupportedVariant) {
			c.log.Warn("error storing telemetry", "error", err)
		}
		if err == nil {
			c.publish(Event{Kind: EventTelemetry, Telemetry: &packet})
		}
	default:
		c.log.Debug("ignoring packet", "port", data.GetPortnum().String(), "from", meshtastic.NodeID(p.GetFrom()).String())
	}
}

// chatFor returns the conversation a text packet belongs to, seen from the
// radio identified by myNum.
func chatFor(p *pb.MeshPacket, myNum uint32) device.ChatRef {
	if meshtastic.NodeID(p.GetTo()).IsBroadcast() {
		return device.ChannelChat(p.GetChannel())
	}
	if p.GetFrom() == myNum {
		return device.DirectChat(p.GetTo())
	}
	return device.DirectChat(p.GetFrom())
}

func (c *Connection) handleText(p *pb.MeshPacket, text string) {
	msg := &device.MessageWithAck{
		Packet:   p,
		Text:     text,
		Received: c.opts.Now(),
	}
	chat := chatFor(p, c.dev.MyNodeNum())
	if !c.store(chat, msg) {
		c.log.Warn("dropping message for unknown channel", "channel", p.GetChannel(), "from", meshtastic.NodeID(p.GetFrom()).String())
		return
	}
	c.publishMessage(chat, msg)
}

// publishMessage hands sinks their own copy of msg. The stored message is
// updated in place when its ack arrives.
func (c *Connection) publishMessage(chat device.ChatRef, msg *device.MessageWithAck) {
	m := *msg
	c.publish(Event{Kind: EventMessage, Chat: chat, Message: &m})
}

func (c *Connection) store(chat device.ChatRef, msg *device.MessageWithAck) bool {
	if chat.Kind == device.ChatDirect {
		c.dev.AddDirectMessage(chat.ID, msg)
		return true
	}
	return c.dev.AddMessage(msg)
}

func (c *Connection) handleRouting(requestID uint32, routing *pb.Routing) {
	if requestID == 0 {
		return
	}
	item, ok := c.pending.GetAndDelete(requestID)
	if !ok {
		return
	}
	chat := item.Value()

	if reason := routing.GetErrorReason(); reason != pb.Routing_NONE {
		c.log.Warn("message not delivered", "id", requestID, "reason", reason.String())
		return
	}

	var acked bool
	if chat.Kind == device.ChatDirect {
		acked = c.dev.AckDirectMessage(chat.ID, requestID)
	} else {
		acked = c.dev.AckMessage(chat.ID, requestID)
	}
	if acked {
		c.publish(Event{Kind: EventAck, Chat: chat, PacketID: requestID})
	}
}

func (c *Connection) publishNode(num uint32) {
	if node, ok := c.dev.Node(num); ok {
		c.publish(Event{Kind: EventNode, Node: &node})
	}
}
