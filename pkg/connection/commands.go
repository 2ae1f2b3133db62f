package connection

import (
	"context"
	"fmt"

	"github.com/jellydator/ttlcache/v3"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	pb "github.com/kabili207/meshtastic-go/core/proto"
	"google.golang.org/protobuf/proto"
)

// SendText queues a text message and records it in the matching chat. The
// returned packet id is used to match the delivery acknowledgement.
func (c *Connection) SendText(ctx context.Context, text string, to meshtastic.NodeID, channel uint32, wantAck bool) (uint32, error) {
	if len(text) > meshtastic.MaxTextLength {
		return 0, fmt.Errorf("%d bytes: %w", len(text), ErrMessageTooLong)
	}

	myNum := c.dev.MyNodeNum()
	packet := &pb.MeshPacket{
		From:    myNum,
		To:      uint32(to),
		Channel: channel,
		Id:      newPacketID(),
		WantAck: wantAck,
		PayloadVariant: &pb.MeshPacket_Decoded{Decoded: &pb.Data{
			Portnum: pb.PortNum_TEXT_MESSAGE_APP,
			Payload: []byte(text),
		}},
	}

	chat := chatFor(packet, myNum)
	if wantAck {
		c.pending.Set(packet.Id, chat, ttlcache.DefaultTTL)
	}

	if err := c.send(ctx, &pb.ToRadio{PayloadVariant: &pb.ToRadio_Packet{Packet: packet}}); err != nil {
		c.pending.Delete(packet.Id)
		return 0, fmt.Errorf("send text: %w", err)
	}

	msg := &device.MessageWithAck{Packet: packet, Text: text, Received: c.opts.Now()}
	if c.store(chat, msg) {
		c.publishMessage(chat, msg)
	}
	return packet.Id, nil
}

// SetOwner changes the radio's user and updates the local node entry.
func (c *Connection) SetOwner(ctx context.Context, user *pb.User) error {
	err := c.sendAdmin(ctx, &pb.AdminMessage{PayloadVariant: &pb.AdminMessage_SetOwner{SetOwner: user}})
	if err != nil {
		return fmt.Errorf("set owner: %w", err)
	}
	c.dev.AddUser(device.UserPacket{
		Packet: &pb.MeshPacket{From: c.dev.MyNodeNum()},
		Data:   user,
	})
	return nil
}

func (c *Connection) SetConfig(ctx context.Context, cfg *pb.Config) error {
	err := c.sendAdmin(ctx, &pb.AdminMessage{PayloadVariant: &pb.AdminMessage_SetConfig{SetConfig: cfg}})
	if err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	return c.dev.SetConfig(cfg)
}

func (c *Connection) SetModuleConfig(ctx context.Context, cfg *pb.ModuleConfig) error {
	err := c.sendAdmin(ctx, &pb.AdminMessage{PayloadVariant: &pb.AdminMessage_SetModuleConfig{SetModuleConfig: cfg}})
	if err != nil {
		return fmt.Errorf("set module config: %w", err)
	}
	return c.dev.SetModuleConfig(cfg)
}

func (c *Connection) SetChannel(ctx context.Context, ch *pb.Channel) error {
	err := c.sendAdmin(ctx, &pb.AdminMessage{PayloadVariant: &pb.AdminMessage_SetChannel{SetChannel: ch}})
	if err != nil {
		return fmt.Errorf("set channel: %w", err)
	}
	c.dev.AddChannel(device.Channel{Config: ch})
	return nil
}

// Reboot asks the radio to restart after the given number of seconds.
func (c *Connection) Reboot(ctx context.Context, seconds int32) error {
	err := c.sendAdmin(ctx, &pb.AdminMessage{PayloadVariant: &pb.AdminMessage_RebootSeconds{RebootSeconds: seconds}})
	if err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}

// sendAdmin addresses an admin message to the radio itself.
func (c *Connection) sendAdmin(ctx context.Context, msg *pb.AdminMessage) error {
	myNum := c.dev.MyNodeNum()
	if myNum == 0 {
		return ErrNotConfigured
	}

	payload, err := proto.Marshal(msg)
	if err != nil {
		return err
	}

	packet := &pb.MeshPacket{
		From:    myNum,
		To:      myNum,
		Id:      newPacketID(),
		WantAck: true,
		PayloadVariant: &pb.MeshPacket_Decoded{Decoded: &pb.Data{
			Portnum:      pb.PortNum_ADMIN_APP,
			Payload:      payload,
			WantResponse: true,
		}},
	}
	return c.send(ctx, &pb.ToRadio{PayloadVariant: &pb.ToRadio_Packet{Packet: packet}})
}
