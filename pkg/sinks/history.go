package sinks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kabili207/mesh-web-client/pkg/connection"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"github.com/kabili207/mesh-web-client/pkg/store"
	pb "github.com/kabili207/meshtastic-go/core/proto"
)

const defaultHistoryLimit = 100

// History persists messages and nodes, and restores recent messages into a
// device once it has finished configuring.
type History struct {
	stores store.Stores
	limit  int
	log    *slog.Logger
}

func NewHistory(stores store.Stores, limit int, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &History{stores: stores, limit: limit, log: logger.With("component", "history")}
}

func (h *History) HandleEvent(_ context.Context, ev connection.Event) error {
	if ev.Owner == 0 {
		return nil
	}
	switch ev.Kind {
	case connection.EventMessage:
		if ev.Message == nil {
			return nil
		}
		if err := h.stores.Messages.Save(messageModel(ev.Owner, ev.Chat, ev.Message)); err != nil {
			return fmt.Errorf("save message: %w", err)
		}
	case connection.EventAck:
		if err := h.stores.Messages.MarkAcked(uint32(ev.Owner), ev.PacketID); err != nil {
			return fmt.Errorf("mark acked: %w", err)
		}
	case connection.EventNode:
		if ev.Node == nil {
			return nil
		}
		if err := h.stores.Nodes.Save(nodeModel(ev.Owner, *ev.Node)); err != nil {
			return fmt.Errorf("save node: %w", err)
		}
	case connection.EventConfigured:
		if ev.Device == nil {
			return nil
		}
		if err := h.RestoreNodes(ev.Device, ev.Owner); err != nil {
			return err
		}
		return h.Replay(ev.Device, ev.Owner)
	}
	return nil
}

// RestoreNodes adds stored nodes the radio did not report in its node
// database, so direct message threads keep their names.
func (h *History) RestoreNodes(dev *device.Device, owner meshtastic.NodeID) error {
	nodes, err := h.stores.Nodes.GetAll(uint32(owner))
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}
	restored := 0
	for _, n := range nodes {
		if _, ok := dev.Node(n.NodeNum); ok {
			continue
		}
		dev.AddNodeInfo(device.NodeInfoPacket{Data: nodeInfo(n)})
		restored++
	}
	if restored > 0 {
		h.log.Debug("restored nodes", "owner", owner.String(), "nodes", restored)
	}
	return nil
}

// Replay adds stored messages that the device does not hold yet.
func (h *History) Replay(dev *device.Device, owner meshtastic.NodeID) error {
	chats, err := h.stores.Messages.Chats(uint32(owner))
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}

	snap := dev.Snapshot()
	restored := 0
	for _, name := range chats {
		chat, err := device.ParseChatRef(name)
		if err != nil {
			h.log.Warn("skipping stored chat", "chat", name, "error", err)
			continue
		}
		if chat.Kind == device.ChatChannel {
			if _, ok := snap.Channel(int32(chat.ID)); !ok {
				continue
			}
		}

		have := make(map[uint32]struct{})
		for _, m := range snap.Messages(chat) {
			have[m.ID()] = struct{}{}
		}

		msgs, err := h.stores.Messages.Recent(uint32(owner), name, h.limit)
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		for _, m := range msgs {
			if _, ok := have[m.PacketID]; ok {
				continue
			}
			msg := &device.MessageWithAck{
				Packet: &pb.MeshPacket{
					Id:      m.PacketID,
					From:    m.FromNode,
					To:      m.ToNode,
					Channel: m.Channel,
					PayloadVariant: &pb.MeshPacket_Decoded{Decoded: &pb.Data{
						Portnum: pb.PortNum_TEXT_MESSAGE_APP,
						Payload: []byte(m.Text),
					}},
				},
				Text:     m.Text,
				Ack:      m.Acked,
				Received: m.Received,
			}
			if chat.Kind == device.ChatDirect {
				dev.AddDirectMessage(chat.ID, msg)
			} else {
				dev.AddMessage(msg)
			}
			restored++
		}
	}
	if restored > 0 {
		h.log.Info("restored message history", "owner", owner.String(), "messages", restored, "chats", strings.Join(chats, ","))
	}
	return nil
}
