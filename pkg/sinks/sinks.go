package sinks

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/kabili207/mesh-web-client/pkg/connection"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"github.com/kabili207/mesh-web-client/pkg/models"
	pb "github.com/kabili207/meshtastic-go/core/proto"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// IgnoreNodes drops events originating from any of the listed nodes before
// they reach next. Acks and configuration events always pass.
func IgnoreNodes(next connection.EventSink, ignored []meshtastic.NodeID) connection.EventSink {
	if len(ignored) == 0 {
		return next
	}
	set := make(map[meshtastic.NodeID]struct{}, len(ignored))
	for _, id := range ignored {
		set[id] = struct{}{}
	}
	return connection.SinkFunc(func(ctx context.Context, ev connection.Event) error {
		if _, ok := set[eventSource(ev)]; ok {
			return nil
		}
		return next.HandleEvent(ctx, ev)
	})
}

func eventSource(ev connection.Event) meshtastic.NodeID {
	switch ev.Kind {
	case connection.EventMessage:
		if ev.Message != nil {
			return ev.Message.From()
		}
	case connection.EventTelemetry:
		if ev.Telemetry != nil {
			return meshtastic.NodeID(ev.Telemetry.Packet.GetFrom())
		}
	case connection.EventNode:
		if ev.Node != nil {
			return ev.Node.Num()
		}
	}
	return 0
}

type messagePayload struct {
	ID       uint32    `json:"id"`
	Chat     string    `json:"chat"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Channel  uint32    `json:"channel"`
	Text     string    `json:"text"`
	Received time.Time `json:"received"`
}

type ackPayload struct {
	ID   uint32 `json:"id"`
	Chat string `json:"chat"`
}

type telemetryPayload struct {
	From      string          `json:"from"`
	Telemetry json.RawMessage `json:"telemetry"`
}

type nodePayload struct {
	Num       string          `json:"num"`
	LongName  string          `json:"long_name"`
	ShortName string          `json:"short_name"`
	Info      json.RawMessage `json:"info"`
}

var marshalOpts = protojson.MarshalOptions{UseProtoNames: true}

// eventPayload renders ev as JSON. ok is false for events that carry nothing
// worth publishing.
func eventPayload(ev connection.Event) (payload []byte, ok bool, err error) {
	var v any
	switch ev.Kind {
	case connection.EventMessage:
		if ev.Message == nil {
			return nil, false, nil
		}
		p := ev.Message.Packet
		v = messagePayload{
			ID:       p.GetId(),
			Chat:     ev.Chat.String(),
			From:     meshtastic.NodeID(p.GetFrom()).String(),
			To:       meshtastic.NodeID(p.GetTo()).String(),
			Channel:  p.GetChannel(),
			Text:     ev.Message.Text,
			Received: ev.Message.Received.UTC(),
		}
	case connection.EventAck:
		v = ackPayload{ID: ev.PacketID, Chat: ev.Chat.String()}
	case connection.EventTelemetry:
		if ev.Telemetry == nil {
			return nil, false, nil
		}
		raw, err := marshalOpts.Marshal(ev.Telemetry.Data)
		if err != nil {
			return nil, false, err
		}
		v = telemetryPayload{
			From:      meshtastic.NodeID(ev.Telemetry.Packet.GetFrom()).String(),
			Telemetry: raw,
		}
	case connection.EventNode:
		if ev.Node == nil {
			return nil, false, nil
		}
		raw, err := marshalOpts.Marshal(ev.Node.Data)
		if err != nil {
			return nil, false, err
		}
		v = nodePayload{
			Num:       ev.Node.Num().String(),
			LongName:  ev.Node.LongName(),
			ShortName: ev.Node.ShortName(),
			Info:      raw,
		}
	default:
		return nil, false, nil
	}
	payload, err = json.Marshal(v)
	return payload, err == nil, err
}

func messageModel(owner meshtastic.NodeID, chat device.ChatRef, msg *device.MessageWithAck) *models.Message {
	p := msg.Packet
	return &models.Message{
		Owner:    uint32(owner),
		Chat:     chat.String(),
		PacketID: p.GetId(),
		FromNode: p.GetFrom(),
		ToNode:   p.GetTo(),
		Channel:  p.GetChannel(),
		Text:     msg.Text,
		Acked:    msg.Ack,
		Received: msg.Received,
	}
}

func nodeModel(owner meshtastic.NodeID, node device.Node) *models.NodeInfo {
	user := node.Data.GetUser()
	info := &models.NodeInfo{
		Owner:     uint32(owner),
		NodeNum:   uint32(node.Num()),
		LongName:  user.GetLongName(),
		ShortName: user.GetShortName(),
	}
	if user != nil {
		info.HwModel = user.GetHwModel().String()
	}
	if pos := node.Data.GetPosition(); pos.GetLatitudeI() != 0 || pos.GetLongitudeI() != 0 {
		lat := float64(pos.GetLatitudeI()) * 1e-7
		lon := float64(pos.GetLongitudeI()) * 1e-7
		info.Latitude, info.Longitude = &lat, &lon
	}
	if node.DeviceMetrics != nil && hasField(node.DeviceMetrics, "battery_level") {
		battery := int(node.DeviceMetrics.GetBatteryLevel())
		info.BatteryLevel = &battery
	}
	if heard := node.LastHeard(); !heard.IsZero() {
		info.LastHeard = &heard
	}
	return info
}

// hasField reports whether the named field was populated on m.
func hasField(m proto.Message, name protoreflect.Name) bool {
	r := m.ProtoReflect()
	fd := r.Descriptor().Fields().ByName(name)
	return fd != nil && r.Has(fd)
}

// nodeInfo rebuilds the radio's view of a stored node.
func nodeInfo(n *models.NodeInfo) *pb.NodeInfo {
	info := &pb.NodeInfo{
		Num: n.NodeNum,
		User: &pb.User{
			Id:        n.NodeID().String(),
			LongName:  n.GetSafeLongName(),
			ShortName: n.GetSafeShortName(),
			HwModel:   pb.HardwareModel(pb.HardwareModel_value[n.HwModel]),
		},
	}
	if n.HasLocation() {
		info.Position = &pb.Position{
			LatitudeI:  proto.Int32(int32(math.Round(*n.Latitude * 1e7))),
			LongitudeI: proto.Int32(int32(math.Round(*n.Longitude * 1e7))),
		}
	}
	if n.LastHeard != nil {
		info.LastHeard = uint32(n.LastHeard.Unix())
	}
	return info
}
