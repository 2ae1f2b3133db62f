package models

import (
	"time"

	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
)

// Message is a text message as kept in the history database. Owner is the
// node number of the radio that sent or received it.
type Message struct {
	ID       int64     `db:"id"`
	Owner    uint32    `db:"owner"`
	Chat     string    `db:"chat"`
	PacketID uint32    `db:"packet_id"`
	FromNode uint32    `db:"from_node"`
	ToNode   uint32    `db:"to_node"`
	Channel  uint32    `db:"channel"`
	Text     string    `db:"text"`
	Acked    bool      `db:"acked"`
	Received time.Time `db:"received"`
}

func (m *Message) From() meshtastic.NodeID {
	return meshtastic.NodeID(m.FromNode)
}
