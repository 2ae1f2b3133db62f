package models

import (
	"time"

	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
)

// NodeInfo is the last known state of a mesh node as seen by one radio.
type NodeInfo struct {
	Owner        uint32     `db:"owner"`
	NodeNum      uint32     `db:"node_num"`
	LongName     string     `db:"long_name"`
	ShortName    string     `db:"short_name"`
	HwModel      string     `db:"hw_model"`
	Latitude     *float64   `db:"latitude"`
	Longitude    *float64   `db:"longitude"`
	BatteryLevel *int       `db:"battery_level"`
	LastHeard    *time.Time `db:"last_heard"`
}

func (n *NodeInfo) NodeID() meshtastic.NodeID {
	return meshtastic.NodeID(n.NodeNum)
}

func (n *NodeInfo) GetSafeLongName() string {
	if n.LongName != "" {
		return n.LongName
	}
	return n.NodeID().DefaultLongName()
}

func (n *NodeInfo) GetSafeShortName() string {
	if n.ShortName != "" {
		return n.ShortName
	}
	return n.NodeID().DefaultShortName()
}

// HasLocation returns true if the node has reported a position.
func (n *NodeInfo) HasLocation() bool {
	return n.Latitude != nil && n.Longitude != nil
}
