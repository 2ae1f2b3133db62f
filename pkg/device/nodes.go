package device

import (
	"fmt"
	"sort"

	pb "github.com/kabili207/meshtastic-go/core/proto"
)

func newNode(data *pb.NodeInfo) *Node {
	return &Node{
		Data:               data,
		DeviceMetrics:      &pb.DeviceMetrics{},
		EnvironmentMetrics: &pb.EnvironmentMetrics{},
	}
}

// touch refreshes lastHeard from the packet receive time. Caller holds d.mu.
func touch(node *Node, packet *pb.MeshPacket) {
	if rx := packet.GetRxTime(); rx != 0 {
		node.Data.LastHeard = rx
	}
}

// SetMetrics records a telemetry report, creating the sending node if it is
// not known yet. Device and environment metrics replace the previous values;
// other telemetry kinds still mark the node as heard but return
// ErrUnsupportedVariant.
func (d *Device) SetMetrics(metrics TelemetryPacket) error {
	from := metrics.Packet.GetFrom()
	var err error

	d.update(func() {
		node, ok := d.nodes[from]
		if !ok {
			node = newNode(&pb.NodeInfo{
				Num:       from,
				Snr:       metrics.Packet.GetRxSnr(),
				LastHeard: uint32(d.now().Unix()),
			})
			d.nodes[from] = node
		}
		touch(node, metrics.Packet)

		switch v := metrics.Data.GetVariant().(type) {
		case *pb.Telemetry_DeviceMetrics:
			node.DeviceMetrics = clone(v.DeviceMetrics)
		case *pb.Telemetry_EnvironmentMetrics:
			node.EnvironmentMetrics = clone(v.EnvironmentMetrics)
		default:
			err = fmt.Errorf("telemetry %T: %w", v, ErrUnsupportedVariant)
		}
	})
	return err
}

// AddNodeInfo replaces the data of a known node or adds a new one.
func (d *Device) AddNodeInfo(info NodeInfoPacket) {
	data := clone(info.Data)
	d.update(func() {
		node, ok := d.nodes[data.GetNum()]
		if ok {
			node.Data = data
		} else {
			node = newNode(data)
			d.nodes[data.GetNum()] = node
		}
		if data.GetDeviceMetrics() != nil {
			node.DeviceMetrics = clone(data.GetDeviceMetrics())
		}
		touch(node, info.Packet)
	})
}

// AddUser sets the user of the sending node, creating the node if needed.
func (d *Device) AddUser(user UserPacket) {
	from := user.Packet.GetFrom()
	data := clone(user.Data)
	d.update(func() {
		node, ok := d.nodes[from]
		if ok {
			node.Data.User = data
		} else {
			node = newNode(&pb.NodeInfo{
				Num:  from,
				Snr:  user.Packet.GetRxSnr(),
				User: data,
			})
			d.nodes[from] = node
		}
		touch(node, user.Packet)
	})
}

// AddPosition sets the position of the sending node, creating the node if needed.
func (d *Device) AddPosition(position PositionPacket) {
	from := position.Packet.GetFrom()
	data := clone(position.Data)
	d.update(func() {
		node, ok := d.nodes[from]
		if ok {
			node.Data.Position = data
		} else {
			node = newNode(&pb.NodeInfo{
				Num:      from,
				Position: data,
			})
			d.nodes[from] = node
		}
		touch(node, position.Packet)
	})
}

func (n *Node) copy() Node {
	return Node{
		Data:               clone(n.Data),
		DeviceMetrics:      clone(n.DeviceMetrics),
		EnvironmentMetrics: clone(n.EnvironmentMetrics),
	}
}

// Node returns a copy of the node with the given number.
func (d *Device) Node(num uint32) (Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	node, ok := d.nodes[num]
	if !ok {
		return Node{}, false
	}
	return node.copy(), true
}

// MyNode returns the radio's own entry in its node list.
func (d *Device) MyNode() (Node, bool) {
	return d.Node(d.MyNodeNum())
}

// Nodes returns copies of all known nodes ordered by node number.
func (d *Device) Nodes() []Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nodesLocked()
}

func (d *Device) nodesLocked() []Node {
	nodes := make([]Node, 0, len(d.nodes))
	for _, n := range d.nodes {
		nodes = append(nodes, n.copy())
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Data.GetNum() < nodes[j].Data.GetNum()
	})
	return nodes
}
