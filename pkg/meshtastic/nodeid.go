package meshtastic

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeID is the 32-bit address of a radio on the mesh.
type NodeID uint32

const (
	BROADCAST_ID NodeID = 0xFFFFFFFF
)

// String returns the node ID in the "!abcd1234" form used by the firmware and apps.
func (n NodeID) String() string {
	return fmt.Sprintf("!%08x", uint32(n))
}

// DefaultLongName returns the name the firmware assigns to a node that has not set one.
func (n NodeID) DefaultLongName() string {
	return fmt.Sprintf("Meshtastic %04x", uint32(n)&0xFFFF)
}

// DefaultShortName returns the last four hex digits of the node ID.
func (n NodeID) DefaultShortName() string {
	return fmt.Sprintf("%04x", uint32(n)&0xFFFF)
}

func (n NodeID) IsBroadcast() bool {
	return n == BROADCAST_ID
}

// ParseNodeID accepts "!abcd1234", "0xabcd1234", "abcd1234" or a decimal node number.
func ParseNodeID(s string) (NodeID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty node id")
	}
	switch {
	case strings.HasPrefix(s, "!"):
		return parseHexNodeID(s[1:])
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		return parseHexNodeID(s[2:])
	}
	if len(s) == 8 {
		if id, err := parseHexNodeID(s); err == nil {
			return id, nil
		}
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid node id %q: %w", s, err)
	}
	return NodeID(v), nil
}

func parseHexNodeID(s string) (NodeID, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid node id %q: %w", s, err)
	}
	return NodeID(v), nil
}
