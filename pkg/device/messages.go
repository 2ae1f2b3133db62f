package device

import (
	"sort"
)

// AddChannel inserts a channel or replaces the settings of the channel with the
// same index. The existing message history is kept on replace.
func (d *Device) AddChannel(channel Channel) {
	incoming := &Channel{
		Config:          clone(channel.Config),
		LastInteraction: channel.LastInteraction,
		Messages:        channel.Messages,
	}
	d.update(func() {
		index := incoming.Config.GetIndex()
		if existing, ok := d.channels[index]; ok {
			incoming.Messages = existing.Messages
		}
		d.channels[index] = incoming
	})
}

// AddMessage appends msg to the channel its packet was received on. It reports
// false, and drops the message, when the device has no such channel.
func (d *Device) AddMessage(msg *MessageWithAck) bool {
	index := int32(msg.Packet.GetChannel())
	added := false
	d.update(func() {
		channel, ok := d.channels[index]
		if !ok {
			return
		}
		channel.Messages = append(channel.Messages, msg)
		if msg.Received.After(channel.LastInteraction) {
			channel.LastInteraction = msg.Received
		}
		added = true
	})
	return added
}

// AckMessage marks the message with messageID on the given channel as delivered.
// It reports whether a message was found.
func (d *Device) AckMessage(channelIndex uint32, messageID uint32) bool {
	found := false
	d.update(func() {
		channel, ok := d.channels[int32(channelIndex)]
		if !ok {
			return
		}
		found = ackIn(channel.Messages, messageID)
	})
	return found
}

// AddDirectMessage appends msg to the direct conversation with peer.
func (d *Device) AddDirectMessage(peer uint32, msg *MessageWithAck) {
	d.update(func() {
		d.direct[peer] = append(d.direct[peer], msg)
	})
}

// AckDirectMessage marks a message in the conversation with peer as delivered.
func (d *Device) AckDirectMessage(peer uint32, messageID uint32) bool {
	found := false
	d.update(func() {
		found = ackIn(d.direct[peer], messageID)
	})
	return found
}

func ackIn(messages []*MessageWithAck, messageID uint32) bool {
	for _, m := range messages {
		if m.ID() == messageID {
			m.Ack = true
			return true
		}
	}
	return false
}

func copyMessages(messages []*MessageWithAck) []*MessageWithAck {
	out := make([]*MessageWithAck, len(messages))
	for i, m := range messages {
		c := *m
		out[i] = &c
	}
	return out
}

func (c *Channel) copy() Channel {
	return Channel{
		Config:          clone(c.Config),
		LastInteraction: c.LastInteraction,
		Messages:        copyMessages(c.Messages),
	}
}

// Channel returns a copy of the channel with the given index.
func (d *Device) Channel(index int32) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ch, ok := d.channels[index]
	if !ok {
		return Channel{}, false
	}
	return ch.copy(), true
}

// Channels returns copies of all channels ordered by index.
func (d *Device) Channels() []Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.channelsLocked()
}

func (d *Device) channelsLocked() []Channel {
	channels := make([]Channel, 0, len(d.channels))
	for _, ch := range d.channels {
		channels = append(channels, ch.copy())
	}
	sort.Slice(channels, func(i, j int) bool {
		return channels[i].Index() < channels[j].Index()
	})
	return channels
}

// DirectMessages returns a copy of the conversation with peer.
func (d *Device) DirectMessages(peer uint32) []*MessageWithAck {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyMessages(d.direct[peer])
}
