package routes

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kabili207/mesh-web-client/internal/web/components"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"github.com/kabili207/mesh-web-client/pkg/validation"
	pb "github.com/kabili207/meshtastic-go/core/proto"
)

// adminChannel is reserved for remote administration and never shown as a chat.
const adminChannel = "admin"

func (wr *WebRouter) messagesPage(w http.ResponseWriter, r *http.Request) {
	dev, ok := wr.device(w, r)
	if !ok {
		return
	}
	chat := dev.ActiveChat()
	if q := r.URL.Query().Get("chat"); q != "" {
		if c, err := device.ParseChatRef(q); err == nil {
			chat = c
		}
	}
	dev.SetActivePage(device.PageMessages)
	dev.SetActiveChat(chat)

	wr.renderMessages(w, r, http.StatusOK, dev, chat, "", "")
}

func (wr *WebRouter) renderMessages(w http.ResponseWriter, r *http.Request, status int, dev *device.Device, chat device.ChatRef, draft, errMsg string) {
	layout := wr.layout(w, r, "Messages", dev)
	snap := dev.Snapshot()
	data := components.MessagesPageData{
		Layout:   layout,
		Channels: channelLinks(snap, chat),
		Direct:   directLinks(snap, chat),
		Chat:     chatData(snap, chat),
	}
	data.Chat.Draft = draft
	data.Chat.Error = errMsg
	wr.render(w, r, status, components.MessagesPage(data), "messages")
}

func (wr *WebRouter) sendMessage(w http.ResponseWriter, r *http.Request) {
	dev, ok := wr.device(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var form validation.MessageForm
	err := validation.DecodeAndValidate(&form, r.PostForm)
	chat, chatErr := device.ParseChatRef(form.Chat)
	if chatErr != nil {
		chat = dev.ActiveChat()
	}
	if err != nil {
		var fe validation.FieldErrors
		msg := "Invalid message"
		if errors.As(err, &fe) {
			msg = fe.Error()
		}
		wr.renderMessages(w, r, http.StatusUnprocessableEntity, dev, chat, form.Text, msg)
		return
	}
	if chatErr != nil {
		wr.renderMessages(w, r, http.StatusUnprocessableEntity, dev, chat, form.Text, chatErr.Error())
		return
	}

	conn, ok := dev.Connection()
	if !ok {
		wr.renderMessages(w, r, http.StatusConflict, dev, chat, form.Text, device.ErrNoConnection.Error())
		return
	}

	to, channel := meshtastic.BROADCAST_ID, chat.ID
	if chat.Kind == device.ChatDirect {
		to, channel = meshtastic.NodeID(chat.ID), 0
	}
	if _, err := conn.SendText(r.Context(), form.Text, to, channel, true); err != nil {
		wr.log.Error("error sending message", "device", dev.ID, "chat", chat.String(), "error", err)
		wr.renderMessages(w, r, http.StatusBadGateway, dev, chat, form.Text, err.Error())
		return
	}
	http.Redirect(w, r, deviceURL(dev, "messages")+"?chat="+url.QueryEscape(chat.String()), http.StatusSeeOther)
}

// visibleChannel reports whether a channel is listed as a chat.
func visibleChannel(ch device.Channel) bool {
	return ch.Config.GetRole() != pb.Channel_DISABLED && ch.Config.GetSettings().GetName() != adminChannel
}

func channelLinks(snap device.Snapshot, active device.ChatRef) []components.ChatLink {
	links := []components.ChatLink{}
	for _, ch := range snap.Channels {
		if !visibleChannel(ch) {
			continue
		}
		ref := device.ChannelChat(uint32(ch.Index()))
		links = append(links, components.ChatLink{
			Ref:    ref.String(),
			Title:  ch.Name(),
			Active: ref == active,
			Count:  len(ch.Messages),
		})
	}
	return links
}

// directLinks lists every known node except the radio itself, plus peers
// that only appear in a message thread.
func directLinks(snap device.Snapshot, active device.ChatRef) []components.ChatLink {
	myNum := snap.MyNodeNum()
	seen := map[uint32]bool{myNum: true}
	links := []components.ChatLink{}
	add := func(num uint32, title string) {
		seen[num] = true
		ref := device.DirectChat(num)
		links = append(links, components.ChatLink{
			Ref:    ref.String(),
			Title:  title,
			Active: ref == active,
			Count:  len(snap.DirectMessages[num]),
		})
	}
	for _, n := range snap.Nodes {
		num := uint32(n.Num())
		if seen[num] {
			continue
		}
		add(num, n.LongName())
	}
	for num := range snap.DirectMessages {
		if !seen[num] {
			add(num, meshtastic.NodeID(num).DefaultLongName())
		}
	}
	components.SortChatLinks(links)
	return links
}

func chatTitle(snap device.Snapshot, chat device.ChatRef) string {
	if chat.Kind == device.ChatDirect {
		if n, ok := snap.Node(chat.ID); ok {
			return n.LongName()
		}
		return meshtastic.NodeID(chat.ID).DefaultLongName()
	}
	if ch, ok := snap.Channel(int32(chat.ID)); ok {
		return ch.Name()
	}
	return fmt.Sprintf("Channel: %d", chat.ID)
}

func chatData(snap device.Snapshot, chat device.ChatRef) components.ChatData {
	canSend := snap.Connected && snap.Ready
	if chat.Kind == device.ChatChannel {
		ch, ok := snap.Channel(int32(chat.ID))
		canSend = canSend && ok && visibleChannel(ch)
	}
	return components.ChatData{
		DeviceID:  snap.ID,
		Ref:       chat.String(),
		Title:     chatTitle(snap, chat),
		Groups:    groupMessages(snap, snap.Messages(chat)),
		CanSend:   canSend,
		MaxLength: meshtastic.MaxTextLength,
	}
}

// groupMessages folds consecutive messages from the same sender together.
func groupMessages(snap device.Snapshot, msgs []*device.MessageWithAck) []components.MessageGroup {
	myNum := snap.MyNodeNum()
	groups := []components.MessageGroup{}
	for _, m := range msgs {
		from := m.From()
		data := components.MessageData{
			ID:       m.ID(),
			Text:     m.Text,
			Ack:      m.Ack,
			Received: m.Received,
		}
		if n := len(groups); n > 0 && groups[n-1].From == from.String() {
			groups[n-1].Messages = append(groups[n-1].Messages, data)
			continue
		}
		name := from.DefaultLongName()
		if node, ok := snap.Node(uint32(from)); ok {
			name = node.LongName()
		}
		groups = append(groups, components.MessageGroup{
			From:     from.String(),
			FromName: name,
			Mine:     uint32(from) == myNum,
			Messages: []components.MessageData{data},
		})
	}
	return groups
}
