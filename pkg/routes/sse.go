package routes

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/kabili207/mesh-web-client/internal/web/components"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/oklog/ulid/v2"
)

const sseHeartbeat = 30 * time.Second

var errDeviceGone = errors.New("device removed")

type fragment struct {
	event string
	comp  templ.Component
}

// deviceSSE streams re-rendered fragments of the page the browser is showing
// whenever the device changes. ?page= and ?chat= select the fragments.
func (wr *WebRouter) deviceSSE(w http.ResponseWriter, r *http.Request) {
	dev, ok := wr.device(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	page := device.Page(query.Get("page"))
	if !page.Valid() {
		page = dev.ActivePage()
	}
	chat := dev.ActiveChat()
	if c, err := device.ParseChatRef(query.Get("chat")); err == nil {
		chat = c
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	notifyCh := wr.registry.Subscribe(dev.ID)
	defer wr.registry.Unsubscribe(notifyCh)

	ctx := r.Context()
	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	sendUpdate := func() error {
		if _, ok := wr.registry.Device(dev.ID); !ok {
			if err := writeSSE(w, "device-removed", fmt.Sprint(dev.ID)); err != nil {
				return err
			}
			flusher.Flush()
			return errDeviceGone
		}

		snap := dev.Snapshot()
		fragments := []fragment{
			{"status-update", components.StatusContent(deviceHeader(snap))},
		}
		switch page {
		case device.PageMessages:
			fragments = append(fragments, fragment{"chat-update", components.ChatContent(chatData(snap, chat))})
		case device.PageMap:
			fragments = append(fragments, fragment{"nodes-update", components.NodesTableContent(nodesData(snap))})
		case device.PageInfo:
			fragments = append(fragments, fragment{"info-update", components.InfoContent(infoData(snap))})
		}

		var buf bytes.Buffer
		for _, f := range fragments {
			buf.Reset()
			if err := f.comp.Render(ctx, &buf); err != nil {
				return err
			}
			if err := writeSSE(w, f.event, buf.String()); err != nil {
				return err
			}
		}
		flusher.Flush()
		return nil
	}

	if err := sendUpdate(); err != nil {
		if !errors.Is(err, errDeviceGone) {
			wr.log.Error("error sending initial SSE data", "device", dev.ID, "error", err)
		}
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, open := <-notifyCh:
			if !open {
				return
			}
			if err := sendUpdate(); err != nil {
				if !errors.Is(err, errDeviceGone) {
					wr.log.Error("error sending SSE update", "device", dev.ID, "error", err)
				}
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE sends one event. Multi-line data is split over several data:
// fields, which the browser joins back with newlines.
func writeSSE(w io.Writer, event, data string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\nevent: %s\n", ulid.Make(), event)
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
