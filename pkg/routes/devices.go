package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kabili207/mesh-web-client/internal/web/components"
	"github.com/kabili207/mesh-web-client/pkg/connection"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/discovery"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"github.com/kabili207/mesh-web-client/pkg/transport"
	"github.com/kabili207/mesh-web-client/pkg/validation"
)

const scanTimeout = 15 * time.Second

func deviceHeader(snap device.Snapshot) components.DeviceHeader {
	h := components.DeviceHeader{
		ID:         snap.ID,
		Title:      snap.Title(),
		Status:     snap.Status.String(),
		Ready:      snap.Ready,
		ActivePage: string(snap.ActivePage),
	}
	if num := snap.MyNodeNum(); num != 0 {
		h.NodeID = meshtastic.NodeID(num).String()
	}
	return h
}

func candidateData(found []discovery.Candidate) []components.CandidateData {
	out := make([]components.CandidateData, 0, len(found))
	for _, c := range found {
		out = append(out, components.CandidateData{
			Kind:     string(c.Kind),
			Address:  c.Address,
			Name:     c.Name,
			RSSI:     c.RSSI,
			LastSeen: c.LastSeen,
		})
	}
	return out
}

func (wr *WebRouter) devicesPage(w http.ResponseWriter, r *http.Request) {
	wr.renderDevices(w, r, http.StatusOK, connection.Target{Kind: transport.KindTCP}, nil)
}

func (wr *WebRouter) renderDevices(w http.ResponseWriter, r *http.Request, status int, target connection.Target, errs validation.FieldErrors) {
	data := components.DevicesPageData{
		Layout: wr.layout(w, r, "Devices", nil),
		Form:   validation.Fields(&target, errs),
	}
	if wr.discovery != nil {
		data.Candidates = candidateData(wr.discovery.Known())
	}
	wr.render(w, r, status, components.DevicesPage(data), "devices")
}

func (wr *WebRouter) scanDevices(w http.ResponseWriter, r *http.Request) {
	if wr.discovery == nil {
		wr.flash(w, r, components.Alert{Type: "info", Message: "Discovery is disabled"})
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), scanTimeout)
	defer cancel()

	found, err := wr.discovery.Scan(ctx)
	if err != nil {
		wr.flashError(w, r, "Some scanners failed", err)
	} else {
		wr.flash(w, r, components.Alert{Type: "success", Message: fmt.Sprintf("Found %d radios", len(found))})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (wr *WebRouter) connectDevice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var target connection.Target
	if err := validation.DecodeAndValidate(&target, r.PostForm); err != nil {
		var fe validation.FieldErrors
		if errors.As(err, &fe) {
			wr.renderDevices(w, r, http.StatusUnprocessableEntity, target, fe)
			return
		}
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	dev, err := wr.connector.Connect(r.Context(), target)
	if err != nil {
		if wr.discovery != nil {
			wr.discovery.Forget(target.Kind, target.Address)
		}
		wr.flashError(w, r, "Could not connect to "+target.String(), err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, deviceURL(dev, "messages"), http.StatusSeeOther)
}

func (wr *WebRouter) disconnectDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := wr.device(w, r)
	if !ok {
		return
	}
	title := dev.Snapshot().Title()
	if err := wr.connector.Disconnect(dev.ID); err != nil {
		wr.flashError(w, r, "Could not disconnect "+title, err)
	} else {
		wr.flash(w, r, components.Alert{Type: "success", Message: "Disconnected " + title})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// devicePage returns to whatever page was last open for the device.
func (wr *WebRouter) devicePage(w http.ResponseWriter, r *http.Request) {
	dev, ok := wr.device(w, r)
	if !ok {
		return
	}
	http.Redirect(w, r, deviceURL(dev, pagePath(dev.ActivePage())), http.StatusFound)
}

func pagePath(p device.Page) string {
	switch p {
	case device.PageMap:
		return "nodes"
	case device.PageExtensions:
		return "modules"
	case device.PageConfig, device.PageChannels, device.PageInfo:
		return string(p)
	}
	return "messages"
}
