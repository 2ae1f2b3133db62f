package routes

import (
	"net/http"

	"github.com/kabili207/mesh-web-client/internal/web/components"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
)

const rebootDelaySeconds = 5

func (wr *WebRouter) infoPage(w http.ResponseWriter, r *http.Request) {
	dev, ok := wr.device(w, r)
	if !ok {
		return
	}
	dev.SetActivePage(device.PageInfo)

	layout := wr.layout(w, r, "Info", dev)
	data := infoData(dev.Snapshot())
	data.Layout = layout
	wr.render(w, r, http.StatusOK, components.InfoPage(data), "info")
}

func infoData(snap device.Snapshot) components.InfoPageData {
	data := components.InfoPageData{
		DeviceID:        snap.ID,
		LongName:        snap.Title(),
		FirmwareVersion: snap.Metadata.GetFirmwareVersion(),
		RebootCount:     snap.Hardware.GetRebootCount(),
		HasWifi:         snap.Metadata.GetHasWifi(),
		HasBluetooth:    snap.Metadata.GetHasBluetooth(),
		NodeCount:       len(snap.Nodes),
	}
	if snap.Metadata != nil {
		data.Role = snap.Metadata.GetRole().String()
	}
	if num := snap.MyNodeNum(); num != 0 {
		data.NodeID = meshtastic.NodeID(num).String()
	}
	if node, ok := snap.MyNode(); ok {
		data.ShortName = node.ShortName()
		if user := node.Data.GetUser(); user != nil {
			data.HwModel = user.GetHwModel().String()
		}
	}
	for _, ch := range snap.Channels {
		if visibleChannel(ch) {
			data.ChannelCount++
		}
	}
	return data
}

func (wr *WebRouter) rebootDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := wr.device(w, r)
	if !ok {
		return
	}
	conn, ok := dev.Connection()
	if !ok {
		wr.flashError(w, r, "Could not reboot", device.ErrNoConnection)
	} else if err := conn.Reboot(r.Context(), rebootDelaySeconds); err != nil {
		wr.log.Error("error rebooting", "device", dev.ID, "error", err)
		wr.flashError(w, r, "Could not reboot", err)
	} else {
		wr.flash(w, r, components.Alert{Type: "success", Message: "Reboot requested"})
	}
	http.Redirect(w, r, deviceURL(dev, "info"), http.StatusSeeOther)
}
