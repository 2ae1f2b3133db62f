package routes

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/kabili207/mesh-web-client/internal/web/components"
	"github.com/kabili207/mesh-web-client/pkg/device"
)

func (wr *WebRouter) nodesPage(w http.ResponseWriter, r *http.Request) {
	dev, ok := wr.device(w, r)
	if !ok {
		return
	}
	dev.SetActivePage(device.PageMap)

	layout := wr.layout(w, r, "Nodes", dev)
	data := components.NodesPageData{
		Layout:   layout,
		DeviceID: dev.ID,
		Nodes:    nodesData(dev.Snapshot()),
	}
	wr.render(w, r, http.StatusOK, components.NodesPage(data), "nodes")
}

func nodesData(snap device.Snapshot) []components.NodeData {
	myNum := snap.MyNodeNum()
	nodes := make([]components.NodeData, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		nodes = append(nodes, nodeData(n, myNum))
	}
	components.SortNodes(nodes)
	return nodes
}

func nodeData(n device.Node, myNum uint32) components.NodeData {
	nd := components.NodeData{
		Num:       uint32(n.Num()),
		NodeID:    n.Num().String(),
		LongName:  n.LongName(),
		ShortName: n.ShortName(),
		IsMe:      uint32(n.Num()) == myNum,
		LastHeard: n.LastHeard(),
	}
	if user := n.Data.GetUser(); user != nil {
		nd.HwModel = user.GetHwModel().String()
		nd.Role = user.GetRole().String()
	}
	if snr := n.Data.GetSnr(); snr != 0 {
		nd.SNR = fmt.Sprintf("%.1f dB", snr)
	}

	if m := n.DeviceMetrics; m != nil {
		switch level := m.GetBatteryLevel(); {
		case level > 100:
			nd.Battery = "Plugged in"
		case level > 0:
			nd.Battery = fmt.Sprintf("%d%%", level)
		}
		if v := m.GetVoltage(); v > 0 {
			nd.Voltage = fmt.Sprintf("%.2f V", v)
		}
	}

	if pos := n.Data.GetPosition(); pos.GetLatitudeI() != 0 || pos.GetLongitudeI() != 0 {
		nd.HasPosition = true
		nd.Position = fmt.Sprintf("%.5f, %.5f", float64(pos.GetLatitudeI())*1e-7, float64(pos.GetLongitudeI())*1e-7)
		if alt := pos.GetAltitude(); alt != 0 {
			nd.Position += fmt.Sprintf(" (%d m)", alt)
		}
	}

	if m := n.EnvironmentMetrics; m != nil {
		var parts []string
		if t := m.GetTemperature(); t != 0 {
			parts = append(parts, fmt.Sprintf("%.1f °C", t))
		}
		if h := m.GetRelativeHumidity(); h != 0 {
			parts = append(parts, fmt.Sprintf("%.0f%%", h))
		}
		if p := m.GetBarometricPressure(); p != 0 {
			parts = append(parts, fmt.Sprintf("%.0f hPa", p))
		}
		nd.Environment = strings.Join(parts, " · ")
	}
	return nd
}
