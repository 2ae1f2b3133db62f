package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/discovery"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var protoJSON = protojson.MarshalOptions{UseProtoNames: true}

type DeviceResponse struct {
	ID        uint32 `json:"id"`
	Title     string `json:"title"`
	NodeID    string `json:"node_id,omitempty"`
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
	Page      string `json:"active_page"`
	Chat      string `json:"active_chat"`
}

type NodeResponse struct {
	NodeID             string          `json:"node_id"`
	LongName           string          `json:"long_name"`
	ShortName          string          `json:"short_name"`
	Info               json.RawMessage `json:"info"`
	DeviceMetrics      json.RawMessage `json:"device_metrics,omitempty"`
	EnvironmentMetrics json.RawMessage `json:"environment_metrics,omitempty"`
}

type ChannelResponse struct {
	Name     string          `json:"name"`
	Hash     string          `json:"hash,omitempty"`
	Channel  json.RawMessage `json:"channel"`
	Messages int             `json:"messages"`
}

type DeviceDetailResponse struct {
	DeviceResponse
	Hardware     json.RawMessage   `json:"hardware,omitempty"`
	Metadata     json.RawMessage   `json:"metadata,omitempty"`
	Config       json.RawMessage   `json:"config,omitempty"`
	ModuleConfig json.RawMessage   `json:"module_config,omitempty"`
	Channels     []ChannelResponse `json:"channels"`
	Nodes        []NodeResponse    `json:"nodes"`
}

type DiscoveryResponse struct {
	Candidates []discovery.Candidate `json:"candidates"`
	Error      string                `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// rawProto marshals m, or returns nil for an unset message.
func rawProto(m proto.Message) (json.RawMessage, error) {
	if m == nil || !m.ProtoReflect().IsValid() {
		return nil, nil
	}
	return protoJSON.Marshal(m)
}

func deviceResponse(snap device.Snapshot) DeviceResponse {
	resp := DeviceResponse{
		ID:        snap.ID,
		Title:     snap.Title(),
		Status:    snap.Status.String(),
		Ready:     snap.Ready,
		Connected: snap.Connected,
		Page:      string(snap.ActivePage),
		Chat:      snap.ActiveChat.String(),
	}
	if num := snap.MyNodeNum(); num != 0 {
		resp.NodeID = meshtastic.NodeID(num).String()
	}
	return resp
}

func (wr *WebRouter) getDevices(w http.ResponseWriter, r *http.Request) {
	devices := []DeviceResponse{}
	for _, d := range wr.registry.Devices() {
		devices = append(devices, deviceResponse(d.Snapshot()))
	}
	writeJSON(w, http.StatusOK, devices)
}

func (wr *WebRouter) getDevice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid device ID", http.StatusBadRequest)
		return
	}
	dev, ok := wr.registry.Device(uint32(id))
	if !ok {
		http.Error(w, "Device not found", http.StatusNotFound)
		return
	}

	resp, err := deviceDetail(dev.Snapshot())
	if err != nil {
		wr.log.Error("error encoding device", "device", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func deviceDetail(snap device.Snapshot) (*DeviceDetailResponse, error) {
	resp := &DeviceDetailResponse{
		DeviceResponse: deviceResponse(snap),
		Channels:       []ChannelResponse{},
		Nodes:          []NodeResponse{},
	}
	var err error
	if resp.Hardware, err = rawProto(snap.Hardware); err != nil {
		return nil, err
	}
	if resp.Metadata, err = rawProto(snap.Metadata); err != nil {
		return nil, err
	}
	if resp.Config, err = rawProto(snap.Config); err != nil {
		return nil, err
	}
	if resp.ModuleConfig, err = rawProto(snap.ModuleConfig); err != nil {
		return nil, err
	}

	for _, ch := range snap.Channels {
		raw, err := rawProto(ch.Config)
		if err != nil {
			return nil, err
		}
		resp.Channels = append(resp.Channels, ChannelResponse{Name: ch.Name(), Hash: channelHash(snap, ch), Channel: raw, Messages: len(ch.Messages)})
	}
	for _, n := range snap.Nodes {
		nr := NodeResponse{NodeID: n.Num().String(), LongName: n.LongName(), ShortName: n.ShortName()}
		if nr.Info, err = rawProto(n.Data); err != nil {
			return nil, err
		}
		if nr.DeviceMetrics, err = rawProto(n.DeviceMetrics); err != nil {
			return nil, err
		}
		if nr.EnvironmentMetrics, err = rawProto(n.EnvironmentMetrics); err != nil {
			return nil, err
		}
		resp.Nodes = append(resp.Nodes, nr)
	}
	return resp, nil
}

// getDiscovery lists known radios. ?refresh=true runs a scan first.
func (wr *WebRouter) getDiscovery(w http.ResponseWriter, r *http.Request) {
	if wr.discovery == nil {
		writeJSON(w, http.StatusOK, DiscoveryResponse{Candidates: []discovery.Candidate{}})
		return
	}
	if r.URL.Query().Get("refresh") != "true" {
		writeJSON(w, http.StatusOK, DiscoveryResponse{Candidates: wr.discovery.Known()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), scanTimeout)
	defer cancel()
	found, err := wr.discovery.Scan(ctx)
	resp := DiscoveryResponse{Candidates: found}
	if resp.Candidates == nil {
		resp.Candidates = []discovery.Candidate{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
