package components

import (
	"time"

	"github.com/kabili207/mesh-web-client/pkg/validation"
)

// Alert is a flash message shown at the top of a page.
type Alert struct {
	Type    string
	Message string
	Detail  *string
}

// DeviceLink is an entry of the device switcher.
type DeviceLink struct {
	ID     uint32
	Title  string
	Status string
	Active bool
}

// Layout carries what every page shows around its content.
type Layout struct {
	PageTitle   string
	Alerts      []Alert
	Devices     []DeviceLink
	Device      *DeviceHeader
	LoggedIn    bool
	AuthEnabled bool
	SSEEndpoint string
}

// DeviceHeader is the status strip and navigation of one device.
type DeviceHeader struct {
	ID         uint32
	Title      string
	NodeID     string
	Status     string
	Ready      bool
	ActivePage string
}

type CandidateData struct {
	Kind     string
	Address  string
	Name     string
	RSSI     int16
	LastSeen time.Time
}

type DevicesPageData struct {
	Layout
	Candidates []CandidateData
	Kinds      []string
	Form       []validation.Field
}

type ChatLink struct {
	Ref    string
	Title  string
	Active bool
	Count  int
}

type MessageData struct {
	ID       uint32
	Text     string
	Ack      bool
	Received time.Time
}

// MessageGroup is a run of consecutive messages from one sender.
type MessageGroup struct {
	From     string
	FromName string
	Mine     bool
	Messages []MessageData
}

type ChatData struct {
	DeviceID  uint32
	Ref       string
	Title     string
	Groups    []MessageGroup
	CanSend   bool
	MaxLength int
	Error     string
	Draft     string
}

type MessagesPageData struct {
	Layout
	Channels []ChatLink
	Direct   []ChatLink
	Chat     ChatData
}

// NodeData represents a mesh node for display. Metric fields are
// preformatted and empty when unknown.
type NodeData struct {
	Num         uint32
	NodeID      string
	LongName    string
	ShortName   string
	HwModel     string
	Role        string
	IsMe        bool
	LastHeard   time.Time
	Battery     string
	Voltage     string
	SNR         string
	Position    string
	Environment string
	HasPosition bool
}

type NodesPageData struct {
	Layout
	DeviceID uint32
	Nodes    []NodeData
}

type SectionLink struct {
	Name   string
	Title  string
	Href   string
	Active bool
}

// FormPageData renders one settings form: a config section, a module
// section, the owner or a channel.
type FormPageData struct {
	Layout
	Heading  string
	Action   string
	Sections []SectionLink
	Fields   []validation.Field
	Error    string
}

type ChannelData struct {
	Index   int32
	Name    string
	Role    string
	Enabled bool
	Count   int
	Hash    string
}

type ChannelsPageData struct {
	Layout
	DeviceID uint32
	Channels []ChannelData
}

type InfoPageData struct {
	Layout
	DeviceID        uint32
	NodeID          string
	LongName        string
	ShortName       string
	HwModel         string
	FirmwareVersion string
	RebootCount     uint32
	HasWifi         bool
	HasBluetooth    bool
	Role            string
	NodeCount       int
	ChannelCount    int
}

type LoginPageData struct {
	Layout
	Error string
}
