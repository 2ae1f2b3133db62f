package meshtastic

// DeviceStatus tracks the lifecycle of a radio connection. Values match the
// status codes used by the official clients.
type DeviceStatus int

const (
	DeviceRestarting   DeviceStatus = 1
	DeviceDisconnected DeviceStatus = 2
	DeviceConnecting   DeviceStatus = 3
	DeviceReconnecting DeviceStatus = 4
	DeviceConnected    DeviceStatus = 5
	DeviceConfiguring  DeviceStatus = 6
	DeviceConfigured   DeviceStatus = 7
)

func (s DeviceStatus) String() string {
	switch s {
	case DeviceRestarting:
		return "restarting"
	case DeviceDisconnected:
		return "disconnected"
	case DeviceConnecting:
		return "connecting"
	case DeviceReconnecting:
		return "reconnecting"
	case DeviceConnected:
		return "connected"
	case DeviceConfiguring:
		return "configuring"
	case DeviceConfigured:
		return "configured"
	default:
		return "unknown"
	}
}
