package meshtastic

const (
	// BLE GATT service and characteristics exposed by the firmware.
	ServiceUUID   = "6ba1b218-15a8-461f-9fa8-5dcae273eafd"
	ToRadioUUID   = "f75c76d2-129e-4dad-a1dd-7866124401e7"
	FromRadioUUID = "2c55e69e-4993-11ed-b878-0242ac120002"
	FromNumUUID   = "ed9da18c-a800-4f66-a670-aa7547e34453"

	// TCPPort is the port the firmware's stream API listens on.
	TCPPort = 4403

	// SerialBaudRate is the default baud rate of the serial stream API.
	SerialBaudRate = 115200

	// MDNSService is the DNS-SD service type advertised by network capable radios.
	MDNSService = "_meshtastic._tcp"

	// MaxTextLength is the largest text payload the firmware accepts.
	MaxTextLength = 228
)
