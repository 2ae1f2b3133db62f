package validation

import (
	"sort"
	"strings"

	pb "github.com/kabili207/meshtastic-go/core/proto"
)

// enums holds the protobuf name tables referenced by `validate:"enum=..."`.
var enums = map[string]map[int32]string{
	"channel_role":     pb.Channel_Role_name,
	"device_role":      pb.Config_DeviceConfig_Role_name,
	"rebroadcast_mode": pb.Config_DeviceConfig_RebroadcastMode_name,
	"gps_mode":         pb.Config_PositionConfig_GpsMode_name,
	"address_mode":     pb.Config_NetworkConfig_AddressMode_name,
	"display_units":    pb.Config_DisplayConfig_DisplayUnits_name,
	"modem_preset":     pb.Config_LoRaConfig_ModemPreset_name,
	"region":           pb.Config_LoRaConfig_RegionCode_name,
	"pairing_mode":     pb.Config_BluetoothConfig_PairingMode_name,
	"serial_baud":      pb.ModuleConfig_SerialConfig_Serial_Baud_name,
	"serial_mode":      pb.ModuleConfig_SerialConfig_Serial_Mode_name,
}

type Option struct {
	Value int32
	Label string
}

// Options returns the choices for a select field, ordered by value.
func Options(enum string) []Option {
	names := enums[enum]
	opts := make([]Option, 0, len(names))
	for v, name := range names {
		opts = append(opts, Option{Value: v, Label: label(name)})
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].Value < opts[j].Value })
	return opts
}

// label turns LONG_FAST into "Long Fast". Region codes stay upper case.
func label(name string) string {
	if len(name) <= 3 || strings.HasPrefix(name, "EU_") || strings.HasPrefix(name, "BAUD_") {
		return name
	}
	words := strings.Split(strings.ToLower(name), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
