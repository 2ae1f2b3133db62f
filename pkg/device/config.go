package device

import (
	"fmt"

	pb "github.com/kabili207/meshtastic-go/core/proto"
)

// SetConfig stores the populated section of cfg in the device's LocalConfig.
// Sections this client does not track return ErrUnsupportedVariant and leave
// the device unchanged.
func (d *Device) SetConfig(cfg *pb.Config) error {
	var apply func(local *pb.LocalConfig)

	switch v := cfg.GetPayloadVariant().(type) {
	case *pb.Config_Device:
		section := clone(v.Device)
		apply = func(local *pb.LocalConfig) { local.Device = section }
	case *pb.Config_Position:
		section := clone(v.Position)
		apply = func(local *pb.LocalConfig) { local.Position = section }
	case *pb.Config_Power:
		section := clone(v.Power)
		apply = func(local *pb.LocalConfig) { local.Power = section }
	case *pb.Config_Network:
		section := clone(v.Network)
		apply = func(local *pb.LocalConfig) { local.Network = section }
	case *pb.Config_Display:
		section := clone(v.Display)
		apply = func(local *pb.LocalConfig) { local.Display = section }
	case *pb.Config_Lora:
		section := clone(v.Lora)
		apply = func(local *pb.LocalConfig) { local.Lora = section }
	case *pb.Config_Bluetooth:
		section := clone(v.Bluetooth)
		apply = func(local *pb.LocalConfig) { local.Bluetooth = section }
	case *pb.Config_Security:
		section := clone(v.Security)
		apply = func(local *pb.LocalConfig) { local.Security = section }
	default:
		return fmt.Errorf("config %T: %w", v, ErrUnsupportedVariant)
	}

	d.update(func() {
		apply(d.config)
	})
	return nil
}

// SetModuleConfig stores the populated section of cfg in the device's
// LocalModuleConfig. Unknown sections return ErrUnsupportedVariant.
func (d *Device) SetModuleConfig(cfg *pb.ModuleConfig) error {
	var apply func(local *pb.LocalModuleConfig)

	switch v := cfg.GetPayloadVariant().(type) {
	case *pb.ModuleConfig_Mqtt:
		section := clone(v.Mqtt)
		apply = func(local *pb.LocalModuleConfig) { local.Mqtt = section }
	case *pb.ModuleConfig_Serial:
		section := clone(v.Serial)
		apply = func(local *pb.LocalModuleConfig) { local.Serial = section }
	case *pb.ModuleConfig_ExternalNotification:
		section := clone(v.ExternalNotification)
		apply = func(local *pb.LocalModuleConfig) { local.ExternalNotification = section }
	case *pb.ModuleConfig_StoreForward:
		section := clone(v.StoreForward)
		apply = func(local *pb.LocalModuleConfig) { local.StoreForward = section }
	case *pb.ModuleConfig_RangeTest:
		section := clone(v.RangeTest)
		apply = func(local *pb.LocalModuleConfig) { local.RangeTest = section }
	case *pb.ModuleConfig_Telemetry:
		section := clone(v.Telemetry)
		apply = func(local *pb.LocalModuleConfig) { local.Telemetry = section }
	case *pb.ModuleConfig_CannedMessage:
		section := clone(v.CannedMessage)
		apply = func(local *pb.LocalModuleConfig) { local.CannedMessage = section }
	case *pb.ModuleConfig_Audio:
		section := clone(v.Audio)
		apply = func(local *pb.LocalModuleConfig) { local.Audio = section }
	case *pb.ModuleConfig_RemoteHardware:
		section := clone(v.RemoteHardware)
		apply = func(local *pb.LocalModuleConfig) { local.RemoteHardware = section }
	case *pb.ModuleConfig_NeighborInfo:
		section := clone(v.NeighborInfo)
		apply = func(local *pb.LocalModuleConfig) { local.NeighborInfo = section }
	case *pb.ModuleConfig_AmbientLighting:
		section := clone(v.AmbientLighting)
		apply = func(local *pb.LocalModuleConfig) { local.AmbientLighting = section }
	case *pb.ModuleConfig_DetectionSensor:
		section := clone(v.DetectionSensor)
		apply = func(local *pb.LocalModuleConfig) { local.DetectionSensor = section }
	case *pb.ModuleConfig_Paxcounter:
		section := clone(v.Paxcounter)
		apply = func(local *pb.LocalModuleConfig) { local.Paxcounter = section }
	default:
		return fmt.Errorf("module config %T: %w", v, ErrUnsupportedVariant)
	}

	d.update(func() {
		apply(d.moduleConfig)
	})
	return nil
}

func (d *Device) Config() *pb.LocalConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return clone(d.config)
}

func (d *Device) ModuleConfig() *pb.LocalModuleConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return clone(d.moduleConfig)
}
