package validation

import (
	pb "github.com/kabili207/meshtastic-go/core/proto"
	"google.golang.org/protobuf/proto"
)

// ConfigForm edits one section of the radio configuration.
type ConfigForm interface {
	Load(cfg *pb.LocalConfig)
	// Proto writes the form over a copy of the matching section of base.
	Proto(base *pb.LocalConfig) *pb.Config
}

type ConfigSection struct {
	Name  string
	Title string
	New   func() ConfigForm
}

var ConfigSections = []ConfigSection{
	{"device", "Device", func() ConfigForm { return &DeviceForm{} }},
	{"position", "Position", func() ConfigForm { return &PositionForm{} }},
	{"power", "Power", func() ConfigForm { return &PowerForm{} }},
	{"network", "Network", func() ConfigForm { return &NetworkForm{} }},
	{"display", "Display", func() ConfigForm { return &DisplayForm{} }},
	{"lora", "LoRa", func() ConfigForm { return &LoRaForm{} }},
	{"bluetooth", "Bluetooth", func() ConfigForm { return &BluetoothForm{} }},
}

// cloneSection copies the radio's current section so fields the form does not
// show are sent back unchanged.
func cloneSection[T proto.Message](current, empty T) T {
	if !current.ProtoReflect().IsValid() {
		return empty
	}
	return proto.Clone(current).(T)
}

func ConfigSectionByName(name string) (ConfigSection, bool) {
	for _, s := range ConfigSections {
		if s.Name == name {
			return s, true
		}
	}
	return ConfigSection{}, false
}

type DeviceForm struct {
	Role                   int32  `schema:"role" validate:"enum=device_role"`
	RebroadcastMode        int32  `schema:"rebroadcast_mode" validate:"enum=rebroadcast_mode"`
	NodeInfoBroadcastSecs  uint32 `schema:"node_info_broadcast_secs" validate:"omitempty,gte=3600"`
	DoubleTapAsButtonPress bool   `schema:"double_tap_as_button_press"`
	DisableTripleClick     bool   `schema:"disable_triple_click"`
	LedHeartbeatDisabled   bool   `schema:"led_heartbeat_disabled"`
	Tzdef                  string `schema:"tzdef" validate:"max=64"`
	ButtonGpio             uint32 `schema:"button_gpio" validate:"lte=48"`
	BuzzerGpio             uint32 `schema:"buzzer_gpio" validate:"lte=48"`
}

func (f *DeviceForm) Load(cfg *pb.LocalConfig) {
	c := cfg.GetDevice()
	*f = DeviceForm{
		Role:                   int32(c.GetRole()),
		RebroadcastMode:        int32(c.GetRebroadcastMode()),
		NodeInfoBroadcastSecs:  c.GetNodeInfoBroadcastSecs(),
		DoubleTapAsButtonPress: c.GetDoubleTapAsButtonPress(),
		DisableTripleClick:     c.GetDisableTripleClick(),
		LedHeartbeatDisabled:   c.GetLedHeartbeatDisabled(),
		Tzdef:                  c.GetTzdef(),
		ButtonGpio:             c.GetButtonGpio(),
		BuzzerGpio:             c.GetBuzzerGpio(),
	}
}

func (f *DeviceForm) Proto(base *pb.LocalConfig) *pb.Config {
	c := cloneSection(base.GetDevice(), &pb.Config_DeviceConfig{})
	c.Role = pb.Config_DeviceConfig_Role(f.Role)
	c.RebroadcastMode = pb.Config_DeviceConfig_RebroadcastMode(f.RebroadcastMode)
	c.NodeInfoBroadcastSecs = f.NodeInfoBroadcastSecs
	c.DoubleTapAsButtonPress = f.DoubleTapAsButtonPress
	c.DisableTripleClick = f.DisableTripleClick
	c.LedHeartbeatDisabled = f.LedHeartbeatDisabled
	c.Tzdef = f.Tzdef
	c.ButtonGpio = f.ButtonGpio
	c.BuzzerGpio = f.BuzzerGpio
	return &pb.Config{PayloadVariant: &pb.Config_Device{Device: c}}
}

type PositionForm struct {
	PositionBroadcastSecs             uint32 `schema:"position_broadcast_secs"`
	PositionBroadcastSmartEnabled     bool   `schema:"position_broadcast_smart_enabled"`
	FixedPosition                     bool   `schema:"fixed_position"`
	GpsUpdateInterval                 uint32 `schema:"gps_update_interval"`
	PositionFlags                     uint32 `schema:"position_flags"`
	BroadcastSmartMinimumDistance     uint32 `schema:"broadcast_smart_minimum_distance"`
	BroadcastSmartMinimumIntervalSecs uint32 `schema:"broadcast_smart_minimum_interval_secs"`
	GpsMode                           int32  `schema:"gps_mode" validate:"enum=gps_mode"`
}

func (f *PositionForm) Load(cfg *pb.LocalConfig) {
	c := cfg.GetPosition()
	*f = PositionForm{
		PositionBroadcastSecs:             c.GetPositionBroadcastSecs(),
		PositionBroadcastSmartEnabled:     c.GetPositionBroadcastSmartEnabled(),
		FixedPosition:                     c.GetFixedPosition(),
		GpsUpdateInterval:                 c.GetGpsUpdateInterval(),
		PositionFlags:                     c.GetPositionFlags(),
		BroadcastSmartMinimumDistance:     c.GetBroadcastSmartMinimumDistance(),
		BroadcastSmartMinimumIntervalSecs: c.GetBroadcastSmartMinimumIntervalSecs(),
		GpsMode:                           int32(c.GetGpsMode()),
	}
}

func (f *PositionForm) Proto(base *pb.LocalConfig) *pb.Config {
	c := cloneSection(base.GetPosition(), &pb.Config_PositionConfig{})
	c.PositionBroadcastSecs = f.PositionBroadcastSecs
	c.PositionBroadcastSmartEnabled = f.PositionBroadcastSmartEnabled
	c.FixedPosition = f.FixedPosition
	c.GpsUpdateInterval = f.GpsUpdateInterval
	c.PositionFlags = f.PositionFlags
	c.BroadcastSmartMinimumDistance = f.BroadcastSmartMinimumDistance
	c.BroadcastSmartMinimumIntervalSecs = f.BroadcastSmartMinimumIntervalSecs
	c.GpsMode = pb.Config_PositionConfig_GpsMode(f.GpsMode)
	return &pb.Config{PayloadVariant: &pb.Config_Position{Position: c}}
}

type PowerForm struct {
	IsPowerSaving              bool    `schema:"is_power_saving"`
	OnBatteryShutdownAfterSecs uint32  `schema:"on_battery_shutdown_after_secs"`
	AdcMultiplierOverride      float32 `schema:"adc_multiplier_override" validate:"gte=0,lte=10"`
	WaitBluetoothSecs          uint32  `schema:"wait_bluetooth_secs"`
	SdsSecs                    uint32  `schema:"sds_secs"`
	LsSecs                     uint32  `schema:"ls_secs"`
	MinWakeSecs                uint32  `schema:"min_wake_secs"`
}

func (f *PowerForm) Load(cfg *pb.LocalConfig) {
	c := cfg.GetPower()
	*f = PowerForm{
		IsPowerSaving:              c.GetIsPowerSaving(),
		OnBatteryShutdownAfterSecs: c.GetOnBatteryShutdownAfterSecs(),
		AdcMultiplierOverride:      c.GetAdcMultiplierOverride(),
		WaitBluetoothSecs:          c.GetWaitBluetoothSecs(),
		SdsSecs:                    c.GetSdsSecs(),
		LsSecs:                     c.GetLsSecs(),
		MinWakeSecs:                c.GetMinWakeSecs(),
	}
}

func (f *PowerForm) Proto(base *pb.LocalConfig) *pb.Config {
	c := cloneSection(base.GetPower(), &pb.Config_PowerConfig{})
	c.IsPowerSaving = f.IsPowerSaving
	c.OnBatteryShutdownAfterSecs = f.OnBatteryShutdownAfterSecs
	c.AdcMultiplierOverride = f.AdcMultiplierOverride
	c.WaitBluetoothSecs = f.WaitBluetoothSecs
	c.SdsSecs = f.SdsSecs
	c.LsSecs = f.LsSecs
	c.MinWakeSecs = f.MinWakeSecs
	return &pb.Config{PayloadVariant: &pb.Config_Power{Power: c}}
}

type NetworkForm struct {
	WifiEnabled   bool   `schema:"wifi_enabled"`
	WifiSsid      string `schema:"wifi_ssid" validate:"required_if=WifiEnabled true,max=32"`
	WifiPsk       string `schema:"wifi_psk" validate:"max=64"`
	NtpServer     string `schema:"ntp_server" validate:"omitempty,hostname"`
	EthEnabled    bool   `schema:"eth_enabled"`
	AddressMode   int32  `schema:"address_mode" validate:"enum=address_mode"`
	RsyslogServer string `schema:"rsyslog_server" validate:"omitempty,hostname_port"`
}

func (f *NetworkForm) Load(cfg *pb.LocalConfig) {
	c := cfg.GetNetwork()
	*f = NetworkForm{
		WifiEnabled:   c.GetWifiEnabled(),
		WifiSsid:      c.GetWifiSsid(),
		WifiPsk:       c.GetWifiPsk(),
		NtpServer:     c.GetNtpServer(),
		EthEnabled:    c.GetEthEnabled(),
		AddressMode:   int32(c.GetAddressMode()),
		RsyslogServer: c.GetRsyslogServer(),
	}
}

func (f *NetworkForm) Proto(base *pb.LocalConfig) *pb.Config {
	c := cloneSection(base.GetNetwork(), &pb.Config_NetworkConfig{})
	c.WifiEnabled = f.WifiEnabled
	c.WifiSsid = f.WifiSsid
	c.WifiPsk = f.WifiPsk
	c.NtpServer = f.NtpServer
	c.EthEnabled = f.EthEnabled
	c.AddressMode = pb.Config_NetworkConfig_AddressMode(f.AddressMode)
	c.RsyslogServer = f.RsyslogServer
	return &pb.Config{PayloadVariant: &pb.Config_Network{Network: c}}
}

type DisplayForm struct {
	ScreenOnSecs           uint32 `schema:"screen_on_secs"`
	AutoScreenCarouselSecs uint32 `schema:"auto_screen_carousel_secs"`
	CompassNorthTop        bool   `schema:"compass_north_top"`
	FlipScreen             bool   `schema:"flip_screen"`
	Units                  int32  `schema:"units" validate:"enum=display_units"`
	HeadingBold            bool   `schema:"heading_bold"`
	WakeOnTapOrMotion      bool   `schema:"wake_on_tap_or_motion"`
}

func (f *DisplayForm) Load(cfg *pb.LocalConfig) {
	c := cfg.GetDisplay()
	*f = DisplayForm{
		ScreenOnSecs:           c.GetScreenOnSecs(),
		AutoScreenCarouselSecs: c.GetAutoScreenCarouselSecs(),
		CompassNorthTop:        c.GetCompassNorthTop(),
		FlipScreen:             c.GetFlipScreen(),
		Units:                  int32(c.GetUnits()),
		HeadingBold:            c.GetHeadingBold(),
		WakeOnTapOrMotion:      c.GetWakeOnTapOrMotion(),
	}
}

func (f *DisplayForm) Proto(base *pb.LocalConfig) *pb.Config {
	c := cloneSection(base.GetDisplay(), &pb.Config_DisplayConfig{})
	c.ScreenOnSecs = f.ScreenOnSecs
	c.AutoScreenCarouselSecs = f.AutoScreenCarouselSecs
	c.CompassNorthTop = f.CompassNorthTop
	c.FlipScreen = f.FlipScreen
	c.Units = pb.Config_DisplayConfig_DisplayUnits(f.Units)
	c.HeadingBold = f.HeadingBold
	c.WakeOnTapOrMotion = f.WakeOnTapOrMotion
	return &pb.Config{PayloadVariant: &pb.Config_Display{Display: c}}
}

type LoRaForm struct {
	UsePreset         bool    `schema:"use_preset"`
	ModemPreset       int32   `schema:"modem_preset" validate:"enum=modem_preset"`
	Bandwidth         uint32  `schema:"bandwidth" validate:"lte=1625"`
	SpreadFactor      uint32  `schema:"spread_factor" validate:"omitempty,gte=7,lte=12"`
	CodingRate        uint32  `schema:"coding_rate" validate:"omitempty,gte=5,lte=8"`
	FrequencyOffset   float32 `schema:"frequency_offset"`
	Region            int32   `schema:"region" validate:"enum=region"`
	HopLimit          uint32  `schema:"hop_limit" validate:"lte=7"`
	TxEnabled         bool    `schema:"tx_enabled"`
	TxPower           int32   `schema:"tx_power" validate:"gte=0,lte=30"`
	ChannelNum        uint32  `schema:"channel_num"`
	OverrideDutyCycle bool    `schema:"override_duty_cycle"`
	OverrideFrequency float32 `schema:"override_frequency" validate:"gte=0"`
	IgnoreMqtt        bool    `schema:"ignore_mqtt"`
	ConfigOkToMqtt    bool    `schema:"config_ok_to_mqtt"`
}

func (f *LoRaForm) Load(cfg *pb.LocalConfig) {
	c := cfg.GetLora()
	*f = LoRaForm{
		UsePreset:         c.GetUsePreset(),
		ModemPreset:       int32(c.GetModemPreset()),
		Bandwidth:         c.GetBandwidth(),
		SpreadFactor:      c.GetSpreadFactor(),
		CodingRate:        c.GetCodingRate(),
		FrequencyOffset:   c.GetFrequencyOffset(),
		Region:            int32(c.GetRegion()),
		HopLimit:          c.GetHopLimit(),
		TxEnabled:         c.GetTxEnabled(),
		TxPower:           c.GetTxPower(),
		ChannelNum:        c.GetChannelNum(),
		OverrideDutyCycle: c.GetOverrideDutyCycle(),
		OverrideFrequency: c.GetOverrideFrequency(),
		IgnoreMqtt:        c.GetIgnoreMqtt(),
		ConfigOkToMqtt:    c.GetConfigOkToMqtt(),
	}
}

func (f *LoRaForm) Proto(base *pb.LocalConfig) *pb.Config {
	c := cloneSection(base.GetLora(), &pb.Config_LoRaConfig{})
	c.UsePreset = f.UsePreset
	c.ModemPreset = pb.Config_LoRaConfig_ModemPreset(f.ModemPreset)
	c.Bandwidth = f.Bandwidth
	c.SpreadFactor = f.SpreadFactor
	c.CodingRate = f.CodingRate
	c.FrequencyOffset = f.FrequencyOffset
	c.Region = pb.Config_LoRaConfig_RegionCode(f.Region)
	c.HopLimit = f.HopLimit
	c.TxEnabled = f.TxEnabled
	c.TxPower = f.TxPower
	c.ChannelNum = f.ChannelNum
	c.OverrideDutyCycle = f.OverrideDutyCycle
	c.OverrideFrequency = f.OverrideFrequency
	c.IgnoreMqtt = f.IgnoreMqtt
	c.ConfigOkToMqtt = f.ConfigOkToMqtt
	return &pb.Config{PayloadVariant: &pb.Config_Lora{Lora: c}}
}

type BluetoothForm struct {
	Enabled  bool   `schema:"enabled"`
	Mode     int32  `schema:"mode" validate:"enum=pairing_mode"`
	FixedPin uint32 `schema:"fixed_pin" validate:"omitempty,gte=100000,lte=999999"`
}

func (f *BluetoothForm) Load(cfg *pb.LocalConfig) {
	c := cfg.GetBluetooth()
	*f = BluetoothForm{
		Enabled:  c.GetEnabled(),
		Mode:     int32(c.GetMode()),
		FixedPin: c.GetFixedPin(),
	}
}

func (f *BluetoothForm) Proto(base *pb.LocalConfig) *pb.Config {
	c := cloneSection(base.GetBluetooth(), &pb.Config_BluetoothConfig{})
	c.Enabled = f.Enabled
	c.Mode = pb.Config_BluetoothConfig_PairingMode(f.Mode)
	c.FixedPin = f.FixedPin
	return &pb.Config{PayloadVariant: &pb.Config_Bluetooth{Bluetooth: c}}
}
