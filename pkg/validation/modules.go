package validation

import (
	pb "github.com/kabili207/meshtastic-go/core/proto"
)

// ModuleForm edits one module's configuration.
type ModuleForm interface {
	Load(cfg *pb.LocalModuleConfig)
	// Proto writes the form over a copy of the matching section of base.
	Proto(base *pb.LocalModuleConfig) *pb.ModuleConfig
}

type ModuleSection struct {
	Name  string
	Title string
	New   func() ModuleForm
}

var ModuleSections = []ModuleSection{
	{"mqtt", "MQTT", func() ModuleForm { return &MQTTForm{} }},
	{"serial", "Serial", func() ModuleForm { return &SerialForm{} }},
	{"external_notification", "External Notification", func() ModuleForm { return &ExternalNotificationForm{} }},
	{"store_forward", "Store & Forward", func() ModuleForm { return &StoreForwardForm{} }},
	{"range_test", "Range Test", func() ModuleForm { return &RangeTestForm{} }},
	{"telemetry", "Telemetry", func() ModuleForm { return &TelemetryForm{} }},
	{"canned_message", "Canned Message", func() ModuleForm { return &CannedMessageForm{} }},
}

func ModuleSectionByName(name string) (ModuleSection, bool) {
	for _, s := range ModuleSections {
		if s.Name == name {
			return s, true
		}
	}
	return ModuleSection{}, false
}

type MQTTForm struct {
	Enabled              bool   `schema:"enabled"`
	Address              string `schema:"address" validate:"omitempty,max=63"`
	Username             string `schema:"username" validate:"max=63"`
	Password             string `schema:"password" validate:"max=63"`
	EncryptionEnabled    bool   `schema:"encryption_enabled"`
	JSONEnabled          bool   `schema:"json_enabled"`
	TLSEnabled           bool   `schema:"tls_enabled"`
	Root                 string `schema:"root" validate:"max=31"`
	ProxyToClientEnabled bool   `schema:"proxy_to_client_enabled"`
	MapReportingEnabled  bool   `schema:"map_reporting_enabled"`
}

func (f *MQTTForm) Load(cfg *pb.LocalModuleConfig) {
	c := cfg.GetMqtt()
	*f = MQTTForm{
		Enabled:              c.GetEnabled(),
		Address:              c.GetAddress(),
		Username:             c.GetUsername(),
		Password:             c.GetPassword(),
		EncryptionEnabled:    c.GetEncryptionEnabled(),
		JSONEnabled:          c.GetJsonEnabled(),
		TLSEnabled:           c.GetTlsEnabled(),
		Root:                 c.GetRoot(),
		ProxyToClientEnabled: c.GetProxyToClientEnabled(),
		MapReportingEnabled:  c.GetMapReportingEnabled(),
	}
}

func (f *MQTTForm) Proto(base *pb.LocalModuleConfig) *pb.ModuleConfig {
	c := cloneSection(base.GetMqtt(), &pb.ModuleConfig_MQTTConfig{})
	c.Enabled = f.Enabled
	c.Address = f.Address
	c.Username = f.Username
	c.Password = f.Password
	c.EncryptionEnabled = f.EncryptionEnabled
	c.JsonEnabled = f.JSONEnabled
	c.TlsEnabled = f.TLSEnabled
	c.Root = f.Root
	c.ProxyToClientEnabled = f.ProxyToClientEnabled
	c.MapReportingEnabled = f.MapReportingEnabled
	return &pb.ModuleConfig{PayloadVariant: &pb.ModuleConfig_Mqtt{Mqtt: c}}
}

type SerialForm struct {
	Enabled                   bool   `schema:"enabled"`
	Echo                      bool   `schema:"echo"`
	Rxd                       uint32 `schema:"rxd" validate:"lte=48"`
	Txd                       uint32 `schema:"txd" validate:"lte=48"`
	Baud                      int32  `schema:"baud" validate:"enum=serial_baud"`
	Timeout                   uint32 `schema:"timeout"`
	Mode                      int32  `schema:"mode" validate:"enum=serial_mode"`
	OverrideConsoleSerialPort bool   `schema:"override_console_serial_port"`
}

func (f *SerialForm) Load(cfg *pb.LocalModuleConfig) {
	c := cfg.GetSerial()
	*f = SerialForm{
		Enabled:                   c.GetEnabled(),
		Echo:                      c.GetEcho(),
		Rxd:                       c.GetRxd(),
		Txd:                       c.GetTxd(),
		Baud:                      int32(c.GetBaud()),
		Timeout:                   c.GetTimeout(),
		Mode:                      int32(c.GetMode()),
		OverrideConsoleSerialPort: c.GetOverrideConsoleSerialPort(),
	}
}

func (f *SerialForm) Proto(base *pb.LocalModuleConfig) *pb.ModuleConfig {
	c := cloneSection(base.GetSerial(), &pb.ModuleConfig_SerialConfig{})
	c.Enabled = f.Enabled
	c.Echo = f.Echo
	c.Rxd = f.Rxd
	c.Txd = f.Txd
	c.Baud = pb.ModuleConfig_SerialConfig_Serial_Baud(f.Baud)
	c.Timeout = f.Timeout
	c.Mode = pb.ModuleConfig_SerialConfig_Serial_Mode(f.Mode)
	c.OverrideConsoleSerialPort = f.OverrideConsoleSerialPort
	return &pb.ModuleConfig{PayloadVariant: &pb.ModuleConfig_Serial{Serial: c}}
}

type ExternalNotificationForm struct {
	Enabled      bool   `schema:"enabled"`
	OutputMs     uint32 `schema:"output_ms"`
	Output       uint32 `schema:"output" validate:"lte=48"`
	Active       bool   `schema:"active"`
	AlertMessage bool   `schema:"alert_message"`
	AlertBell    bool   `schema:"alert_bell"`
	UsePwm       bool   `schema:"use_pwm"`
	NagTimeout   uint32 `schema:"nag_timeout"`
}

func (f *ExternalNotificationForm) Load(cfg *pb.LocalModuleConfig) {
	c := cfg.GetExternalNotification()
	*f = ExternalNotificationForm{
		Enabled:      c.GetEnabled(),
		OutputMs:     c.GetOutputMs(),
		Output:       c.GetOutput(),
		Active:       c.GetActive(),
		AlertMessage: c.GetAlertMessage(),
		AlertBell:    c.GetAlertBell(),
		UsePwm:       c.GetUsePwm(),
		NagTimeout:   c.GetNagTimeout(),
	}
}

func (f *ExternalNotificationForm) Proto(base *pb.LocalModuleConfig) *pb.ModuleConfig {
	c := cloneSection(base.GetExternalNotification(), &pb.ModuleConfig_ExternalNotificationConfig{})
	c.Enabled = f.Enabled
	c.OutputMs = f.OutputMs
	c.Output = f.Output
	c.Active = f.Active
	c.AlertMessage = f.AlertMessage
	c.AlertBell = f.AlertBell
	c.UsePwm = f.UsePwm
	c.NagTimeout = f.NagTimeout
	return &pb.ModuleConfig{PayloadVariant: &pb.ModuleConfig_ExternalNotification{ExternalNotification: c}}
}

type StoreForwardForm struct {
	Enabled             bool   `schema:"enabled"`
	Heartbeat           bool   `schema:"heartbeat"`
	Records             uint32 `schema:"records"`
	HistoryReturnMax    uint32 `schema:"history_return_max"`
	HistoryReturnWindow uint32 `schema:"history_return_window"`
	IsServer            bool   `schema:"is_server"`
}

func (f *StoreForwardForm) Load(cfg *pb.LocalModuleConfig) {
	c := cfg.GetStoreForward()
	*f = StoreForwardForm{
		Enabled:             c.GetEnabled(),
		Heartbeat:           c.GetHeartbeat(),
		Records:             c.GetRecords(),
		HistoryReturnMax:    c.GetHistoryReturnMax(),
		HistoryReturnWindow: c.GetHistoryReturnWindow(),
		IsServer:            c.GetIsServer(),
	}
}

func (f *StoreForwardForm) Proto(base *pb.LocalModuleConfig) *pb.ModuleConfig {
	c := cloneSection(base.GetStoreForward(), &pb.ModuleConfig_StoreForwardConfig{})
	c.Enabled = f.Enabled
	c.Heartbeat = f.Heartbeat
	c.Records = f.Records
	c.HistoryReturnMax = f.HistoryReturnMax
	c.HistoryReturnWindow = f.HistoryReturnWindow
	c.IsServer = f.IsServer
	return &pb.ModuleConfig{PayloadVariant: &pb.ModuleConfig_StoreForward{StoreForward: c}}
}

type RangeTestForm struct {
	Enabled bool   `schema:"enabled"`
	Sender  uint32 `schema:"sender"`
	Save    bool   `schema:"save"`
}

func (f *RangeTestForm) Load(cfg *pb.LocalModuleConfig) {
	c := cfg.GetRangeTest()
	*f = RangeTestForm{
		Enabled: c.GetEnabled(),
		Sender:  c.GetSender(),
		Save:    c.GetSave(),
	}
}

func (f *RangeTestForm) Proto(base *pb.LocalModuleConfig) *pb.ModuleConfig {
	c := cloneSection(base.GetRangeTest(), &pb.ModuleConfig_RangeTestConfig{})
	c.Enabled = f.Enabled
	c.Sender = f.Sender
	c.Save = f.Save
	return &pb.ModuleConfig{PayloadVariant: &pb.ModuleConfig_RangeTest{RangeTest: c}}
}

type TelemetryForm struct {
	DeviceUpdateInterval          uint32 `schema:"device_update_interval"`
	EnvironmentUpdateInterval     uint32 `schema:"environment_update_interval"`
	EnvironmentMeasurementEnabled bool   `schema:"environment_measurement_enabled"`
	EnvironmentScreenEnabled      bool   `schema:"environment_screen_enabled"`
	EnvironmentDisplayFahrenheit  bool   `schema:"environment_display_fahrenheit"`
	AirQualityEnabled             bool   `schema:"air_quality_enabled"`
	AirQualityInterval            uint32 `schema:"air_quality_interval"`
	PowerMeasurementEnabled       bool   `schema:"power_measurement_enabled"`
	PowerUpdateInterval           uint32 `schema:"power_update_interval"`
	PowerScreenEnabled            bool   `schema:"power_screen_enabled"`
}

func (f *TelemetryForm) Load(cfg *pb.LocalModuleConfig) {
	c := cfg.GetTelemetry()
	*f = TelemetryForm{
		DeviceUpdateInterval:          c.GetDeviceUpdateInterval(),
		EnvironmentUpdateInterval:     c.GetEnvironmentUpdateInterval(),
		EnvironmentMeasurementEnabled: c.GetEnvironmentMeasurementEnabled(),
		EnvironmentScreenEnabled:      c.GetEnvironmentScreenEnabled(),
		EnvironmentDisplayFahrenheit:  c.GetEnvironmentDisplayFahrenheit(),
		AirQualityEnabled:             c.GetAirQualityEnabled(),
		AirQualityInterval:            c.GetAirQualityInterval(),
		PowerMeasurementEnabled:       c.GetPowerMeasurementEnabled(),
		PowerUpdateInterval:           c.GetPowerUpdateInterval(),
		PowerScreenEnabled:            c.GetPowerScreenEnabled(),
	}
}

func (f *TelemetryForm) Proto(base *pb.LocalModuleConfig) *pb.ModuleConfig {
	c := cloneSection(base.GetTelemetry(), &pb.ModuleConfig_TelemetryConfig{})
	c.DeviceUpdateInterval = f.DeviceUpdateInterval
	c.EnvironmentUpdateInterval = f.EnvironmentUpdateInterval
	c.EnvironmentMeasurementEnabled = f.EnvironmentMeasurementEnabled
	c.EnvironmentScreenEnabled = f.EnvironmentScreenEnabled
	c.EnvironmentDisplayFahrenheit = f.EnvironmentDisplayFahrenheit
	c.AirQualityEnabled = f.AirQualityEnabled
	c.AirQualityInterval = f.AirQualityInterval
	c.PowerMeasurementEnabled = f.PowerMeasurementEnabled
	c.PowerUpdateInterval = f.PowerUpdateInterval
	c.PowerScreenEnabled = f.PowerScreenEnabled
	return &pb.ModuleConfig{PayloadVariant: &pb.ModuleConfig_Telemetry{Telemetry: c}}
}

type CannedMessageForm struct {
	Enabled          bool   `schema:"enabled"`
	Rotary1Enabled   bool   `schema:"rotary1_enabled"`
	Updown1Enabled   bool   `schema:"updown1_enabled"`
	AllowInputSource string `schema:"allow_input_source" validate:"max=15"`
	SendBell         bool   `schema:"send_bell"`
}

func (f *CannedMessageForm) Load(cfg *pb.LocalModuleConfig) {
	c := cfg.GetCannedMessage()
	*f = CannedMessageForm{
		Enabled:          c.GetEnabled(),
		Rotary1Enabled:   c.GetRotary1Enabled(),
		Updown1Enabled:   c.GetUpdown1Enabled(),
		AllowInputSource: c.GetAllowInputSource(),
		SendBell:         c.GetSendBell(),
	}
}

func (f *CannedMessageForm) Proto(base *pb.LocalModuleConfig) *pb.ModuleConfig {
	c := cloneSection(base.GetCannedMessage(), &pb.ModuleConfig_CannedMessageConfig{})
	c.Enabled = f.Enabled
	c.Rotary1Enabled = f.Rotary1Enabled
	c.Updown1Enabled = f.Updown1Enabled
	c.AllowInputSource = f.AllowInputSource
	c.SendBell = f.SendBell
	return &pb.ModuleConfig{PayloadVariant: &pb.ModuleConfig_CannedMessage{CannedMessage: c}}
}
