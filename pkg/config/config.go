package config

import (
	"time"

	"github.com/kabili207/mesh-web-client/pkg/connection"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
)

type Configuration struct {
	ListenAddr    string `mapstructure:"listen_addr"`
	SessionSecret string `mapstructure:"session_secret"`
	BaseURL       string `mapstructure:"base_url"`
	LogLevel      string `mapstructure:"log_level"`
	// Auth enables the login page when a password hash is set. Generate the
	// hash and salt with cmd/genpass.
	Auth struct {
		PasswordHash string `mapstructure:"password_hash"`
		PasswordSalt string `mapstructure:"password_salt"`
	} `mapstructure:"auth"`
	Database    DatabaseSettings    `mapstructure:"database"`
	Discovery   DiscoverySettings   `mapstructure:"discovery"`
	Radio       RadioSettings       `mapstructure:"radio"`
	AutoConnect []connection.Target `mapstructure:"auto_connect"`
	MQTT        MQTTSettings        `mapstructure:"mqtt"`
	Influx      InfluxSettings      `mapstructure:"influx"`
	// IgnoreNodes are never mirrored to MQTT or InfluxDB.
	IgnoreNodes []meshtastic.NodeID `mapstructure:"ignore_nodes"`
}

func (c Configuration) AuthEnabled() bool {
	return c.Auth.PasswordHash != ""
}

type DatabaseSettings struct {
	// Path of the SQLite file. Empty disables message history.
	Path         string `mapstructure:"path"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

type DiscoverySettings struct {
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	BLE         bool          `mapstructure:"ble"`
	BLETimeout  time.Duration `mapstructure:"ble_timeout"`
	Serial      bool          `mapstructure:"serial"`
	USBOnly     bool          `mapstructure:"usb_only"`
	MDNS        bool          `mapstructure:"mdns"`
	MDNSTimeout time.Duration `mapstructure:"mdns_timeout"`
}

type RadioSettings struct {
	SendInterval   time.Duration `mapstructure:"send_interval"`
	SendBurst      int           `mapstructure:"send_burst"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	AckTimeout     time.Duration `mapstructure:"ack_timeout"`
}

type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Root     string `mapstructure:"root"`
	QoS      byte   `mapstructure:"qos"`
	Retain   bool   `mapstructure:"retain"`
}

type InfluxSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}
