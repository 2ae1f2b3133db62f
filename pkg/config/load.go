package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
	"github.com/spf13/viper"
)

const envPrefix = "MESHWEB"

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("session_secret", "")
	v.SetDefault("base_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.password_salt", "")

	v.SetDefault("database.path", "")
	v.SetDefault("database.history_limit", 200)

	v.SetDefault("discovery.cache_ttl", 5*time.Minute)
	v.SetDefault("discovery.ble", true)
	v.SetDefault("discovery.ble_timeout", 5*time.Second)
	v.SetDefault("discovery.serial", true)
	v.SetDefault("discovery.usb_only", true)
	v.SetDefault("discovery.mdns", true)
	v.SetDefault("discovery.mdns_timeout", 3*time.Second)

	v.SetDefault("radio.send_interval", 250*time.Millisecond)
	v.SetDefault("radio.send_burst", 4)
	v.SetDefault("radio.heartbeat", 5*time.Minute)
	v.SetDefault("radio.connect_timeout", time.Minute)
	v.SetDefault("radio.reconnect_delay", time.Second)
	v.SetDefault("radio.ack_timeout", 5*time.Minute)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "meshweb")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.root", "meshweb")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "")
	v.SetDefault("influx.bucket", "meshtastic")
}

// Load reads config.yaml from the working directory or /etc/meshweb, or the
// file at path when given, then applies MESHWEB_* environment overrides
// (MESHWEB_MQTT_BROKER sets mqtt.broker).
func Load(path string) (Configuration, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/meshweb")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Configuration{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Configuration
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		nodeIDHook,
	)))
	if err != nil {
		return Configuration{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

var nodeIDType = reflect.TypeOf(meshtastic.NodeID(0))

// nodeIDHook accepts node ids written as "!1234abcd" as well as numbers.
func nodeIDHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != nodeIDType || from.Kind() != reflect.String {
		return data, nil
	}
	return meshtastic.ParseNodeID(data.(string))
}
