package radio

import (
	cryptoRand "crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/kabili207/meshtastic-go/core/crypto"
	pb "github.com/kabili207/meshtastic-go/core/proto"
)

const (
	// PSKSizeDefault selects one of the well known keys derived from the default key.
	PSKSizeDefault = 1
	PSKSize128     = 16
	PSKSize256     = 32

	// PSKRandom in a form asks for a freshly generated AES-256 key.
	PSKRandom = "random"
)

// ParsePSK decodes a base64 channel key as shown in the official apps. Keys
// from the default family come back in their one byte form and "AA==" turns
// encryption off. An empty string leaves the key unset, which the radio reads
// as no encryption on the primary channel and the primary's key elsewhere.
func ParsePSK(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []byte{}, nil
	}
	key, err := crypto.ParseKey(s)
	if err != nil {
		return nil, fmt.Errorf("psk is not valid base64: %w", err)
	}
	if len(key) == 0 {
		return []byte{0}, nil
	}
	if !ValidPSKLength(len(key)) {
		return nil, fmt.Errorf("psk must be 0, 1, 16 or 32 bytes, got %d", len(key))
	}
	return crypto.TryCompactKey(key), nil
}

// FormatPSK encodes a channel key for display.
func FormatPSK(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func ValidPSKLength(n int) bool {
	return n == 0 || n == PSKSizeDefault || n == PSKSize128 || n == PSKSize256
}

// GeneratePSK creates a random AES key of the given size in bytes.
func GeneratePSK(size int) ([]byte, error) {
	if size != PSKSize128 && size != PSKSize256 {
		return nil, fmt.Errorf("key size must be %d or %d bytes", PSKSize128, PSKSize256)
	}
	key := make([]byte, size)
	if _, err := cryptoRand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// ChannelHash computes the one byte channel identifier carried in packet
// headers. An unencrypted channel, one with no key or the shorthand 0,
// hashes its name alone.
func ChannelHash(name string, psk []byte) (uint32, error) {
	// a zero byte leaves the xor of the name unchanged
	key := []byte{0}
	if len(psk) > 0 {
		if expanded := crypto.ExpandShortPSK(psk); len(expanded) > 0 {
			key = expanded
		}
	}
	return crypto.ChannelHash(name, key)
}

var presetNames = map[pb.Config_LoRaConfig_ModemPreset]string{
	pb.Config_LoRaConfig_LONG_FAST:      "LongFast",
	pb.Config_LoRaConfig_LONG_SLOW:      "LongSlow",
	pb.Config_LoRaConfig_VERY_LONG_SLOW: "VLongSlow",
	pb.Config_LoRaConfig_MEDIUM_SLOW:    "MediumSlow",
	pb.Config_LoRaConfig_MEDIUM_FAST:    "MediumFast",
	pb.Config_LoRaConfig_SHORT_SLOW:     "ShortSlow",
	pb.Config_LoRaConfig_SHORT_FAST:     "ShortFast",
	pb.Config_LoRaConfig_LONG_MODERATE:  "LongMod",
	pb.Config_LoRaConfig_SHORT_TURBO:    "ShortTurbo",
	pb.Config_LoRaConfig_LONG_TURBO:     "LongTurbo",
}

// ChannelName is the name radios put on the air for a channel. A channel
// without a name goes by its modem preset, or "Custom" when the radio is not
// using a preset.
func ChannelName(settings *pb.ChannelSettings, lora *pb.Config_LoRaConfig) string {
	if name := settings.GetName(); name != "" {
		return name
	}
	if lora != nil && !lora.GetUsePreset() {
		return "Custom"
	}
	if name, ok := presetNames[lora.GetModemPreset()]; ok {
		return name
	}
	return "Invalid"
}
