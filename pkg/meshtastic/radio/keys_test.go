package radio

import (
	"testing"

	"github.com/kabili207/meshtastic-go/core/crypto"
	pb "github.com/kabili207/meshtastic-go/core/proto"
	"github.com/stretchr/testify/require"
)

func TestParsePSK(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []byte
		wantLen int
		wantErr bool
	}{
		{name: "empty", in: "", want: []byte{}},
		{name: "default shorthand", in: "AQ==", want: []byte{1}},
		{name: "no encryption", in: "AA==", want: []byte{0}},
		{name: "default key compacts", in: "1PG7OiApB1nwvP+rz05pAQ==", want: []byte{1}},
		{name: "url safe", in: "_____________________w==", wantLen: 16},
		{name: "short key is padded", in: "AQID", wantLen: 16},
		{name: "bad base64", in: "not base64!", wantErr: true},
		{name: "aes192 is not supported", in: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParsePSK(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want != nil {
				require.Equal(t, tt.want, key)
				return
			}
			require.Len(t, key, tt.wantLen)
		})
	}
}

func TestGeneratePSK(t *testing.T) {
	key, err := GeneratePSK(PSKSize256)
	require.NoError(t, err)
	require.Len(t, key, 32)

	parsed, err := ParsePSK(FormatPSK(key))
	require.NoError(t, err)
	require.Equal(t, key, parsed)

	_, err = GeneratePSK(7)
	require.Error(t, err)
}

func TestChannelHash(t *testing.T) {
	withDefault, err := ChannelHash("LongFast", []byte{1})
	require.NoError(t, err)
	expanded, err := crypto.ChannelHash("LongFast", crypto.DefaultKey)
	require.NoError(t, err)
	require.Equal(t, expanded, withDefault)
	require.Equal(t, uint32(0x08), withDefault)

	other, err := ChannelHash("LongFast", []byte{2})
	require.NoError(t, err)
	require.NotEqual(t, withDefault, other)

	// unencrypted channels hash the name alone
	open, err := ChannelHash("LongFast", nil)
	require.NoError(t, err)
	require.Equal(t, uint32(0x0a), open)
	disabled, err := ChannelHash("LongFast", []byte{0})
	require.NoError(t, err)
	require.Equal(t, open, disabled)
}

func TestChannelName(t *testing.T) {
	require.Equal(t, "ops", ChannelName(&pb.ChannelSettings{Name: "ops"}, nil))
	require.Equal(t, "LongFast", ChannelName(nil, nil))
	require.Equal(t, "MediumSlow", ChannelName(&pb.ChannelSettings{}, &pb.Config_LoRaConfig{
		UsePreset:   true,
		ModemPreset: pb.Config_LoRaConfig_MEDIUM_SLOW,
	}))
	require.Equal(t, "Custom", ChannelName(nil, &pb.Config_LoRaConfig{UsePreset: false}))
}
