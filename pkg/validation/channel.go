package validation

import (
	"strings"

	"github.com/kabili207/mesh-web-client/pkg/meshtastic/radio"
	pb "github.com/kabili207/meshtastic-go/core/proto"
)

// ChannelForm edits one channel slot.
type ChannelForm struct {
	Index             int32  `schema:"index" validate:"gte=0,lte=7"`
	Role              int32  `schema:"role" validate:"enum=channel_role"`
	ChannelNum        uint32 `schema:"channel_num"`
	ID                uint32 `schema:"id"`
	Name              string `schema:"name" validate:"required,min=1,max=30"`
	PSK               string `schema:"psk" validate:"psk"`
	UplinkEnabled     bool   `schema:"uplink_enabled"`
	DownlinkEnabled   bool   `schema:"downlink_enabled"`
	PositionPrecision uint32 `schema:"position_precision" validate:"lte=32"`
	IsClientMuted     bool   `schema:"is_client_muted"`
}

func ChannelFormFrom(ch *pb.Channel) ChannelForm {
	s := ch.GetSettings()
	return ChannelForm{
		Index:             ch.GetIndex(),
		Role:              int32(ch.GetRole()),
		ChannelNum:        s.GetChannelNum(),
		ID:                s.GetId(),
		Name:              s.GetName(),
		PSK:               radio.FormatPSK(s.GetPsk()),
		UplinkEnabled:     s.GetUplinkEnabled(),
		DownlinkEnabled:   s.GetDownlinkEnabled(),
		PositionPrecision: s.GetModuleSettings().GetPositionPrecision(),
		IsClientMuted:     s.GetModuleSettings().GetIsMuted(),
	}
}

// Proto converts a validated form. The PSK has already passed the psk rule,
// so a parse error here means the form was not validated. A PSK of "random"
// is replaced with a new 256 bit key.
func (f ChannelForm) Proto() (*pb.Channel, error) {
	var psk []byte
	var err error
	if strings.EqualFold(strings.TrimSpace(f.PSK), radio.PSKRandom) {
		psk, err = radio.GeneratePSK(radio.PSKSize256)
	} else {
		psk, err = radio.ParsePSK(f.PSK)
	}
	if err != nil {
		return nil, err
	}
	return &pb.Channel{
		Index: f.Index,
		Role:  pb.Channel_Role(f.Role),
		Settings: &pb.ChannelSettings{
			ChannelNum:      f.ChannelNum,
			Id:              f.ID,
			Name:            f.Name,
			Psk:             psk,
			UplinkEnabled:   f.UplinkEnabled,
			DownlinkEnabled: f.DownlinkEnabled,
			ModuleSettings: &pb.ModuleSettings{
				PositionPrecision: f.PositionPrecision,
				IsMuted:           f.IsClientMuted,
			},
		},
	}, nil
}
