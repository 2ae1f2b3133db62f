package validation

import (
	pb "github.com/kabili207/meshtastic-go/core/proto"
)

// UserForm edits the radio owner.
type UserForm struct {
	LongName   string `schema:"long_name" validate:"required,max=39"`
	ShortName  string `schema:"short_name" validate:"required,max=4"`
	IsLicensed bool   `schema:"is_licensed"`
}

func UserFormFrom(u *pb.User) UserForm {
	return UserForm{
		LongName:   u.GetLongName(),
		ShortName:  u.GetShortName(),
		IsLicensed: u.GetIsLicensed(),
	}
}

// Apply returns a copy of base with the form's fields set, so fields the
// form does not cover (id, hardware model, keys) are kept.
func (f UserForm) Apply(base *pb.User) *pb.User {
	u := &pb.User{}
	if base != nil {
		u.Id = base.GetId()
		u.HwModel = base.GetHwModel()
		u.Role = base.GetRole()
		u.PublicKey = base.GetPublicKey()
	}
	u.LongName = f.LongName
	u.ShortName = f.ShortName
	u.IsLicensed = f.IsLicensed
	return u
}
