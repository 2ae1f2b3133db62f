package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/kabili207/mesh-web-client/internal/web/components"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/meshtastic/radio"
	"github.com/kabili207/mesh-web-client/pkg/validation"
	pb "github.com/kabili207/meshtastic-go/core/proto"
)

const maxChannels = 8

// settingsForm binds one form view-model to the radio.
type settingsForm struct {
	heading string
	page    device.Page
	// current returns the form filled from the device, blank an empty form
	// for decoding a post into.
	current func(snap device.Snapshot) any
	blank   func() any
	save    func(ctx context.Context, conn device.Connection, form any) error
}

func (wr *WebRouter) serveSettings(w http.ResponseWriter, r *http.Request, dev *device.Device, sf settingsForm, sections []components.SectionLink) {
	dev.SetActivePage(sf.page)
	action := r.URL.Path

	renderForm := func(status int, form any, errs validation.FieldErrors, errMsg string) {
		data := components.FormPageData{
			Layout:   wr.layout(w, r, sf.heading, dev),
			Heading:  sf.heading,
			Action:   action,
			Sections: sections,
			Fields:   validation.Fields(form, errs),
			Error:    errMsg,
		}
		wr.render(w, r, status, components.FormPage(data), "form")
	}

	if r.Method != http.MethodPost {
		renderForm(http.StatusOK, sf.current(dev.Snapshot()), nil, "")
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	form := sf.blank()
	if err := validation.DecodeAndValidate(form, r.PostForm); err != nil {
		var fe validation.FieldErrors
		if !errors.As(err, &fe) {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		renderForm(http.StatusUnprocessableEntity, form, fe, "")
		return
	}

	conn, ok := dev.Connection()
	if !ok {
		renderForm(http.StatusConflict, form, nil, device.ErrNoConnection.Error())
		return
	}
	if err := sf.save(r.Context(), conn, form); err != nil {
		wr.log.Error("error saving settings", "device", dev.ID, "form", sf.heading, "error", err)
		renderForm(http.StatusBadGateway, form, nil, err.Error())
		return
	}

	wr.flash(w, r, components.Alert{Type: "success", Message: "Saved " + sf.heading})
	http.Redirect(w, r, action, http.StatusSeeOther)
}

func sectionLinks(dev *device.Device, base, active string, names, titles []string) []components.SectionLink {
	links := make([]components.SectionLink, len(names))
	for i, name := range names {
		links[i] = components.SectionLink{
			Name:   name,
			Title:  titles[i],
			Href:   deviceURL(dev, base+"/"+name),
			Active: name == active,
		}
	}
	return links
}

const userSection = "user"

// userSettings edits the owner. Saving keeps the id, hardware model and keys
// the form does not cover.
func userSettings(dev *device.Device) settingsForm {
	return settingsForm{
		heading: "User",
		page:    device.PageConfig,
		current: func(snap device.Snapshot) any {
			node, _ := snap.MyNode()
			form := validation.UserFormFrom(node.Data.GetUser())
			return &form
		},
		blank: func() any { return &validation.UserForm{} },
		save: func(ctx context.Context, conn device.Connection, form any) error {
			node, _ := dev.MyNode()
			return conn.SetOwner(ctx, form.(*validation.UserForm).Apply(node.Data.GetUser()))
		},
	}
}

func (wr *WebRouter) configPage(w http.ResponseWriter, r *http.Request) {
	dev, ok := wr.device(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["section"]
	if name == "" {
		name = userSection
	}

	names, titles := []string{userSection}, []string{"User"}
	for _, s := range validation.ConfigSections {
		names = append(names, s.Name)
		titles = append(titles, s.Title)
	}
	links := sectionLinks(dev, "config", name, names, titles)

	if name == userSection {
		wr.serveSettings(w, r, dev, userSettings(dev), links)
		return
	}

	section, ok := validation.ConfigSectionByName(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	wr.serveSettings(w, r, dev, settingsForm{
		heading: section.Title,
		page:    device.PageConfig,
		current: func(snap device.Snapshot) any {
			form := section.New()
			form.Load(snap.Config)
			return form
		},
		blank: func() any { return section.New() },
		save: func(ctx context.Context, conn device.Connection, form any) error {
			return conn.SetConfig(ctx, form.(validation.ConfigForm).Proto(dev.Config()))
		},
	}, links)
}

func (wr *WebRouter) modulesPage(w http.ResponseWriter, r *http.Request) {
	dev, ok := wr.device(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["section"]
	if name == "" {
		name = validation.ModuleSections[0].Name
	}
	section, ok := validation.ModuleSectionByName(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var names, titles []string
	for _, s := range validation.ModuleSections {
		names = append(names, s.Name)
		titles = append(titles, s.Title)
	}

	wr.serveSettings(w, r, dev, settingsForm{
		heading: section.Title,
		page:    device.PageExtensions,
		current: func(snap device.Snapshot) any {
			form := section.New()
			form.Load(snap.ModuleConfig)
			return form
		},
		blank: func() any { return section.New() },
		save: func(ctx context.Context, conn device.Connection, form any) error {
			return conn.SetModuleConfig(ctx, form.(validation.ModuleForm).Proto(dev.ModuleConfig()))
		},
	}, sectionLinks(dev, "modules", name, names, titles))
}

func (wr *WebRouter) channelsPage(w http.ResponseWriter, r *http.Request) {
	dev, ok := wr.device(w, r)
	if !ok {
		return
	}
	dev.SetActivePage(device.PageChannels)

	layout := wr.layout(w, r, "Channels", dev)
	snap := dev.Snapshot()
	data := components.ChannelsPageData{Layout: layout, DeviceID: dev.ID}
	for i := int32(0); i < maxChannels; i++ {
		cd := components.ChannelData{Index: i, Name: fmt.Sprintf("Channel: %d", i), Role: pb.Channel_DISABLED.String()}
		if ch, ok := snap.Channel(i); ok {
			cd.Name = ch.Name()
			cd.Role = ch.Config.GetRole().String()
			cd.Enabled = ch.Config.GetRole() != pb.Channel_DISABLED
			cd.Count = len(ch.Messages)
			cd.Hash = channelHash(snap, ch)
		}
		data.Channels = append(data.Channels, cd)
	}
	wr.render(w, r, http.StatusOK, components.ChannelsPage(data), "channels")
}

func (wr *WebRouter) channelPage(w http.ResponseWriter, r *http.Request) {
	dev, ok := wr.device(w, r)
	if !ok {
		return
	}
	index, err := strconv.ParseInt(mux.Vars(r)["index"], 10, 32)
	if err != nil || index < 0 || index >= maxChannels {
		http.NotFound(w, r)
		return
	}

	wr.serveSettings(w, r, dev, settingsForm{
		heading: fmt.Sprintf("Channel %d", index),
		page:    device.PageChannels,
		current: func(snap device.Snapshot) any {
			ch, ok := snap.Channel(int32(index))
			if !ok {
				return &validation.ChannelForm{Index: int32(index)}
			}
			form := validation.ChannelFormFrom(ch.Config)
			return &form
		},
		blank: func() any { return &validation.ChannelForm{} },
		save: func(ctx context.Context, conn device.Connection, form any) error {
			f := form.(*validation.ChannelForm)
			f.Index = int32(index)
			ch, err := f.Proto()
			if err != nil {
				return err
			}
			return conn.SetChannel(ctx, ch)
		},
	}, nil)
}

// channelHash is the header byte radios use to pick a channel key, or empty
// for a disabled slot. Secondary channels without a key share the primary's.
func channelHash(snap device.Snapshot, ch device.Channel) string {
	if ch.Config.GetRole() == pb.Channel_DISABLED {
		return ""
	}
	s := ch.Config.GetSettings()
	psk := s.GetPsk()
	if len(psk) == 0 && ch.Config.GetRole() == pb.Channel_SECONDARY {
		for _, primary := range snap.Channels {
			if primary.Config.GetRole() == pb.Channel_PRIMARY {
				psk = primary.Config.GetSettings().GetPsk()
				break
			}
		}
	}
	h, err := radio.ChannelHash(radio.ChannelName(s, snap.Config.GetLora()), psk)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("0x%02x", h)
}
