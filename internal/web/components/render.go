package components

import (
	"context"
	"html/template"
	"io"
	"sync"

	"github.com/a-h/templ"
	"github.com/kabili207/mesh-web-client/internal/web"
)

var (
	templatesMu sync.Mutex
	templates   = map[string]*template.Template{}
)

func lookup(file string) (*template.Template, error) {
	templatesMu.Lock()
	defer templatesMu.Unlock()
	if t, ok := templates[file]; ok {
		return t, nil
	}
	t, err := web.GetHTMLTemplate(file)
	if err != nil {
		return nil, err
	}
	templates[file] = t
	return t, nil
}

// component renders the named template from file as a templ component.
func component(file, name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t, err := lookup(file)
		if err != nil {
			return err
		}
		return t.ExecuteTemplate(w, name, data)
	})
}

func DevicesPage(data DevicesPageData) templ.Component {
	return component("devices", "devices", data)
}

func MessagesPage(data MessagesPageData) templ.Component {
	return component("messages", "messages", data)
}

func ChatContent(chat ChatData) templ.Component {
	return component("messages", "chat", chat)
}

func NodesPage(data NodesPageData) templ.Component {
	return component("nodes", "nodes", data)
}

func NodesTableContent(nodes []NodeData) templ.Component {
	return component("nodes", "nodes-table", nodes)
}

func FormPage(data FormPageData) templ.Component {
	return component("form", "form", data)
}

func ChannelsPage(data ChannelsPageData) templ.Component {
	return component("channels", "channels", data)
}

func InfoPage(data InfoPageData) templ.Component {
	return component("info", "info", data)
}

func InfoContent(data InfoPageData) templ.Component {
	return component("info", "info-content", data)
}

func StatusContent(header DeviceHeader) templ.Component {
	return component("info", "status", header)
}

func LoginPage(data LoginPageData) templ.Component {
	return component("login", "login", data)
}
