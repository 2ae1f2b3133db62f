package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"github.com/kabili207/mesh-web-client/pkg/meshtastic"
)

//go:embed templates static
var ContentFS embed.FS

func StaticFS() fs.FS {
	staticFS, _ := fs.Sub(ContentFS, "static")
	return staticFS
}

// GetHTMLTemplate parses the shared templates together with <name>.tmpl.html.
func GetHTMLTemplate(name string) (*template.Template, error) {
	funcMap := template.FuncMap{
		"nodeid": nodeIDFunc,
		"clock":  clockFunc,
		"ago":    agoFunc,
		"lower":  strings.ToLower,
	}
	templateFS, _ := fs.Sub(ContentFS, "templates")

	return template.New(name).Funcs(funcMap).ParseFS(templateFS, "common/*.tmpl.html", name+".tmpl.html")
}

func nodeIDFunc(num uint32) string {
	return meshtastic.NodeID(num).String()
}

func clockFunc(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("15:04")
}

func agoFunc(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return t.Local().Format("2006-01-02")
}
