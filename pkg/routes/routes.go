package routes

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/kabili207/mesh-web-client/internal/web"
	"github.com/kabili207/mesh-web-client/internal/web/components"
	"github.com/kabili207/mesh-web-client/pkg/auth"
	"github.com/kabili207/mesh-web-client/pkg/config"
	"github.com/kabili207/mesh-web-client/pkg/connection"
	"github.com/kabili207/mesh-web-client/pkg/device"
	"github.com/kabili207/mesh-web-client/pkg/discovery"
	"github.com/kabili207/mesh-web-client/pkg/transport"
)

const (
	sessionName = "meshweb"
)

func init() {
	gob.Register(components.Alert{})
}

// Connector opens and closes radio connections.
type Connector interface {
	Connect(ctx context.Context, target connection.Target) (*device.Device, error)
	Disconnect(id uint32) error
}

// Discoverer lists radios that can be connected to.
type Discoverer interface {
	Scan(ctx context.Context) ([]discovery.Candidate, error)
	Known() []discovery.Candidate
	Forget(kind transport.Kind, address string)
}

type WebRouter struct {
	config       config.Configuration
	registry     *device.Registry
	connector    Connector
	discovery    Discoverer
	sessionStore *sessions.CookieStore
	log          *slog.Logger
}

// NewWebRouter builds the web UI. discoverer may be nil when discovery is disabled.
func NewWebRouter(cfg config.Configuration, registry *device.Registry, connector Connector, discoverer Discoverer, logger *slog.Logger) (*WebRouter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	secret := cfg.SessionSecret
	if secret == "" {
		s, err := auth.RandomHex(32)
		if err != nil {
			return nil, err
		}
		secret = s
		logger.Warn("no session_secret configured, sessions will not survive a restart")
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode

	return &WebRouter{
		config:       cfg,
		registry:     registry,
		connector:    connector,
		discovery:    discoverer,
		sessionStore: store,
		log:          logger.With("component", "web"),
	}, nil
}

func (wr *WebRouter) getSession(r *http.Request) (*sessions.Session, error) {
	return wr.sessionStore.Get(r, sessionName)
}

// ListenAndServe serves the UI until ctx is cancelled.
func (wr *WebRouter) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              wr.config.ListenAddr,
		Handler:           wr.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// cancelling ctx also ends long lived SSE requests
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			wr.log.Error("http shutdown", "error", err)
		}
	}()

	wr.log.Info("listening", "addr", wr.config.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (wr *WebRouter) Handler() http.Handler {
	myRouter := mux.NewRouter().StrictSlash(true)

	myRouter.HandleFunc("/login", wr.loginPage).Methods("GET")
	myRouter.HandleFunc("/login", wr.loginSubmit).Methods("POST")
	myRouter.HandleFunc("/logout", wr.logout).Methods("POST")
	myRouter.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServerFS(web.StaticFS())))

	app := myRouter.PathPrefix("/").Subrouter()
	app.Use(wr.requireLogin)

	app.HandleFunc("/", wr.devicesPage).Methods("GET")
	app.HandleFunc("/discovery/scan", wr.scanDevices).Methods("POST")
	app.HandleFunc("/devices/connect", wr.connectDevice).Methods("POST")
	app.HandleFunc("/devices/{id}", wr.devicePage).Methods("GET")
	app.HandleFunc("/devices/{id}/disconnect", wr.disconnectDevice).Methods("POST")
	app.HandleFunc("/devices/{id}/events", wr.deviceSSE).Methods("GET")
	app.HandleFunc("/devices/{id}/messages", wr.messagesPage).Methods("GET")
	app.HandleFunc("/devices/{id}/messages", wr.sendMessage).Methods("POST")
	app.HandleFunc("/devices/{id}/nodes", wr.nodesPage).Methods("GET")
	app.HandleFunc("/devices/{id}/config", wr.configPage).Methods("GET", "POST")
	app.HandleFunc("/devices/{id}/config/{section}", wr.configPage).Methods("GET", "POST")
	app.HandleFunc("/devices/{id}/modules", wr.modulesPage).Methods("GET", "POST")
	app.HandleFunc("/devices/{id}/modules/{section}", wr.modulesPage).Methods("GET", "POST")
	app.HandleFunc("/devices/{id}/channels", wr.channelsPage).Methods("GET")
	app.HandleFunc("/devices/{id}/channels/{index}", wr.channelPage).Methods("GET", "POST")
	app.HandleFunc("/devices/{id}/info", wr.infoPage).Methods("GET")
	app.HandleFunc("/devices/{id}/reboot", wr.rebootDevice).Methods("POST")

	app.HandleFunc("/api/devices", wr.getDevices).Methods("GET")
	app.HandleFunc("/api/devices/{id}", wr.getDevice).Methods("GET")
	app.HandleFunc("/api/discovery", wr.getDiscovery).Methods("GET")

	myRouter.Use(handlers.ProxyHeaders)
	myRouter.Use(wr.RequestLogger)
	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))

	return h(myRouter)
}

func (wr *WebRouter) RequestLogger(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		wr.log.Debug("endpoint hit", "method", r.Method, "path", r.URL.Path, "remote_host", r.RemoteAddr, "user_agent", r.UserAgent())
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// render buffers comp so a template error can still become a 500.
func (wr *WebRouter) render(w http.ResponseWriter, r *http.Request, status int, comp templ.Component, page string) {
	var buf bytes.Buffer
	if err := comp.Render(r.Context(), &buf); err != nil {
		wr.log.Error("error rendering page", "page", page, "error", err)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (wr *WebRouter) flash(w http.ResponseWriter, r *http.Request, alert components.Alert) {
	session, _ := wr.getSession(r)
	session.AddFlash(alert)
	if err := session.Save(r, w); err != nil {
		wr.log.Error("error saving session", "error", err)
	}
}

func (wr *WebRouter) flashError(w http.ResponseWriter, r *http.Request, message string, err error) {
	detail := err.Error()
	wr.flash(w, r, components.Alert{Type: "danger", Message: message, Detail: &detail})
}

// layout collects pending alerts and the device switcher. It must run before
// anything is written to w because it saves the session.
func (wr *WebRouter) layout(w http.ResponseWriter, r *http.Request, title string, active *device.Device) components.Layout {
	l := components.Layout{
		PageTitle:   title,
		AuthEnabled: wr.config.AuthEnabled(),
		LoggedIn:    wr.isLoggedIn(r),
	}

	session, _ := wr.getSession(r)
	if flashes := session.Flashes(); len(flashes) > 0 {
		for _, f := range flashes {
			if a, ok := f.(components.Alert); ok {
				l.Alerts = append(l.Alerts, a)
			}
		}
		if err := session.Save(r, w); err != nil {
			wr.log.Error("error saving session", "error", err)
		}
	}

	for _, d := range wr.registry.Devices() {
		snap := d.Snapshot()
		l.Devices = append(l.Devices, components.DeviceLink{
			ID:     d.ID,
			Title:  snap.Title(),
			Status: snap.Status.String(),
			Active: active != nil && d.ID == active.ID,
		})
	}
	if active != nil {
		snap := active.Snapshot()
		header := deviceHeader(snap)
		l.Device = &header
		q := url.Values{"page": {string(snap.ActivePage)}, "chat": {snap.ActiveChat.String()}}
		l.SSEEndpoint = deviceURL(active, "events") + "?" + q.Encode()
	}
	return l
}

// device resolves the {id} route variable. When it fails the response has
// already been written.
func (wr *WebRouter) device(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err == nil {
		if dev, ok := wr.registry.Device(uint32(id)); ok {
			return dev, true
		}
	}
	wr.flashError(w, r, "That radio is no longer connected", device.ErrDeviceNotFound)
	http.Redirect(w, r, "/", http.StatusSeeOther)
	return nil, false
}

func deviceURL(dev *device.Device, page string) string {
	return "/devices/" + strconv.FormatUint(uint64(dev.ID), 10) + "/" + page
}
