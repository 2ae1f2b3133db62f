package routes

import (
	"net/http"
	"strings"

	"github.com/kabili207/mesh-web-client/internal/web/components"
	"github.com/kabili207/mesh-web-client/pkg/auth"
)

const authenticatedKey = "authenticated"

func (wr *WebRouter) isLoggedIn(r *http.Request) bool {
	session, err := wr.getSession(r)
	if err != nil {
		return false
	}
	ok, _ := session.Values[authenticatedKey].(bool)
	return ok
}

func (wr *WebRouter) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !wr.config.AuthEnabled() || wr.isLoggedIn(r) {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasSuffix(r.URL.Path, "/events") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

func (wr *WebRouter) loginPage(w http.ResponseWriter, r *http.Request) {
	if !wr.config.AuthEnabled() || wr.isLoggedIn(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	data := components.LoginPageData{Layout: wr.loginLayout(w, r)}
	wr.render(w, r, http.StatusOK, components.LoginPage(data), "login")
}

func (wr *WebRouter) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if !wr.config.AuthEnabled() {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if !auth.VerifyPassword(r.PostForm.Get("password"), wr.config.Auth.PasswordSalt, wr.config.Auth.PasswordHash) {
		wr.log.Warn("failed login", "remote_host", r.RemoteAddr)
		data := components.LoginPageData{Layout: wr.loginLayout(w, r), Error: "Incorrect password"}
		wr.render(w, r, http.StatusUnauthorized, components.LoginPage(data), "login")
		return
	}

	session, _ := wr.getSession(r)
	session.Values[authenticatedKey] = true
	if err := session.Save(r, w); err != nil {
		wr.log.Error("error saving session", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (wr *WebRouter) logout(w http.ResponseWriter, r *http.Request) {
	session, _ := wr.getSession(r)
	delete(session.Values, authenticatedKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		wr.log.Error("error saving session", "error", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// loginLayout hides the device switcher from visitors who are not logged in.
func (wr *WebRouter) loginLayout(w http.ResponseWriter, r *http.Request) components.Layout {
	l := wr.layout(w, r, "Log in", nil)
	l.Devices = nil
	return l
}
