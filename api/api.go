// Package api serves the management endpoints: live server counters,
// the share and session lists, and the ban list.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

// Status reports the server counters accumulated since start.
type Status struct {
	Version       string    `json:"version"`
	ServerName    string    `json:"serverName"`
	Workgroup     string    `json:"workgroup"`
	StartTime     time.Time `json:"startTime"`
	Connections   int       `json:"connections"`
	Sessions      int       `json:"sessions"`
	OpenFiles     int       `json:"openFiles"`
	FileOpens     uint32    `json:"fileOpens"`
	SessionOpens  uint32    `json:"sessionOpens"`
	SessionsTimed uint32    `json:"sessionsTimedOut"`
	LoginFailures uint32    `json:"loginFailures"`
	AccessDenials uint32    `json:"accessDenials"`
	BytesSent     uint64    `json:"bytesSent"`
	BytesReceived uint64    `json:"bytesReceived"`
}

// Share describes one exported share.
type Share struct {
	Name      string `json:"name"`
	Remark    string `json:"remark,omitempty"`
	Writeable bool   `json:"writeable"`
	GuestOK   bool   `json:"guestOk"`
}

// Session describes one authenticated session.
type Session struct {
	Client      string    `json:"client"`
	User        string    `json:"user"`
	Workstation string    `json:"workstation,omitempty"`
	Guest       bool      `json:"guest"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Ban describes one blocked host.
type Ban struct {
	Host   string    `json:"host"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason"`
}

// Provider exposes the live server state the API reports on.
type Provider interface {
	Status() Status
	Shares() []Share
	Sessions() []Session
	Bans() []Ban
	Ban(host, reason string) error
	Unban(host string) error
}

// API routes management requests to the provider.
type API struct {
	router httprouter.Router
	p      Provider
}

// NewAPI returns an initialized API object.
func NewAPI(p Provider) *API {
	api := &API{p: p}
	api.router.GET("/api/status", api.status)
	api.router.GET("/api/shares", api.shares)
	api.router.GET("/api/sessions", api.sessions)
	api.router.GET("/api/bans", api.bans)
	api.router.POST("/api/bans/:host", api.ban)
	api.router.DELETE("/api/bans/:host", api.unban)
	return api
}

// BasicAuth wraps an http.Handler to force a basic auth with a password.
func BasicAuth(password string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if _, p, ok := req.BasicAuth(); !ok || p != password {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			h.ServeHTTP(w, req)
		})
	}
}

// ServeHTTP implements http.HandlerFunc.
func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	enc.Encode(v)
}

func (api *API) status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, api.p.Status())
}

func (api *API) shares(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, api.p.Shares())
}

func (api *API) sessions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, api.p.Sessions())
}

func (api *API) bans(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, api.p.Bans())
}

func (api *API) ban(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "banned by operator"
	}
	if err := api.p.Ban(ps.ByName("host"), reason); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) unban(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := api.p.Unban(ps.ByName("host")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
