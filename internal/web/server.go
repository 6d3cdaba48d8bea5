// Package web provides an HTTP status page and control API for gadgetd.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pocketgadget/gadgetd/internal/logger"
	"github.com/pocketgadget/gadgetd/internal/status"
)

// commandTimeout bounds how long a handler waits for room on a command queue.
const commandTimeout = 2 * time.Second

// Controls is the command surface the API forwards to.
type Controls interface {
	PowerOff(ctx context.Context) error
	SetBrightness(ctx context.Context, step int) error
	StartAdvertising(ctx context.Context) error
	StopAdvertising(ctx context.Context) error
	SetAdvertisingPower(ctx context.Context, level int) error
}

// Server serves the status page and the control API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	controls   Controls
	log        *logger.Logger
}

// New creates a Server that reads state from tracker and sends commands to
// controls. A nil controls serves the read-only endpoints only.
func New(addr string, tracker *status.Tracker, controls Controls, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{tracker: tracker, controls: controls, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /api/status", s.handleJSON)
	if controls != nil {
		mux.HandleFunc("POST /api/advert/start", s.command("advert start", controls.StartAdvertising))
		mux.HandleFunc("POST /api/advert/stop", s.command("advert stop", controls.StopAdvertising))
		mux.HandleFunc("POST /api/advert/power", s.intCommand("advert power", "level", controls.SetAdvertisingPower))
		mux.HandleFunc("POST /api/display/brightness", s.intCommand("brightness", "step", controls.SetBrightness))
		mux.HandleFunc("POST /api/power/off", s.command("power off", controls.PowerOff))
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the request router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.log.Warnf("render status page: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) command(name string, fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
		defer cancel()
		s.reply(w, name, fn(ctx))
	}
}

func (s *Server) intCommand(name, param string, fn func(context.Context, int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.URL.Query().Get(param))
		if err != nil {
			writeResult(w, http.StatusBadRequest, name, "missing or invalid "+param)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
		defer cancel()
		s.reply(w, name, fn(ctx, n))
	}
}

func (s *Server) reply(w http.ResponseWriter, name string, err error) {
	if err != nil {
		s.log.Warnf("http %s: %v", name, err)
		writeResult(w, statusFor(err), name, err.Error())
		return
	}
	s.log.Infof("http %s accepted", name)
	writeResult(w, http.StatusAccepted, name, "")
}
