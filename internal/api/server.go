package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"time"

	"github.com/bryanchriswhite/snapflow/internal/app"
	"github.com/bryanchriswhite/snapflow/internal/capture"
	"github.com/bryanchriswhite/snapflow/internal/config"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/bryanchriswhite/snapflow/internal/platform"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	app      *app.App
	upgrader websocket.Upgrader
	server   *http.Server
}

// NewServer creates a new API server
func NewServer(a *app.App) *Server {
	s := &Server{
		router: mux.NewRouter(),
		app:    a,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Desktop state
	api.HandleFunc("/surfaces", s.handleGetSurfaces).Methods("GET")
	api.HandleFunc("/windows", s.handleGetWindows).Methods("GET")
	api.HandleFunc("/windows/active", s.handleGetActiveWindow).Methods("GET")

	// Captures
	api.HandleFunc("/captures", s.handleCapture).Methods("POST")
	api.HandleFunc("/captures/latest", s.handleLatestCapture).Methods("GET")
	api.HandleFunc("/destinations", s.handleGetDestinations).Methods("GET")
	api.HandleFunc("/events", s.handleEvents)

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleUpdateConfig).Methods("PUT")
	api.HandleFunc("/config/keys", s.handleGetConfigKeys).Methods("GET")
	api.HandleFunc("/config/keys/{key}", s.handleGetConfigKey).Methods("GET")
	api.HandleFunc("/config/keys/{key}", s.handleSetConfigKey).Methods("PUT")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Live stream of exported captures
	s.router.HandleFunc("/stream", s.app.Stream.HTTPHandler())
	s.router.HandleFunc("/stream/latest.jpg", s.app.Stream.SnapshotHandler()).Methods("GET")
	s.router.HandleFunc("/stream/stats", s.app.Stream.StatsHandler()).Methods("GET")
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start starts the HTTP server and the stream output. It blocks until the
// server stops.
func (s *Server) Start(port int) error {
	if err := s.app.Stream.Start(); err != nil {
		return err
	}
	addr := fmt.Sprintf(":%d", port)
	s.server = &http.Server{Addr: addr, Handler: s.Handler()}
	logger.WithComponent("api").Info().Msgf("Starting server on http://localhost%s", addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Stream.Stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HTTP Handlers

func (s *Server) handleGetSurfaces(w http.ResponseWriter, r *http.Request) {
	surfaces, err := s.app.Platform.Screens.Surfaces()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type surfaceInfo struct {
		Index       int      `json:"index"`
		Name        string   `json:"name"`
		Bounds      app.Rect `json:"bounds"`
		WorkingArea app.Rect `json:"working_area"`
		Primary     bool     `json:"primary"`
	}
	out := make([]surfaceInfo, 0, len(surfaces))
	for _, sf := range surfaces {
		out = append(out, surfaceInfo{
			Index:       sf.Index,
			Name:        sf.Name,
			Bounds:      app.RectOf(sf.Bounds),
			WorkingArea: app.RectOf(sf.Work()),
			Primary:     sf.Primary,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type windowInfo struct {
	Handle    uint64   `json:"handle"`
	Title     string   `json:"title"`
	Class     string   `json:"class"`
	Process   string   `json:"process,omitempty"`
	PID       int      `json:"pid"`
	Bounds    app.Rect `json:"bounds"`
	Maximized bool     `json:"maximized"`
	Focused   bool     `json:"focused"`
}

func describeWindow(win *platform.Window) windowInfo {
	return windowInfo{
		Handle:    uint64(win.Handle),
		Title:     win.Title,
		Class:     win.Class,
		Process:   win.Process,
		PID:       win.PID,
		Bounds:    app.RectOf(win.Bounds),
		Maximized: win.Maximized,
		Focused:   win.Focused,
	}
}

func (s *Server) handleGetWindows(w http.ResponseWriter, r *http.Request) {
	windows, err := s.app.Platform.Windows.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]windowInfo, 0, len(windows))
	for _, win := range windows {
		out = append(out, describeWindow(win))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetActiveWindow(w http.ResponseWriter, r *http.Request) {
	win, err := s.app.Platform.Windows.ActiveWindow()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if win == nil {
		http.Error(w, "No window focused", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, describeWindow(win))
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req app.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	res, err := s.app.Capture(ctx, req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, capture.ErrUnknownDesignation) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLatestCapture(w http.ResponseWriter, r *http.Request) {
	latest := s.app.Latest()
	if latest == nil {
		http.Error(w, "no capture yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := png.Encode(w, latest.Image); err != nil {
		logger.WithComponent("api").Error().Err(err).Msg("Failed to encode latest capture")
	}
}

func (s *Server) handleGetDestinations(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"
	writeJSON(w, http.StatusOK, s.app.ListDestinations(r.Context(), refresh))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	// Subscribe before the handshake completes so no event is missed.
	events := s.app.Events.Subscribe()
	defer s.app.Events.Unsubscribe(events)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		}
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.app.Config.Get()
	if cfg.Tracker.Token != "" {
		cfg.Tracker.Token = "********"
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	current := s.app.Config.Get()
	token := current.Tracker.Token

	cfg := current
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cfg.Tracker.Token == "" || cfg.Tracker.Token == "********" {
		cfg.Tracker.Token = token
	}

	if err := s.app.Config.Update(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"version":  Version,
		"platform": s.app.Platform.Name,
	})
}

func (s *Server) handleGetConfigKey(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.Config.Value(mux.Vars(r)["key"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": mux.Vars(r)["key"], "value": v})
}

func (s *Server) handleSetConfigKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.app.Config.Set(mux.Vars(r)["key"], req.Value); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.Keys())
}
