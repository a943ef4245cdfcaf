// Package api provides the HTTP API for launching simulation runs and
// querying stored ones. GET endpoints are read-only; POST /simulate is
// rate limited because each run is CPU-bound.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JoaStacker/simulador-mercado-cripto/internal/config"
	"github.com/JoaStacker/simulador-mercado-cripto/internal/engine"
	"github.com/JoaStacker/simulador-mercado-cripto/internal/persistence"
)

const (
	defaultRunListLimit = 20
	maxRunListLimit     = 100
	maxCycles           = 10000

	wsWriteTimeout = 10 * time.Second
)

// Server serves simulation runs over HTTP.
type Server struct {
	Cfg config.Config
	DB  *persistence.DB

	upgrader websocket.Upgrader
}

// NewServer wires a server against the given configuration and run store.
// db may be nil, in which case runs are not persisted and the run index
// endpoints report failure.
func NewServer(cfg config.Config, db *persistence.DB) *Server {
	return &Server{
		Cfg: cfg,
		DB:  db,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Handler builds the route table. Split from Start for tests.
func (s *Server) Handler() http.Handler {
	simulateLimiter := NewRateLimiter(30, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/simulate", RateLimitMiddleware(simulateLimiter, s.handleSimulate))
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunDetail)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Cfg.Server.Port)
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	roster := len(s.Cfg.Investors)
	if roster == 0 {
		roster = len(engine.DefaultInvestors())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":           "marketsim",
		"market_id":      s.Cfg.Market.ID,
		"initial_price":  s.Cfg.Market.InitialPrice,
		"walk_pct":       s.Cfg.Market.WalkPct,
		"price_floor":    s.Cfg.Market.PriceFloor,
		"max_passes":     s.Cfg.Dispatcher.MaxPasses,
		"default_cycles": s.Cfg.Simulation.DefaultCycles,
		"investors":      roster,
		"persistence":    s.DB != nil,
	})
}

// simulateRequest is the POST /simulate body. Zero-valued fields fall
// back to the configured defaults.
type simulateRequest struct {
	Cycles       int     `json:"cycles"`
	InitialPrice float64 `json:"initial_price"`
	Seed         int64   `json:"seed"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	req := simulateRequest{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	opts, cycles, err := s.runParams(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sim := engine.NewSimulation(opts)
	res := sim.RunSimulation(cycles)

	// Persistence is best-effort: a full result still goes back to the
	// caller when the save fails.
	if s.DB != nil {
		if err := s.DB.SaveRun(res); err != nil {
			slog.Error("save run failed", "run_id", res.RunID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, res)
}

// runParams validates a request against the configured bounds and
// translates it into engine options.
func (s *Server) runParams(req simulateRequest) (engine.Options, int, error) {
	cycles := req.Cycles
	if cycles == 0 {
		cycles = s.Cfg.Simulation.DefaultCycles
	}
	if cycles < 1 {
		return engine.Options{}, 0, fmt.Errorf("cycles must be at least 1, got %d", cycles)
	}
	if cycles > maxCycles {
		return engine.Options{}, 0, fmt.Errorf("cycles must be at most %d, got %d", maxCycles, cycles)
	}

	opts := s.Cfg.EngineOptions()
	if req.InitialPrice != 0 {
		if req.InitialPrice < 0 {
			return engine.Options{}, 0, fmt.Errorf("initial_price must be positive, got %v", req.InitialPrice)
		}
		opts.InitialPrice = req.InitialPrice
	}
	if req.Seed != 0 {
		opts.Seed = req.Seed
	}
	return opts, cycles, nil
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}

	limit := defaultRunListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxRunListLimit {
			n = maxRunListLimit
		}
		limit = n
	}

	rows, err := s.DB.ListRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": rows})
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "run id required")
		return
	}

	res, err := s.DB.LoadRun(id)
	if errors.Is(err, persistence.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		slog.Error("load run failed", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "load run failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// streamEvent frames one websocket message on /stream.
type streamEvent struct {
	Type  string            `json:"type"` // "tick" or "result"
	Tick  *engine.TickState `json:"tick,omitempty"`
	Final *engine.Result    `json:"result,omitempty"`
}

// handleStream runs a simulation and pushes every tick state over a
// websocket, followed by the full result. Parameters come from the
// query string: cycles, initial_price, seed.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req := simulateRequest{}
	q := r.URL.Query()
	if v := q.Get("cycles"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "cycles must be an integer")
			return
		}
		req.Cycles = n
	}
	if v := q.Get("initial_price"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "initial_price must be a number")
			return
		}
		req.InitialPrice = p
	}
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "seed must be an integer")
			return
		}
		req.Seed = n
	}

	opts, cycles, err := s.runParams(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	send := func(ev streamEvent) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(ev)
	}

	sim := engine.NewSimulation(opts)
	var sendErr error
	res := sim.Run(cycles, func(st engine.TickState) {
		if sendErr != nil {
			return
		}
		sendErr = send(streamEvent{Type: "tick", Tick: &st})
	})
	if sendErr != nil {
		slog.Debug("stream client went away", "error", sendErr)
		return
	}

	if s.DB != nil {
		if err := s.DB.SaveRun(res); err != nil {
			slog.Error("save run failed", "run_id", res.RunID, "error", err)
		}
	}

	if err := send(streamEvent{Type: "result", Final: res}); err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run complete"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
