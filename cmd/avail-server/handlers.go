package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/avail/pkg/peaks"
	"github.com/codeGROOVE-dev/avail/pkg/scoring"
)

const maxPeakLimit = 24

type rateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		requests: make(map[string][]time.Time),
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	var valid []time.Time
	for _, t := range rl.requests[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	// Rate limit: 15 requests per minute per IP
	if len(valid) >= 15 {
		rl.requests[ip] = valid
		return false
	}

	rl.requests[ip] = append(valid, now)
	return true
}

// server wires the scoring engine and the peak aggregator to the JSON
// API. The aggregator is the single owner of all histogram state; the
// engine is stateless.
type server struct {
	logger  *slog.Logger
	engine  *scoring.Engine
	agg     *peaks.Aggregator
	limiter *rateLimiter
	clock   func() time.Time
}

func newServer(logger *slog.Logger, engine *scoring.Engine, agg *peaks.Aggregator) *server {
	return &server{
		logger:  logger,
		engine:  engine,
		agg:     agg,
		limiter: newRateLimiter(),
		clock:   time.Now,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/observe", s.handleObserve)
	mux.HandleFunc("GET /api/score", s.handleScore)
	mux.HandleFunc("GET /api/peaks", s.handlePeaks)
	mux.HandleFunc("GET /api/optimal", s.handleOptimal)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return s.withLogging(s.withSecurityHeaders(s.withRateLimit(mux)))
}

type observeRequest struct {
	At    *time.Time `json:"at,omitempty"`
	Score float64    `json:"score"`
}

type observeResponse struct {
	Recorded bool `json:"recorded"`
	Hour     int  `json:"hour"`
}

// handleObserve is the single mutation entry point of the API. Invalid
// scores fail loudly with 400 rather than being clamped.
func (s *server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req observeRequest
	// Observe payloads are tiny; cap the body to keep decoding bounded.
	body := http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	at := s.clock()
	if req.At != nil {
		at = *req.At
	}

	if err := s.agg.RecordObservation(req.Score, at); err != nil {
		if errors.Is(err, peaks.ErrInvalidScore) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("observation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, observeResponse{Recorded: true, Hour: at.Hour()})
}

type scoreResponse struct {
	At    time.Time `json:"at"`
	Score float64   `json:"score"`
}

// handleScore computes the score for now. It deliberately does not
// record it; mutation happens only through /api/observe and the
// self-observation loop.
func (s *server) handleScore(w http.ResponseWriter, _ *http.Request) {
	now := s.clock()
	s.writeJSON(w, http.StatusOK, scoreResponse{Score: s.engine.Score(now), At: now})
}

type peaksResponse struct {
	Peaks []peaks.PeakEntry `json:"peaks"`
	Count int               `json:"count"`
}

func (s *server) handlePeaks(w http.ResponseWriter, r *http.Request) {
	limit := peaks.DefaultPeakLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
		if limit > maxPeakLimit {
			limit = maxPeakLimit
		}
	}

	entries := s.agg.Peaks(limit)
	if entries == nil {
		entries = []peaks.PeakEntry{}
	}
	s.writeJSON(w, http.StatusOK, peaksResponse{Peaks: entries, Count: len(entries)})
}

type optimalResponse struct {
	Optimal   *peaks.Recommendation `json:"optimal,omitempty"`
	Available bool                  `json:"available"`
}

// handleOptimal returns available=false when the histogram is cold;
// "no data yet" is a normal answer here, never an error status.
func (s *server) handleOptimal(w http.ResponseWriter, _ *http.Request) {
	rec := s.agg.NextOptimalTime(s.clock())
	s.writeJSON(w, http.StatusOK, optimalResponse{Available: rec != nil, Optimal: rec})
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.logger.Debug("healthz write failed", "error", err)
	}
}

func (s *server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (*server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func (s *server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", clientIP(r),
			"duration", time.Since(start),
		)
	})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("response write failed", "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
