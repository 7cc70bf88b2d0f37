// Package http exposes the room API: JSON endpoints for room state and
// mutations, guard challenge completion, and an SSE stream of live updates.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"splitroom/internal/export"
	"splitroom/internal/log"
	"splitroom/internal/room"
	"splitroom/internal/store"
)

type Server struct {
	http.Server
	ledger      *store.Ledger
	rooms       *room.Manager
	exporter    export.SummaryWriter
	rateLimiter *rateLimiter
	logger      *log.Logger

	shutdownOnce sync.Once
}

// Options carries the optional collaborators. A nil Exporter disables the
// export endpoint with 503.
type Options struct {
	AllowedOrigins []string
	Exporter       export.SummaryWriter
	Logger         *log.Logger
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *store.Ledger, rooms *room.Manager, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		ledger:      ledger,
		rooms:       rooms,
		exporter:    opts.Exporter,
		rateLimiter: newRateLimiter(),
		logger:      logger.WithComponent(log.ComponentHTTP),
	}

	r := mux.NewRouter()
	// Method mismatches bubble up to the root router, including from the
	// nested subrouters below.
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.withObservability)

	api.HandleFunc("/rooms", s.handleCreateRoom).Methods(http.MethodPost)

	rm := api.PathPrefix("/rooms/{roomID}").Subrouter()
	rm.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	rm.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	rm.HandleFunc("/share", s.handleShare).Methods(http.MethodGet)
	rm.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	rm.HandleFunc("/export", s.handleExport).Methods(http.MethodPost)

	rm.HandleFunc("/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	rm.HandleFunc("/expenses/{id}", s.handleUpdateExpense).Methods(http.MethodPut)
	rm.HandleFunc("/expenses/{id}", s.handleDeleteExpense).Methods(http.MethodDelete)

	rm.HandleFunc("/participants", s.handleCreateParticipant).Methods(http.MethodPost)
	rm.HandleFunc("/participants/{id}", s.handleUpdateParticipant).Methods(http.MethodPut)
	rm.HandleFunc("/participants/{id}", s.handleDeleteParticipant).Methods(http.MethodDelete)

	rm.HandleFunc("/settings/mode", s.handleSetMode).Methods(http.MethodPut)
	rm.HandleFunc("/settings/fixed-rate", s.handleSetFixedRate).Methods(http.MethodPut)
	rm.HandleFunc("/settings/unlock", s.handleUnlockSettings).Methods(http.MethodPost)

	rm.HandleFunc("/guard", s.handleGuardStatus).Methods(http.MethodGet)
	rm.HandleFunc("/guard/submit", s.handleGuardSubmit).Methods(http.MethodPost)
	rm.HandleFunc("/guard/cancel", s.handleGuardCancel).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.Server = http.Server{
		Addr:    addr,
		Handler: c.Handler(r),
	}
	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withObservability adds request-id logging, rate limiting for write
// methods, and baseline security headers.
func (s *Server) withObservability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		logger := s.logger.With(log.FieldRequestID, requestID)
		logger.InfoContext(r.Context(), "Request started",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		logger.InfoContext(r.Context(), "Request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes SSE flushes through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// Simple in-memory rate limiter keyed by client IP.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes.
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 120 write requests per minute
	client.requests++
	client.lastRequest = now
	return client.requests <= 120
}
