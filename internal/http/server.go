// Package http exposes the ledger as a JSON API: auth, ledger entries,
// budgets, recurring bills, statement import, export and alerts.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"kosh/internal/auth"
	"kosh/internal/export"
	"kosh/internal/services"
	"kosh/internal/statement"
	"kosh/internal/storage"
)

const defaultSessionTTL = 24 * time.Hour

// Options tunes server behavior. Zero values fall back to the defaults, so
// Options{} is a fully working configuration.
type Options struct {
	SessionTTL      time.Duration
	ImportCacheSize int
	ImportCacheTTL  time.Duration
}

type Server struct {
	http.Server

	storage     *storage.SQLiteRepository
	auth        *auth.Service
	reconciler  *services.BudgetReconciler
	processor   *services.RecurringProcessor
	categorizer *services.Categorizer
	notifier    *services.Notifier
	importer    *statement.Importer
	exporter    *export.Exporter

	sessions    *sessionStore
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer wires every service behind the API routes.
func NewServer(addr string, repo *storage.SQLiteRepository, extractor statement.Extractor, opts Options) *Server {
	mux := http.NewServeMux()

	reconciler := services.NewBudgetReconciler(repo)
	categorizer := services.NewCategorizer(repo)
	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		storage:     repo,
		auth:        auth.NewService(repo),
		reconciler:  reconciler,
		processor:   services.NewRecurringProcessor(repo),
		categorizer: categorizer,
		notifier:    services.NewNotifier(repo, reconciler),
		importer:    statement.NewImporter(repo, categorizer, extractor, opts.ImportCacheSize, opts.ImportCacheTTL),
		exporter:    export.NewExporter(repo),
		sessions:    newSessionStore(opts.SessionTTL),
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/register", s.public(s.handleRegister))
	mux.HandleFunc("POST /api/login", s.public(s.handleLogin))

	mux.HandleFunc("GET /api/summary", s.authed(s.handleSummary))

	mux.HandleFunc("GET /api/expenses", s.authed(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.authed(s.handleCreateExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.authed(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.authed(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/income", s.authed(s.handleListIncome))
	mux.HandleFunc("POST /api/income", s.authed(s.handleCreateIncome))
	mux.HandleFunc("DELETE /api/income/{id}", s.authed(s.handleDeleteIncome))

	mux.HandleFunc("GET /api/trash", s.authed(s.handleListTrash))
	mux.HandleFunc("POST /api/trash/{id}/restore", s.authed(s.handleRestoreTrash))

	mux.HandleFunc("GET /api/budgets", s.authed(s.handleListBudgets))
	mux.HandleFunc("PUT /api/budgets", s.authed(s.handleUpsertBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.authed(s.handleDeleteBudget))
	mux.HandleFunc("GET /api/budgets/report", s.authed(s.handleBudgetReport))

	mux.HandleFunc("GET /api/bills", s.authed(s.handleListBills))
	mux.HandleFunc("POST /api/bills", s.authed(s.handleCreateBill))
	mux.HandleFunc("PUT /api/bills/{id}", s.authed(s.handleUpdateBill))
	mux.HandleFunc("POST /api/bills/{id}/active", s.authed(s.handleSetBillActive))
	mux.HandleFunc("DELETE /api/bills/{id}", s.authed(s.handleDeleteBill))
	mux.HandleFunc("POST /api/bills/run", s.authed(s.handleRunBills))

	mux.HandleFunc("GET /api/rules", s.authed(s.handleListRules))
	mux.HandleFunc("POST /api/rules", s.authed(s.handleAddRule))
	mux.HandleFunc("DELETE /api/rules/{id}", s.authed(s.handleDeleteRule))

	mux.HandleFunc("POST /api/import/preview", s.authed(s.handleImportPreview))
	mux.HandleFunc("POST /api/import/commit", s.authed(s.handleImportCommit))
	mux.HandleFunc("GET /api/import/sessions", s.authed(s.handleImportSessions))

	mux.HandleFunc("GET /api/export", s.authed(s.handleExport))

	mux.HandleFunc("GET /api/accounts", s.authed(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.authed(s.handleCreateAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.authed(s.handleDeleteAccount))

	mux.HandleFunc("GET /api/goals", s.authed(s.handleListGoals))
	mux.HandleFunc("POST /api/goals", s.authed(s.handleCreateGoal))
	mux.HandleFunc("PUT /api/goals/{id}/progress", s.authed(s.handleGoalProgress))
	mux.HandleFunc("DELETE /api/goals/{id}", s.authed(s.handleDeleteGoal))

	mux.HandleFunc("GET /api/notifications", s.authed(s.handleListNotifications))
	mux.HandleFunc("POST /api/notifications/generate", s.authed(s.handleGenerateAlerts))
	mux.HandleFunc("POST /api/notifications/{id}/read", s.authed(s.handleMarkNotificationRead))
	mux.HandleFunc("DELETE /api/notifications/{id}", s.authed(s.handleDeleteNotification))

	return s
}

// Shutdown stops the HTTP server and the background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.sessions.stop()
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID int64)

// public applies rate limiting and common headers to unauthenticated routes.
func (s *Server) public(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		setSecurityHeaders(w)
		if !s.rateLimiter.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		h(w, r)
		slog.Info("Handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// authed additionally resolves the session token to a user id.
func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return s.public(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.sessions.lookup(bearerToken(r))
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		h(w, r, userID)
	})
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Cache-Control", "no-store")
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return ""
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func requestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "req_unknown"
	}
	return "req_" + hex.EncodeToString(b)
}

// sessionStore holds bearer tokens in memory. Sessions do not survive a
// restart; clients just log in again.
type sessionStore struct {
	mu          sync.Mutex
	ttl         time.Duration
	sessions    map[string]session
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type session struct {
	userID    int64
	expiresAt time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	st := &sessionStore{
		ttl:         ttl,
		sessions:    make(map[string]session),
		stopCleanup: make(chan struct{}),
	}
	go st.cleanupLoop()
	return st
}

func (st *sessionStore) create(userID int64) string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// rand.Read failing means the platform entropy source is broken;
		// refuse to mint a guessable token.
		panic("session token entropy unavailable")
	}
	token := hex.EncodeToString(b)

	st.mu.Lock()
	st.sessions[token] = session{userID: userID, expiresAt: time.Now().Add(st.ttl)}
	st.mu.Unlock()
	return token
}

func (st *sessionStore) lookup(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[token]
	if !ok {
		return 0, false
	}
	if time.Now().After(sess.expiresAt) {
		delete(st.sessions, token)
		return 0, false
	}
	return sess.userID, true
}

func (st *sessionStore) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			st.mu.Lock()
			for token, sess := range st.sessions {
				if now.After(sess.expiresAt) {
					delete(st.sessions, token)
				}
			}
			st.mu.Unlock()
		case <-st.stopCleanup:
			return
		}
	}
}

func (st *sessionStore) stop() {
	st.stopOnce.Do(func() { close(st.stopCleanup) })
}

// rateLimiter caps each client IP at 60 requests per minute.
type rateLimiter struct {
	mu          sync.Mutex
	clients     map[string]*clientInfo
	stopCleanup chan struct{}
	stopOnce    sync.Once
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
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, ok := rl.clients[ip]
	if !ok {
		rl.clients[ip] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}
	client.requests++
	client.lastRequest = now
	return client.requests <= 60
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			rl.mu.Lock()
			for ip, client := range rl.clients {
				if client.lastRequest.Before(cutoff) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}
