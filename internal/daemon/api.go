// internal/daemon/api.go
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ameno-/adwd/internal/trigger"
)

// startHTTPServer serves the admin API: health, trigger status, dispatch
// journal, and manual event emission.
func (d *Daemon) startHTTPServer(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d",
		d.config.Daemon.ListenAddress,
		d.config.Daemon.ListenPort,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", withRateLimit(60, d.handleHealth))
	mux.HandleFunc("/api/triggers", withRateLimit(30, d.handleAPITriggers))
	mux.HandleFunc("/api/history", withRateLimit(30, d.handleAPIHistory))
	mux.HandleFunc("/api/emit", withRateLimit(10, d.handleAPIEmit))

	srv := &http.Server{Addr: addr, Handler: mux}

	d.logger.Info("starting admin API", "address", addr)

	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			d.logger.Error("admin API server error", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]any{
		"status":        "ok",
		"uptime":        time.Since(d.startTime).Truncate(time.Second).String(),
		"trigger_types": len(d.registry.Types()),
		"running":       d.registry.RunningNames(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (d *Daemon) handleAPITriggers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type triggerStatus struct {
		Name         string `json:"name"`
		Instantiated bool   `json:"instantiated"`
		Running      bool   `json:"running"`
	}

	var statuses []triggerStatus
	for _, name := range d.registry.Types() {
		st := triggerStatus{Name: name}
		if t, ok := d.registry.Instance(name); ok {
			st.Instantiated = true
			st.Running = t.Running()
		}
		statuses = append(statuses, st)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statuses)
}

func (d *Daemon) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if d.journal == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]any{})
		return
	}

	triggerName := r.URL.Query().Get("trigger")
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}

	records, err := d.journal.List(triggerName, limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("querying journal: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

type emitRequest struct {
	EventType   string         `json:"event_type"`
	Payload     map[string]any `json:"payload"`
	IssueNumber int            `json:"issue_number"`
	ADWID       string         `json:"adw_id"`
	RepoPath    string         `json:"repo_path"`
}

// handleAPIEmit feeds an event through the manual trigger and returns the
// per-handler results.
func (d *Daemon) handleAPIEmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req emitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "request body must be a JSON object", http.StatusBadRequest)
		return
	}

	t, ok := d.registry.Instance(trigger.TypeManual)
	if !ok {
		http.Error(w, "manual trigger not available", http.StatusServiceUnavailable)
		return
	}
	manual, ok := t.(*trigger.Manual)
	if !ok {
		http.Error(w, "manual trigger not available", http.StatusServiceUnavailable)
		return
	}

	results, err := manual.Emit(r.Context(), req.EventType, req.Payload,
		req.IssueNumber, req.ADWID, req.RepoPath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": results})
}

// withRateLimit wraps a handler with a token-bucket rate limiter refilled at
// requestsPerMinute.
func withRateLimit(requestsPerMinute int, handler http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	tokens := requestsPerMinute
	lastRefill := time.Now()

	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		now := time.Now()
		refill := int(now.Sub(lastRefill).Minutes() * float64(requestsPerMinute))
		if refill > 0 {
			tokens += refill
			if tokens > requestsPerMinute {
				tokens = requestsPerMinute
			}
			lastRefill = now
		}

		if tokens <= 0 {
			mu.Unlock()
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		tokens--
		mu.Unlock()

		handler(w, r)
	}
}
