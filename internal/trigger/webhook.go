// internal/trigger/webhook.go
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// EventTypeWebhook is the default event type for webhook deliveries that do
// not name their own.
const EventTypeWebhook = "webhook"

const maxWebhookBody = 1 << 20 // 1MB

// Webhook turns incoming HTTP requests into events. It owns its own listener
// and server; Start binds the socket and Stop shuts it down. OnEvent policy:
// results are dispatched synchronously and reported back to the HTTP caller
// in the response body.
type Webhook struct {
	Dispatcher

	addr           string
	path           string
	source         string
	secretHeader   string
	secret         string
	allowedMethods map[string]bool

	srvMu sync.Mutex
	srv   *http.Server
	ln    net.Listener
}

// NewWebhook creates a webhook trigger from its option mapping. Options:
// listen_address (default 127.0.0.1), listen_port (0 uses an ephemeral port),
// path (default /hooks), source (default "webhook"), allowed_methods (default
// POST), secret_header + secret_env_var for shared-secret validation.
func NewWebhook(cfg map[string]any, logger *slog.Logger) (*Webhook, error) {
	methods := stringSliceOption(cfg, "allowed_methods")
	if len(methods) == 0 {
		methods = []string{http.MethodPost}
	}
	allowed := make(map[string]bool, len(methods))
	for _, m := range methods {
		allowed[strings.ToUpper(m)] = true
	}

	var secret string
	if envVar := stringOption(cfg, "secret_env_var", ""); envVar != "" {
		secret = os.Getenv(envVar)
	}

	address := stringOption(cfg, "listen_address", "127.0.0.1")
	port := intOption(cfg, "listen_port", 0)

	return &Webhook{
		Dispatcher:     newDispatcher(TypeWebhook, logger),
		addr:           fmt.Sprintf("%s:%d", address, port),
		path:           stringOption(cfg, "path", "/hooks"),
		source:         stringOption(cfg, "source", TypeWebhook),
		secretHeader:   stringOption(cfg, "secret_header", "X-Hook-Secret"),
		secret:         secret,
		allowedMethods: allowed,
	}, nil
}

// Addr returns the bound listener address, or "" before Start.
func (w *Webhook) Addr() string {
	w.srvMu.Lock()
	defer w.srvMu.Unlock()
	if w.ln == nil {
		return ""
	}
	return w.ln.Addr().String()
}

// Start binds the listener and begins serving. A bind failure leaves the
// trigger not-running with nothing held.
func (w *Webhook) Start(ctx context.Context) error {
	w.srvMu.Lock()
	defer w.srvMu.Unlock()

	if w.Running() {
		return nil
	}

	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return fmt.Errorf("binding webhook listener on %s: %w", w.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handleRequest)

	w.ln = ln
	w.srv = &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func(srv *http.Server, ln net.Listener) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			w.logger.Error("webhook server error", "error", err)
		}
	}(w.srv, ln)

	w.setRunning(true)
	w.logger.Info("webhook listening", "address", ln.Addr().String(), "path", w.path)
	return nil
}

// Stop shuts the server down and releases the listener. Safe to call on an
// already-stopped trigger.
func (w *Webhook) Stop() error {
	w.srvMu.Lock()
	defer w.srvMu.Unlock()

	w.setRunning(false)
	if w.srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := w.srv.Shutdown(shutdownCtx)
	w.srv = nil
	w.ln = nil
	if err != nil {
		return fmt.Errorf("shutting down webhook server: %w", err)
	}
	return nil
}

type webhookRequest struct {
	EventType   string         `json:"event_type"`
	Payload     map[string]any `json:"payload"`
	ADWID       string         `json:"adw_id"`
	IssueNumber int            `json:"issue_number"`
	RepoPath    string         `json:"repo_path"`
}

func (w *Webhook) handleRequest(rw http.ResponseWriter, r *http.Request) {
	if !w.allowedMethods[r.Method] {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if w.secret != "" && r.Header.Get(w.secretHeader) != w.secret {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "reading request body", http.StatusBadRequest)
		return
	}

	var req webhookRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(rw, "request body must be a JSON object", http.StatusBadRequest)
			return
		}
	}
	if req.EventType == "" {
		req.EventType = EventTypeWebhook
	}

	event, err := NewEvent(req.EventType, w.source, req.Payload)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	event.ADWID = req.ADWID
	event.IssueNumber = req.IssueNumber
	event.RepoPath = req.RepoPath

	results := w.OnEvent(r.Context(), event)

	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]any{"results": results})
}
