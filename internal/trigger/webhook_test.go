// internal/trigger/webhook_test.go
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func newStartedWebhook(t *testing.T, cfg map[string]any) *Webhook {
	t.Helper()
	if cfg == nil {
		cfg = map[string]any{}
	}
	// listen_port 0 picks an ephemeral port.
	w, err := NewWebhook(cfg, nil)
	if err != nil {
		t.Fatalf("NewWebhook failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return w
}

func postJSON(t *testing.T, url string, body map[string]any, headers map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWebhookDispatchesRequests(t *testing.T) {
	w := newStartedWebhook(t, nil)

	if !w.Running() {
		t.Fatal("webhook should be running after Start")
	}
	if w.Addr() == "" {
		t.Fatal("webhook should expose its bound address")
	}

	received := make(chan Event, 1)
	w.AddHandler(func(ctx context.Context, event Event) (Result, error) {
		received <- event
		return Result{Success: true, Message: "handled"}, nil
	})

	resp := postJSON(t, "http://"+w.Addr()+"/hooks", map[string]any{
		"event_type":   "issue_workflow",
		"payload":      map[string]any{"workflow": "adw_plan_iso"},
		"issue_number": 42,
		"adw_id":       "adw-web1",
	}, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Results []Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Results) != 1 || !body.Results[0].Success {
		t.Errorf("expected one successful result in response, got %+v", body.Results)
	}

	select {
	case event := <-received:
		if event.EventType != "issue_workflow" {
			t.Errorf("expected event type issue_workflow, got %s", event.EventType)
		}
		if event.Source != TypeWebhook {
			t.Errorf("expected source webhook, got %s", event.Source)
		}
		if event.IssueNumber != 42 {
			t.Errorf("expected issue number 42, got %d", event.IssueNumber)
		}
		if event.ADWID != "adw-web1" {
			t.Errorf("expected adw id adw-web1, got %s", event.ADWID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for webhook event")
	}
}

func TestWebhookRejectsDisallowedMethod(t *testing.T) {
	w := newStartedWebhook(t, nil)

	resp, err := http.Get("http://" + w.Addr() + "/hooks")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", resp.StatusCode)
	}
}

func TestWebhookSecretValidation(t *testing.T) {
	t.Setenv("ADWD_TEST_HOOK_SECRET", "s3cret")

	w := newStartedWebhook(t, map[string]any{
		"secret_header":  "X-Hook-Secret",
		"secret_env_var": "ADWD_TEST_HOOK_SECRET",
	})

	url := "http://" + w.Addr() + "/hooks"

	resp := postJSON(t, url, map[string]any{"event_type": "webhook"}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 without secret, got %d", resp.StatusCode)
	}

	resp = postJSON(t, url, map[string]any{"event_type": "webhook"},
		map[string]string{"X-Hook-Secret": "s3cret"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with secret, got %d", resp.StatusCode)
	}
}

func TestWebhookStartFailureLeavesNotRunning(t *testing.T) {
	w, err := NewWebhook(map[string]any{"listen_address": "256.256.256.256"}, nil)
	if err != nil {
		t.Fatalf("NewWebhook failed: %v", err)
	}

	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected bind error for invalid address")
	}
	if w.Running() {
		t.Error("failed Start must leave the trigger not-running")
	}
	// The trigger stays stoppable and re-startable after a failed Start.
	if err := w.Stop(); err != nil {
		t.Errorf("Stop after failed Start returned error: %v", err)
	}
}

func TestWebhookStopIdempotent(t *testing.T) {
	w := newStartedWebhook(t, nil)
	addr := w.Addr()

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if w.Running() {
		t.Error("webhook should not be running after Stop")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}

	// The listener is released: requests now fail.
	if _, err := http.Post("http://"+addr+"/hooks", "application/json", nil); err == nil {
		t.Error("expected connection failure after Stop")
	}
}
