// internal/trigger/manual_test.go
package trigger

import (
	"context"
	"testing"
)

// captureHandler records every event it sees and reports success.
func captureHandler(events *[]Event) Handler {
	return func(ctx context.Context, event Event) (Result, error) {
		*events = append(*events, event)
		return Result{Success: true}, nil
	}
}

func newStartedManual(t *testing.T) *Manual {
	t.Helper()
	m, err := NewManual(map[string]any{}, nil)
	if err != nil {
		t.Fatalf("NewManual failed: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return m
}

func TestManualLifecycle(t *testing.T) {
	m, err := NewManual(map[string]any{}, nil)
	if err != nil {
		t.Fatalf("NewManual failed: %v", err)
	}

	if m.Running() {
		t.Error("manual trigger should not be running before Start")
	}
	m.Start(context.Background())
	if !m.Running() {
		t.Error("manual trigger should be running after Start")
	}
	m.Stop()
	if m.Running() {
		t.Error("manual trigger should not be running after Stop")
	}
	// Stop is idempotent.
	if err := m.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestManualEmit(t *testing.T) {
	m := newStartedManual(t)

	var seen []Event
	m.AddHandler(captureHandler(&seen))

	results, err := m.Emit(context.Background(), "issue_workflow",
		map[string]any{"workflow": "adw_plan_iso"}, 42, "adw-1234", "/repos/demo")
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	if len(results) != 1 || !results[0].Success {
		t.Fatalf("expected one successful result, got %+v", results)
	}
	if len(seen) != 1 {
		t.Fatalf("expected one dispatched event, got %d", len(seen))
	}

	event := seen[0]
	if event.Source != SourceManual {
		t.Errorf("expected source manual, got %s", event.Source)
	}
	if event.IssueNumber != 42 {
		t.Errorf("expected issue number 42, got %d", event.IssueNumber)
	}
	if event.ADWID != "adw-1234" {
		t.Errorf("expected adw id adw-1234, got %s", event.ADWID)
	}
	if event.RepoPath != "/repos/demo" {
		t.Errorf("expected repo path /repos/demo, got %s", event.RepoPath)
	}
}

func TestManualEmitInvalidEventType(t *testing.T) {
	m := newStartedManual(t)
	if _, err := m.Emit(context.Background(), "", nil, 0, "", ""); err == nil {
		t.Error("expected error for empty event type")
	}
}

func TestEmitPlanEvent(t *testing.T) {
	m := newStartedManual(t)

	var seen []Event
	m.AddHandler(captureHandler(&seen))

	results := m.EmitPlanEvent(context.Background(), 42)
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if len(seen) != 1 {
		t.Fatalf("expected one event, got %d", len(seen))
	}

	event := seen[0]
	if event.EventType != EventTypeIssueWorkflow {
		t.Errorf("expected event type issue_workflow, got %s", event.EventType)
	}
	if event.Payload["workflow"] != WorkflowPlan {
		t.Errorf("expected workflow adw_plan_iso, got %v", event.Payload["workflow"])
	}
	if event.IssueNumber != 42 {
		t.Errorf("expected issue number 42, got %d", event.IssueNumber)
	}
	if event.Source != SourceManual {
		t.Errorf("expected source manual, got %s", event.Source)
	}
}

func TestEmitBuildEventRequiresADWID(t *testing.T) {
	m := newStartedManual(t)

	if _, err := m.EmitBuildEvent(context.Background(), 42, ""); err == nil {
		t.Fatal("expected error when adw id is missing")
	}

	var seen []Event
	m.AddHandler(captureHandler(&seen))

	results, err := m.EmitBuildEvent(context.Background(), 42, "adw-abc123")
	if err != nil {
		t.Fatalf("EmitBuildEvent failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if seen[0].Payload["workflow"] != WorkflowBuild {
		t.Errorf("expected workflow adw_build_iso, got %v", seen[0].Payload["workflow"])
	}
	if seen[0].ADWID != "adw-abc123" {
		t.Errorf("expected adw id adw-abc123, got %s", seen[0].ADWID)
	}
}

func TestEmitPatchEvent(t *testing.T) {
	m := newStartedManual(t)

	var seen []Event
	m.AddHandler(captureHandler(&seen))

	m.EmitPatchEvent(context.Background(), 7)
	if len(seen) != 1 {
		t.Fatalf("expected one event, got %d", len(seen))
	}
	if seen[0].Payload["workflow"] != WorkflowPatch {
		t.Errorf("expected workflow adw_patch_iso, got %v", seen[0].Payload["workflow"])
	}
}

func TestManualOnEventReturnsResults(t *testing.T) {
	m := newStartedManual(t)

	var seen []Event
	m.AddHandler(captureHandler(&seen))

	event, err := NewEvent("issue_workflow", "manual", nil)
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}

	results := m.OnEvent(context.Background(), event)
	if len(results) != 1 || !results[0].Success {
		t.Errorf("OnEvent should return the dispatch results, got %+v", results)
	}
}
