// internal/trigger/manual.go
package trigger

import (
	"context"
	"fmt"
	"log/slog"
)

// Well-known values for programmatically emitted workflow events.
const (
	SourceManual           = "manual"
	EventTypeIssueWorkflow = "issue_workflow"

	WorkflowPlan  = "adw_plan_iso"
	WorkflowBuild = "adw_build_iso"
	WorkflowPatch = "adw_patch_iso"
)

// Manual is the trigger for programmatic and test invocation. It observes no
// external source; callers hand it events directly through Emit or OnEvent.
// Its OnEvent returns the dispatch results to the caller, since manual
// invocations are synchronous and the caller usually wants the outcomes.
type Manual struct {
	Dispatcher
}

// NewManual creates a manual trigger. It takes no configuration options; cfg
// is accepted only to satisfy the factory signature.
func NewManual(cfg map[string]any, logger *slog.Logger) (*Manual, error) {
	return &Manual{Dispatcher: newDispatcher(TypeManual, logger)}, nil
}

// Start flips the running flag; there is no external resource to acquire.
func (m *Manual) Start(ctx context.Context) error {
	m.setRunning(true)
	return nil
}

func (m *Manual) Stop() error {
	m.setRunning(false)
	return nil
}

// Emit builds an event with Source "manual" and the current timestamp from
// the given fields, dispatches it, and returns one Result per handler. This
// is the primary programmatic entry point into the framework.
func (m *Manual) Emit(ctx context.Context, eventType string, payload map[string]any, issueNumber int, adwID, repoPath string) ([]Result, error) {
	event, err := NewEvent(eventType, SourceManual, payload)
	if err != nil {
		return nil, err
	}
	event.IssueNumber = issueNumber
	event.ADWID = adwID
	event.RepoPath = repoPath
	return m.Dispatch(ctx, event), nil
}

// EmitPlanEvent emits an issue_workflow event that starts a fresh plan
// workflow for the given issue.
func (m *Manual) EmitPlanEvent(ctx context.Context, issueNumber int) []Result {
	results, _ := m.Emit(ctx, EventTypeIssueWorkflow,
		map[string]any{"workflow": WorkflowPlan}, issueNumber, "", "")
	return results
}

// EmitBuildEvent emits an issue_workflow event that continues existing work,
// so the caller must supply the adw id of that work. Whether the referenced
// work actually exists is the handler's problem, not validated here.
func (m *Manual) EmitBuildEvent(ctx context.Context, issueNumber int, adwID string) ([]Result, error) {
	if adwID == "" {
		return nil, fmt.Errorf("build events continue existing work: adw id is required")
	}
	return m.Emit(ctx, EventTypeIssueWorkflow,
		map[string]any{"workflow": WorkflowBuild}, issueNumber, adwID, "")
}

// EmitPatchEvent emits an issue_workflow event for a standalone patch
// workflow on the given issue.
func (m *Manual) EmitPatchEvent(ctx context.Context, issueNumber int) []Result {
	results, _ := m.Emit(ctx, EventTypeIssueWorkflow,
		map[string]any{"workflow": WorkflowPatch}, issueNumber, "", "")
	return results
}
