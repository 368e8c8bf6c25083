package client

import (
	"context"
	"fmt"

	"github.com/roach88/flowcanvas/internal/dispatch"
	"github.com/roach88/flowcanvas/internal/wire"
)

// registerCoreHandlers installs the handlers the session cannot work
// without: composite re-dispatch and workflow patches.
func (s *Session) registerCoreHandlers() {
	s.registry.RegisterKind(dispatch.KindComposite, s.dispatcher.CompositeHandler())
	s.registry.RegisterKind(dispatch.KindWorkflowChanged, s.handleWorkflowChanged)
}

func (s *Session) handleWorkflowChanged(_ context.Context, ev dispatch.Event) error {
	changed, err := wire.DecodePayload[wire.WorkflowChanged](ev.Payload)
	if err != nil {
		return err
	}
	if why := s.staleChange(changed); why != "" {
		s.logger.Info("dropping workflow change", "reason", why,
			"project_id", changed.ProjectID, "workflow_id", changed.WorkflowID, "ops", len(changed.Patch.Ops))
		return nil
	}
	result := s.sync.ApplyWorkflowChanged(changed, ev.SnapshotID)
	if !result.OK() {
		return fmt.Errorf("%d of %d operations not applied", len(result.Anomalies), len(result.Ops))
	}
	return nil
}

// staleChange reports why a change must not touch the current snapshot, or
// "" when it applies. Tagged changes must name the current target. Untagged
// changes queued before the last switch finished loading belong to the
// previous workflow.
func (s *Session) staleChange(ev wire.WorkflowChanged) string {
	if ev.ProjectID != "" || ev.WorkflowID != "" {
		projectID, workflowID := s.Target()
		if (ev.ProjectID != "" && ev.ProjectID != projectID) || (ev.WorkflowID != "" && ev.WorkflowID != workflowID) {
			return "other workflow"
		}
		return ""
	}
	if mark := s.switchMark.Load(); mark > 0 && s.pushSeq.Load() <= mark {
		return "queued before switch"
	}
	return ""
}

// registerNotificationHandlers installs default handlers for the named
// events that carry no workflow state. Feature modules replace them by
// registering under the same name.
func (s *Session) registerNotificationHandlers() {
	s.registry.RegisterKind(dispatch.KindDirtyState, func(_ context.Context, ev dispatch.Event) error {
		p, err := wire.DecodePayload[wire.DirtyState](ev.Payload)
		if err != nil {
			return err
		}
		s.logger.Info("project dirty state", "project_id", p.ProjectID, "dirty", p.Dirty)
		return nil
	})

	s.registry.RegisterKind(dispatch.KindAppState, func(_ context.Context, ev dispatch.Event) error {
		p, err := wire.DecodePayload[wire.AppState](ev.Payload)
		if err != nil {
			return err
		}
		s.logger.Info("app state changed", "open_projects", len(p.OpenProjects), "dev_mode", p.DevMode)
		return nil
	})

	s.registry.RegisterKind(dispatch.KindToast, func(_ context.Context, ev dispatch.Event) error {
		p, err := wire.DecodePayload[wire.Toast](ev.Payload)
		if err != nil {
			return err
		}
		s.logger.Info("toast", "type", p.Type, "headline", p.Headline, "message", p.Message)
		return nil
	})

	s.registry.RegisterKind(dispatch.KindUpdateAvailable, func(_ context.Context, ev dispatch.Event) error {
		p, err := wire.DecodePayload[wire.UpdateAvailable](ev.Payload)
		if err != nil {
			return err
		}
		s.logger.Info("update available", "version", p.Version)
		return nil
	})
}
