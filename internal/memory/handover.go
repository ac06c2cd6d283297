package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/session"
	"dementia-mcp/internal/storage"
)

// Handover statuses.
const (
	HandoverCurrent  = "current"
	HandoverPackaged = "packaged"
)

const handoverCategory = "handover"

// Handover is what a resuming agent receives.
type Handover struct {
	Status    string           `json:"status"`
	Summary   *session.Summary `json:"summary,omitempty"`
	Narrative string           `json:"narrative,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	HoursAgo  float64          `json:"hours_ago"`
}

// hoursAgo reports the age of a timestamp in hours, rounded to two decimals.
func hoursAgo(t time.Time) float64 {
	return math.Round(time.Since(t).Hours()*100) / 100
}

// GetLastHandover returns the freshest available handover. A session still
// active within the cutoff yields its live summary; otherwise the latest
// packaged handover entry is returned.
func (e *Engine) GetLastHandover(ctx context.Context, project string) (*Handover, error) {
	_, schema, err := e.schemaFor(ctx, project)
	if err != nil {
		return nil, err
	}

	if id := session.SessionID(ctx); id != "" {
		sess, serr := e.sessions.Get(ctx, id)
		if serr == nil && sess.Summary != nil &&
			time.Since(sess.LastActive) < e.cfg.Session.HandoverCutoff() {
			return &Handover{
				Status:    HandoverCurrent,
				Summary:   sess.Summary,
				CreatedAt: sess.LastActive,
				HoursAgo:  hoursAgo(sess.LastActive),
			}, nil
		}
	}

	packaged, err := e.latestPackaged(ctx, schema)
	if err != nil {
		return nil, err
	}
	if packaged == nil {
		return nil, engerr.NotFound("no handover available")
	}
	return packaged, nil
}

func (e *Engine) latestPackaged(ctx context.Context, schema string) (*Handover, error) {
	var handover *Handover
	err := e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		row, found, qerr := c.QueryOne(ctx,
			`SELECT content, metadata, created_at FROM memory_entries
			 WHERE category = ? ORDER BY created_at DESC LIMIT 1`, handoverCategory)
		if qerr != nil {
			return qerr
		}
		if !found {
			return nil
		}

		handover = &Handover{Status: HandoverPackaged}
		if ts, ok := row["created_at"].(time.Time); ok {
			handover.CreatedAt = ts
			handover.HoursAgo = hoursAgo(ts)
		}
		if content, ok := row["content"].(string); ok {
			var packed packagedHandover
			if jerr := json.Unmarshal([]byte(content), &packed); jerr == nil {
				handover.Summary = &packed.Summary
				handover.Narrative = packed.Narrative
			} else {
				handover.Narrative = content
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handover, nil
}

// packagedHandover is the serialized form stored in memory_entries.
type packagedHandover struct {
	Summary   session.Summary `json:"summary"`
	Narrative string          `json:"narrative,omitempty"`
}

// SleepRequest is the structured summary an agent records before ending a
// session.
type SleepRequest struct {
	WorkDone         []string
	ToolsUsed        []string
	NextSteps        []string
	ImportantContext map[string]interface{}
	Project          string
}

// Sleep packages the session into a handover: the structured summary lands
// on the session row and as a handover memory entry, with an optional
// LLM-written narrative when a completion endpoint is configured.
func (e *Engine) Sleep(ctx context.Context, req SleepRequest) (*Handover, error) {
	id := session.SessionID(ctx)
	if id == "" {
		return nil, engerr.Validation("no session resolved for this call")
	}

	_, schema, err := e.schemaFor(ctx, req.Project)
	if err != nil {
		return nil, err
	}

	summary := &session.Summary{
		WorkDone:         req.WorkDone,
		ToolsUsed:        req.ToolsUsed,
		NextSteps:        req.NextSteps,
		ImportantContext: req.ImportantContext,
	}

	narrative := e.narrate(ctx, summary)

	packed, err := json.Marshal(packagedHandover{Summary: *summary, Narrative: narrative})
	if err != nil {
		return nil, engerr.Internal("failed to marshal handover", err)
	}

	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		_, xerr := c.Execute(ctx,
			"INSERT INTO memory_entries (id, session_id, category, content, metadata) VALUES (?, ?, ?, ?, ?)",
			uuid.New().String(), id, handoverCategory, string(packed), "{}")
		return xerr
	})
	if err != nil {
		return nil, err
	}

	if serr := e.sessions.UpdateSummary(ctx, id, summary); serr != nil {
		e.logger.WarnContext(ctx, "session summary update failed", "session_id", id, "error", serr)
	}

	return &Handover{
		Status:    HandoverPackaged,
		Summary:   summary,
		Narrative: narrative,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// narrate asks the LLM collaborator for a short prose handover. Absence or
// failure of the collaborator degrades to no narrative.
func (e *Engine) narrate(ctx context.Context, summary *session.Summary) string {
	if e.llm == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("Write a short handover note for the next engineering session.\n")
	fmt.Fprintf(&b, "Work done: %s\n", strings.Join(summary.WorkDone, "; "))
	fmt.Fprintf(&b, "Tools used: %s\n", strings.Join(summary.ToolsUsed, "; "))
	fmt.Fprintf(&b, "Next steps: %s\n", strings.Join(summary.NextSteps, "; "))
	if len(summary.ImportantContext) > 0 {
		if encoded, err := json.Marshal(summary.ImportantContext); err == nil {
			fmt.Fprintf(&b, "Important context: %s\n", encoded)
		}
	}

	narrative, err := e.llm.Complete(ctx, b.String())
	if err != nil {
		e.logger.WarnContext(ctx, "handover narrative skipped", "error", err)
		return ""
	}
	return narrative
}

// WakeState is what WakeUp returns: prior handover plus the session's own
// state.
type WakeState struct {
	Session  *session.Session `json:"session"`
	Handover *Handover        `json:"handover,omitempty"`
}

// WakeUp loads the prior handover and the calling session's state so an
// agent can resume where the previous session stopped.
func (e *Engine) WakeUp(ctx context.Context, project string) (*WakeState, error) {
	id := session.SessionID(ctx)
	if id == "" {
		return nil, engerr.Validation("no session resolved for this call")
	}

	sess, err := e.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	state := &WakeState{Session: sess}
	handover, herr := e.GetLastHandover(ctx, project)
	if herr != nil {
		if !engerr.IsKind(herr, engerr.KindNotFound) {
			return nil, herr
		}
	} else {
		state.Handover = handover
	}
	return state, nil
}
