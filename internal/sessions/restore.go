package sessions

import (
	"context"

	"github.com/AaronLay10/ReelEngine/internal/events"
	"github.com/AaronLay10/ReelEngine/internal/playback"
)

// Restore rebuilds every live session recorded by the Recorder by replaying its
// inputs through a fresh session. Events are not re-emitted. Sessions whose
// scenario is no longer in the catalog, or whose inputs no longer replay, are
// skipped and reported. Returns the number of sessions restored.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.rec == nil {
		return 0, nil
	}

	rows, err := m.rec.ActiveSessions(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return restored, err
		}

		sc, ok := m.catalog.Get(row.ScenarioID)
		if !ok {
			m.reportRestoreFailure(row.ID, &NotFoundError{Kind: "scenario", ID: row.ScenarioID})
			continue
		}

		e := &entry{
			id:         row.ID,
			scenarioID: row.ScenarioID,
			startNode:  row.StartNode,
			createdAt:  row.CreatedAt,
			seq:        max(row.NextSeq, len(row.Inputs)),
			replaying:  true,
		}
		s, err := playback.Replay(sc, row.Inputs, m.sessionOptions(e)...)
		if err != nil {
			m.reportRestoreFailure(row.ID, err)
			continue
		}
		e.session = s
		e.replaying = false

		m.mu.Lock()
		m.sessions[e.id] = e
		m.mu.Unlock()
		restored++

		events.Emit("info", "session.restored", "", map[string]interface{}{
			"session_id":  e.id,
			"scenario_id": e.scenarioID,
			"inputs":      len(row.Inputs),
			"node_id":     s.CurrentNode().ID,
			"phase":       string(s.Phase()),
		})
	}

	events.Emit("info", "system.startup_restore", "", map[string]interface{}{
		"restored": restored,
		"recorded": len(rows),
	})
	return restored, nil
}

func (m *Manager) reportRestoreFailure(id string, err error) {
	m.log.Warn("session not restored", "session_id", id, "error", err)
	events.Emit("warn", "session.rejected", err.Error(), map[string]interface{}{
		"session_id": id,
	})
}
