// Package activity implements the Postgres-backed ActivityEvent log: an
// append-only record of everything that happened against a workflow
// execution or Agent, queried back for operator-facing activity feeds.
package activity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	roidb "github.com/rosterhq/control-plane/internal/db"
	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/resources"
)

// Store persists ActivityEvents.
type Store struct {
	db *roidb.DB
}

// New constructs an activity Store over an open database pool.
func New(database *roidb.DB) *Store {
	return &Store{db: database}
}

// Append inserts an ActivityEvent, assigning it a new ID if it has none.
func (s *Store) Append(ctx context.Context, ev resources.ActivityEvent) (resources.ActivityEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO activity_event (id, execution_id, execution_type, type, content, agent_context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`
	_, err := s.db.Exec(ctx, query, ev.ID, ev.ExecutionID, ev.ExecutionType, ev.Type, ev.Content, ev.AgentContext)
	if err != nil {
		return resources.ActivityEvent{}, roerrors.Wrap(roerrors.KindGeneric, "append activity event", err)
	}
	return ev, nil
}

// ListByExecution returns every ActivityEvent for an execution (a
// WorkflowRecord ID or an Agent name), oldest first, bounded by limit.
func (s *Store) ListByExecution(ctx context.Context, executionID string, limit int) ([]resources.ActivityEvent, error) {
	const query = `
		SELECT id, execution_id, execution_type, type, content, agent_context
		FROM activity_event
		WHERE execution_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, executionID, limit)
	if err != nil {
		return nil, roerrors.Wrap(roerrors.KindGeneric, fmt.Sprintf("list activity for %s", executionID), err)
	}
	defer rows.Close()

	var out []resources.ActivityEvent
	for rows.Next() {
		var ev resources.ActivityEvent
		if err := rows.Scan(&ev.ID, &ev.ExecutionID, &ev.ExecutionType, &ev.Type, &ev.Content, &ev.AgentContext); err != nil {
			return nil, roerrors.Wrap(roerrors.KindGeneric, "scan activity event", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, roerrors.Wrap(roerrors.KindGeneric, "iterate activity events", err)
	}
	return out, nil
}
