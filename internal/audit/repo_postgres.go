package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists call events to the call_events table.
//
// Assumed schema:
//
//	CREATE TABLE call_events (
//	  id             TEXT PRIMARY KEY,
//	  type           TEXT NOT NULL,
//	  agent_id       TEXT,
//	  call_id        TEXT,
//	  session_id     TEXT,
//	  participant_id TEXT,
//	  message        TEXT,
//	  created_at     TIMESTAMPTZ NOT NULL
//	);
//
// INSERT-only; no update or delete statements exist here.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO call_events (
  id, type, agent_id, call_id, session_id, participant_id, message, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.AgentID,
		e.CallID,
		e.SessionID,
		e.ParticipantID,
		e.Message,
		e.CreatedAt,
	)
	return err
}
