package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tutor/pkg/continuity"
	"tutor/pkg/progression"
	"tutor/pkg/proto"
)

// TurnRecord is one persisted turn of a session.
type TurnRecord struct {
	TurnID     string    `json:"turn_id"`
	SessionID  string    `json:"session_id"`
	Utterance  string    `json:"utterance"`
	Route      string    `json:"route"`
	RuleID     string    `json:"rule_id"`
	Confidence float64   `json:"confidence"`
	Reply      string    `json:"reply"`
	CreatedAt  time.Time `json:"created_at"`
}

// Load implements continuity.Store.
func (s *Store) Load(sessionID string) (*continuity.Context, error) {
	var raw string
	err := s.db.QueryRow(
		`SELECT continuity FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", continuity.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var ctx continuity.Context
	if err := json.Unmarshal([]byte(raw), &ctx); err != nil {
		return nil, fmt.Errorf("failed to decode continuity for %s: %w", sessionID, err)
	}
	return &ctx, nil
}

// Save implements continuity.Store, upserting the session row.
func (s *Store) Save(sessionID string, ctx *continuity.Context) error {
	raw, err := json.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to encode continuity for %s: %w", sessionID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (session_id, continuity, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET
			continuity = excluded.continuity,
			updated_at = CURRENT_TIMESTAMP`,
		sessionID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	return nil
}

// SaveProgress implements progression.StateStore.
func (s *Store) SaveProgress(sessionID string, snap *progression.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode progress for %s: %w", sessionID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (session_id, continuity, progress, updated_at)
		VALUES (?, '{}', ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET
			progress = excluded.progress,
			updated_at = CURRENT_TIMESTAMP`,
		sessionID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to save progress for %s: %w", sessionID, err)
	}

	return s.syncMilestones(sessionID, snap.Milestones)
}

// LoadProgress implements progression.StateStore.
func (s *Store) LoadProgress(sessionID string) (*progression.Snapshot, error) {
	var raw sql.NullString
	err := s.db.QueryRow(
		`SELECT progress FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !raw.Valid) {
		return nil, fmt.Errorf("%w: %s", progression.ErrProgressNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load progress for %s: %w", sessionID, err)
	}

	var snap progression.Snapshot
	if err := json.Unmarshal([]byte(raw.String), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode progress for %s: %w", sessionID, err)
	}
	return &snap, nil
}

// syncMilestones inserts milestone rows not yet present. Milestones are
// append-only, so upserts are unnecessary.
func (s *Store) syncMilestones(sessionID string, milestones []proto.Milestone) error {
	for i := range milestones {
		m := &milestones[i]
		_, err := s.db.Exec(`
			INSERT OR IGNORE INTO milestones (milestone_id, session_id, phase, type, progress, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, sessionID, string(m.Phase), string(m.Type), m.Progress, m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert milestone %s: %w", m.ID, err)
		}
	}
	return nil
}

// RecordTurn persists one completed turn. The session row must exist; the
// continuity save earlier in the same turn guarantees that.
func (s *Store) RecordTurn(sessionID, utterance string, decision *proto.RoutingDecision, reply string) (string, error) {
	turnID := uuid.New().String()
	_, err := s.db.Exec(`
		INSERT INTO turns (turn_id, session_id, utterance, route, rule_id, confidence, reply)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turnID, sessionID, utterance, string(decision.Route), decision.RuleID, decision.Confidence, reply,
	)
	if err != nil {
		return "", fmt.Errorf("failed to record turn for %s: %w", sessionID, err)
	}
	return turnID, nil
}

// Turns returns a session's turns, oldest first.
func (s *Store) Turns(sessionID string) ([]TurnRecord, error) {
	rows, err := s.db.Query(`
		SELECT turn_id, session_id, utterance, route, rule_id, confidence, reply, created_at
		FROM turns WHERE session_id = ? ORDER BY rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns for %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	var turns []TurnRecord
	for rows.Next() {
		var t TurnRecord
		if err := rows.Scan(&t.TurnID, &t.SessionID, &t.Utterance, &t.Route, &t.RuleID, &t.Confidence, &t.Reply, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}
	return turns, nil
}

// ListSessions returns every persisted session ID.
func (s *Store) ListSessions() ([]string, error) {
	rows, err := s.db.Query(`SELECT session_id FROM sessions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return ids, nil
}
