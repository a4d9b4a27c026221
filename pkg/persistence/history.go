package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Fixed width so that created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// StartRun inserts a new running run and returns it.
func (h *DB) StartRun(ctx context.Context, architectureID string) (*Run, error) {
	run := &Run{
		ID:             uuid.NewString(),
		ArchitectureID: architectureID,
		Status:         RunStatusRunning,
		StartedAt:      time.Now().UTC(),
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO runs (id, architecture_id, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.ArchitectureID, run.Status, run.StartedAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run completed or failed.
func (h *DB) FinishRun(ctx context.Context, runID, status string) error {
	if status != RunStatusCompleted && status != RunStatusFailed {
		return fmt.Errorf("invalid final run status %q", status)
	}
	res, err := h.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(timeLayout), runID)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun loads a run by id.
func (h *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
	)
	err := h.db.QueryRowContext(ctx,
		`SELECT id, architecture_id, status, started_at, finished_at FROM runs WHERE id = ?`, runID).
		Scan(&run.ID, &run.ArchitectureID, &run.Status, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	run.StartedAt = parseTime(started)
	if finished.Valid {
		t := parseTime(finished.String)
		run.FinishedAt = &t
	}
	return &run, nil
}

// SaveRefinement inserts a refinement record, assigning ID and CreatedAt when unset.
func (h *DB) SaveRefinement(ctx context.Context, r *Refinement) error {
	if r == nil {
		return errors.New("nil refinement")
	}
	if r.DiagramType == "" {
		return errors.New("refinement has no diagram type")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	rules, err := encodeNames(r.Rules)
	if err != nil {
		return err
	}
	added, err := encodeNames(r.RulesAdded)
	if err != nil {
		return err
	}

	var runID any
	if r.RunID != "" {
		runID = r.RunID
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO refinements (
			id, run_id, architecture_id, diagram_type, view, final_state,
			refined, partial, feedback, rules, rules_added, created_at,
			feedback_tokens, image_available
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, runID, r.ArchitectureID, r.DiagramType, r.View, r.FinalState,
		r.Refined, r.Partial, r.Feedback, rules, added, r.CreatedAt.Format(timeLayout),
		r.FeedbackTokens, r.ImageAvailable)
	if err != nil {
		return fmt.Errorf("failed to insert refinement for %s: %w", r.DiagramType, err)
	}
	return nil
}

// ListRefinements returns refinement records, newest first.
func (h *DB) ListRefinements(ctx context.Context, filter ListFilter) ([]*Refinement, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT id, COALESCE(run_id, ''), architecture_id, diagram_type, view, final_state,
		refined, partial, feedback, rules, rules_added, created_at, feedback_tokens, image_available
		FROM refinements WHERE 1=1`)
	var args []any
	if filter.RunID != "" {
		query.WriteString(" AND run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.DiagramType != "" {
		query.WriteString(" AND diagram_type = ?")
		args = append(args, filter.DiagramType)
	}
	query.WriteString(" ORDER BY created_at DESC, rowid DESC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := h.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query refinements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Refinement
	for rows.Next() {
		var (
			r            Refinement
			rules, added string
			created      string
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.ArchitectureID, &r.DiagramType, &r.View, &r.FinalState,
			&r.Refined, &r.Partial, &r.Feedback, &rules, &added, &created, &r.FeedbackTokens, &r.ImageAvailable); err != nil {
			return nil, fmt.Errorf("failed to scan refinement: %w", err)
		}
		r.Rules = decodeNames(rules)
		r.RulesAdded = decodeNames(added)
		r.CreatedAt = parseTime(created)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refinements: %w", err)
	}
	return out, nil
}

func encodeNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("failed to encode rule names: %w", err)
	}
	return string(b), nil
}

func decodeNames(s string) []string {
	names := []string{}
	if err := json.Unmarshal([]byte(s), &names); err != nil {
		return []string{}
	}
	return names
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
