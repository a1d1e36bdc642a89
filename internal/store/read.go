package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/predicate/internal/ir"
	"github.com/roach88/predicate/internal/queryir"
	"github.com/roach88/predicate/internal/querysql"
)

var resolutionColumns = []string{
	"id", "content_key", "kind", "predicate", "args", "seq", "end_seq",
	"ok", "solutions", "spec_cid", "engine_version", "ir_version",
}

var eventColumns = []string{
	"resolution_id", "seq", "type", "clause", "label", "value", "detail",
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ReadResolution retrieves a single resolution by id.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadResolution(ctx context.Context, id string) (Resolution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content_key, kind, predicate, args, seq, end_seq, ok, solutions, spec_cid, engine_version, ir_version
		FROM resolutions
		WHERE id = ?
	`, id)
	return scanResolution(row)
}

// ReadEvents returns the trace events of one resolution in seq order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadEvents(ctx context.Context, resolutionID string) ([]Event, error) {
	return s.SearchEvents(ctx, queryir.Equals{Field: "resolution_id", Value: ir.IRString(resolutionID)})
}

// ListResolutions returns all resolutions of a predicate, or of every
// predicate if name is empty, ordered by seq ASC, id ASC.
func (s *Store) ListResolutions(ctx context.Context, name string) ([]Resolution, error) {
	var filter queryir.Predicate
	if name != "" {
		filter = queryir.Equals{Field: "predicate", Value: ir.IRString(name)}
	}
	return s.SearchResolutions(ctx, filter)
}

// SearchResolutions returns the resolutions matching filter (nil = all).
func (s *Store) SearchResolutions(ctx context.Context, filter queryir.Predicate) ([]Resolution, error) {
	rows, err := s.search(ctx, queryir.Select{
		From:    queryir.SourceResolutions,
		Columns: resolutionColumns,
		Filter:  filter,
	})
	if err != nil {
		return nil, fmt.Errorf("search resolutions: %w", err)
	}
	defer rows.Close()

	resolutions := []Resolution{}
	for rows.Next() {
		res, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		resolutions = append(resolutions, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolutions: %w", err)
	}
	return resolutions, nil
}

// SearchEvents returns the trace events matching filter (nil = all),
// ordered by seq.
func (s *Store) SearchEvents(ctx context.Context, filter queryir.Predicate) ([]Event, error) {
	rows, err := s.search(ctx, queryir.Select{
		From:    queryir.SourceEvents,
		Columns: eventColumns,
		Filter:  filter,
	})
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *Store) search(ctx context.Context, q queryir.Select) (*sql.Rows, error) {
	sqlStr, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, err
	}
	return s.db.QueryContext(ctx, sqlStr, params...)
}

// GetLastSeq returns the highest seq number used in the store.
// Used to resume the logical clock from the correct position.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var maxSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			(SELECT COALESCE(MAX(end_seq), 0) FROM resolutions),
			(SELECT COALESCE(MAX(seq), 0) FROM trace_events)
		)
	`).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return maxSeq, nil
}

func scanResolution(row rowScanner) (Resolution, error) {
	var (
		res        Resolution
		contentKey sql.NullString
		args       sql.NullString
		ok         int
		solutions  sql.NullString
	)
	err := row.Scan(
		&res.ID,
		&contentKey,
		&res.Kind,
		&res.Predicate,
		&args,
		&res.Seq,
		&res.EndSeq,
		&ok,
		&solutions,
		&res.SpecCID,
		&res.EngineVersion,
		&res.IRVersion,
	)
	if err != nil {
		return Resolution{}, fmt.Errorf("scan resolution: %w", err)
	}

	res.ContentKey = contentKey.String
	res.OK = ok != 0
	if res.Args, err = unmarshalArray(args); err != nil {
		return Resolution{}, fmt.Errorf("scan resolution %s: args: %w", res.ID, err)
	}
	if res.Solutions, err = unmarshalArray(solutions); err != nil {
		return Resolution{}, fmt.Errorf("scan resolution %s: solutions: %w", res.ID, err)
	}
	return res, nil
}

func scanEvent(row rowScanner) (Event, error) {
	var (
		ev    Event
		value sql.NullString
	)
	err := row.Scan(&ev.ResolutionID, &ev.Seq, &ev.Type, &ev.Clause, &ev.Label, &value, &ev.Detail)
	if err != nil {
		return Event{}, fmt.Errorf("scan event: %w", err)
	}
	if ev.Value, err = unmarshalValue(value); err != nil {
		return Event{}, fmt.Errorf("scan event %s/%d: %w", ev.ResolutionID, ev.Seq, err)
	}
	return ev, nil
}
