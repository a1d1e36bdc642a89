package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/predicate/internal/ir"
)

// execer is the subset of *sql.DB and *sql.Tx the writers need.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WriteResolution inserts a resolution record.
// Uses ON CONFLICT DO NOTHING for idempotency - a duplicate id or content
// key is silently ignored.
func (s *Store) WriteResolution(ctx context.Context, res Resolution) error {
	if err := writeResolution(ctx, s.db, res); err != nil {
		return fmt.Errorf("write resolution: %w", err)
	}
	return nil
}

// WriteEvent inserts one trace event.
// The resolution referenced by ResolutionID must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, ev Event) error {
	if err := writeEvent(ctx, s.db, ev); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// WriteTrace atomically writes a resolution and all its events in a
// single transaction: after a crash either the whole trace is present or
// none of it is.
func (s *Store) WriteTrace(ctx context.Context, res Resolution, events []Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write trace: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := writeResolution(ctx, tx, res); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	for _, ev := range events {
		if err := writeEvent(ctx, tx, ev); err != nil {
			return fmt.Errorf("write trace: seq %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write trace: commit: %w", err)
	}
	return nil
}

func writeResolution(ctx context.Context, db execer, res Resolution) error {
	args := res.Args
	if args == nil {
		args = ir.IRArray{}
	}
	argsJSON, err := marshalValue(args)
	if err != nil {
		return err
	}
	solutionsJSON, err := marshalArray(res.Solutions)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO resolutions
		(id, content_key, kind, predicate, args, seq, end_seq, ok, solutions, spec_cid, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		res.ID,
		nullString(res.ContentKey),
		res.Kind,
		res.Predicate,
		argsJSON,
		res.Seq,
		res.EndSeq,
		boolToInt(res.OK),
		solutionsJSON,
		res.SpecCID,
		res.EngineVersion,
		res.IRVersion,
	)
	return err
}

func writeEvent(ctx context.Context, db execer, ev Event) error {
	valueJSON, err := marshalNullable(ev.Value)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO trace_events
		(resolution_id, seq, type, clause, label, value, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(resolution_id, seq) DO NOTHING
	`,
		ev.ResolutionID,
		ev.Seq,
		ev.Type,
		ev.Clause,
		ev.Label,
		valueJSON,
		ev.Detail,
	)
	return err
}
