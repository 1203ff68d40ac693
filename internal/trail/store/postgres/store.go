// Package postgres implements the event store on PostgreSQL. The table has
// a composite primary key on (envelope_id, sequence_number), which is what
// turns append races into detectable conflicts instead of silent forks.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"sigil/internal/trail"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
	txcontext "sigil/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// Store implements store.EventStore on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, ev trail.Event) error {
	metadataKind := trail.KindNone
	metadataFields := map[string]string{}
	if ev.Metadata != nil {
		metadataKind = ev.Metadata.Kind()
		metadataFields = ev.Metadata.CanonicalMap()
	}

	metadataJSON, err := json.Marshal(metadataFields)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			event_id, envelope_id, sequence_number, event_type,
			actor_id, actor_role, occurred_at,
			metadata_kind, metadata,
			previous_hash, event_hash, hash_version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(ev.ID),
		uuid.UUID(ev.EnvelopeID),
		ev.Sequence,
		string(ev.Type),
		ev.Actor.ID,
		string(ev.Actor.Role),
		ev.Timestamp,
		string(metadataKind),
		metadataJSON,
		ev.PreviousHash,
		ev.Hash,
		ev.HashVersion,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) Head(ctx context.Context, envelopeID id.EnvelopeID) (trail.Event, error) {
	query := selectColumns + `
		FROM audit_events
		WHERE envelope_id = $1
		ORDER BY sequence_number DESC
		LIMIT 1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(envelopeID))

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return trail.Event{}, sentinel.ErrNotFound
	}
	if err != nil {
		return trail.Event{}, fmt.Errorf("query chain head: %w", err)
	}
	return ev, nil
}

func (s *Store) List(ctx context.Context, envelopeID id.EnvelopeID, filter trail.Filter) ([]trail.Event, error) {
	query := selectColumns + `
		FROM audit_events
		WHERE envelope_id = $1
	`
	args := []any{uuid.UUID(envelopeID)}

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		query += fmt.Sprintf(" AND event_type = ANY($%d)", len(args))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		query += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND occurred_at <= $%d", len(args))
	}

	query += " ORDER BY sequence_number ASC"

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []trail.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func (s *Store) Count(ctx context.Context, envelopeID id.EnvelopeID) (int64, error) {
	var count int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_events WHERE envelope_id = $1`,
		uuid.UUID(envelopeID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return count, nil
}

func (s *Store) Purge(ctx context.Context, envelopeID id.EnvelopeID) (int64, error) {
	result, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM audit_events WHERE envelope_id = $1`,
		uuid.UUID(envelopeID),
	)
	if err != nil {
		return 0, fmt.Errorf("purge audit events: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return removed, nil
}

const selectColumns = `
	SELECT event_id, envelope_id, sequence_number, event_type,
	       actor_id, actor_role, occurred_at,
	       metadata_kind, metadata,
	       previous_hash, event_hash, hash_version
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (trail.Event, error) {
	var (
		eventID      uuid.UUID
		envelopeID   uuid.UUID
		ev           trail.Event
		eventType    string
		actorRole    string
		occurredAt   time.Time
		metadataKind string
		metadataJSON []byte
	)

	err := row.Scan(
		&eventID,
		&envelopeID,
		&ev.Sequence,
		&eventType,
		&ev.Actor.ID,
		&actorRole,
		&occurredAt,
		&metadataKind,
		&metadataJSON,
		&ev.PreviousHash,
		&ev.Hash,
		&ev.HashVersion,
	)
	if err != nil {
		return trail.Event{}, err
	}

	fields := map[string]string{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &fields); err != nil {
			return trail.Event{}, fmt.Errorf("unmarshal event metadata: %w", err)
		}
	}
	metadata, err := trail.MetadataFromStored(trail.MetadataKind(metadataKind), fields)
	if err != nil {
		return trail.Event{}, err
	}

	ev.ID = id.EventID(eventID)
	ev.EnvelopeID = id.EnvelopeID(envelopeID)
	ev.Type = trail.EventType(eventType)
	ev.Actor.Role = trail.ActorRole(actorRole)
	ev.Timestamp = occurredAt
	ev.Metadata = metadata
	return ev, nil
}
