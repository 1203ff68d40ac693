package retention

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
	txcontext "sigil/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// PostgresHoldStore implements HoldStore on PostgreSQL. A partial unique
// index on (envelope_id) WHERE released_at IS NULL enforces the single
// active hold invariant at the storage layer.
type PostgresHoldStore struct {
	db *sql.DB
}

func NewPostgresHoldStore(db *sql.DB) *PostgresHoldStore {
	return &PostgresHoldStore{db: db}
}

func (s *PostgresHoldStore) Save(ctx context.Context, hold LegalHold) error {
	query := `
		INSERT INTO legal_holds (hold_id, envelope_id, reason, applied_by, applied_at, released_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hold_id) DO UPDATE SET released_at = EXCLUDED.released_at
	`
	var releasedAt sql.NullTime
	if hold.ReleasedAt != nil {
		releasedAt = sql.NullTime{Time: *hold.ReleasedAt, Valid: true}
	}
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(hold.ID),
		uuid.UUID(hold.EnvelopeID),
		hold.Reason,
		hold.AppliedBy,
		hold.AppliedAt,
		releasedAt,
	)
	if err != nil {
		return fmt.Errorf("save legal hold: %w", err)
	}
	return nil
}

func (s *PostgresHoldStore) Active(ctx context.Context, envelopeID id.EnvelopeID) (LegalHold, error) {
	query := holdColumns + `
		FROM legal_holds
		WHERE envelope_id = $1 AND released_at IS NULL
	`
	row := execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(envelopeID))

	hold, err := scanHold(row)
	if errors.Is(err, sql.ErrNoRows) {
		return LegalHold{}, sentinel.ErrNotFound
	}
	if err != nil {
		return LegalHold{}, fmt.Errorf("query active hold: %w", err)
	}
	return hold, nil
}

func (s *PostgresHoldStore) History(ctx context.Context, envelopeID id.EnvelopeID) ([]LegalHold, error) {
	query := holdColumns + `
		FROM legal_holds
		WHERE envelope_id = $1
		ORDER BY applied_at ASC
	`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, uuid.UUID(envelopeID))
	if err != nil {
		return nil, fmt.Errorf("query hold history: %w", err)
	}
	defer rows.Close()

	var holds []LegalHold
	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan legal hold: %w", err)
		}
		holds = append(holds, hold)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legal holds: %w", err)
	}
	return holds, nil
}

const holdColumns = `
	SELECT hold_id, envelope_id, reason, applied_by, applied_at, released_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHold(row rowScanner) (LegalHold, error) {
	var (
		holdID     uuid.UUID
		envelopeID uuid.UUID
		hold       LegalHold
		releasedAt sql.NullTime
	)
	err := row.Scan(&holdID, &envelopeID, &hold.Reason, &hold.AppliedBy, &hold.AppliedAt, &releasedAt)
	if err != nil {
		return LegalHold{}, err
	}
	hold.ID = id.HoldID(holdID)
	hold.EnvelopeID = id.EnvelopeID(envelopeID)
	if releasedAt.Valid {
		t := releasedAt.Time
		hold.ReleasedAt = &t
	}
	return hold, nil
}

// PostgresPolicyStore implements PolicyStore on PostgreSQL.
type PostgresPolicyStore struct {
	db *sql.DB
}

func NewPostgresPolicyStore(db *sql.DB) *PostgresPolicyStore {
	return &PostgresPolicyStore{db: db}
}

func (s *PostgresPolicyStore) Save(ctx context.Context, policy Policy) error {
	query := `
		INSERT INTO retention_policies (envelope_id, retention_seconds, completed_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (envelope_id) DO UPDATE SET
			retention_seconds = EXCLUDED.retention_seconds,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(policy.EnvelopeID),
		int64(policy.Period/time.Second),
		policy.CompletedAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save retention policy: %w", err)
	}
	return nil
}

func (s *PostgresPolicyStore) Find(ctx context.Context, envelopeID id.EnvelopeID) (Policy, error) {
	query := `
		SELECT envelope_id, retention_seconds, completed_at, updated_at
		FROM retention_policies
		WHERE envelope_id = $1
	`
	var (
		envID   uuid.UUID
		seconds int64
		policy  Policy
	)
	err := execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(envelopeID)).
		Scan(&envID, &seconds, &policy.CompletedAt, &policy.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Policy{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Policy{}, fmt.Errorf("query retention policy: %w", err)
	}
	policy.EnvelopeID = id.EnvelopeID(envID)
	policy.Period = time.Duration(seconds) * time.Second
	return policy, nil
}
