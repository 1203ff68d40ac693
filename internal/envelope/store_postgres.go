package envelope

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
	txcontext "sigil/pkg/platform/tx"
)

// PostgresStore persists envelope snapshots in the envelopes and
// envelope_participants tables. Save replaces the whole snapshot; the
// workflow layer owns the data, we only mirror it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, env Envelope) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		tx, _ := txcontext.From(ctx)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO envelopes (
				envelope_id, sender_id, subject, status, signing_order,
				created_at, completed_at, archived
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (envelope_id) DO UPDATE SET
				sender_id = EXCLUDED.sender_id,
				subject = EXCLUDED.subject,
				status = EXCLUDED.status,
				signing_order = EXCLUDED.signing_order,
				completed_at = EXCLUDED.completed_at,
				archived = EXCLUDED.archived
		`,
			uuid.UUID(env.ID),
			env.SenderID,
			env.Subject,
			string(env.Status),
			string(env.SigningOrder),
			env.CreatedAt,
			env.CompletedAt,
			env.Archived,
		)
		if err != nil {
			return fmt.Errorf("upsert envelope: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM envelope_participants WHERE envelope_id = $1`,
			uuid.UUID(env.ID),
		); err != nil {
			return fmt.Errorf("clear envelope participants: %w", err)
		}

		for _, p := range env.Participants {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO envelope_participants (
					participant_id, envelope_id, name, email, role,
					signing_order, completed_at
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`,
				uuid.UUID(p.ID),
				uuid.UUID(env.ID),
				p.Name,
				p.Email,
				string(p.Role),
				p.SigningOrder,
				p.CompletedAt,
			); err != nil {
				return fmt.Errorf("insert envelope participant: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) Find(ctx context.Context, envelopeID id.EnvelopeID) (Envelope, error) {
	var (
		env         Envelope
		envUUID     uuid.UUID
		status      string
		order       string
		completedAt sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT envelope_id, sender_id, subject, status, signing_order,
		       created_at, completed_at, archived
		FROM envelopes
		WHERE envelope_id = $1
	`, uuid.UUID(envelopeID)).Scan(
		&envUUID,
		&env.SenderID,
		&env.Subject,
		&status,
		&order,
		&env.CreatedAt,
		&completedAt,
		&env.Archived,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Envelope{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("query envelope: %w", err)
	}

	env.ID = id.EnvelopeID(envUUID)
	env.Status = Status(status)
	env.SigningOrder = SigningOrder(order)
	if completedAt.Valid {
		t := completedAt.Time
		env.CompletedAt = &t
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT participant_id, name, email, role, signing_order, completed_at
		FROM envelope_participants
		WHERE envelope_id = $1
		ORDER BY signing_order ASC, name ASC
	`, uuid.UUID(envelopeID))
	if err != nil {
		return Envelope{}, fmt.Errorf("query envelope participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p           Participant
			participant uuid.UUID
			role        string
			done        sql.NullTime
		)
		if err := rows.Scan(&participant, &p.Name, &p.Email, &role, &p.SigningOrder, &done); err != nil {
			return Envelope{}, fmt.Errorf("scan envelope participant: %w", err)
		}
		p.ID = id.ParticipantID(participant)
		p.Role = ParticipantRole(role)
		if done.Valid {
			t := done.Time
			p.CompletedAt = &t
		}
		env.Participants = append(env.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return Envelope{}, fmt.Errorf("iterate envelope participants: %w", err)
	}
	return env, nil
}
