package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS command_journal (
    id               UUID PRIMARY KEY,
    sequence         BIGINT NOT NULL,
    verb             TEXT NOT NULL,
    account          TEXT NOT NULL,
    card_mask        TEXT NOT NULL DEFAULT '',
    card_fingerprint TEXT NOT NULL DEFAULT '',
    amount           BIGINT NOT NULL DEFAULT 0,
    status           SMALLINT NOT NULL,
    error            TEXT NOT NULL DEFAULT '',
    recorded_at      TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS command_journal_account_idx ON command_journal (account, sequence)`,
}

// PostgresSink stores entries in the command_journal table.
type PostgresSink struct {
	db *pgxpool.Pool
}

// NewPostgresSink constructs a Postgres-backed journal sink.
func NewPostgresSink(db *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema creates the journal table when missing.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure journal schema: %w", err)
		}
	}
	return nil
}

// Record inserts the entry. Re-recording the same ID is ignored.
func (s *PostgresSink) Record(ctx context.Context, entry Entry) error {
	_, err := s.db.Exec(ctx, `INSERT INTO command_journal
        (id, sequence, verb, account, card_mask, card_fingerprint, amount, status, error, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.Sequence, entry.Verb, entry.Account, entry.CardMask, entry.CardFingerprint,
		entry.Amount, entry.Status, entry.Error, entry.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}
