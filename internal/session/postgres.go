package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/klauspost/compress/zstd"

	"onboard/internal/wizard"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx, so the
// store works inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists sessions in the onboarding_sessions table. The state
// blob is zstd-compressed JSON; brand colors, feature lists, and free-text
// summaries compress well, and the codec is self-describing so a future move
// back to plain JSON only needs a magic-byte check.
//
// Expected schema:
//
//	CREATE TABLE onboarding_sessions (
//	    id         TEXT PRIMARY KEY,
//	    state      BYTEA NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db      DBTX
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewPostgresStore creates a store over the given connection or pool.
func NewPostgresStore(db DBTX) (*PostgresStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("session: creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("session: creating zstd decoder: %w", err)
	}
	return &PostgresStore{db: db, encoder: enc, decoder: dec}, nil
}

// Get returns the stored state, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, id string) (wizard.State, error) {
	var blob []byte
	err := s.db.QueryRow(ctx,
		`SELECT state FROM onboarding_sessions WHERE id = $1`, key(id),
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return wizard.State{}, ErrNotFound
		}
		return wizard.State{}, fmt.Errorf("session: postgres get: %w", err)
	}
	return s.decode(blob)
}

// Put stores the state, inserting or overwriting.
func (s *PostgresStore) Put(ctx context.Context, id string, state wizard.State) error {
	blob, err := s.encode(state)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO onboarding_sessions (id, state, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		key(id), blob, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("session: postgres put: %w", err)
	}
	return nil
}

// Delete removes the session.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM onboarding_sessions WHERE id = $1`, key(id))
	if err != nil {
		return fmt.Errorf("session: postgres delete: %w", err)
	}
	return nil
}

// encode marshals and compresses the state.
func (s *PostgresStore) encode(state wizard.State) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("session: encoding state: %w", err)
	}
	return s.encoder.EncodeAll(raw, nil), nil
}

// decode decompresses and unmarshals a stored blob.
func (s *PostgresStore) decode(blob []byte) (wizard.State, error) {
	raw, err := s.decoder.DecodeAll(blob, nil)
	if err != nil {
		return wizard.State{}, fmt.Errorf("session: decompressing state: %w", err)
	}
	var state wizard.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return wizard.State{}, fmt.Errorf("session: decoding state: %w", err)
	}
	return state, nil
}
