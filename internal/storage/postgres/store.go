package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dexPortal/internal/model"
)

// Schema creates the tables the store needs. EnsureSchema runs it.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	wallet_address TEXT PRIMARY KEY,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS mint_records (
	id             BIGSERIAL PRIMARY KEY,
	wallet_address TEXT NOT NULL,
	symbol         TEXT NOT NULL,
	token          TEXT NOT NULL,
	amount         NUMERIC NOT NULL,
	tx_hash        TEXT NOT NULL,
	block_number   BIGINT NOT NULL,
	minted_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS mint_records_wallet_symbol_idx
	ON mint_records (wallet_address, upper(symbol), minted_at DESC);
CREATE TABLE IF NOT EXISTS tx_records (
	tx_hash      TEXT PRIMARY KEY,
	flow         TEXT NOT NULL,
	step         TEXT NOT NULL,
	sender       TEXT NOT NULL,
	recipient    TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	recorded_at  TIMESTAMPTZ NOT NULL
);
`

// Store provides Postgres persistence for the faucet ledger and the tx journal.
type Store struct {
	pool *pgxpool.Pool
	// journalTimeout bounds PutTxRecords, which has no caller context.
	journalTimeout time.Duration
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, journalTimeout: 10 * time.Second}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// GetUser looks a wallet up.
func (s *Store) GetUser(ctx context.Context, wallet string) (model.User, bool, error) {
	user := model.User{WalletAddress: wallet}
	row := s.pool.QueryRow(ctx, `SELECT created_at FROM users WHERE wallet_address=$1`, wallet)
	if err := row.Scan(&user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, false, nil
		}
		return model.User{}, false, err
	}
	return user, true, nil
}

// UpsertUser inserts the wallet if absent and reports whether it did.
func (s *Store) UpsertUser(ctx context.Context, wallet string) (bool, error) {
	if wallet == "" {
		return false, fmt.Errorf("wallet address required")
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO users (wallet_address, created_at)
		VALUES ($1, now())
		ON CONFLICT (wallet_address) DO NOTHING
	`, wallet)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// LastMint returns the most recent dispensation of symbol to wallet.
func (s *Store) LastMint(ctx context.Context, wallet, symbol string) (model.MintRecord, bool, error) {
	rec := model.MintRecord{WalletAddress: wallet}
	var block int64
	row := s.pool.QueryRow(ctx, `
		SELECT symbol, token, amount::text, tx_hash, block_number, minted_at
		FROM mint_records
		WHERE wallet_address=$1 AND upper(symbol)=upper($2)
		ORDER BY minted_at DESC
		LIMIT 1
	`, wallet, symbol)
	if err := row.Scan(&rec.Symbol, &rec.Token, &rec.Amount, &rec.TxHash, &block, &rec.MintedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.MintRecord{}, false, nil
		}
		return model.MintRecord{}, false, err
	}
	rec.BlockNumber = uint64(block)
	return rec, true, nil
}

// RecordMint appends a dispensation.
func (s *Store) RecordMint(ctx context.Context, rec model.MintRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mint_records (wallet_address, symbol, token, amount, tx_hash, block_number, minted_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
	`,
		rec.WalletAddress,
		rec.Symbol,
		rec.Token,
		rec.Amount,
		rec.TxHash,
		int64(rec.BlockNumber),
		rec.MintedAt,
	)
	return err
}

// PutTxRecords upserts journal entries keyed by tx hash.
func (s *Store) PutTxRecords(records []model.TxRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.journalTimeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, r := range records {
		recordedAt, err := time.Parse(time.RFC3339Nano, r.RecordedAt)
		if err != nil {
			recordedAt = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO tx_records (
				tx_hash, flow, step, sender, recipient, block_number, status, error, recorded_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (tx_hash)
			DO UPDATE SET
				block_number = EXCLUDED.block_number,
				status = EXCLUDED.status,
				error = EXCLUDED.error,
				recorded_at = EXCLUDED.recorded_at
		`,
			r.TxHash,
			r.Flow,
			r.Step,
			r.From,
			r.To,
			int64(r.BlockNumber),
			r.Status,
			r.Error,
			recordedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
