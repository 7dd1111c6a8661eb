// Package bolt keeps the faucet ledger in a single embedded bbolt file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"dexPortal/internal/model"
)

var (
	usersBucket = []byte("users")
	mintsBucket = []byte("mints")
)

// Store implements the faucet ledger on bbolt.
//
// Users are keyed by wallet. The mints bucket holds one nested bucket per
// "wallet|SYMBOL" whose keys are fixed-width UTC timestamps,
// so the last key is the latest dispensation.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{usersBucket, mintsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetUser(_ context.Context, wallet string) (model.User, bool, error) {
	var (
		user model.User
		ok   bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(usersBucket).Get([]byte(wallet))
		if raw == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(raw, &user)
	})
	if err != nil {
		return model.User{}, false, fmt.Errorf("get user: %w", err)
	}
	return user, ok, nil
}

func (s *Store) UpsertUser(_ context.Context, wallet string) (bool, error) {
	if wallet == "" {
		return false, fmt.Errorf("wallet address required")
	}
	var created bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if b.Get([]byte(wallet)) != nil {
			return nil
		}
		raw, err := json.Marshal(model.User{WalletAddress: wallet, CreatedAt: s.now().UTC()})
		if err != nil {
			return err
		}
		created = true
		return b.Put([]byte(wallet), raw)
	})
	if err != nil {
		return false, fmt.Errorf("upsert user: %w", err)
	}
	return created, nil
}

func mintKey(wallet, symbol string) []byte {
	return []byte(wallet + "|" + strings.ToUpper(symbol))
}

// timeKey sorts lexically in time order for UTC times.
func timeKey(t time.Time) []byte {
	return []byte(t.UTC().Format("2006-01-02T15:04:05.000000000Z"))
}

func (s *Store) LastMint(_ context.Context, wallet, symbol string) (model.MintRecord, bool, error) {
	var (
		rec model.MintRecord
		ok  bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(mintsBucket).Bucket(mintKey(wallet, symbol))
		if b == nil {
			return nil
		}
		_, raw := b.Cursor().Last()
		if raw == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return model.MintRecord{}, false, fmt.Errorf("last mint: %w", err)
	}
	return rec, ok, nil
}

func (s *Store) RecordMint(_ context.Context, rec model.MintRecord) error {
	if rec.MintedAt.IsZero() {
		rec.MintedAt = s.now().UTC()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode mint: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(mintsBucket).CreateBucketIfNotExists(mintKey(rec.WalletAddress, rec.Symbol))
		if err != nil {
			return err
		}
		return b.Put(timeKey(rec.MintedAt), raw)
	})
	if err != nil {
		return fmt.Errorf("record mint: %w", err)
	}
	return nil
}
