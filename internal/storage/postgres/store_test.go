package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"dexPortal/internal/faucet"
	"dexPortal/internal/model"
)

var _ faucet.Ledger = (*Store)(nil)

// Runs against a disposable database named by DEX_TEST_PG_DSN.
func TestStoreLedger(t *testing.T) {
	dsn := os.Getenv("DEX_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("DEX_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if _, err := store.pool.Exec(ctx, `TRUNCATE users, mint_records, tx_records`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	wallet := "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	created, err := store.UpsertUser(ctx, wallet)
	if err != nil || !created {
		t.Fatalf("first upsert created=%v err=%v", created, err)
	}
	created, err = store.UpsertUser(ctx, wallet)
	if err != nil || created {
		t.Fatalf("second upsert created=%v err=%v", created, err)
	}
	if _, ok, err := store.GetUser(ctx, wallet); err != nil || !ok {
		t.Fatalf("get user ok=%v err=%v", ok, err)
	}

	if _, ok, err := store.LastMint(ctx, wallet, "GOCTO"); err != nil || ok {
		t.Fatalf("expected no mint, ok=%v err=%v", ok, err)
	}
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{first, first.Add(time.Hour)} {
		err := store.RecordMint(ctx, model.MintRecord{
			WalletAddress: wallet,
			Symbol:        "GOCTO",
			Token:         "0x9C102a3953f7605bd59e02A9FEF515523058dE00",
			Amount:        "100000000000000000000",
			TxHash:        "0x0" + string(rune('1'+i)),
			BlockNumber:   uint64(10 + i),
			MintedAt:      at,
		})
		if err != nil {
			t.Fatalf("record mint: %v", err)
		}
	}
	last, ok, err := store.LastMint(ctx, wallet, "gocto")
	if err != nil || !ok {
		t.Fatalf("last mint ok=%v err=%v", ok, err)
	}
	if last.BlockNumber != 11 || !last.MintedAt.Equal(first.Add(time.Hour)) {
		t.Fatalf("unexpected last mint %+v", last)
	}
	if last.Amount != "100000000000000000000" {
		t.Fatalf("amount round trip %s", last.Amount)
	}

	err = store.PutTxRecords([]model.TxRecord{{
		Flow: "swap", Step: "swap", From: wallet, To: wallet, TxHash: "0xabc",
		BlockNumber: 5, Status: "settled", RecordedAt: first.Format(time.RFC3339),
	}})
	if err != nil {
		t.Fatalf("put tx records: %v", err)
	}
}
