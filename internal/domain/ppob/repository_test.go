package ppob

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRepository_UpsertIdempotentOnRefID(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	tx := &Transaction{
		TxID:         uuid.New(),
		RefID:        uuid.NewString(),
		UserID:       userID,
		AccountID:    uuid.New(),
		BuyerSKUCode: "xld10",
		CustomerNo:   "081234567890",
		ProductType:  ProductTypePrepaid,
		Price:        10500,
		Status:       StatusDebited,
	}
	// the row is first written at DEBITED, before the provider request exists
	if err := repo.Upsert(ctx, tx); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	tx.Status = StatusSuccess
	tx.SN = "SN-123"
	tx.RawRequest = []byte(`{"ref_id":"x"}`)
	tx.RawResponse = []byte(`{"data":{"status":"Sukses"}}`)
	if err := repo.Upsert(ctx, tx); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	var count int
	if err := db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM lab_ppob_transactions WHERE ref_id = $1`, tx.RefID); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows for ref_id = %d, want 1", count)
	}

	got, err := repo.GetByRefID(ctx, userID, tx.RefID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusSuccess || got.SN != "SN-123" {
		t.Fatalf("row not refreshed: status=%s sn=%s", got.Status, got.SN)
	}
	// the conflict path must persist the payloads written after DEBITED
	if string(got.RawRequest) != `{"ref_id":"x"}` {
		t.Fatalf("raw_request = %s, not persisted on the conflict path", got.RawRequest)
	}

	// a later save without payloads must not blank them
	tx.RawRequest = nil
	tx.RawResponse = nil
	if err := repo.Upsert(ctx, tx); err != nil {
		t.Fatalf("third upsert failed: %v", err)
	}
	got, err = repo.GetByRefID(ctx, userID, tx.RefID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got.RawRequest) != `{"ref_id":"x"}` || len(got.RawResponse) == 0 {
		t.Fatalf("payloads blanked by a nil save: request=%s response=%s", got.RawRequest, got.RawResponse)
	}
}

func TestRepository_MarkReversedClaimsOnce(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tx := &Transaction{
		TxID:         uuid.New(),
		RefID:        uuid.NewString(),
		UserID:       uuid.New(),
		AccountID:    uuid.New(),
		BuyerSKUCode: "xld10",
		CustomerNo:   "081234567890",
		ProductType:  ProductTypePrepaid,
		Price:        10500,
		Status:       StatusFailed,
		RawRequest:   []byte(`{}`),
		RawResponse:  []byte(`{}`),
	}
	if err := repo.Upsert(ctx, tx); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	first, err := repo.MarkReversed(ctx, tx.RefID)
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	second, err := repo.MarkReversed(ctx, tx.RefID)
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if !first || second {
		t.Fatalf("claims = (%v, %v), want (true, false)", first, second)
	}
}
