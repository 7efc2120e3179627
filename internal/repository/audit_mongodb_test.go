package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"cruzeta-api/internal/model"

	"github.com/google/uuid"
)

func getMongoAudit(t *testing.T) *MongoDBAuditRepository {
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("MongoDB not available: TEST_MONGODB_URI not set")
	}

	r, err := NewMongoDBAuditRepository(context.Background(), uri, "cruzeta_test", "audit_"+uuid.NewString()[:8])
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	t.Cleanup(func() {
		r.collection.Drop(context.Background())
		r.counters.Drop(context.Background())
		r.Close()
	})
	return r
}

func TestMongoDBAudit_OrderAndFilter(t *testing.T) {
	r := getMongoAudit(t)
	ctx := context.Background()
	ts := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 20; i++ {
		user := int64(1)
		if i%2 == 1 {
			user = 2
		}
		entry := &model.AuditLogEntry{Timestamp: ts, UserID: user, Action: model.ActionRequestCreated}
		if err := r.AppendAudit(ctx, entry); err != nil {
			t.Fatalf("AppendAudit failed: %v", err)
		}
		if entry.ID != int64(i+1) {
			t.Fatalf("expected sequential id %d, got %d", i+1, entry.ID)
		}
	}

	entries, err := r.QueryAudit(ctx, model.AuditFilter{UserID: 2, Limit: 5})
	if err != nil {
		t.Fatalf("QueryAudit failed: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	if entries[0].ID != 20 {
		t.Errorf("expected highest id first, got %d", entries[0].ID)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].ID <= entries[i].ID {
			t.Errorf("expected descending ids, got %d then %d", entries[i-1].ID, entries[i].ID)
		}
	}

	none, _ := r.QueryAudit(ctx, model.AuditFilter{From: ts.Add(time.Hour)})
	if len(none) != 0 {
		t.Errorf("expected no entries after range, got %d", len(none))
	}
}
