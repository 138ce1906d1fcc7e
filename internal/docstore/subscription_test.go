package docstore

import (
	"context"
	"testing"
	"time"
)

// waitSnapshot reads the next snapshot or fails the test after a timeout.
func waitSnapshot(t *testing.T, sub *Subscription) []Document {
	t.Helper()
	select {
	case docs, ok := <-sub.Updates():
		if !ok {
			t.Fatalf("subscription closed unexpectedly: %v", sub.Err())
		}
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestListenDeliversInitialSnapshot(t *testing.T) {
	store := setupTestStore(t)
	col := store.Collection("streamwise/users/u1/watchlist")

	if _, err := col.Add(context.Background(), map[string]any{"title": "Foundation"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	sub, err := col.Query().OrderBy("title").Listen(context.Background())
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer sub.Close()

	docs := waitSnapshot(t, sub)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document in the initial snapshot, got %d", len(docs))
	}
}

func TestListenDeliversFullSetAfterEveryWrite(t *testing.T) {
	store := setupTestStore(t)
	col := store.Collection("streamwise/users/u1/watchlist")

	sub, err := col.Query().OrderBy("title").Listen(context.Background())
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer sub.Close()

	if docs := waitSnapshot(t, sub); len(docs) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d documents", len(docs))
	}

	id, err := col.Add(context.Background(), map[string]any{"title": "Severance"})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if docs := waitSnapshot(t, sub); len(docs) != 1 {
		t.Fatalf("expected 1 document after add, got %d", len(docs))
	}

	if err := col.Delete(context.Background(), id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if docs := waitSnapshot(t, sub); len(docs) != 0 {
		t.Fatalf("expected empty snapshot after delete, got %d documents", len(docs))
	}
}

func TestCloseStopsDeliveries(t *testing.T) {
	store := setupTestStore(t)
	col := store.Collection("streamwise/users/u1/watchlist")

	sub, err := col.Query().Listen(context.Background())
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	waitSnapshot(t, sub)

	sub.Close()
	sub.Close() // idempotent

	if _, err := col.Add(context.Background(), map[string]any{"title": "Dark"}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	select {
	case _, ok := <-sub.Updates():
		if ok {
			t.Fatal("received a snapshot after Close")
		}
	case <-time.After(200 * time.Millisecond):
		// Channel may close asynchronously; no delivery is what matters.
	}

	if sub.Err() != nil {
		t.Fatalf("clean close should leave a nil error, got %v", sub.Err())
	}
}

func TestContextCancelReleasesListener(t *testing.T) {
	store := setupTestStore(t)
	col := store.Collection("streamwise/users/u1/watchlist")

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := col.Query().Listen(ctx)
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	waitSnapshot(t, sub)

	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Updates():
			if !ok {
				return // released
			}
		case <-deadline:
			t.Fatal("subscription not released after context cancellation")
		}
	}
}

func TestListenDocMissingDocumentIsEmptyNotError(t *testing.T) {
	store := setupTestStore(t)
	col := store.Collection("streamwise/users/u1/settings")

	sub, err := col.ListenDoc(context.Background(), "subscriptions")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer sub.Close()

	if docs := waitSnapshot(t, sub); len(docs) != 0 {
		t.Fatalf("expected no documents for a missing doc, got %d", len(docs))
	}

	if err := col.Set(context.Background(), "subscriptions", map[string]any{"serviceIds": []string{"max"}}); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	docs := waitSnapshot(t, sub)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document after set, got %d", len(docs))
	}
	var decoded struct {
		ServiceIDs []string `json:"serviceIds"`
	}
	if err := docs[0].Decode(&decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded.ServiceIDs) != 1 || decoded.ServiceIDs[0] != "max" {
		t.Fatalf("unexpected subscriptions document: %+v", decoded)
	}
}

func TestNotificationsDoNotCrossCollections(t *testing.T) {
	store := setupTestStore(t)
	watchlist := store.Collection("streamwise/users/u1/watchlist")
	other := store.Collection("streamwise/users/u2/watchlist")

	sub, err := watchlist.Query().Listen(context.Background())
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer sub.Close()
	waitSnapshot(t, sub)

	if _, err := other.Add(context.Background(), map[string]any{"title": "Elsewhere"}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	select {
	case docs := <-sub.Updates():
		t.Fatalf("unexpected snapshot from an unrelated collection: %d documents", len(docs))
	case <-time.After(200 * time.Millisecond):
	}
}
