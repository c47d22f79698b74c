package memory

import (
	"context"
	"testing"
	"time"

	"github.com/avvvet/octotalk/internal/models"
)

func TestLocalStore_SlotsIsolatedPerConversation(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(time.Hour)

	amount := 7.0
	if err := store.SaveSlots(ctx, "a", &models.SlotState{Flow: models.FlowJog, Amount: &amount}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	a, _ := store.LoadSession(ctx, "a")
	b, _ := store.LoadSession(ctx, "b")
	if a.Slots == nil || *a.Slots.Amount != 7 {
		t.Errorf("expected slots for a, got %+v", a.Slots)
	}
	if b.Slots != nil {
		t.Errorf("expected no slots for b, got %+v", b.Slots)
	}
}

func TestLocalStore_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(time.Hour)

	amount := 1.0
	_ = store.SaveSlots(ctx, "a", &models.SlotState{Flow: models.FlowJog, Amount: &amount})
	amount = 99

	loaded, _ := store.LoadSession(ctx, "a")
	*loaded.Slots.Amount = 50
	loaded.Slots.Retries = 3

	again, _ := store.LoadSession(ctx, "a")
	if *again.Slots.Amount != 1 || again.Slots.Retries != 0 {
		t.Errorf("expected stored state isolated from callers, got %+v", again.Slots)
	}
}

func TestLocalStore_SessionTTL(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(time.Minute)

	_ = store.SaveMessage(ctx, "a", "", Message{Role: "user", Content: "hi", Timestamp: time.Now()})
	store.sessions["a"].Metadata.LastActivity = time.Now().Add(-2 * time.Minute)

	exists, _ := store.SessionExists(ctx, "a")
	if exists {
		t.Error("expected idle session to expire")
	}
	messages, _ := store.GetMessages(ctx, "a")
	if len(messages) != 0 {
		t.Errorf("expected no messages after expiry, got %d", len(messages))
	}
}

func TestLocalStore_ClearSlots(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(time.Hour)

	_ = store.SaveSlots(ctx, "a", &models.SlotState{Flow: models.FlowJog})
	if err := store.ClearSlots(ctx, "a"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if err := store.ClearSlots(ctx, "missing"); err != nil {
		t.Fatalf("clear on missing session failed: %v", err)
	}

	session, _ := store.LoadSession(ctx, "a")
	if session.Slots != nil {
		t.Errorf("expected slots cleared, got %+v", session.Slots)
	}
}
