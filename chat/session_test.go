package chat

import (
	"testing"
	"time"
)

func TestMemoryStoreSessionIsolation(t *testing.T) {
	store := NewMemoryStore()

	store.Append("a", Turn{Role: RoleUser, Content: "hello from a", Timestamp: time.Now()})
	store.Append("b", Turn{Role: RoleUser, Content: "hello from b", Timestamp: time.Now()})

	transcriptA, ok := store.History("a")
	if !ok || len(transcriptA) != 1 {
		t.Fatalf("expected 1 turn in session a, got %d (ok=%v)", len(transcriptA), ok)
	}
	if transcriptA[0].Content != "hello from a" {
		t.Fatalf("session a holds the wrong turn: %q", transcriptA[0].Content)
	}

	store.Clear("a")
	if _, ok := store.History("b"); !ok {
		t.Fatal("clearing session a must not touch session b")
	}
}

func TestMemoryStoreHistoryReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	store.Append("s", Turn{Role: RoleUser, Content: "original"})

	transcript, _ := store.History("s")
	transcript[0].Content = "mutated"

	fresh, _ := store.History("s")
	if fresh[0].Content != "original" {
		t.Fatal("History must return a copy, not the backing slice")
	}
}

func TestMemoryStoreClearAbsentSession(t *testing.T) {
	store := NewMemoryStore()
	if store.Clear("never-created") {
		t.Fatal("clearing an absent session must report false")
	}
}

func TestMemoryStoreHistoryAbsentSession(t *testing.T) {
	store := NewMemoryStore()
	if transcript, ok := store.History("never-created"); ok || transcript != nil {
		t.Fatal("absent session must read as not found")
	}
}

func TestMemoryStoreAppendPreservesOrder(t *testing.T) {
	store := NewMemoryStore()
	for i, content := range []string{"one", "two", "three", "four"} {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		store.Append("s", Turn{Role: role, Content: content, Timestamp: time.Now()})
	}

	transcript, _ := store.History("s")
	if len(transcript) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(transcript))
	}
	want := []string{"one", "two", "three", "four"}
	for i, w := range want {
		if transcript[i].Content != w {
			t.Fatalf("turn %d out of order: got %q, want %q", i, transcript[i].Content, w)
		}
	}
}
