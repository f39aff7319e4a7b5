package vectorstore

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestCollectionName(t *testing.T) {
	userID := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	name := CollectionName("alice", userID)
	want := "alice_11111111-2222-3333-4444-555555555555"
	if name != want {
		t.Errorf("expected %q, got %q", want, name)
	}
}

func TestCollectionName_TruncatesLongNames(t *testing.T) {
	userID := uuid.New()
	longUsername := strings.Repeat("x", 300)

	name := CollectionName(longUsername, userID)
	if len(name) != MaxCollectionNameLength {
		t.Errorf("expected truncation to %d chars, got %d", MaxCollectionNameLength, len(name))
	}
	if !strings.HasPrefix(name, longUsername[:100]) {
		t.Errorf("truncated name should keep the username prefix")
	}
}

func TestCollectionName_Deterministic(t *testing.T) {
	userID := uuid.New()
	if CollectionName("bob", userID) != CollectionName("bob", userID) {
		t.Errorf("collection name must be deterministic")
	}
}
