package utils

import (
	"testing"

	"github.com/google/uuid"
)

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("GenerateID() = %q is not a UUID: %v", id, err)
		}
		if seen[id] {
			t.Fatalf("GenerateID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestItemID(t *testing.T) {
	if got := ItemID("abc", 7); got != "abc_iter_007" {
		t.Errorf("ItemID() = %s", got)
	}
	if got := ItemID("abc", 1234); got != "abc_iter_1234" {
		t.Errorf("ItemID() = %s", got)
	}
}
