package util

import "testing"

func TestHashKey(t *testing.T) {
	key := "nci_analysis_v1"
	got := HashKey(key)
	if got != HashKey(key) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
	if HashKey("other") == got {
		t.Fatalf("distinct keys must not collide")
	}
}
