package models

import "testing"

func TestDirectMessagePairKeyUnordered(t *testing.T) {
	if DirectMessagePairKey(7, 3) != DirectMessagePairKey(3, 7) {
		t.Fatalf("pair key must be order-independent")
	}
	if got := DirectMessagePairKey(3, 7); got != "3:7" {
		t.Fatalf("expected 3:7, got %s", got)
	}
	if DirectMessagePairKey(1, 2) == DirectMessagePairKey(1, 3) {
		t.Fatalf("distinct pairs must not collide")
	}
}
