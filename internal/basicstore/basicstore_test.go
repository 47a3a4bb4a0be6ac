package basicstore

import (
	"testing"

	"keystore-core/internal/keys"
)

func TestAddAndGetKey(t *testing.T) {
	s := New()
	kp, err := keys.Generate(true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	s.AddKeyPubKey(kp)

	got, err := s.GetKey(kp.PubKey().KeyID())
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if got != kp {
		t.Fatal("expected the same key pair back")
	}
}

func TestWatchOnlyFallback(t *testing.T) {
	s := New()
	kp, _ := keys.Generate(true)
	s.AddWatchOnly(kp.PubKey())

	if _, err := s.GetKey(kp.PubKey().KeyID()); err != ErrMissing {
		t.Fatalf("expected ErrMissing for a watch-only key, got %v", err)
	}
	pub, err := s.GetPubKey(kp.PubKey().KeyID())
	if err != nil {
		t.Fatalf("get pub key: %v", err)
	}
	if !pub.Equal(kp.PubKey()) {
		t.Fatal("watch-only pub key mismatch")
	}
}

func TestPaperKeyAndPinMirrors(t *testing.T) {
	s := New()
	if _, ok := s.GetPaperKey(); ok {
		t.Fatal("expected no paper key initially")
	}
	s.SetPaperKey("abandon ability able about above")
	got, ok := s.GetPaperKey()
	if !ok || got != "abandon ability able about above" {
		t.Fatal("paper key mirror mismatch")
	}
	s.ClearPaperKey()
	if _, ok := s.GetPaperKey(); ok {
		t.Fatal("expected paper key cleared")
	}

	s.SetPinCode("1234")
	pin, ok := s.GetPinCode()
	if !ok || pin != "1234" {
		t.Fatal("pin mirror mismatch")
	}
}

func TestIsEmptyKeysAndClear(t *testing.T) {
	s := New()
	if !s.IsEmpty() {
		t.Fatal("expected empty store")
	}
	kp, _ := keys.Generate(true)
	s.AddKeyPubKey(kp)
	if s.IsEmpty() {
		t.Fatal("expected non-empty store")
	}
	snap := s.Keys()
	if len(snap) != 1 {
		t.Fatalf("expected 1 entry in snapshot, got %d", len(snap))
	}
	if s.IsEmpty() {
		t.Fatal("Keys must not clear the store")
	}
	s.Clear()
	if !s.IsEmpty() {
		t.Fatal("expected store cleared after Clear")
	}
}
