package vault

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"keystore-core/internal/keys"
	"keystore-core/internal/storage"
)

func TestWalletKeyRoundTripsAcrossLockAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	blobs := storage.NewFileBlobStore(filepath.Join(dir, "blobs"))
	vpath := filepath.Join(dir, "wallet.vlt")

	v := NewWithStores(vpath, blobs, nil)
	master := randomBytes(t, 32)
	if err := v.Create(ctx, master); err != nil {
		t.Fatalf("create: %v", err)
	}

	kp, err := keys.Generate(true)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if err := v.AddWalletKey(ctx, kp); err != nil {
		t.Fatalf("add wallet key: %v", err)
	}

	mnemonic := []byte("abandon ability able about above absent absorb")
	if err := v.AddPaperKey(ctx, append([]byte(nil), mnemonic...)); err != nil {
		t.Fatalf("add paper key: %v", err)
	}

	v.Lock()
	if !v.IsWalletLocked() {
		t.Fatal("expected wallet locked after vault Lock")
	}

	v2 := NewWithStores(vpath, blobs, nil)
	if err := v2.Unlock(ctx, master); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if v2.IsWalletLocked() {
		t.Fatal("expected wallet unlocked after vault Unlock")
	}

	got, err := v2.GetWalletKey(ctx, kp.PubKey().KeyID())
	if err != nil {
		t.Fatalf("get wallet key: %v", err)
	}
	if !bytes.Equal(got.Scalar(), kp.Scalar()) {
		t.Fatal("recovered key does not match original")
	}

	paper, err := v2.GetPaperKey(ctx)
	if err != nil {
		t.Fatalf("get paper key: %v", err)
	}
	if !bytes.Equal(paper, mnemonic) {
		t.Fatalf("paper key mismatch: got %q", paper)
	}
}

func TestWalletWrongPassphraseFailsUnlock(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	blobs := storage.NewFileBlobStore(filepath.Join(dir, "blobs"))
	vpath := filepath.Join(dir, "wallet.vlt")

	v := NewWithStores(vpath, blobs, nil)
	master := randomBytes(t, 32)
	if err := v.Create(ctx, master); err != nil {
		t.Fatalf("create: %v", err)
	}
	kp, _ := keys.Generate(true)
	if err := v.AddWalletKey(ctx, kp); err != nil {
		t.Fatalf("add wallet key: %v", err)
	}
	v.Lock()

	v2 := NewWithStores(vpath, blobs, nil)
	wrong := randomBytes(t, 32)
	if err := v2.Unlock(ctx, wrong); err == nil {
		t.Fatal("expected unlock to fail: item-vault KEK should reject a mismatched passphrase")
	}
}

func TestWalletPassphraseRotation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	blobs := storage.NewFileBlobStore(filepath.Join(dir, "blobs"))
	vpath := filepath.Join(dir, "wallet.vlt")

	v := NewWithStores(vpath, blobs, nil)
	master := randomBytes(t, 32)
	if err := v.Create(ctx, master); err != nil {
		t.Fatalf("create: %v", err)
	}
	kp, _ := keys.Generate(true)
	if err := v.AddWalletKey(ctx, kp); err != nil {
		t.Fatalf("add wallet key: %v", err)
	}

	newMaster := randomBytes(t, 32)
	if err := v.RotateWalletPassphrase(ctx, newMaster); err != nil {
		t.Fatalf("rotate wallet passphrase: %v", err)
	}
	v.Lock()

	// The item vault's own KEK was never rotated, so reopening with the
	// original master still unlocks the vault; the wallet, however, now
	// requires the rotated passphrase and stays locked until told
	// otherwise.
	v2 := NewWithStores(vpath, blobs, nil)
	if err := v2.Unlock(ctx, master); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if !v2.IsWalletLocked() {
		t.Fatal("expected wallet to remain locked: rotated passphrase differs from the item vault's master")
	}
	if _, err := v2.GetWalletKey(ctx, kp.PubKey().KeyID()); err == nil {
		t.Fatal("expected wallet key lookup to fail while the wallet is locked")
	}

	if err := v2.UnlockWallet(ctx, newMaster); err != nil {
		t.Fatalf("unlock wallet with rotated passphrase: %v", err)
	}
	got, err := v2.GetWalletKey(ctx, kp.PubKey().KeyID())
	if err != nil {
		t.Fatalf("get wallet key after rotation: %v", err)
	}
	if !bytes.Equal(got.Scalar(), kp.Scalar()) {
		t.Fatal("recovered key does not match original after rotation")
	}
}
