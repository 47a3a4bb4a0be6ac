package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"time"

	cr "keystore-core/internal/crypto"
	"keystore-core/internal/keys"
	"keystore-core/internal/platform"
	"keystore-core/internal/vault"
)

const clipboardTTL = 30 * time.Second

// outputSecret either prints secret or, if toClipboard is set, copies it to
// the OS clipboard for a short TTL instead of leaving it in the terminal
// scrollback.
func outputSecret(secret string, toClipboard bool) {
	if !toClipboard {
		fmt.Println(secret)
		return
	}
	if err := platform.NewClipboard().Set(secret, clipboardTTL); err != nil {
		fmt.Println(secret)
		return
	}
	fmt.Printf("copied to clipboard (clears in %s)\n", clipboardTTL)
}

// resolveMasterPassword returns the wallet master passphrase for vaultPath,
// preferring a previously remembered copy in the OS keychain over a prompt.
// With remember set, a freshly prompted passphrase is cached for next time;
// with forget set, any cached copy is deleted first and a prompt is forced.
// The returned SecretBytes is mlocked; callers must Unlock and Zero it.
func resolveMasterPassword(vaultPath string, remember, forget bool) (*cr.SecretBytes, error) {
	keyID := keychainKeyID(vaultPath)
	ring, ringErr := platform.NewKeychain()

	if forget && ringErr == nil {
		_ = ring.Delete(keyID)
	}

	if !forget && ringErr == nil {
		if cached, err := ring.Load(keyID); err == nil && len(cached) > 0 {
			sb := cr.NewSecretBytes(cached)
			_ = sb.Lock()
			return sb, nil
		}
	}

	master, err := promptSecret("Master password: ")
	if err != nil {
		return nil, err
	}

	if remember && ringErr == nil {
		// Best-effort: an unavailable OS keyring (headless CI, missing
		// Secret Service) must not block the caller from proceeding.
		_ = ring.Store(keyID, master)
	}
	sb := cr.NewSecretBytes(master)
	_ = sb.Lock()
	return sb, nil
}

func keychainKeyID(vaultPath string) string {
	sum := sha256.Sum256([]byte(vaultPath))
	return "wallet-master:" + hex.EncodeToString(sum[:8])
}

func runAddKey(args []string) error {
	fs := flag.NewFlagSet("addkey", flag.ExitOnError)
	vaultPath := fs.String("vault", "./main.vlt", "path to vault file")
	mongoURI := fs.String("mongo", "", "MongoDB URI (optional)")
	db := fs.String("db", "vaultdb", "Mongo database name")
	coll := fs.String("coll", "blobs", "Mongo collection name")
	compressed := fs.Bool("compressed", true, "serialize the public key compressed")
	remember := fs.Bool("remember", false, "cache the master password in the OS keychain")
	forget := fs.Bool("forget", false, "discard any cached master password first")
	_ = fs.Parse(args)

	blobs, meta, err := buildStore(*vaultPath, *mongoURI, *db, *coll)
	if err != nil {
		return err
	}

	masterSB, err := resolveMasterPassword(*vaultPath, *remember, *forget)
	if err != nil {
		return err
	}
	defer masterSB.Unlock()
	defer masterSB.Zero()
	master := masterSB.Bytes()

	vlt := vault.NewWithStores(*vaultPath, blobs, meta)
	ctx := context.Background()
	if err := vlt.Unlock(ctx, master); err != nil {
		return err
	}
	defer vlt.Lock()

	kp, err := keys.Generate(*compressed)
	if err != nil {
		return err
	}
	if err := vlt.AddWalletKey(ctx, kp); err != nil {
		return err
	}

	keyID := kp.PubKey().KeyID()
	fmt.Println("Added wallet key, key-id:", hex.EncodeToString(keyID[:]))
	fmt.Println("  pubkey:", hex.EncodeToString(kp.PubKey().Bytes()))
	return nil
}

func runGetKey(args []string) error {
	fs := flag.NewFlagSet("getkey", flag.ExitOnError)
	vaultPath := fs.String("vault", "./main.vlt", "path to vault file")
	id := fs.String("id", "", "key id, hex-encoded (20 bytes)")
	mongoURI := fs.String("mongo", "", "MongoDB URI (optional)")
	db := fs.String("db", "vaultdb", "Mongo database name")
	coll := fs.String("coll", "blobs", "Mongo collection name")
	remember := fs.Bool("remember", false, "cache the master password in the OS keychain")
	forget := fs.Bool("forget", false, "discard any cached master password first")
	_ = fs.Parse(args)

	if *id == "" {
		return errors.New("--id required")
	}
	idBytes, err := hex.DecodeString(*id)
	if err != nil || len(idBytes) != 20 {
		return errors.New("--id must be a 20-byte hex string")
	}
	var keyID [20]byte
	copy(keyID[:], idBytes)

	blobs, meta, err := buildStore(*vaultPath, *mongoURI, *db, *coll)
	if err != nil {
		return err
	}

	masterSB, err := resolveMasterPassword(*vaultPath, *remember, *forget)
	if err != nil {
		return err
	}
	defer masterSB.Unlock()
	defer masterSB.Zero()
	master := masterSB.Bytes()

	vlt := vault.NewWithStores(*vaultPath, blobs, meta)
	ctx := context.Background()
	if err := vlt.Unlock(ctx, master); err != nil {
		return err
	}
	defer vlt.Lock()

	kp, err := vlt.GetWalletKey(ctx, keyID)
	if err != nil {
		return err
	}
	fmt.Println("scalar:", hex.EncodeToString(kp.Scalar()))
	fmt.Println("pubkey:", hex.EncodeToString(kp.PubKey().Bytes()))
	return nil
}

func runAddPaperKey(args []string) error {
	fs := flag.NewFlagSet("addpaperkey", flag.ExitOnError)
	vaultPath := fs.String("vault", "./main.vlt", "path to vault file")
	mongoURI := fs.String("mongo", "", "MongoDB URI (optional)")
	db := fs.String("db", "vaultdb", "Mongo database name")
	coll := fs.String("coll", "blobs", "Mongo collection name")
	remember := fs.Bool("remember", false, "cache the master password in the OS keychain")
	forget := fs.Bool("forget", false, "discard any cached master password first")
	_ = fs.Parse(args)

	blobs, meta, err := buildStore(*vaultPath, *mongoURI, *db, *coll)
	if err != nil {
		return err
	}

	masterSB, err := resolveMasterPassword(*vaultPath, *remember, *forget)
	if err != nil {
		return err
	}
	defer masterSB.Unlock()
	defer masterSB.Zero()
	master := masterSB.Bytes()

	mnemonic, err := promptSecret("Mnemonic: ")
	if err != nil {
		return err
	}
	defer zero(mnemonic)

	vlt := vault.NewWithStores(*vaultPath, blobs, meta)
	ctx := context.Background()
	if err := vlt.Unlock(ctx, master); err != nil {
		return err
	}
	defer vlt.Lock()

	if err := vlt.AddPaperKey(ctx, mnemonic); err != nil {
		return err
	}
	fmt.Println("Paper key stored.")
	return nil
}

func runGetPaperKey(args []string) error {
	fs := flag.NewFlagSet("getpaperkey", flag.ExitOnError)
	vaultPath := fs.String("vault", "./main.vlt", "path to vault file")
	mongoURI := fs.String("mongo", "", "MongoDB URI (optional)")
	db := fs.String("db", "vaultdb", "Mongo database name")
	coll := fs.String("coll", "blobs", "Mongo collection name")
	remember := fs.Bool("remember", false, "cache the master password in the OS keychain")
	forget := fs.Bool("forget", false, "discard any cached master password first")
	clipboard := fs.Bool("clipboard", false, "copy the mnemonic to the clipboard instead of printing it")
	_ = fs.Parse(args)

	blobs, meta, err := buildStore(*vaultPath, *mongoURI, *db, *coll)
	if err != nil {
		return err
	}

	masterSB, err := resolveMasterPassword(*vaultPath, *remember, *forget)
	if err != nil {
		return err
	}
	defer masterSB.Unlock()
	defer masterSB.Zero()
	master := masterSB.Bytes()

	vlt := vault.NewWithStores(*vaultPath, blobs, meta)
	ctx := context.Background()
	if err := vlt.Unlock(ctx, master); err != nil {
		return err
	}
	defer vlt.Lock()

	mnemonic, err := vlt.GetPaperKey(ctx)
	if err != nil {
		return err
	}
	defer zero(mnemonic)
	outputSecret(string(mnemonic), *clipboard)
	return nil
}

func runAddPin(args []string) error {
	fs := flag.NewFlagSet("addpin", flag.ExitOnError)
	vaultPath := fs.String("vault", "./main.vlt", "path to vault file")
	mongoURI := fs.String("mongo", "", "MongoDB URI (optional)")
	db := fs.String("db", "vaultdb", "Mongo database name")
	coll := fs.String("coll", "blobs", "Mongo collection name")
	remember := fs.Bool("remember", false, "cache the master password in the OS keychain")
	forget := fs.Bool("forget", false, "discard any cached master password first")
	_ = fs.Parse(args)

	blobs, meta, err := buildStore(*vaultPath, *mongoURI, *db, *coll)
	if err != nil {
		return err
	}

	masterSB, err := resolveMasterPassword(*vaultPath, *remember, *forget)
	if err != nil {
		return err
	}
	defer masterSB.Unlock()
	defer masterSB.Zero()
	master := masterSB.Bytes()

	pin, err := promptSecret("PIN code: ")
	if err != nil {
		return err
	}
	defer zero(pin)

	vlt := vault.NewWithStores(*vaultPath, blobs, meta)
	ctx := context.Background()
	if err := vlt.Unlock(ctx, master); err != nil {
		return err
	}
	defer vlt.Lock()

	if err := vlt.AddPinCode(ctx, pin); err != nil {
		return err
	}
	fmt.Println("PIN code stored.")
	return nil
}

func runGetPin(args []string) error {
	fs := flag.NewFlagSet("getpin", flag.ExitOnError)
	vaultPath := fs.String("vault", "./main.vlt", "path to vault file")
	mongoURI := fs.String("mongo", "", "MongoDB URI (optional)")
	db := fs.String("db", "vaultdb", "Mongo database name")
	coll := fs.String("coll", "blobs", "Mongo collection name")
	remember := fs.Bool("remember", false, "cache the master password in the OS keychain")
	forget := fs.Bool("forget", false, "discard any cached master password first")
	clipboard := fs.Bool("clipboard", false, "copy the PIN to the clipboard instead of printing it")
	_ = fs.Parse(args)

	blobs, meta, err := buildStore(*vaultPath, *mongoURI, *db, *coll)
	if err != nil {
		return err
	}

	masterSB, err := resolveMasterPassword(*vaultPath, *remember, *forget)
	if err != nil {
		return err
	}
	defer masterSB.Unlock()
	defer masterSB.Zero()
	master := masterSB.Bytes()

	vlt := vault.NewWithStores(*vaultPath, blobs, meta)
	ctx := context.Background()
	if err := vlt.Unlock(ctx, master); err != nil {
		return err
	}
	defer vlt.Lock()

	pin, err := vlt.GetPinCode(ctx)
	if err != nil {
		return err
	}
	defer zero(pin)
	outputSecret(string(pin), *clipboard)
	return nil
}

func runRotatePass(args []string) error {
	fs := flag.NewFlagSet("rotatepass", flag.ExitOnError)
	vaultPath := fs.String("vault", "./main.vlt", "path to vault file")
	mongoURI := fs.String("mongo", "", "MongoDB URI (optional)")
	db := fs.String("db", "vaultdb", "Mongo database name")
	coll := fs.String("coll", "blobs", "Mongo collection name")
	remember := fs.Bool("remember", false, "cache the master password in the OS keychain")
	forget := fs.Bool("forget", false, "discard any cached master password first")
	_ = fs.Parse(args)

	blobs, meta, err := buildStore(*vaultPath, *mongoURI, *db, *coll)
	if err != nil {
		return err
	}

	masterSB, err := resolveMasterPassword(*vaultPath, *remember, *forget)
	if err != nil {
		return err
	}
	defer masterSB.Unlock()
	defer masterSB.Zero()
	master := masterSB.Bytes()

	newMaster, err := promptSecret("New wallet passphrase: ")
	if err != nil {
		return err
	}
	defer zero(newMaster)

	vlt := vault.NewWithStores(*vaultPath, blobs, meta)
	ctx := context.Background()
	if err := vlt.Unlock(ctx, master); err != nil {
		return err
	}
	defer vlt.Lock()

	if err := vlt.RotateWalletPassphrase(ctx, newMaster); err != nil {
		return err
	}

	// A cached master password still unlocks the item vault but no longer
	// unlocks this vault's wallet.
	if ring, err := platform.NewKeychain(); err == nil {
		_ = ring.Delete(keychainKeyID(*vaultPath))
	}

	fmt.Println("Wallet passphrase rotated. Use 'rotatepass' master password next time, or call UnlockWallet with the new passphrase after reopening.")
	return nil
}
