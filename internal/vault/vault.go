package vault

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"path/filepath"

	"github.com/google/uuid"

	cr "keystore-core/internal/crypto"
	"keystore-core/internal/keys"
	"keystore-core/internal/keystore"
	"keystore-core/internal/storage"
)

// DefaultLegacyKDFRounds is the rounds count every vault uses for the
// wallet's own passphrase KDF (internal/crypto.DeriveKeyIV); NewWithStores
// sets it and nothing overrides it. The method id is fixed at 0.
const DefaultLegacyKDFRounds = 1

type Vault interface {
	Create(ctx context.Context, master []byte) error
	Unlock(ctx context.Context, master []byte) error
	Lock()
	AddItem(ctx context.Context, item Item) (string, error)
	GetItem(ctx context.Context, id string) (Item, error)
	UpdateItem(ctx context.Context, id string, upd Item) error
	List(ctx context.Context, q Query) ([]ItemMeta, error)
	RotateMaster(ctx context.Context, newMaster []byte) error
	DeleteItem(ctx context.Context, id string) error

	// Wallet surface: the encrypted key store (internal/keystore) wired to
	// this vault's persisted header. Every wallet operation requires the
	// vault to be unlocked first.
	AddWalletKey(ctx context.Context, kp *keys.KeyPair) error
	GetWalletKey(ctx context.Context, keyID [20]byte) (*keys.KeyPair, error)
	AddPaperKey(ctx context.Context, mnemonic []byte) error
	GetPaperKey(ctx context.Context) ([]byte, error)
	AddPinCode(ctx context.Context, pin []byte) error
	GetPinCode(ctx context.Context) ([]byte, error)
	RotateWalletPassphrase(ctx context.Context, newMaster []byte) error
	UnlockWallet(ctx context.Context, passphrase []byte) error
	LockWallet()
	IsWalletLocked() bool
	RegisterWalletObserver(f func()) int
	UnregisterWalletObserver(token int)
}

type vault struct {
	path         string
	header       Header
	kd           KeyDirectory
	unlocked     bool
	legacyRounds int

	kek [32]byte
	vrk [32]byte

	store     storage.BlobStore
	metaStore storage.MetaStore

	meta map[string]ItemMeta

	ks *keystore.Store
}

func New(path string) Vault {
	blobDir := "." + filepath.Base(path) + ".blobs"
	return NewWithStores(path, storage.NewFileBlobStore(blobDir), nil)
}

func NewWithStores(path string, blobs storage.BlobStore, meta storage.MetaStore) Vault {
	return &vault{
		path:         path,
		store:        blobs,
		metaStore:    meta,
		meta:         make(map[string]ItemMeta),
		legacyRounds: DefaultLegacyKDFRounds,
		ks:           keystore.New(),
	}
}

func (v *vault) Create(ctx context.Context, master []byte) error {
	v.header.Version = 2
	kdf := cr.DefaultDesktopKDF()
	v.header.KDF = KDFHeader{
		Algo: "argon2id",
		M:    kdf.M,
		T:    kdf.T,
		P:    kdf.P,
		Salt: kdf.Salt,
	}
	v.kek = cr.DeriveKEK(master, kdf)
	defer zero32(&v.kek)

	_, _ = rand.Read(v.vrk[:])

	vrkWrap, err := cr.Seal(v.kek[:], v.vrk[:], []byte("vrk-wrap"))
	if err != nil {
		return err
	}
	v.header.VRKWrap = vrkWrap

	v.kd = KeyDirectory{
		Items:   map[string]KDItem{},
		Devices: map[string]Device{},
		Policy:  DefaultPolicy(),
	}
	if err := v.flushKD(); err != nil {
		return err
	}

	if err := v.initWalletLocked(master); err != nil {
		return err
	}

	v.unlocked = true
	return nil
}

// initWalletLocked derives the wallet's own master key from the same
// passphrase via the legacy KDF (distinct from the item vault's argon2id
// KEK), switches the keystore into crypted mode with no keys yet, installs
// the master key directly, and records the passphrase parameters in the
// header.
func (v *vault) initWalletLocked(master []byte) error {
	var salt [cr.SaltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return err
	}

	mk, _, err := cr.DeriveKeyIV(master, salt[:], v.legacyRounds, cr.MethodLegacySHA512AES)
	if err != nil {
		return err
	}
	defer cr.Zero(mk[:])

	if err := v.ks.EncryptKeys(mk); err != nil {
		return err
	}
	if err := v.ks.SetMasterKey(mk); err != nil {
		return err
	}

	v.header.Wallet = &WalletRecord{
		Passphrases: []PassphraseRecord{{
			Method: cr.MethodLegacySHA512AES,
			Salt:   append([]byte(nil), salt[:]...),
			Rounds: v.legacyRounds,
		}},
	}
	return writeHeader(v.path, v.header)
}

func (v *vault) Unlock(ctx context.Context, master []byte) error {
	h, err := readHeader(v.path)
	if err != nil {
		return err
	}
	v.header = h
	kdf := cr.KDFParams{M: h.KDF.M, T: h.KDF.T, P: h.KDF.P, Salt: h.KDF.Salt}
	v.kek = cr.DeriveKEK(master, kdf)

	vrk, err := cr.OpenAny(v.kek[:], v.header.VRKWrap, []byte("vrk-wrap"))
	if err != nil {
		return err
	}
	copy(v.vrk[:], vrk)
	cr.Zero(vrk)

	kdBytes, err := cr.OpenAny(v.vrk[:], v.header.KDCipher, []byte("kd"))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(kdBytes, &v.kd); err != nil {
		return err
	}

	if err := v.rebuildWalletLocked(); err != nil {
		return err
	}
	// Best-effort: the wallet may have been rekeyed to a passphrase that
	// has since diverged from the item vault's own master (see
	// RotateWalletPassphrase). A mismatch here just leaves the wallet
	// locked; it does not fail the surrounding vault unlock, since the
	// two secrets are independently gated by design.
	_ = v.tryUnlockWalletLocked(master)

	v.unlocked = true
	return nil
}

// rebuildWalletLocked reimports the keystore's crypted keys and secrets
// from the persisted WalletRecord, if any. A vault header with no Wallet
// record simply leaves the keystore in its fresh, unencrypted state. A
// failure here means the persisted record itself is malformed, which is a
// hard failure rather than a wrong-passphrase case.
func (v *vault) rebuildWalletLocked() error {
	v.ks = keystore.New()
	if v.header.Wallet == nil || len(v.header.Wallet.Passphrases) == 0 {
		return nil
	}
	for _, kr := range v.header.Wallet.Keys {
		if err := v.ks.ImportCryptedKey(kr); err != nil {
			return err
		}
	}
	v.ks.ImportSecrets(v.header.Wallet.Secrets)
	return nil
}

// tryUnlockWalletLocked derives the legacy-KDF master key from passphrase
// and the header's first PassphraseRecord, then attempts keystore.Unlock.
func (v *vault) tryUnlockWalletLocked(passphrase []byte) error {
	if v.header.Wallet == nil || len(v.header.Wallet.Passphrases) == 0 {
		return ErrNotUnlocked
	}
	pr := v.header.Wallet.Passphrases[0]
	mk, _, err := cr.DeriveKeyIV(passphrase, pr.Salt, pr.Rounds, pr.Method)
	if err != nil {
		return err
	}
	defer cr.Zero(mk[:])
	return v.ks.Unlock(mk)
}

func (v *vault) Lock() {
	v.unlocked = false
	zero32(&v.kek)
	zero32(&v.vrk)
	v.ks.Lock()
}

func (v *vault) List(ctx context.Context, q Query) ([]ItemMeta, error) {
	if !v.unlocked {
		return nil, ErrNotUnlocked
	}

	if v.metaStore != nil {
		filter := map[string]interface{}{}
		if q.Type != "" {
			filter["type"] = q.Type
		}
		smetas, err := v.metaStore.ListMeta(ctx, filter)
		if err != nil {
			return nil, err
		}

		out := make([]ItemMeta, 0, len(smetas))
		for _, m := range smetas {
			out = append(out, ItemMeta{
				ID:      m.ID,
				Type:    m.Type,
				Created: m.Created,
				Updated: m.Updated,
				Version: m.Version,
			})
		}
		return out, nil
	}

	out := make([]ItemMeta, 0, len(v.meta))
	for _, m := range v.meta {
		if q.Type == "" || q.Type == m.Type {
			out = append(out, m)
		}
	}
	return out, nil
}

func (v *vault) RotateMaster(ctx context.Context, newMaster []byte) error {
	if !v.unlocked {
		return ErrNotUnlocked
	}

	newKDF := cr.DefaultDesktopKDF()
	newKEK := cr.DeriveKEK(newMaster, newKDF)
	defer zero32(&newKEK)

	vrkWrap, err := cr.Seal(newKEK[:], v.vrk[:], []byte("vrk-wrap"))
	if err != nil {
		return err
	}

	v.header.KDF = KDFHeader{
		Algo: "argon2id",
		M:    newKDF.M, T: newKDF.T, P: newKDF.P,
		Salt: newKDF.Salt,
	}
	v.header.VRKWrap = vrkWrap
	return writeHeader(v.path, v.header)
}

func (v *vault) flushKD() error {
	kdBytes, _ := json.Marshal(v.kd)
	ct, err := cr.Seal(v.vrk[:], kdBytes, []byte("kd"))
	if err != nil {
		return err
	}
	v.header.KDCipher = ct
	return writeHeader(v.path, v.header)
}

func (v *vault) newID() string {
	return uuid.NewString()
}

func (v *vault) dekKey(dek []byte) []byte { return dek }

func zero32(x *[32]byte) {
	for i := range x {
		x[i] = 0
	}
}

func (v *vault) DeleteItem(ctx context.Context, id string) error {
	if !v.unlocked {
		return ErrNotUnlocked
	}
	delete(v.kd.Items, id)
	if v.store != nil {
		_ = v.store.Delete(ctx, id)
	}
	delete(v.meta, id)
	return v.flushKD()
}

// persistWallet snapshots the keystore's crypted keys and secrets into the
// header's WalletRecord and writes it to disk. Called after every wallet
// mutation so a crash between mutation and the next flushKD never loses a
// key the caller believes was saved.
func (v *vault) persistWallet() error {
	if v.header.Wallet == nil {
		v.header.Wallet = &WalletRecord{}
	}
	v.header.Wallet.Keys = v.ks.ExportCryptedKeys()
	v.header.Wallet.Secrets = v.ks.ExportSecrets()
	return writeHeader(v.path, v.header)
}

func (v *vault) AddWalletKey(ctx context.Context, kp *keys.KeyPair) error {
	if !v.unlocked {
		return ErrNotUnlocked
	}
	if err := v.ks.AddKeyPubKey(kp); err != nil {
		return err
	}
	return v.persistWallet()
}

func (v *vault) GetWalletKey(ctx context.Context, keyID [20]byte) (*keys.KeyPair, error) {
	if !v.unlocked {
		return nil, ErrNotUnlocked
	}
	return v.ks.GetKey(keyID)
}

func (v *vault) AddPaperKey(ctx context.Context, mnemonic []byte) error {
	if !v.unlocked {
		return ErrNotUnlocked
	}
	if err := v.ks.AddPaperKey(mnemonic); err != nil {
		return err
	}
	return v.persistWallet()
}

func (v *vault) GetPaperKey(ctx context.Context) ([]byte, error) {
	if !v.unlocked {
		return nil, ErrNotUnlocked
	}
	return v.ks.GetPaperKey()
}

func (v *vault) AddPinCode(ctx context.Context, pin []byte) error {
	if !v.unlocked {
		return ErrNotUnlocked
	}
	if err := v.ks.AddPinCode(pin); err != nil {
		return err
	}
	return v.persistWallet()
}

func (v *vault) GetPinCode(ctx context.Context) ([]byte, error) {
	if !v.unlocked {
		return nil, ErrNotUnlocked
	}
	return v.ks.GetPinCode()
}

// RotateWalletPassphrase derives a fresh legacy-KDF master key from
// newMaster under a new random salt, re-encrypts every crypted key plus the
// paper key and PIN code under it (keystore.Store.Rekey), and replaces the
// header's passphrase record. The vault (and its wallet) must already be
// unlocked under the current passphrase.
func (v *vault) RotateWalletPassphrase(ctx context.Context, newMaster []byte) error {
	if !v.unlocked {
		return ErrNotUnlocked
	}

	var salt [cr.SaltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return err
	}
	mk, _, err := cr.DeriveKeyIV(newMaster, salt[:], v.legacyRounds, cr.MethodLegacySHA512AES)
	if err != nil {
		return err
	}
	defer cr.Zero(mk[:])

	if err := v.ks.Rekey(mk); err != nil {
		return err
	}

	if v.header.Wallet == nil {
		v.header.Wallet = &WalletRecord{}
	}
	v.header.Wallet.Passphrases = []PassphraseRecord{{
		Method: cr.MethodLegacySHA512AES,
		Salt:   append([]byte(nil), salt[:]...),
		Rounds: v.legacyRounds,
	}}
	return v.persistWallet()
}

// UnlockWallet unlocks the keystore under passphrase independently of the
// surrounding item vault's own master. Needed after RotateWalletPassphrase
// has let the two diverge.
func (v *vault) UnlockWallet(ctx context.Context, passphrase []byte) error {
	if !v.unlocked {
		return ErrNotUnlocked
	}
	return v.tryUnlockWalletLocked(passphrase)
}

// LockWallet locks the keystore without locking the surrounding item vault.
func (v *vault) LockWallet() {
	v.ks.Lock()
}

func (v *vault) IsWalletLocked() bool {
	return v.ks.IsLocked()
}

func (v *vault) RegisterWalletObserver(f func()) int {
	return v.ks.RegisterObserver(func(*keystore.Store) { f() })
}

func (v *vault) UnregisterWalletObserver(token int) {
	v.ks.UnregisterObserver(token)
}
