package vault

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	cr "keystore-core/internal/crypto"
	"keystore-core/internal/storage"
)

// itemPayload is the plaintext JSON shape sealed under an item's DEK. Items
// hold wallet metadata that sits alongside the master-key-protected keys in
// the same vault file — address-book labels, exchange API credentials,
// hardware-wallet notes — anything keyed by an opaque Type/Fields pair
// rather than a cryptographic key pair.
type itemPayload struct {
	Type    string            `json:"type"`
	Fields  map[string]string `json:"fields"`
	Created int64             `json:"created"`
	Updated int64             `json:"updated"`
	Version int               `json:"version"`
}

// unwrapItemDEK recovers an item's data-encryption key from its DEK wrap,
// which is sealed under the vault's root key rather than the wallet's
// legacy-KDF master key. Every item read or write goes through this first.
func (v *vault) unwrapItemDEK(id string) ([]byte, error) {
	ki, ok := v.kd.Items[id]
	if !ok {
		return nil, fmt.Errorf("item not found: %s", id)
	}
	return cr.OpenX(v.vrk[:], ki.DekWrap, []byte("dek-wrap:"+id))
}

func (v *vault) syncItemMeta(ctx context.Context, m ItemMeta) {
	v.meta[m.ID] = m
	if v.metaStore != nil {
		_ = v.metaStore.PutMeta(ctx, storage.ItemMeta{
			ID:      m.ID,
			Type:    m.Type,
			Created: m.Created,
			Updated: m.Updated,
			Version: m.Version,
		})
	}
}

func (v *vault) AddItem(ctx context.Context, item Item) (string, error) {
	if !v.unlocked {
		return "", ErrNotUnlocked
	}
	if v.store == nil {
		return "", fmt.Errorf("no blob store configured")
	}

	dek := make([]byte, 32)
	_, _ = rand.Read(dek)
	defer cr.Zero(dek)

	now := time.Now().Unix()
	payload := itemPayload{Type: item.Type, Fields: item.Fields, Created: now, Updated: now, Version: 1}
	pt, _ := json.Marshal(payload)

	id := v.newID()
	ct, err := cr.SealX(v.dekKey(dek), pt, []byte(fmt.Sprintf("item:%s", id)))
	if err != nil {
		return "", err
	}
	dekWrap, err := cr.SealX(v.vrk[:], dek, []byte("dek-wrap:"+id))
	if err != nil {
		return "", err
	}

	v.kd.Items[id] = KDItem{DekWrap: dekWrap}
	if err := v.store.Put(ctx, id, ct); err != nil {
		return "", err
	}

	v.syncItemMeta(ctx, ItemMeta{ID: id, Type: item.Type, Created: payload.Created, Updated: payload.Updated, Version: payload.Version})
	return id, v.flushKD()
}

func (v *vault) GetItem(ctx context.Context, id string) (Item, error) {
	if !v.unlocked {
		return Item{}, ErrNotUnlocked
	}
	dek, err := v.unwrapItemDEK(id)
	if err != nil {
		return Item{}, err
	}
	defer cr.Zero(dek)

	ct, err := v.store.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	pt, err := cr.OpenX(v.dekKey(dek), ct, []byte("item:"+id))
	if err != nil {
		return Item{}, err
	}
	var payload itemPayload
	if err := json.Unmarshal(pt, &payload); err != nil {
		return Item{}, err
	}
	return Item{Type: payload.Type, Fields: payload.Fields}, nil
}

func (v *vault) UpdateItem(ctx context.Context, id string, upd Item) error {
	if !v.unlocked {
		return ErrNotUnlocked
	}
	dek, err := v.unwrapItemDEK(id)
	if err != nil {
		return err
	}
	defer cr.Zero(dek)

	payload := itemPayload{
		Type:    upd.Type,
		Fields:  upd.Fields,
		Created: v.meta[id].Created,
		Updated: time.Now().Unix(),
		Version: v.meta[id].Version + 1,
	}
	pt, _ := json.Marshal(payload)
	ct, err := cr.SealX(v.dekKey(dek), pt, []byte("item:"+id))
	if err != nil {
		return err
	}
	if err := v.store.Put(ctx, id, ct); err != nil {
		return err
	}

	v.syncItemMeta(ctx, ItemMeta{ID: id, Type: upd.Type, Created: payload.Created, Updated: payload.Updated, Version: payload.Version})
	return v.flushKD()
}
