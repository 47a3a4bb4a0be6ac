package server

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"keystore-core/internal/auth"
	cr "keystore-core/internal/crypto"
	"keystore-core/internal/keys"
)

// handleWalletKeys generates a fresh key pair and adds it to the session's
// wallet (POST), or decrypts one by key-id (GET ?id=<hex>). The wallet is
// the encrypted key store underneath the session vault; every call here
// requires the vault to already be unlocked.
func (s *Server) handleWalletKeys(w http.ResponseWriter, r *http.Request) {
	v, err := s.withSessionVault(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	claims, _ := auth.FromContext(r.Context())

	switch r.Method {
	case http.MethodPost:
		var req struct {
			Compressed *bool `json:"compressed"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		compressed := true
		if req.Compressed != nil {
			compressed = *req.Compressed
		}

		kp, err := keys.Generate(compressed)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := v.AddWalletKey(r.Context(), kp); err != nil {
			writeWalletError(w, err)
			return
		}
		keyID := kp.PubKey().KeyID()
		s.audit.Append("wallet:addkey user=" + claims.Sub + " keyid=" + hex.EncodeToString(keyID[:]))
		writeJSONStatus(w, http.StatusCreated, map[string]string{
			"key_id": hex.EncodeToString(keyID[:]),
			"pubkey": hex.EncodeToString(kp.PubKey().Bytes()),
		})

	case http.MethodGet:
		idHex := strings.TrimSpace(r.URL.Query().Get("id"))
		idBytes, err := hex.DecodeString(idHex)
		if err != nil || len(idBytes) != 20 {
			http.Error(w, "id must be a 20-byte hex string", http.StatusBadRequest)
			return
		}
		var keyID [20]byte
		copy(keyID[:], idBytes)

		kp, err := v.GetWalletKey(r.Context(), keyID)
		if err != nil {
			writeWalletError(w, err)
			return
		}
		writeJSON(w, map[string]string{
			"key_id": idHex,
			"scalar": hex.EncodeToString(kp.Scalar()),
			"pubkey": hex.EncodeToString(kp.PubKey().Bytes()),
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWalletPaperKey stores (POST) or returns (GET) the wallet's mnemonic.
func (s *Server) handleWalletPaperKey(w http.ResponseWriter, r *http.Request) {
	v, err := s.withSessionVault(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	claims, _ := auth.FromContext(r.Context())

	switch r.Method {
	case http.MethodPost:
		var req struct{ Mnemonic string `json:"mnemonic"` }
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		mnemonic := []byte(req.Mnemonic)
		defer cr.Zero(mnemonic)
		if len(mnemonic) == 0 {
			http.Error(w, "mnemonic required", http.StatusBadRequest)
			return
		}
		if err := v.AddPaperKey(r.Context(), mnemonic); err != nil {
			writeWalletError(w, err)
			return
		}
		s.audit.Append("wallet:addpaperkey user=" + claims.Sub)
		writeJSON(w, map[string]any{"ok": true})

	case http.MethodGet:
		mnemonic, err := v.GetPaperKey(r.Context())
		if err != nil {
			writeWalletError(w, err)
			return
		}
		defer cr.Zero(mnemonic)
		writeJSON(w, map[string]string{"mnemonic": string(mnemonic)})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWalletPin mirrors handleWalletPaperKey for the PIN code.
func (s *Server) handleWalletPin(w http.ResponseWriter, r *http.Request) {
	v, err := s.withSessionVault(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	claims, _ := auth.FromContext(r.Context())

	switch r.Method {
	case http.MethodPost:
		var req struct{ Pin string `json:"pin"` }
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		pin := []byte(req.Pin)
		defer cr.Zero(pin)
		if len(pin) == 0 {
			http.Error(w, "pin required", http.StatusBadRequest)
			return
		}
		if err := v.AddPinCode(r.Context(), pin); err != nil {
			writeWalletError(w, err)
			return
		}
		s.audit.Append("wallet:addpin user=" + claims.Sub)
		writeJSON(w, map[string]any{"ok": true})

	case http.MethodGet:
		pin, err := v.GetPinCode(r.Context())
		if err != nil {
			writeWalletError(w, err)
			return
		}
		defer cr.Zero(pin)
		writeJSON(w, map[string]string{"pin": string(pin)})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWalletRotate re-encrypts the wallet's keys, paper key, and PIN under
// a freshly-derived passphrase, independent of the surrounding item vault's
// own master.
func (s *Server) handleWalletRotate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, err := s.withSessionVault(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	claims, _ := auth.FromContext(r.Context())

	var req struct{ NewPassphrase string `json:"new_passphrase"` }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	newMaster := []byte(req.NewPassphrase)
	defer cr.Zero(newMaster)
	if len(newMaster) == 0 {
		http.Error(w, "new_passphrase required", http.StatusBadRequest)
		return
	}

	if err := v.RotateWalletPassphrase(r.Context(), newMaster); err != nil {
		writeWalletError(w, err)
		return
	}
	s.audit.Append("wallet:rotate user=" + claims.Sub)
	writeJSON(w, map[string]any{"ok": true})
}

// writeWalletError maps the keystore's plain error sentinels to HTTP status
// codes without leaking which specific check failed beyond what the design's
// error kinds already distinguish.
func writeWalletError(w http.ResponseWriter, err error) {
	switch {
	case strings.Contains(err.Error(), "locked"):
		http.Error(w, err.Error(), http.StatusLocked)
	case strings.Contains(err.Error(), "not found"):
		http.Error(w, err.Error(), http.StatusNotFound)
	case strings.Contains(err.Error(), "wrong passphrase"):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
