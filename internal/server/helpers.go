package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"regexp"
	"strings"

	"keystore-core/internal/auth"
	"keystore-core/internal/storage"
)

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func tooMany(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	http.Error(w, "too many requests", http.StatusTooManyRequests)
}

var (
	reUpper = regexp.MustCompile(`[A-Z]`)
	reLower = regexp.MustCompile(`[a-z]`)
	reDigit = regexp.MustCompile(`[0-9]`)
	reSym   = regexp.MustCompile(`[^A-Za-z0-9]`)
	reEmail = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func validatePassword(pw string) error {
	switch {
	case len(pw) < 12:
		return errors.New("password must be at least 12 characters")
	case strings.Contains(pw, " "):
		return errors.New("password must not contain spaces")
	case !reUpper.MatchString(pw):
		return errors.New("password must include an uppercase letter")
	case !reLower.MatchString(pw):
		return errors.New("password must include a lowercase letter")
	case !reDigit.MatchString(pw):
		return errors.New("password must include a digit")
	case !reSym.MatchString(pw):
		return errors.New("password must include a special character")
	default:
		return nil
	}
}

func isValidEmail(email string) bool {
	return reEmail.MatchString(email)
}

func sha256Hex(in string) string {
	sum := sha256.Sum256([]byte(in))
	return hex.EncodeToString(sum[:16])
}

func collectionNames(username string) (meta, blobs string) {
	sum := sha256.Sum256([]byte(username))
	short := hex.EncodeToString(sum[:6])
	return "meta_" + short, "blobs_" + short
}

func roleNames(rs []auth.Role) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// openUserVaultStores builds the per-user BlobStore/MetaStore pair backing a
// session's vault, preferring the server's shared Mongo client when one is
// configured and falling back to a fresh connection otherwise. Every login,
// unlock, and password-change path needs this same pair before it can touch
// a vault, so it lives here instead of being built inline at each call site.
func (s *Server) openUserVaultStores(ctx context.Context, username string) (storage.BlobStore, *storage.MongoMetaStore, error) {
	metaColl, blobColl := collectionNames(username)

	var blobs storage.BlobStore
	var err error
	if s.storageClient != nil {
		blobs, err = storage.NewMongoBlobStoreWithClient(s.storageClient, s.cfg.MongoDB, blobColl)
	} else {
		blobs, err = storage.NewMongoBlobStore(ctx, s.cfg.MongoURI, s.cfg.MongoDB, blobColl)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("mongo blobs: %w", err)
	}

	var meta *storage.MongoMetaStore
	if s.storageClient != nil {
		meta, err = storage.NewMongoMetaStoreWithClient(s.storageClient, s.cfg.MongoDB, metaColl)
	} else {
		meta, err = storage.NewMongoMetaStore(ctx, s.cfg.MongoURI, s.cfg.MongoDB, metaColl)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("mongo meta: %w", err)
	}
	return blobs, meta, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
