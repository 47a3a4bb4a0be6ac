package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"keystore-core/internal/auth"
	"keystore-core/internal/server"
)

func main() {
	cfg := server.Config{
		MongoURI:        getenv("WALLETD_MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getenv("WALLETD_MONGO_DB", "walletd"),
		UsersCollection: getenv("WALLETD_USERS_COLLECTION", "users"),
		VaultDir:        getenv("WALLETD_VAULT_DIR", "./vaults"),
		JWTIssuer:       getenv("WALLETD_JWT_ISSUER", "walletd"),
		TokenTTL:        durationEnv("WALLETD_TOKEN_TTL", 15*time.Minute),
		TOTPIssuer:      getenv("WALLETD_TOTP_ISSUER", "Walletd"),
		SMTP: server.SMTPConfig{
			Host:     os.Getenv("WALLETD_SMTP_HOST"),
			Port:     os.Getenv("WALLETD_SMTP_PORT"),
			User:     os.Getenv("WALLETD_SMTP_USER"),
			Pass:     os.Getenv("WALLETD_SMTP_PASS"),
			From:     os.Getenv("WALLETD_SMTP_FROM"),
			Security: os.Getenv("WALLETD_SMTP_SECURITY"),
		},
	}

	if seed := os.Getenv("WALLETD_SEED_USER"); seed != "" {
		// WALLETD_SEED_USER=username:password[:email]
		parts := strings.SplitN(seed, ":", 3)
		if len(parts) >= 2 {
			su := server.SeedUser{Username: parts[0], Password: parts[1], Roles: []auth.Role{auth.RoleAdmin}}
			if len(parts) == 3 {
				su.Email = parts[2]
			}
			cfg.SeedUsers = append(cfg.SeedUsers, su)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		log.Fatalf("walletd: %v", err)
	}

	addr := getenv("WALLETD_ADDR", ":8080")
	log.Printf("walletd listening on %s (mongo db %s, vaults %s)", addr, cfg.MongoDB, cfg.VaultDir)
	log.Fatal(http.ListenAndServe(addr, srv.Handler()))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
