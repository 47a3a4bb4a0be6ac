package server

import (
	"time"

	"keystore-core/internal/auth"
	"keystore-core/internal/vault"
)

type userSession struct {
	v        vault.Vault
	vpath    string
	unlocked bool
}

type resetToken struct {
	Username string
	Email    string
	Expires  time.Time
}

type twoFAChallenge struct {
	Username string
	Roles    []auth.Role
	Master   []byte
	Expires  time.Time
}

type mailer interface {
	SendResetPassword(to, token string, expires time.Time) error
	SendVaultRotated(to string, rotatedAt time.Time) error
	Enabled() bool
}
