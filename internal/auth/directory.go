package auth

import (
	"context"
	"errors"
	"strings"

	"pickme-intel/internal/config"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type account struct {
	identity Identity
	hash     []byte
}

// Directory holds the administrator accounts allowed to log in.
type Directory struct {
	byEmail map[string]account
}

// NewDirectory builds a directory from bootstrap config. An empty email yields
// a directory that rejects every login.
func NewDirectory(cfg config.AdminConfig) *Directory {
	d := &Directory{byEmail: map[string]account{}}
	if cfg.Email == "" {
		return d
	}
	email := normalizeEmail(cfg.Email)
	d.byEmail[email] = account{
		identity: Identity{
			UserID: "admin:" + email,
			Email:  email,
			Name:   cfg.Name,
			Role:   cfg.Role,
		},
		hash: []byte(cfg.PasswordHash),
	}
	return d
}

// Authenticate checks password against the stored bcrypt hash.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	acc, ok := d.byEmail[normalizeEmail(email)]
	if !ok {
		// Keep timing similar for unknown accounts.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return acc.identity, nil
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
