package auth

import (
	"context"
	"errors"
	"testing"

	"pickme-intel/internal/config"

	"golang.org/x/crypto/bcrypt"
)

func TestDirectoryAuthenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDirectory(config.AdminConfig{
		Email:        "Admin@PickMe.in",
		PasswordHash: string(hash),
		Name:         "Administrator",
		Role:         "admin",
	})
	ctx := context.Background()

	id, err := d.Authenticate(ctx, " admin@pickme.in ", "s3cret-pass")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.Email != "admin@pickme.in" || id.Role != "admin" || id.UserID == "" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if _, err := d.Authenticate(ctx, "admin@pickme.in", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := d.Authenticate(ctx, "nobody@pickme.in", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestDirectoryWithoutAccountsRejectsAll(t *testing.T) {
	d := NewDirectory(config.AdminConfig{})
	if _, err := d.Authenticate(context.Background(), "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(h), []byte("pw")) != nil {
		t.Fatalf("hash does not verify")
	}
}
