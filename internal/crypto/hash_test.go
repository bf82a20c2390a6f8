package crypto

import (
	"strings"
	"testing"
)

// fastParams keeps the suite quick; production uses DefaultHashParams.
var fastParams = HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashPassword(t *testing.T) {
	hash, err := NewPasswordHasher(DefaultHashParams()).Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash() unexpected error: %v", err)
	}

	// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("Hash() expected 6 parts, got %d: %q", len(parts), hash)
	}
	if parts[1] != "argon2id" {
		t.Errorf("Hash() algorithm = %q, want %q", parts[1], "argon2id")
	}
	if parts[2] != "v=19" {
		t.Errorf("Hash() version = %q, want %q", parts[2], "v=19")
	}
	if parts[3] != "m=65536,t=3,p=2" {
		t.Errorf("Hash() params = %q, want %q", parts[3], "m=65536,t=3,p=2")
	}
}

func TestHashEmptyPassword(t *testing.T) {
	if _, err := NewPasswordHasher(fastParams).Hash(""); err != ErrEmptyPassword {
		t.Errorf("Hash(\"\") error = %v, want ErrEmptyPassword", err)
	}
}

func TestVerifyPasswordCorrect(t *testing.T) {
	h := NewPasswordHasher(fastParams)
	hash, err := h.Hash("my-secure-password")
	if err != nil {
		t.Fatalf("Hash() unexpected error: %v", err)
	}

	match, err := h.Verify("my-secure-password", hash)
	if err != nil {
		t.Fatalf("Verify() unexpected error: %v", err)
	}
	if !match {
		t.Error("Verify() returned false for correct password")
	}
}

func TestVerifyPasswordWrong(t *testing.T) {
	h := NewPasswordHasher(fastParams)
	hash, err := h.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash() unexpected error: %v", err)
	}

	match, err := h.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify() unexpected error: %v", err)
	}
	if match {
		t.Error("Verify() returned true for wrong password")
	}
}

func TestVerifyUsesEmbeddedParams(t *testing.T) {
	hash, err := NewPasswordHasher(fastParams).Hash("portable")
	if err != nil {
		t.Fatalf("Hash() unexpected error: %v", err)
	}

	match, err := NewPasswordHasher(DefaultHashParams()).Verify("portable", hash)
	if err != nil {
		t.Fatalf("Verify() unexpected error: %v", err)
	}
	if !match {
		t.Error("Verify() should honour the parameters stored in the hash")
	}
}

func TestHashPasswordProducesDifferentHashes(t *testing.T) {
	h := NewPasswordHasher(fastParams)

	hash1, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() unexpected error: %v", err)
	}
	hash2, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() unexpected error: %v", err)
	}

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for same password (salt should differ)")
	}
}

func TestVerifyPasswordInvalidHash(t *testing.T) {
	h := NewPasswordHasher(fastParams)

	for _, bad := range []string{
		"invalid-hash-format",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1,t=1,p=1$!!!$a2V5",
	} {
		if _, err := h.Verify("password", bad); err == nil {
			t.Errorf("Verify() expected error for %q", bad)
		}
	}
}
