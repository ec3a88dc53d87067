package security

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	const password = "Tr1cky-Passphrase-88"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("hash %q does not carry the argon2id prefix", hash)
	}
	if strings.Contains(hash, password) {
		t.Fatal("hash must not contain the plaintext password")
	}

	ok, err := VerifyPassword(password, hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if !ok {
		t.Fatal("password does not verify against its own hash")
	}

	ok, err = VerifyPassword("wrong-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if ok {
		t.Fatal("wrong password must not verify")
	}
}

func TestHashPasswordProducesUniqueSalts(t *testing.T) {
	first, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	second, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	if _, err := VerifyPassword("password", "not-a-valid-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}

	ok, err := VerifyPassword("", "")
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if ok {
		t.Fatal("empty inputs must not verify")
	}
}

func TestConfigureArgon2RejectsZeroParameters(t *testing.T) {
	if err := ConfigureArgon2(Argon2Config{}); err == nil {
		t.Fatal("expected error for zero parameters")
	}

	cfg := DefaultArgon2Config()
	cfg.Iterations = 0
	if err := ConfigureArgon2(cfg); err == nil {
		t.Fatal("expected error for zero iterations")
	}
}
