package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2Config holds the tunable Argon2id cost parameters.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns OWASP-ish defaults used when no configuration
// is supplied.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

var (
	argonMu  sync.RWMutex
	argonCfg = DefaultArgon2Config()
)

// ConfigureArgon2 overrides the Argon2id parameters used for new hashes.
// Existing hashes keep verifying because their parameters are derivable from
// the stored salt and key lengths.
func ConfigureArgon2(cfg Argon2Config) error {
	if cfg.Memory == 0 || cfg.Iterations == 0 || cfg.Parallelism == 0 {
		return fmt.Errorf("argon2 parameters must be positive")
	}
	if cfg.SaltLength == 0 || cfg.KeyLength == 0 {
		return fmt.Errorf("argon2 salt and key lengths must be positive")
	}

	argonMu.Lock()
	argonCfg = cfg
	argonMu.Unlock()
	return nil
}

func currentArgon2Config() Argon2Config {
	argonMu.RLock()
	defer argonMu.RUnlock()
	return argonCfg
}

// HashPassword generates an Argon2id hash for the provided password. The
// resulting string embeds the cost parameters and base64-encoded salt and
// hash, so every hash verifies with the parameters it was created with.
func HashPassword(password string) (string, error) {
	cfg := currentArgon2Config()

	salt := make([]byte, cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, cfg.KeyLength)

	encoded := fmt.Sprintf(
		"$argon2id$m=%d,t=%d,p=%d$%s$%s",
		cfg.Memory,
		cfg.Iterations,
		cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// VerifyPassword compares the provided password against a stored Argon2id
// hash in constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[1] != "argon2id" {
		return false, fmt.Errorf("invalid password hash format")
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("parse hash parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}

	storedHash, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(storedHash)))

	return subtle.ConstantTimeCompare(computed, storedHash) == 1, nil
}
