package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var errMalformedHash = errors.New("malformed password hash")

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// PasswordHasher produces argon2id hashes in PHC string format and verifies both argon2
// and legacy bcrypt hashes.
type PasswordHasher struct {
	params Argon2Params

	dummyOnce sync.Once
	dummy     string
}

func NewPasswordHasher(params Argon2Params) *PasswordHasher {
	if params.Memory == 0 {
		params = DefaultArgon2Params
	}
	return &PasswordHasher{params: params}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. A malformed hash is an error,
// a mismatch is not.
func (h *PasswordHasher) Verify(password string, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2"):
		return verifyArgon2(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, errMalformedHash
	}
}

// BurnVerify spends the same work as a real verification against a throwaway hash so
// unknown accounts cost as much as known ones.
func (h *PasswordHasher) BurnVerify(password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = h.Hash("not-a-real-password")
	})
	if h.dummy != "" {
		_, _ = h.Verify(password, h.dummy)
	}
}

func verifyArgon2(password string, encoded string) (bool, error) {
	// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, errMalformedHash
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errMalformedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, errMalformedHash
	}

	var got []byte
	switch parts[1] {
	case "argon2id":
		got = argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(want)))
	case "argon2i":
		got = argon2.Key([]byte(password), salt, iterations, memory, parallelism, uint32(len(want)))
	default:
		return false, errMalformedHash
	}

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
