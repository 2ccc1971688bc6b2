// internal/auth/password.go
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash indicates a stored password hash that cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// ErrHashVersion indicates a hash produced by an unsupported argon2 version.
var ErrHashVersion = errors.New("unsupported argon2 version")

const (
	saltLen = 16
	keyLen  = 32
)

// hashParams are the tunable Argon2id cost settings. They are encoded into
// every hash, so verification works regardless of the current configuration.
type hashParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
}

// hashParamsFromEnv reads the cost settings, falling back to defaults:
//   - ARGON_MEMORY_KB (default 65536)
//   - ARGON_ITERATIONS (default 5)
//   - ARGON_PARALLELISM (default half the CPUs, at least 1)
func hashParamsFromEnv() hashParams {
	threads := envInt("ARGON_PARALLELISM", runtime.NumCPU()/2)
	if threads < 1 {
		threads = 1
	}
	return hashParams{
		memory:      uint32(envInt("ARGON_MEMORY_KB", 64*1024)),
		iterations:  uint32(envInt("ARGON_ITERATIONS", 5)),
		parallelism: uint8(threads),
	}
}

// HashPassword derives an Argon2id key from the password and returns it in
// the standard encoded form with version, cost settings and salt.
func HashPassword(password string) (string, error) {
	p := hashParamsFromEnv()

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, p.iterations, p.memory, p.parallelism, keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.iterations, p.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// VerifyPassword re-derives the key with the settings stored in the hash and
// compares in constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	p, salt, key, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	other := argon2.IDKey([]byte(password), salt, p.iterations, p.memory, p.parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

// parseHash splits an encoded Argon2id hash into its settings, salt and key.
func parseHash(encoded string) (hashParams, []byte, []byte, error) {
	var p hashParams

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[1] != "argon2id" {
		return p, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return p, nil, nil, ErrHashVersion
	}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return p, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(fields[4])
	if err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(fields[5])
	if err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	return p, salt, key, nil
}

// envInt reads an integer environment variable, or returns the default.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
