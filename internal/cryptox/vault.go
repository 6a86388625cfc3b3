// Package cryptox derives and verifies salted password hashes.
//
// Hashes are stored as text prefixed with the scheme that produced them:
//
//	argon2id$m=65536,t=3,p=4$<base64 key>
//	pbkdf2-sha256$i=100000$<base64 key>
//
// A hash without any '$' is a bare base64 PBKDF2-SHA256 key with 100,000
// iterations, the format of accounts imported from the first deployment.
// Salts are 16 random bytes, stored base64 (std encoding).
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nsendoda/suggestion-box/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	SchemeArgon2id = "argon2id"
	SchemePBKDF2   = "pbkdf2-sha256"

	SaltSize = 16
	KeySize  = 32

	PBKDF2Iterations = 100_000
)

var (
	ErrUnknownScheme = errors.New("unknown password scheme")
	ErrMalformedHash = errors.New("malformed password hash")
)

// Argon2Params is the argon2id work factor. Memory is in KiB.
type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

var DefaultArgon2 = Argon2Params{Time: 3, Memory: 64 * 1024, Threads: 4}

// Vault derives new hashes with one scheme and verifies hashes of any
// supported scheme. It holds no secrets and is safe for concurrent use.
type Vault struct {
	scheme     string
	argon      Argon2Params
	iterations int
}

type Option func(*Vault)

// WithArgon2Params overrides the argon2id work factor for new hashes.
func WithArgon2Params(p Argon2Params) Option {
	return func(v *Vault) { v.argon = p }
}

// WithPBKDF2Iterations overrides the iteration count for new pbkdf2 hashes.
func WithPBKDF2Iterations(n int) Option {
	return func(v *Vault) { v.iterations = n }
}

func NewVault(scheme string, opts ...Option) (*Vault, error) {
	if scheme == "" {
		scheme = SchemeArgon2id
	}
	if scheme != SchemeArgon2id && scheme != SchemePBKDF2 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	v := &Vault{scheme: scheme, argon: DefaultArgon2, iterations: PBKDF2Iterations}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

func (v *Vault) Scheme() string { return v.scheme }

// Derive hashes password with salt. An empty salt means a fresh random one
// is generated. Both the salt and the hash come back encoded for storage.
func (v *Vault) Derive(password, salt string) (string, string, error) {
	var raw []byte
	if salt == "" {
		raw = common.GenerateRandByteArray(SaltSize)
		salt = base64.StdEncoding.EncodeToString(raw)
	} else {
		var err error
		if raw, err = base64.StdEncoding.DecodeString(salt); err != nil {
			return "", "", fmt.Errorf("decode salt: %w", err)
		}
	}

	switch v.scheme {
	case SchemeArgon2id:
		p := v.argon
		key := argon2.IDKey([]byte(password), raw, p.Time, p.Memory, p.Threads, KeySize)
		return salt, fmt.Sprintf("%s$m=%d,t=%d,p=%d$%s", SchemeArgon2id, p.Memory, p.Time, p.Threads, encode(key)), nil
	default:
		key := pbkdf2.Key([]byte(password), raw, v.iterations, KeySize, sha256.New)
		return salt, fmt.Sprintf("%s$i=%d$%s", SchemePBKDF2, v.iterations, encode(key)), nil
	}
}

// Verify reports whether password matches the stored salt and hash. The
// hash's own scheme and parameters are used, not the vault's.
func (v *Vault) Verify(password, salt, hash string) bool {
	raw, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	want, derive, err := parseHash(hash)
	if err != nil {
		return false
	}
	got := derive([]byte(password), raw, len(want))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// NeedsRehash reports whether hash was produced by a different scheme or
// work factor than the vault currently uses.
func (v *Vault) NeedsRehash(hash string) bool {
	scheme, params, _ := splitHash(hash)
	if scheme != v.scheme {
		return true
	}
	switch scheme {
	case SchemeArgon2id:
		return params != fmt.Sprintf("m=%d,t=%d,p=%d", v.argon.Memory, v.argon.Time, v.argon.Threads)
	default:
		return params != fmt.Sprintf("i=%d", v.iterations)
	}
}

type deriveFunc func(password, salt []byte, keyLen int) []byte

func parseHash(hash string) ([]byte, deriveFunc, error) {
	scheme, params, encoded := splitHash(hash)

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(key) == 0 {
		return nil, nil, ErrMalformedHash
	}

	switch scheme {
	case SchemeArgon2id:
		var p Argon2Params
		var threads uint
		if _, err := fmt.Sscanf(params, "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &threads); err != nil {
			return nil, nil, ErrMalformedHash
		}
		p.Threads = uint8(threads)
		return key, func(pw, salt []byte, n int) []byte {
			return argon2.IDKey(pw, salt, p.Time, p.Memory, p.Threads, uint32(n))
		}, nil
	case SchemePBKDF2:
		iter, err := strconv.Atoi(strings.TrimPrefix(params, "i="))
		if err != nil || iter <= 0 {
			return nil, nil, ErrMalformedHash
		}
		return key, func(pw, salt []byte, n int) []byte {
			return pbkdf2.Key(pw, salt, iter, n, sha256.New)
		}, nil
	default:
		return nil, nil, ErrUnknownScheme
	}
}

// splitHash breaks a stored hash into scheme, params and key. Bare legacy
// hashes report the pbkdf2 scheme with the historical iteration count.
func splitHash(hash string) (scheme, params, key string) {
	parts := strings.SplitN(hash, "$", 3)
	if len(parts) == 1 {
		return SchemePBKDF2, "i=" + strconv.Itoa(PBKDF2Iterations), hash
	}
	if len(parts) == 2 {
		return parts[0], "", parts[1]
	}
	return parts[0], parts[1], parts[2]
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
