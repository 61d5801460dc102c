// Package password implements the platform's password hasher roster. The
// configured order matters: the first hasher signs new passwords, every
// listed hasher can verify old ones, and the startup checker warns when the
// strongest available algorithm is not the one in front.
package password

import (
	"crypto/rand"
	"fmt"
	"strings"

	dErrors "custodia/pkg/domain-errors"
)

// Supported hasher names, as they appear in configuration.
const (
	NameArgon2id     = "argon2id"
	NameScrypt       = "scrypt"
	NameBcrypt       = "bcrypt"
	NamePBKDF2SHA256 = "pbkdf2_sha256"
)

// strengthOrder ranks the known hashers strongest first.
var strengthOrder = []string{NameArgon2id, NameScrypt, NameBcrypt, NamePBKDF2SHA256}

// Hasher hashes and verifies passwords in one encoded format.
type Hasher interface {
	Name() string
	Hash(password string) (string, error)
	Verify(password, encoded string) error
}

// Known reports whether name is a supported hasher.
func Known(name string) bool {
	_, ok := Rank(name)
	return ok
}

// Rank returns the strength rank of a hasher (0 is strongest) and whether
// the name is known.
func Rank(name string) (int, bool) {
	name = canonical(name)
	for i, known := range strengthOrder {
		if name == known {
			return i, true
		}
	}
	return 0, false
}

// Strongest returns the strongest known hasher among names. Unknown names
// are ignored; ok is false when none of the names are known.
func Strongest(names []string) (string, bool) {
	best := len(strengthOrder)
	found := ""
	for _, name := range names {
		if rank, ok := Rank(name); ok && rank < best {
			best = rank
			found = canonical(name)
		}
	}
	return found, found != ""
}

// New returns the hasher implementation for name.
func New(name string) (Hasher, error) {
	switch canonical(name) {
	case NameArgon2id:
		return argon2idHasher{}, nil
	case NameScrypt:
		return scryptHasher{}, nil
	case NameBcrypt:
		return bcryptHasher{}, nil
	case NamePBKDF2SHA256:
		return pbkdf2Hasher{}, nil
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unknown password hasher").Add("hasher", name)
	}
}

// Registry resolves the configured hasher order.
type Registry struct {
	order   []string
	hashers map[string]Hasher
}

// NewRegistry builds a registry from the configured order. Every name must
// be a known hasher.
func NewRegistry(order []string) (*Registry, error) {
	if len(order) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "no password hashers configured")
	}
	r := &Registry{hashers: make(map[string]Hasher, len(order))}
	for _, name := range order {
		h, err := New(name)
		if err != nil {
			return nil, err
		}
		if _, dup := r.hashers[h.Name()]; dup {
			continue
		}
		r.order = append(r.order, h.Name())
		r.hashers[h.Name()] = h
	}
	return r, nil
}

// Order returns the configured hasher names, preferred first.
func (r *Registry) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Hash encodes the password with the preferred (first) hasher.
func (r *Registry) Hash(password string) (string, error) {
	return r.hashers[r.order[0]].Hash(password)
}

// Verify checks the password against an encoded hash from any configured
// hasher, identified by its encoding prefix.
func (r *Registry) Verify(password, encoded string) error {
	name, ok := identify(encoded)
	if !ok {
		return dErrors.New(dErrors.CodeInvalidInput, "unrecognized password hash format")
	}
	h, ok := r.hashers[name]
	if !ok {
		return dErrors.New(dErrors.CodeInvalidInput, "hash uses an unconfigured hasher").Add("hasher", name)
	}
	return h.Verify(password, encoded)
}

// identify maps an encoded hash to the hasher that produced it.
func identify(encoded string) (string, bool) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return NameArgon2id, true
	case strings.HasPrefix(encoded, "$scrypt$"):
		return NameScrypt, true
	case strings.HasPrefix(encoded, "$pbkdf2_sha256$"):
		return NamePBKDF2SHA256, true
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return NameBcrypt, true
	}
	return "", false
}

func canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func newSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("could not generate salt: %w", err)
	}
	return salt, nil
}

func errMalformedHash() error {
	return dErrors.New(dErrors.CodeInvalidInput, "malformed password hash")
}

func errMismatch() error {
	return dErrors.New(dErrors.CodeInvalidInput, "password does not match")
}

func errEmptyPassword() error {
	return dErrors.New(dErrors.CodeInvalidInput, "password cannot be empty")
}
