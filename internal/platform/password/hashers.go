package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"

	dErrors "custodia/pkg/domain-errors"
)

const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4

	scryptN = 32768
	scryptR = 8
	scryptP = 1

	pbkdf2Iterations = 600000

	keyLen = 32
)

var b64 = base64.RawStdEncoding

type argon2idHasher struct{}

func (argon2idHasher) Name() string { return NameArgon2id }

func (argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errEmptyPassword()
	}
	salt, err := newSalt()
	if err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Threads,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

func (argon2idHasher) Verify(password, encoded string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != NameArgon2id {
		return errMalformedHash()
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return errMalformedHash()
	}
	var (
		memory  uint32
		time    uint32
		threads uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return errMalformedHash()
	}
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return errMalformedHash()
	}
	want, err := b64.DecodeString(parts[5])
	if err != nil {
		return errMalformedHash()
	}
	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return errMismatch()
	}
	return nil
}

type scryptHasher struct{}

func (scryptHasher) Name() string { return NameScrypt }

func (scryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errEmptyPassword()
	}
	salt, err := newSalt()
	if err != nil {
		return "", err
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return fmt.Sprintf("$scrypt$N=%d,r=%d,p=%d$%s$%s",
		scryptN, scryptR, scryptP,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

func (scryptHasher) Verify(password, encoded string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[1] != NameScrypt {
		return errMalformedHash()
	}
	var n, r, p int
	if _, err := fmt.Sscanf(parts[2], "N=%d,r=%d,p=%d", &n, &r, &p); err != nil {
		return errMalformedHash()
	}
	salt, err := b64.DecodeString(parts[3])
	if err != nil {
		return errMalformedHash()
	}
	want, err := b64.DecodeString(parts[4])
	if err != nil {
		return errMalformedHash()
	}
	got, err := scrypt.Key([]byte(password), salt, n, r, p, len(want))
	if err != nil {
		return errMalformedHash()
	}
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return errMismatch()
	}
	return nil
}

type bcryptHasher struct{}

func (bcryptHasher) Name() string { return NameBcrypt }

func (bcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errEmptyPassword()
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "password is too long")
		}
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

func (bcryptHasher) Verify(password, encoded string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errMismatch()
		}
		return errMalformedHash()
	}
	return nil
}

type pbkdf2Hasher struct{}

func (pbkdf2Hasher) Name() string { return NamePBKDF2SHA256 }

func (pbkdf2Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errEmptyPassword()
	}
	salt, err := newSalt()
	if err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keyLen, sha256.New)
	return fmt.Sprintf("$pbkdf2_sha256$%d$%s$%s",
		pbkdf2Iterations, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

func (pbkdf2Hasher) Verify(password, encoded string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[1] != NamePBKDF2SHA256 {
		return errMalformedHash()
	}
	var iterations int
	if _, err := fmt.Sscanf(parts[2], "%d", &iterations); err != nil || iterations <= 0 {
		return errMalformedHash()
	}
	salt, err := b64.DecodeString(parts[3])
	if err != nil {
		return errMalformedHash()
	}
	want, err := b64.DecodeString(parts[4])
	if err != nil {
		return errMalformedHash()
	}
	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha256.New)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return errMismatch()
	}
	return nil
}
