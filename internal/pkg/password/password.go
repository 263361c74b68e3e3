// Package password hashes and verifies staff passwords with bcrypt.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// MinLength is the shortest password accepted for new credentials.
const MinLength = 8

// MaxLength is the longest password accepted for new credentials.
const MaxLength = 128

// bcryptLimit is the number of input bytes bcrypt actually reads.
const bcryptLimit = 72

// tempAlphabet omits look-alike characters (I, O, l, o, 1).
const tempAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz023456789"

const tempLength = 8

// ErrTooLong is returned by Validate for passwords over MaxLength.
var ErrTooLong = errors.New("password too long")

// Hasher produces and checks bcrypt hash strings. The zero value uses
// bcrypt.DefaultCost.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given cost, clamped to bcrypt's range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{Cost: cost}
}

// Hash returns a self-describing hash string embedding cost and salt.
// Inputs of any length are accepted.
func (h *Hasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword(prepare(plain), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(out), nil
}

// Verify reports whether plain matches hash. A malformed or empty hash
// yields false.
func (h *Hasher) Verify(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), prepare(plain)) == nil
}

// prepare maps plaintext to bcrypt input. Anything bcrypt would truncate is
// digested first, so every byte of a long password takes part in the hash.
func prepare(plain string) []byte {
	if len(plain) <= bcryptLimit {
		return []byte(plain)
	}
	sum := sha256.Sum256([]byte(plain))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// NeedsRehash reports whether hash was produced with a different cost.
func (h *Hasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	want := h.Cost
	if want == 0 {
		want = bcrypt.DefaultCost
	}
	return cost != want
}

// Temporary generates a random password for administrator resets.
func Temporary() (string, error) {
	b := make([]byte, tempLength)
	max := big.NewInt(int64(len(tempAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("temporary password: %w", err)
		}
		b[i] = tempAlphabet[n.Int64()]
	}
	return string(b), nil
}

// ErrTooShort is returned by Validate for passwords under MinLength.
var ErrTooShort = errors.New("password too short")

// Validate applies the policy for newly chosen passwords.
func Validate(plain string) error {
	if len(plain) < MinLength {
		return ErrTooShort
	}
	if len(plain) > MaxLength {
		return ErrTooLong
	}
	return nil
}
