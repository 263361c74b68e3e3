package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	for _, p := range []string{"s3cret-pass", "", "ünïcödé-pässwörd", strings.Repeat("x", 72), strings.Repeat("y", 300)} {
		hash, err := h.Hash(p)
		if err != nil {
			t.Fatalf("Hash(%q) returned error: %v", p, err)
		}
		if hash == p {
			t.Fatalf("hash equals plaintext")
		}
		if !h.Verify(p, hash) {
			t.Fatalf("Verify(%q) = false, want true", p)
		}
	}
}

func TestHasher_LongPasswordsUseEveryByte(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	long := strings.Repeat("a", 72) + "-suffix1"

	hash, err := h.Hash(long)
	if err != nil {
		t.Fatalf("Hash(80 bytes) returned error: %v", err)
	}
	if !h.Verify(long, hash) {
		t.Fatalf("Verify(p, Hash(p)) = false for an 80 byte password")
	}
	if h.Verify(strings.Repeat("a", 72)+"-suffix2", hash) {
		t.Fatalf("Verify ignored bytes past 72")
	}

	prefixHash, _ := h.Hash(long[:72])
	if h.Verify(long, prefixHash) {
		t.Fatalf("80 byte password verified against the hash of its first 72 bytes")
	}
	if !h.Verify(long[:72], prefixHash) {
		t.Fatalf("72 byte password no longer verifies against its own hash")
	}
}

func TestHasher_ShortPasswordsStayPlainBcrypt(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := bcrypt.GenerateFromPassword([]byte("Vicodin#42"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if !h.Verify("Vicodin#42", string(hash)) {
		t.Fatalf("hashes produced by plain bcrypt must keep verifying")
	}
}

func TestHasher_WrongPassword(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h.Verify("battery staple", hash) {
		t.Fatalf("Verify accepted a different password")
	}
}

func TestHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatalf("expected distinct salts to produce distinct hashes")
	}
}

func TestHasher_MalformedHashFailsClosed(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	for _, bad := range []string{"", "plaintext", "$2a$10$short", "$2a$99$" + strings.Repeat("a", 53)} {
		if h.Verify("plaintext", bad) {
			t.Fatalf("Verify accepted malformed hash %q", bad)
		}
	}
}

func TestHasher_NeedsRehash(t *testing.T) {
	low := NewHasher(bcrypt.MinCost)
	hash, _ := low.Hash("pw")
	if low.NeedsRehash(hash) {
		t.Fatalf("same cost should not need rehash")
	}
	if !NewHasher(bcrypt.MinCost + 1).NeedsRehash(hash) {
		t.Fatalf("different cost should need rehash")
	}
	if !low.NeedsRehash("garbage") {
		t.Fatalf("malformed hash should need rehash")
	}
}

func TestNewHasher_ClampsCost(t *testing.T) {
	if got := NewHasher(1).Cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
	if got := NewHasher(99).Cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
}

func TestTemporary(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		p, err := Temporary()
		if err != nil {
			t.Fatalf("Temporary: %v", err)
		}
		if len(p) != tempLength {
			t.Fatalf("expected length %d, got %d", tempLength, len(p))
		}
		for _, r := range p {
			if !strings.ContainsRune(tempAlphabet, r) {
				t.Fatalf("unexpected character %q in %q", r, p)
			}
		}
		seen[p] = true
	}
	if len(seen) < 2 {
		t.Fatalf("temporary passwords are not random")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("short"); err != ErrTooShort {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
	if err := Validate(strings.Repeat("a", MaxLength+1)); err != ErrTooLong {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
	if err := Validate(strings.Repeat("a", 100)); err != nil {
		t.Fatalf("100 byte password rejected: %v", err)
	}
	if err := Validate("long-enough"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
