// Package securemem keeps credentials in memguard enclaves: encrypted while
// at rest and only decrypted into locked memory for the duration of a use.
package securemem

import (
	"crypto/subtle"
	"errors"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned by Use after Destroy.
var ErrDestroyed = errors.New("secret has been destroyed")

// Secret is a credential sealed in an enclave. The zero value and nil are
// empty secrets.
type Secret struct {
	enclave *memguard.Enclave
	empty   bool
}

// NewSecret seals plaintext. The caller's copy is not wiped since Go
// strings are immutable; prefer NewSecretFromBytes when a byte slice is at hand.
func NewSecret(plaintext string) *Secret {
	return NewSecretFromBytes([]byte(plaintext))
}

// NewSecretFromBytes seals data and wipes the slice.
func NewSecretFromBytes(data []byte) *Secret {
	if len(data) == 0 {
		return &Secret{empty: true}
	}
	return &Secret{enclave: memguard.NewEnclave(data)}
}

// IsEmpty reports whether the secret holds no bytes.
func (s *Secret) IsEmpty() bool {
	return s == nil || s.empty || s.enclave == nil
}

// Use decrypts the secret into locked memory, calls fn with it and wipes the
// buffer afterwards. fn must not retain the slice.
func (s *Secret) Use(fn func([]byte)) error {
	if s.IsEmpty() {
		if s != nil && !s.empty {
			return ErrDestroyed
		}
		fn(nil)
		return nil
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	fn(buf.Bytes())
	return nil
}

// String returns a plaintext copy in ordinary memory. Use it only where a
// library requires a string, such as a URL query value.
func (s *Secret) String() string {
	var out string
	_ = s.Use(func(b []byte) { out = string(b) })
	return out
}

// Equal compares the secret with plaintext in constant time.
func (s *Secret) Equal(plaintext string) bool {
	eq := false
	err := s.Use(func(b []byte) {
		eq = subtle.ConstantTimeCompare(b, []byte(plaintext)) == 1
	})
	return err == nil && eq
}

// Destroy drops the enclave; subsequent Use calls fail.
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	s.enclave = nil
}

// Purge wipes all memguard-managed memory. Call it once on shutdown.
func Purge() {
	memguard.Purge()
}
