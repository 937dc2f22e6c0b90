package storage

import (
	"bytes"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const saltSize = 16

// sealer encrypts payloads with XChaCha20-Poly1305 under an argon2id key.
// The salt is chosen on first use and kept for the life of the store so the
// key is derived once; every seal draws a fresh random nonce.
type sealer struct {
	passphrase []byte
	salt       []byte
	key        []byte
}

func newSealer(passphrase string) *sealer {
	if passphrase == "" {
		return nil
	}
	return &sealer{passphrase: []byte(passphrase)}
}

func (s *sealer) keyFor(salt []byte) []byte {
	if s.key != nil && bytes.Equal(s.salt, salt) {
		return s.key
	}
	zero(s.key)
	s.salt = append([]byte(nil), salt...)
	s.key = argon2.IDKey(s.passphrase, s.salt, 2, 64*1024, 1, chacha20poly1305.KeySize)
	return s.key
}

func (s *sealer) sealedLen(n int) int {
	return saltSize + chacha20poly1305.NonceSizeX + n + chacha20poly1305.Overhead
}

func (s *sealer) seal(plain, ad []byte) ([]byte, error) {
	salt := s.salt
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
	}
	aead, err := chacha20poly1305.NewX(s.keyFor(salt))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, s.sealedLen(len(plain)))
	out = append(out, salt...)
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, ad), nil
}

func (s *sealer) open(sealed, ad []byte) ([]byte, error) {
	if len(sealed) < s.sealedLen(0) {
		return nil, fmt.Errorf("%w: sealed payload is %d bytes", ErrCorrupt, len(sealed))
	}
	salt := sealed[:saltSize]
	nonce := sealed[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	aead, err := chacha20poly1305.NewX(s.keyFor(salt))
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, sealed[saltSize+chacha20poly1305.NonceSizeX:], ad)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrSealed)
	}
	return plain, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
