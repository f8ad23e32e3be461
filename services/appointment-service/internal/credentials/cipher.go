package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const derivedKeyLen = 32

var errCiphertextTooShort = errors.New("ciphertext too short")

// deriveKey expands the master secret into a per-credential AES-256 key
// using the record's salt, so no two rows share a data key and the master
// secret itself never touches a cipher.
func deriveKey(master, salt []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, master, salt, []byte("bookpay/payment-credentials"))
	key := make([]byte, derivedKeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// sealToken encrypts an access token with AES-256-GCM, prepending the
// nonce to the ciphertext.
func sealToken(key, plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return append(nonce, aead.Seal(nil, nonce, plaintext, nil)...), nil
}

func openToken(key, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, errCiphertextTooShort
	}
	nonce := ciphertext[:aead.NonceSize()]
	return aead.Open(nil, nonce, ciphertext[aead.NonceSize():], nil)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptAccessToken is the provisioning-side counterpart of the store's
// decrypt path: it derives the row key and seals the token. Used by
// seeding tooling and tests.
func EncryptAccessToken(master, salt []byte, token string) ([]byte, error) {
	key, err := deriveKey(master, salt)
	if err != nil {
		return nil, err
	}
	return sealToken(key, []byte(token))
}

// NewSalt returns a fresh random salt for a credential row.
func NewSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}
