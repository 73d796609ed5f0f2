// encryption.go - Versioned symmetric encryption for UTXO payloads.
//
// Two ciphertext formats share the wire:
//
//	V2 (current):       version tag (8) || nonce (12) || AES-256-GCM ciphertext+tag
//	V1 (decrypt only):  iv (16) || HMAC-SHA256 tag (16) || AES-128-CTR ciphertext
//
// Anything that does not start with the V2 tag is treated as V1. Key material
// is derived once from a wallet signature over a fixed message and cached for
// the session; keys are never serialized or logged. A MAC failure is reported
// exactly like a wrong-owner ciphertext.

package shield

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// KeyDerivationMessage is the constant the wallet signs to derive the session
// encryption keys. Signing it never authorizes a ledger operation.
const KeyDerivationMessage = "Sign this message to derive your shielded account keys. " +
	"This signature stays on your device and does not authorize any transaction."

// versionTagV2 marks V2 ciphertexts.
var versionTagV2 = [8]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02}

const (
	v2NonceSize = 12
	v1IVSize    = 16
	v1TagSize   = 16
)

// EncryptionService holds the session keys for both ciphertext formats.
// Safe for concurrent reads once keys are derived.
type EncryptionService struct {
	keyV1 []byte // first 31 signature bytes (legacy)
	keyV2 []byte // Keccak256 of the signature

	utxoSeedV1 string
	utxoSeedV2 string
}

// NewEncryptionService returns a service with no keys derived yet.
func NewEncryptionService() *EncryptionService {
	return &EncryptionService{}
}

// DeriveKeys installs both session keys from a wallet signature over
// KeyDerivationMessage. Pure in the signature: the same wallet always yields
// the same keys.
func (s *EncryptionService) DeriveKeys(signature []byte) error {
	if len(signature) < 32 {
		return errors.Wrap(ErrEncryption, "signature too short for key derivation")
	}

	s.keyV1 = append([]byte(nil), signature[:31]...)
	seedV1 := sha256.Sum256(s.keyV1)
	s.utxoSeedV1 = "0x" + hex.EncodeToString(seedV1[:])

	s.keyV2 = keccak256(signature)
	s.utxoSeedV2 = "0x" + hex.EncodeToString(keccak256(s.keyV2))
	return nil
}

// Reset drops all derived key material.
func (s *EncryptionService) Reset() {
	s.keyV1, s.keyV2 = nil, nil
	s.utxoSeedV1, s.utxoSeedV2 = "", ""
}

// UtxoKeypair returns the field keypair owning UTXOs of the given version.
func (s *EncryptionService) UtxoKeypair(version Version) (*Keypair, error) {
	seed := s.utxoSeedV2
	if version == V1 {
		seed = s.utxoSeedV1
	}
	if seed == "" {
		return nil, errors.Wrap(ErrEncryption, "keys not derived")
	}
	return KeypairFromHex(seed)
}

// Encrypt seals a payload in the V2 format with a fresh random nonce.
func (s *EncryptionService) Encrypt(plaintext []byte) ([]byte, error) {
	if s.keyV2 == nil {
		return nil, errors.Wrap(ErrEncryption, "keys not derived")
	}
	aead, err := newGCM(s.keyV2)
	if err != nil {
		return nil, errors.Wrap(ErrEncryption, err.Error())
	}
	nonce := make([]byte, v2NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(ErrEncryption, "nonce randomness")
	}
	out := make([]byte, 0, len(versionTagV2)+v2NonceSize+len(plaintext)+aead.Overhead())
	out = append(out, versionTagV2[:]...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt opens a ciphertext of either format, detected by the version tag.
func (s *EncryptionService) Decrypt(data []byte) ([]byte, error) {
	if len(data) < len(versionTagV2) {
		return nil, errors.Wrap(ErrDecryption, "ciphertext too short")
	}
	if VersionOf(data) == V2 {
		return s.decryptV2(data)
	}
	return s.decryptV1(data)
}

func (s *EncryptionService) decryptV2(data []byte) ([]byte, error) {
	if s.keyV2 == nil {
		return nil, errors.Wrap(ErrDecryption, "keys not derived")
	}
	if len(data) < len(versionTagV2)+v2NonceSize+16 {
		return nil, errors.Wrap(ErrDecryption, "ciphertext too short for v2")
	}
	aead, err := newGCM(s.keyV2)
	if err != nil {
		return nil, errors.Wrap(ErrDecryption, err.Error())
	}
	nonce := data[8 : 8+v2NonceSize]
	plaintext, err := aead.Open(nil, nonce, data[8+v2NonceSize:], nil)
	if err != nil {
		// Wrong key or corrupted data; the two are indistinguishable.
		return nil, ErrDecryption
	}
	return plaintext, nil
}

func (s *EncryptionService) decryptV1(data []byte) ([]byte, error) {
	if s.keyV1 == nil {
		return nil, errors.Wrap(ErrDecryption, "keys not derived")
	}
	if len(data) < v1IVSize+v1TagSize {
		return nil, errors.Wrap(ErrDecryption, "ciphertext too short for v1")
	}
	iv := data[:v1IVSize]
	tag := data[v1IVSize : v1IVSize+v1TagSize]
	ciphertext := data[v1IVSize+v1TagSize:]

	mac := hmac.New(sha256.New, s.keyV1[16:31])
	mac.Write(iv)
	mac.Write(ciphertext)
	expected := mac.Sum(nil)[:v1TagSize]
	if subtle.ConstantTimeCompare(tag, expected) != 1 {
		return nil, ErrDecryption
	}

	block, err := aes.NewCipher(s.keyV1[:16])
	if err != nil {
		return nil, errors.Wrap(ErrDecryption, err.Error())
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

// EncryptUtxo seals the UTXO's serialized fields in the V2 format.
func (s *EncryptionService) EncryptUtxo(u *Utxo) ([]byte, error) {
	return s.Encrypt([]byte(u.Serialize()))
}

// DecryptUtxo opens a ciphertext and rebuilds the UTXO it carries, owned by
// the keypair matching the ciphertext's version.
func (s *EncryptionService) DecryptUtxo(data []byte) (*Utxo, error) {
	version := VersionOf(data)
	plaintext, err := s.Decrypt(data)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(plaintext) {
		return nil, errors.Wrap(ErrDecryption, "payload is not utf-8")
	}
	owner, err := s.UtxoKeypair(version)
	if err != nil {
		return nil, err
	}
	return ParseUtxo(string(plaintext), owner, version)
}

// DecryptUtxoHex opens a hex-encoded ciphertext.
func (s *EncryptionService) DecryptUtxoHex(encoded string) (*Utxo, error) {
	data, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(ErrDecryption, "malformed hex")
	}
	return s.DecryptUtxo(data)
}

// VersionOf reports the ciphertext format; anything without the V2 tag is V1.
func VersionOf(data []byte) Version {
	if len(data) >= len(versionTagV2) &&
		subtle.ConstantTimeCompare(data[:len(versionTagV2)], versionTagV2[:]) == 1 {
		return V2
	}
	return V1
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
