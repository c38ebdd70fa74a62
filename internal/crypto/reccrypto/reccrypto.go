// Package reccrypto contains client-side primitives for record key
// derivation and AEAD sealing. Keys never leave the machine; the chain and
// the content store only ever see sealed blobs.
package reccrypto

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Params
const (
	KeyLen = 32

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
)

// magic marks sealed blobs so readers can tell them from plaintext records
// written before sealing was wired in.
var magic = []byte("MEDSEAL1")

func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// DeriveRecordKey derives the per-patient record key from the patient ID
// and a personal secret using Argon2id. The salt is bound to the patient ID
// so the same inputs re-derive the same key on any device.
func DeriveRecordKey(patientID, secret string) []byte {
	salt := sha256.Sum256([]byte("medchain/record-key:" + patientID))
	return argon2.IDKey([]byte(secret), salt[:], argonTime, argonMemory, argonThreads, KeyLen)
}

// Seal encrypts plaintext with XChaCha20-Poly1305, random nonce, and
// AAD = account||contentName.
func Seal(key []byte, account, contentName string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	aad := aadFor(account, contentName)
	out := make([]byte, 0, len(magic)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, magic...)
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, aad)...)
	return out, nil
}

// Open decrypts a sealed blob using the same AAD as during sealing.
func Open(key []byte, account, contentName string, blob []byte) ([]byte, error) {
	if !Sealed(blob) {
		return nil, errors.New("blob not sealed")
	}
	body := blob[len(magic):]
	if len(body) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("blob too short")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := body[:chacha20poly1305.NonceSizeX]
	ct := body[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, aadFor(account, contentName))
}

// Sealed reports whether blob carries the seal marker.
func Sealed(blob []byte) bool {
	return bytes.HasPrefix(blob, magic)
}

func aadFor(account, contentName string) []byte {
	aad := make([]byte, 0, len(account)+1+len(contentName))
	aad = append(aad, account...)
	aad = append(aad, 0)
	aad = append(aad, contentName...)
	return aad
}
