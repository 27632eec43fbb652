// Package cryptobox exposes the cryptographic primitives consumed by the
// connection layer: authenticated box decryption for wallet callback
// payloads, signature verification, and base58 codecs.
//
// Every primitive has a synchronous form and a worker-offloaded form via
// Pool, so CPU-bound work never blocks connection sequencing.
package cryptobox

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

const (
	// NonceSize is the authenticated box nonce length in bytes.
	NonceSize = 24

	// KeySize is the Curve25519 key length in bytes.
	KeySize = 32
)

// Decrypt opens an authenticated box sealed by the peer. The nonce must be
// NonceSize bytes and both keys KeySize bytes.
func Decrypt(ciphertext, nonce, privKey, peerPubKey []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, moorerr.Wrap(moorerr.ErrInvalidInput, "nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	if len(privKey) != KeySize {
		return nil, moorerr.Wrap(moorerr.ErrInvalidInput, "private key must be %d bytes, got %d", KeySize, len(privKey))
	}
	if len(peerPubKey) != KeySize {
		return nil, moorerr.Wrap(moorerr.ErrInvalidInput, "peer public key must be %d bytes, got %d", KeySize, len(peerPubKey))
	}

	var (
		nonceArr [NonceSize]byte
		privArr  [KeySize]byte
		peerArr  [KeySize]byte
	)
	copy(nonceArr[:], nonce)
	copy(privArr[:], privKey)
	copy(peerArr[:], peerPubKey)

	plaintext, ok := box.Open(nil, ciphertext, &nonceArr, &peerArr, &privArr)
	if !ok {
		return nil, moorerr.ErrDecryptionFailed
	}

	return plaintext, nil
}

// Verify reports whether sig is a valid Ed25519 signature of msg by pubKey.
// Malformed inputs verify as false rather than erroring.
func Verify(sig, msg, pubKey []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), msg, sig)
}

// Base58Decode decodes a base58 string using the Bitcoin alphabet.
func Base58Decode(s string) ([]byte, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return nil, moorerr.Wrap(moorerr.ErrInvalidInput, "decoding base58")
	}
	return data, nil
}

// Base58Encode encodes data as a base58 string using the Bitcoin alphabet.
func Base58Encode(data []byte) string {
	return base58.Encode(data)
}

// ParsePeerKey decodes a base58-encoded Curve25519 public key.
func ParsePeerKey(s string) ([KeySize]byte, error) {
	var key [KeySize]byte

	raw, err := Base58Decode(s)
	if err != nil {
		return key, err
	}
	if len(raw) != KeySize {
		return key, moorerr.Wrap(moorerr.ErrInvalidInput, "peer key must be %d bytes, got %d", KeySize, len(raw))
	}

	copy(key[:], raw)
	return key, nil
}
