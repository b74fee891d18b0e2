package was

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// didKeyPrefix covers the did:key method plus the multibase base58btc marker.
const didKeyPrefix = "did:key:z"

// multicodecEd25519Pub is the multicodec tag for Ed25519 public keys.
var multicodecEd25519Pub = []byte{0xed, 0x01}

// Controller returns a DID with any #fragment removed.
func Controller(did string) string {
	if i := strings.IndexByte(did, '#'); i >= 0 {
		return did[:i]
	}
	return did
}

// ResolveDIDKey extracts the Ed25519 public key from a did:key identifier.
//
// Both "did:key:z6Mk..." and "did:key:z6Mk...#z6Mk..." forms are accepted.
// All malformed inputs fail with ErrMalformedIdentifier. The function is pure;
// callers may cache by DID but correctness does not depend on it.
func ResolveDIDKey(didKey string) (ed25519.PublicKey, error) {
	did := Controller(didKey)

	if !strings.HasPrefix(did, didKeyPrefix) {
		return nil, fmt.Errorf("resolve did:key: expected %s..., got %q: %w", didKeyPrefix, didKey, ErrMalformedIdentifier)
	}

	decoded, err := base58.Decode(did[len(didKeyPrefix):])
	if err != nil {
		return nil, fmt.Errorf("resolve did:key: invalid base58btc payload: %w", ErrMalformedIdentifier)
	}

	if len(decoded) < len(multicodecEd25519Pub) || !bytes.Equal(decoded[:len(multicodecEd25519Pub)], multicodecEd25519Pub) {
		return nil, fmt.Errorf("resolve did:key: expected Ed25519 multicodec tag 0xed01: %w", ErrMalformedIdentifier)
	}

	pub := decoded[len(multicodecEd25519Pub):]
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("resolve did:key: expected %d-byte public key, got %d: %w", ed25519.PublicKeySize, len(pub), ErrMalformedIdentifier)
	}

	return ed25519.PublicKey(pub), nil
}

// FormatDIDKey encodes an Ed25519 public key as a did:key identifier.
// It is the encoding counterpart to ResolveDIDKey.
func FormatDIDKey(pub ed25519.PublicKey) string {
	payload := make([]byte, 0, len(multicodecEd25519Pub)+len(pub))
	payload = append(payload, multicodecEd25519Pub...)
	payload = append(payload, pub...)
	return didKeyPrefix + base58.Encode(payload)
}
