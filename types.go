package was

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Space is a DID-controlled container for resources.
//
// Key is the opaque path-segment identifier the space is addressed by.
// ID is the space's public "urn:uuid:..." identifier as supplied by the
// client; it is not validated against Key.
type Space struct {
	Key        string `json:"-"`
	ID         string `json:"id"`
	Controller string `json:"controller"`
}

// Resource is a stored byte sequence with its content type.
type Resource struct {
	Content     []byte
	ContentType string
}

// SignedRequest holds the parsed and verified components of an
// HTTP Signature Authorization header. It is built fresh per request and
// never persisted.
type SignedRequest struct {
	// KeyID is the signer's did:key identifier, fragment included.
	KeyID string
	// Controller is KeyID with any #fragment removed.
	Controller string
	// Headers lists the signed pseudo-headers in the order given by the client.
	Headers []string
	// Signature is the raw Ed25519 signature.
	Signature []byte
	// Created and Expires are epoch seconds.
	Created int64
	Expires int64
}

var urnUUIDRegex = regexp.MustCompile(`(?i)^urn:uuid:[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsURNUUID reports whether value is a valid urn:uuid string.
func IsURNUUID(value string) bool {
	return urnUUIDRegex.MatchString(value)
}

// ParseURNUUID extracts the UUID from a urn:uuid string.
func ParseURNUUID(value string) (uuid.UUID, error) {
	if !IsURNUUID(value) {
		return uuid.UUID{}, fmt.Errorf("parse urn:uuid %q: %w", value, ErrValidation)
	}
	u, err := uuid.Parse(value[len("urn:uuid:"):])
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("parse urn:uuid %q: %w", value, ErrValidation)
	}
	return u, nil
}

// MakeURNUUID formats a UUID as a urn:uuid string.
func MakeURNUUID(u uuid.UUID) string {
	return "urn:uuid:" + u.String()
}

// NewURNUUID returns a urn:uuid string for a fresh random UUID.
func NewURNUUID() string {
	return MakeURNUUID(uuid.New())
}
