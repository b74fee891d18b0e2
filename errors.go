package was

import "errors"

var (
	// ErrAuthScheme is returned when the Authorization header does not carry
	// a well-formed Signature scheme value.
	ErrAuthScheme = errors.New("invalid authorization scheme")
	// ErrMissingParameter is returned when required signature parameters are absent.
	ErrMissingParameter = errors.New("missing signature parameters")
	// ErrMalformedIdentifier is returned when a did:key identifier cannot be decoded.
	ErrMalformedIdentifier = errors.New("malformed identifier")
	// ErrExpiredSignature is returned when the signature's expires timestamp has passed.
	ErrExpiredSignature = errors.New("signature expired")
	// ErrSignatureMismatch is returned when cryptographic verification fails.
	ErrSignatureMismatch = errors.New("signature mismatch")
	// ErrUnsupportedHeader is returned when a signed pseudo-header is not recognized.
	ErrUnsupportedHeader = errors.New("unsupported pseudo-header")
	// ErrForbidden is returned when an authenticated signer does not control the space.
	ErrForbidden = errors.New("forbidden")
	// ErrSpaceNotFound is returned when a space does not exist.
	ErrSpaceNotFound = errors.New("space not found")
	// ErrResourceNotFound is returned when a resource does not exist.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrValidation is returned when request input fails validation.
	ErrValidation = errors.New("invalid input")
)
