package was

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const signatureScheme = "Signature "

// DefaultIncludeHeaders is the pseudo-header set signed when the client does
// not name its own.
var DefaultIncludeHeaders = []string{
	"(created)",
	"(expires)",
	"(key-id)",
	"(request-target)",
}

// BuildSignatureString reconstructs the exact byte sequence the client signed.
//
// Each pseudo-header yields one "name: value" line; lines are joined with a
// single "\n" and no trailing newline. The construction must stay
// bit-for-bit identical to the signing side: no normalization is applied
// beyond lower-casing the method in (request-target).
func BuildSignatureString(method, path string, created, expires int64, keyID string, includeHeaders []string) (string, error) {
	values := map[string]string{
		"(created)":        strconv.FormatInt(created, 10),
		"(expires)":        strconv.FormatInt(expires, 10),
		"(key-id)":         keyID,
		"(request-target)": strings.ToLower(method) + " " + path,
	}

	headers := includeHeaders
	if len(headers) == 0 {
		headers = DefaultIncludeHeaders
	}

	parts := make([]string, 0, len(headers))
	for _, h := range headers {
		v, ok := values[h]
		if !ok {
			return "", fmt.Errorf("build signature string: %q: %w", h, ErrUnsupportedHeader)
		}
		parts = append(parts, h+": "+v)
	}

	return strings.Join(parts, "\n"), nil
}

// signatureParamNames is the closed set of Authorization parameters; all five
// are required and anything else is rejected.
var signatureParamNames = map[string]bool{
	"keyId":     true,
	"headers":   true,
	"signature": true,
	"created":   true,
	"expires":   true,
}

// parseSignatureParams tokenizes the comma-separated key="value" list that
// follows the Signature scheme token. Unknown and duplicate keys are
// rejected.
func parseSignatureParams(s string) (map[string]string, error) {
	params := make(map[string]string, len(signatureParamNames))

	rest := s
	for {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			break
		}

		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("parse signature params: expected key=\"value\" at %q: %w", rest, ErrAuthScheme)
		}
		key := rest[:eq]
		rest = rest[eq+1:]

		if !signatureParamNames[key] {
			return nil, fmt.Errorf("parse signature params: unrecognized parameter %q: %w", key, ErrAuthScheme)
		}
		if _, dup := params[key]; dup {
			return nil, fmt.Errorf("parse signature params: duplicate parameter %q: %w", key, ErrAuthScheme)
		}

		if len(rest) == 0 || rest[0] != '"' {
			return nil, fmt.Errorf("parse signature params: parameter %q value must be quoted: %w", key, ErrAuthScheme)
		}
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return nil, fmt.Errorf("parse signature params: unterminated value for %q: %w", key, ErrAuthScheme)
		}
		params[key] = rest[1 : 1+end]
		rest = rest[end+2:]

		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return nil, fmt.Errorf("parse signature params: expected ',' after %q value: %w", key, ErrAuthScheme)
		}
		rest = rest[1:]
	}

	return params, nil
}

// ParseAuthorization parses an "Authorization: Signature ..." header value
// into a SignedRequest envelope. No cryptographic checks are performed.
func ParseAuthorization(header string) (SignedRequest, error) {
	if !strings.HasPrefix(header, signatureScheme) {
		return SignedRequest{}, fmt.Errorf("parse authorization: header must start with %q: %w", signatureScheme, ErrAuthScheme)
	}

	params, err := parseSignatureParams(header[len(signatureScheme):])
	if err != nil {
		return SignedRequest{}, err
	}

	var missing []string
	for name := range signatureParamNames {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return SignedRequest{}, fmt.Errorf("parse authorization: %w: %s", ErrMissingParameter, strings.Join(missing, ", "))
	}

	keyID := params["keyId"]

	// The wire form is unpadded base64url; re-pad before decoding.
	sigB64 := params["signature"]
	if m := len(sigB64) % 4; m != 0 {
		sigB64 += strings.Repeat("=", 4-m)
	}
	signature, err := base64.URLEncoding.DecodeString(sigB64)
	if err != nil {
		return SignedRequest{}, fmt.Errorf("parse authorization: invalid base64url signature: %w", ErrAuthScheme)
	}

	created, err := strconv.ParseInt(params["created"], 10, 64)
	if err != nil {
		return SignedRequest{}, fmt.Errorf("parse authorization: invalid created timestamp: %w", ErrAuthScheme)
	}
	expires, err := strconv.ParseInt(params["expires"], 10, 64)
	if err != nil {
		return SignedRequest{}, fmt.Errorf("parse authorization: invalid expires timestamp: %w", ErrAuthScheme)
	}

	return SignedRequest{
		KeyID:      keyID,
		Controller: Controller(keyID),
		Headers:    strings.Fields(params["headers"]),
		Signature:  signature,
		Created:    created,
		Expires:    expires,
	}, nil
}

// SignatureVerifier verifies HTTP Signature Authorization headers signed with
// did:key Ed25519 identities.
type SignatureVerifier struct {
	now func() time.Time
}

// NewSignatureVerifier creates a verifier using the wall clock for expiry
// checks.
func NewSignatureVerifier() *SignatureVerifier {
	return &SignatureVerifier{now: time.Now}
}

// Verify checks an Authorization header value against the request method and
// path.
//
// The pipeline is: parse the header, enforce expiry, resolve the signer's
// did:key to an Ed25519 public key, rebuild the signature string, and verify
// the signature bytes. Any failing step terminates verification with one of
// the package's typed errors. On success the parsed envelope is returned.
func (v *SignatureVerifier) Verify(authorization, method, path string) (SignedRequest, error) {
	parsed, err := ParseAuthorization(authorization)
	if err != nil {
		return SignedRequest{}, err
	}

	if parsed.Expires < v.now().Unix() {
		return SignedRequest{}, fmt.Errorf("verify signature: expired at %d: %w", parsed.Expires, ErrExpiredSignature)
	}

	pub, err := ResolveDIDKey(parsed.KeyID)
	if err != nil {
		return SignedRequest{}, err
	}

	sigString, err := BuildSignatureString(method, path, parsed.Created, parsed.Expires, parsed.KeyID, parsed.Headers)
	if err != nil {
		return SignedRequest{}, err
	}

	if !ed25519.Verify(pub, []byte(sigString), parsed.Signature) {
		return SignedRequest{}, fmt.Errorf("verify signature: %w", ErrSignatureMismatch)
	}

	return parsed, nil
}
