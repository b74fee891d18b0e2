package was_test

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-storage/was"
)

// signer holds a test identity and signs Authorization headers the way a
// wallet client would.
type signer struct {
	priv  ed25519.PrivateKey
	did   string
	keyID string
}

func newSigner(t *testing.T, seed byte) *signer {
	t.Helper()
	pub, priv := testKey(t, seed)
	did := was.FormatDIDKey(pub)
	return &signer{
		priv:  priv,
		did:   did,
		keyID: did + "#" + did[len("did:key:"):],
	}
}

func (s *signer) authorization(t *testing.T, method, path string, created, expires int64) string {
	t.Helper()
	sigString, err := was.BuildSignatureString(method, path, created, expires, s.keyID, nil)
	require.NoError(t, err)

	sig := ed25519.Sign(s.priv, []byte(sigString))
	return fmt.Sprintf(
		`Signature keyId="%s",headers="(created) (expires) (key-id) (request-target)",signature="%s",created="%d",expires="%d"`,
		s.keyID, base64.RawURLEncoding.EncodeToString(sig), created, expires,
	)
}

func TestBuildSignatureString(t *testing.T) {
	got, err := was.BuildSignatureString("PUT", "/space/abc", 1700000000, 1700000600, "did:key:zk#zk", nil)
	require.NoError(t, err)

	want := "(created): 1700000000\n" +
		"(expires): 1700000600\n" +
		"(key-id): did:key:zk#zk\n" +
		"(request-target): put /space/abc"
	assert.Equal(t, want, got)
	assert.False(t, strings.HasSuffix(got, "\n"))
}

func TestBuildSignatureStringHeaderOrder(t *testing.T) {
	got, err := was.BuildSignatureString("GET", "/x", 1, 2, "did:key:zk",
		[]string{"(request-target)", "(created)"})
	require.NoError(t, err)
	assert.Equal(t, "(request-target): get /x\n(created): 1", got)
}

func TestBuildSignatureStringUnsupportedHeader(t *testing.T) {
	_, err := was.BuildSignatureString("GET", "/x", 1, 2, "did:key:zk", []string{"(created)", "host"})
	assert.ErrorIs(t, err, was.ErrUnsupportedHeader)
}

func TestParseAuthorization(t *testing.T) {
	header := `Signature keyId="did:key:zk#zk",headers="(created) (expires) (key-id) (request-target)",signature="AQID",created="100",expires="200"`

	parsed, err := was.ParseAuthorization(header)
	require.NoError(t, err)

	assert.Equal(t, "did:key:zk#zk", parsed.KeyID)
	assert.Equal(t, "did:key:zk", parsed.Controller)
	assert.Equal(t, []string{"(created)", "(expires)", "(key-id)", "(request-target)"}, parsed.Headers)
	assert.Equal(t, []byte{1, 2, 3}, parsed.Signature)
	assert.Equal(t, int64(100), parsed.Created)
	assert.Equal(t, int64(200), parsed.Expires)
}

func TestParseAuthorizationErrors(t *testing.T) {
	valid := `keyId="did:key:zk",headers="(created)",signature="AQID",created="1",expires="2"`

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{
			name:    "wrong scheme",
			header:  "Bearer abc",
			wantErr: was.ErrAuthScheme,
		},
		{
			name:    "missing scheme token",
			header:  valid,
			wantErr: was.ErrAuthScheme,
		},
		{
			name:    "missing all parameters",
			header:  "Signature ",
			wantErr: was.ErrMissingParameter,
		},
		{
			name:    "missing expires",
			header:  `Signature keyId="did:key:zk",headers="(created)",signature="AQID",created="1"`,
			wantErr: was.ErrMissingParameter,
		},
		{
			name:    "unrecognized parameter",
			header:  "Signature " + valid + `,algorithm="ed25519"`,
			wantErr: was.ErrAuthScheme,
		},
		{
			name:    "duplicate parameter",
			header:  "Signature " + valid + `,created="9"`,
			wantErr: was.ErrAuthScheme,
		},
		{
			name:    "unquoted value",
			header:  `Signature keyId=did:key:zk,headers="(created)",signature="AQID",created="1",expires="2"`,
			wantErr: was.ErrAuthScheme,
		},
		{
			name:    "unterminated value",
			header:  `Signature keyId="did:key:zk`,
			wantErr: was.ErrAuthScheme,
		},
		{
			name:    "invalid base64 signature",
			header:  `Signature keyId="did:key:zk",headers="(created)",signature="!!!",created="1",expires="2"`,
			wantErr: was.ErrAuthScheme,
		},
		{
			name:    "non-integer created",
			header:  `Signature keyId="did:key:zk",headers="(created)",signature="AQID",created="soon",expires="2"`,
			wantErr: was.ErrAuthScheme,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := was.ParseAuthorization(tt.header)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseAuthorizationMissingNamesSubset(t *testing.T) {
	_, err := was.ParseAuthorization(`Signature keyId="did:key:zk",signature="AQID"`)
	require.ErrorIs(t, err, was.ErrMissingParameter)
	assert.Contains(t, err.Error(), "created")
	assert.Contains(t, err.Error(), "expires")
	assert.Contains(t, err.Error(), "headers")
	assert.NotContains(t, err.Error(), "keyId")
}

func TestParseAuthorizationUnpaddedSignature(t *testing.T) {
	// 4 raw bytes encode to 6 base64 characters, an unpadded length.
	raw := []byte{0xde, 0xad, 0xbe, 0xef}
	header := fmt.Sprintf(
		`Signature keyId="did:key:zk",headers="(created)",signature="%s",created="1",expires="2"`,
		base64.RawURLEncoding.EncodeToString(raw),
	)

	parsed, err := was.ParseAuthorization(header)
	require.NoError(t, err)
	assert.Equal(t, raw, parsed.Signature)
}

func TestVerifyRoundTrip(t *testing.T) {
	s := newSigner(t, 1)
	verifier := was.NewSignatureVerifier()

	now := time.Now().Unix()
	header := s.authorization(t, "PUT", "/space/abc/greeting.txt", now, now+600)

	parsed, err := verifier.Verify(header, "PUT", "/space/abc/greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, s.did, parsed.Controller)
	assert.Equal(t, s.keyID, parsed.KeyID)
}

func TestVerifyTamperSensitivity(t *testing.T) {
	s := newSigner(t, 1)
	other := newSigner(t, 2)
	verifier := was.NewSignatureVerifier()

	now := time.Now().Unix()
	header := s.authorization(t, "PUT", "/space/abc", now, now+600)

	t.Run("wrong method", func(t *testing.T) {
		_, err := verifier.Verify(header, "DELETE", "/space/abc")
		assert.ErrorIs(t, err, was.ErrSignatureMismatch)
	})

	t.Run("wrong path", func(t *testing.T) {
		_, err := verifier.Verify(header, "PUT", "/space/abd")
		assert.ErrorIs(t, err, was.ErrSignatureMismatch)
	})

	t.Run("flipped signature bit", func(t *testing.T) {
		parsed, err := was.ParseAuthorization(header)
		require.NoError(t, err)

		flipped := make([]byte, len(parsed.Signature))
		copy(flipped, parsed.Signature)
		flipped[0] ^= 0x01

		tampered := fmt.Sprintf(
			`Signature keyId="%s",headers="(created) (expires) (key-id) (request-target)",signature="%s",created="%d",expires="%d"`,
			s.keyID, base64.RawURLEncoding.EncodeToString(flipped), parsed.Created, parsed.Expires,
		)
		_, err = verifier.Verify(tampered, "PUT", "/space/abc")
		assert.ErrorIs(t, err, was.ErrSignatureMismatch)
	})

	t.Run("swapped key", func(t *testing.T) {
		parsed, err := was.ParseAuthorization(header)
		require.NoError(t, err)

		tampered := fmt.Sprintf(
			`Signature keyId="%s",headers="(created) (expires) (key-id) (request-target)",signature="%s",created="%d",expires="%d"`,
			other.keyID, base64.RawURLEncoding.EncodeToString(parsed.Signature), parsed.Created, parsed.Expires,
		)
		_, err = verifier.Verify(tampered, "PUT", "/space/abc")
		assert.ErrorIs(t, err, was.ErrSignatureMismatch)
	})
}

func TestVerifyExpiryBoundary(t *testing.T) {
	s := newSigner(t, 1)
	fixed := time.Unix(1700000000, 0)

	verifier := was.NewSignatureVerifier()
	verifier.SetNow(func() time.Time { return fixed })

	t.Run("expires equals now", func(t *testing.T) {
		header := s.authorization(t, "GET", "/spaces/", fixed.Unix()-600, fixed.Unix())
		_, err := verifier.Verify(header, "GET", "/spaces/")
		assert.NoError(t, err)
	})

	t.Run("expires one second past", func(t *testing.T) {
		header := s.authorization(t, "GET", "/spaces/", fixed.Unix()-600, fixed.Unix()-1)
		_, err := verifier.Verify(header, "GET", "/spaces/")
		assert.ErrorIs(t, err, was.ErrExpiredSignature)
	})
}

func TestVerifyMalformedKeyID(t *testing.T) {
	verifier := was.NewSignatureVerifier()
	now := time.Now().Unix()

	header := fmt.Sprintf(
		`Signature keyId="did:web:example.com",headers="(created)",signature="AQID",created="%d",expires="%d"`,
		now, now+600,
	)
	_, err := verifier.Verify(header, "GET", "/x")
	assert.ErrorIs(t, err, was.ErrMalformedIdentifier)
}

func TestVerifyCustomHeaderOrder(t *testing.T) {
	s := newSigner(t, 1)
	verifier := was.NewSignatureVerifier()
	now := time.Now().Unix()

	// Sign with a client-chosen order; verification must preserve it.
	headers := []string{"(request-target)", "(key-id)", "(expires)", "(created)"}
	sigString, err := was.BuildSignatureString("GET", "/space/k", now, now+60, s.keyID, headers)
	require.NoError(t, err)
	sig := ed25519.Sign(s.priv, []byte(sigString))

	header := fmt.Sprintf(
		`Signature keyId="%s",headers="(request-target) (key-id) (expires) (created)",signature="%s",created="%d",expires="%d"`,
		s.keyID, base64.RawURLEncoding.EncodeToString(sig), now, now+60,
	)
	_, err = verifier.Verify(header, "GET", "/space/k")
	assert.NoError(t, err)
}
