package was

import "time"

// SetNow overrides the verifier's clock. Test hook only.
func (v *SignatureVerifier) SetNow(now func() time.Time) {
	v.now = now
}
