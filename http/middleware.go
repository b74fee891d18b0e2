package http

import (
	"context"
	"net/http"

	"github.com/wallet-storage/was"
)

// RequestVerifier authenticates a raw Authorization header value against the
// request method and path.
type RequestVerifier interface {
	Verify(authorization, method, path string) (was.SignedRequest, error)
}

// signedRequestKey is the context key for the authenticated envelope.
type signedRequestKey struct{}

// SignedRequestFromContext retrieves the envelope stored by Authenticate.
func SignedRequestFromContext(ctx context.Context) (was.SignedRequest, bool) {
	signed, ok := ctx.Value(signedRequestKey{}).(was.SignedRequest)
	return signed, ok
}

// Authenticate creates middleware that enforces HTTP Signature
// authentication. On success the parsed envelope is stored in the request
// context; on failure the request terminates with a 401 problem document.
func Authenticate(verifier RequestVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := r.Header.Get("Authorization")
			if authorization == "" {
				WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header", "/authorization")
				return
			}

			signed, err := verifier.Verify(authorization, r.Method, r.URL.Path)
			if err != nil {
				HandleError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), signedRequestKey{}, signed)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
