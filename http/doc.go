// Package http provides the REST API for the Wallet Attached Storage server.
//
// # Routes
//
//   - PUT    /space/{key}         create or update a space (signed)
//   - GET    /space/{key}         space metadata (signed, controller only)
//   - DELETE /space/{key}         delete a space and its resources (signed)
//   - POST   /spaces/             create a space with a server-generated ID (signed)
//   - GET    /spaces/             list the signer's spaces (signed)
//   - GET    /space/{key}/{path}  read a resource (public, unsigned)
//   - PUT    /space/{key}/{path}  create or overwrite a resource (signed)
//   - POST   /space/{key}/{path}  create a resource, responds 201 (signed)
//   - DELETE /space/{key}/{path}  delete a resource (signed, idempotent)
//
// # Authentication
//
// Signed routes run behind the Authenticate middleware, which verifies the
// "Authorization: Signature ..." header through a RequestVerifier and stores
// the resulting envelope in the request context. Resource reads skip
// authentication entirely.
//
// # Errors
//
// Failures render application/problem+json documents:
//
//	{
//	  "type": "https://wallet.storage/spec#unauthorized",
//	  "title": "Unauthorized",
//	  "errors": [{"detail": "...", "pointer": "/authorization"}]
//	}
//
// Authentication failures map to 401, authorization to 403, absent spaces
// and resources to 404, body validation to 400. Backend failures surface as
// 500 with no internal detail.
//
// # Usage
//
//	service := was.NewSpaceService(was.NewMemoryStore())
//	handler := http.NewHandler(&http.HandlerConfig{
//	    Verifier: was.NewSignatureVerifier(),
//	}, service)
//	http.ListenAndServe(":8080", handler.Router())
package http
