// Package was implements the server side of the Wallet Attached Storage
// protocol: DID-authenticated spaces holding arbitrary resources.
//
// Write access to a space is proven by an HTTP Signature (Cavage draft-12
// with the key-id extension) over a small set of pseudo-headers, signed with
// the Ed25519 key embedded in the signer's did:key identifier. Reads of
// resources are public.
//
// # Key Components
//
//   - SignatureVerifier: Authorization header parsing, canonical string
//     reconstruction, expiry enforcement, and Ed25519 verification
//   - ResolveDIDKey: did:key decoding to a raw Ed25519 public key
//   - SpaceService: authorization gate (signer must equal space controller)
//     plus space and resource operations
//   - Store: the storage contract every backend implements
//   - MemoryStore: the reference in-memory backend defining baseline semantics
//
// # Storage Backends
//
// The filesystem, database (SQLite/PostgreSQL), s3store, and clouddrive
// (Dropbox, OneDrive, Google Drive) packages provide Store implementations
// over their respective substrates. All reproduce the same externally
// observable behavior: cascade on space delete, resources preserved across
// controller updates, idempotent deletes.
//
// # Example Usage
//
//	store := was.NewMemoryStore()
//	service := was.NewSpaceService(store)
//	verifier := was.NewSignatureVerifier()
//
//	signed, err := verifier.Verify(r.Header.Get("Authorization"), r.Method, r.URL.Path)
//	if err != nil {
//	    // 401
//	}
//	err = service.PutResource(ctx, signed, spaceKey, "/greeting.txt", body, "text/plain")
//
// See the http package for the REST API and the config package for backend
// selection.
package was
