package was

import "net/url"

// EncodeResourcePath escapes a resource path (including its slashes) so it
// can be used as a single file or object name. Shared by the backends that
// lay resources out one file per path.
func EncodeResourcePath(path string) string {
	return url.PathEscape(path)
}

// DecodeResourcePath reverses EncodeResourcePath.
func DecodeResourcePath(encoded string) (string, error) {
	return url.PathUnescape(encoded)
}
