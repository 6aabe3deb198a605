package ledger

// Identity keys correlate a file across scan, decision, and execution phases.
// The content digest is the stable preferred key; the absolute path is a
// fallback used only before digesting succeeds.

const (
	digestKeyPrefix = "sha256:"
	pathKeyPrefix   = "path:"
)

// DigestKey builds the preferred identity key from a content digest.
func DigestKey(digest string) string {
	return digestKeyPrefix + digest
}

// PathKey builds the fallback identity key from an absolute path.
func PathKey(path string) string {
	return pathKeyPrefix + path
}

// KeyFor picks the identity key for a file: digest when available, path
// fallback otherwise.
func KeyFor(path, digest string) string {
	if digest != "" {
		return DigestKey(digest)
	}
	return PathKey(path)
}
