package utils // package utils provides helpers for hashing and secret generation

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA-256 hashing for tokens stored at rest
    "encoding/hex"  // hex encoding of digests and secrets
)

// HashToken returns the SHA-256 hash of a token as a hex string.  Refresh
// tokens, blacklisted access tokens and reset secrets are only stored in
// this form so a leaked table cannot be replayed.
func HashToken(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// RandomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func RandomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
