// Package hash provides hashing utilities for stable identifiers.
package hash

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"strings"
)

// PathHash returns the first 8 hex characters of MD5(path).
// Used as the default session id for a working directory.
func PathHash(path string) string {
	return MD5Sum(path)[:8]
}

// MD5Sum returns the full MD5 hash of a string.
func MD5Sum(s string) string {
	hasher := md5.New()
	_, _ = io.WriteString(hasher, s)
	return hex.EncodeToString(hasher.Sum(nil))
}

// Parts hashes an ordered list of strings. Parts are NUL-separated so
// ("ab", "c") and ("a", "bc") differ.
func Parts(parts ...string) string {
	return MD5Sum(strings.Join(parts, "\x00"))
}
