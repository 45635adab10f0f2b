// Package digest computes the lowercase hex sha256 digests used as proof
// subjects throughout the service.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// SHA256Reader streams r through sha256 and returns the lowercase hex digest.
func SHA256Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA256File hashes the file at path.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return SHA256Reader(f)
}

// SHA256Bytes hashes an in-memory payload.
func SHA256Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
