// Package fingerprint computes content digests used to confirm real file changes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// chunkSize bounds memory use while hashing, regardless of file size.
const chunkSize = 8192

// Fingerprinter produces a deterministic digest of a file's content.
// Identical bytes yield identical digests; metadata never influences the result.
type Fingerprinter interface {
	Sum(path string) (string, error)
}

// SHA256 is the default Fingerprinter. Digests are lowercase hex.
type SHA256 struct{}

func New() *SHA256 {
	return &SHA256{}
}

func (*SHA256) Sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
