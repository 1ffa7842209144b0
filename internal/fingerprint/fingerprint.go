// Package fingerprint computes stable content fingerprints for files.
// A fingerprint combines the file content with its modification time,
// so both edits and touch-style rewrites register as change.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Hash returns the hex-encoded fingerprint of the file at path.
// Any filesystem error is returned to the caller; cache layers treat
// errors as "file absent".
func Hash(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write(content)
	fmt.Fprintf(h, "%d", info.ModTime().UnixNano())

	return hex.EncodeToString(h.Sum(nil)), nil
}
