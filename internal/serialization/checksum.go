package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ChecksumKey is the metadata entry holding the hex SHA-256 of the data
// section. The writer always sets it; the reader verifies it when present.
const ChecksumKey = "seggen.sha256"

// ComputeChecksum returns the hex SHA-256 of data.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidateChecksum compares the checksum of data against stored.
func ValidateChecksum(data []byte, stored string) error {
	if got := ComputeChecksum(data); got != stored {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, stored)
	}
	return nil
}
